package detect

import (
	"fmt"
	"strings"
)

const reportLink = "https://github.com/BitMind-AI/bitmind-subnet"

// FormatReport renders the reply text for one classification.
// requester is mentioned first so the reply threads correctly; when the
// analyzed image came from the root tweet of the conversation rather
// than the mention itself, the original poster is credited.
func FormatReport(r *Result, subnetID int, requester, originalPoster string, fromRoot bool) string {
	var b strings.Builder

	if requester != "" {
		fmt.Fprintf(&b, "@%s ", requester)
	}
	if fromRoot && originalPoster != "" {
		fmt.Fprintf(&b, "Analyzing image from @%s\n", originalPoster)
	}

	status := "Not AI-Generated 👤"
	if r.IsAI {
		status = "AI-Generated 🤖"
	}

	b.WriteString("📊 SYNTHETIC MEDIA ANALYSIS REPORT\n")
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Confidence of AI-Generation: %.2f%%\n", r.Confidence*100)
	fmt.Fprintf(&b, "Network: SN%d (BitMind)\n", subnetID)
	b.WriteString(reportLink)

	return b.String()
}
