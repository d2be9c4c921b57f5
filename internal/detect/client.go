// Package detect is a narrow client for the remote inference network
// that classifies images as AI-generated or not. The network is an
// opaque external service; this package owns no protocol beyond one
// POST per image.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// Config holds inference network connection settings.
type Config struct {
	BaseURL  string
	APIKey   string
	SubnetID int
}

// Result is one image classification.
type Result struct {
	IsAI       bool    `json:"isAI"`
	Confidence float64 `json:"confidence"`
}

// rawResult uses pointers so that a response missing either field is
// distinguishable from a legitimate false/zero classification.
type rawResult struct {
	IsAI       *bool    `json:"isAI"`
	Confidence *float64 `json:"confidence"`
}

type subnetRequest struct {
	Image string `json:"image"`
}

// Client talks to the inference network.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates an inference network client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// transientAttempts bounds the retry loop for network blips and 5xx
// responses. Rate-limit rejections are deliberately NOT retried here;
// that recovery belongs to the caller's backoff machinery.
const transientAttempts = 3

// CallSubnet submits an image URL for classification and returns the
// verdict. Transient failures are retried with exponential backoff.
func (c *Client) CallSubnet(ctx context.Context, imageURL string) (*Result, error) {
	return retry.NewWithData[*Result](
		retry.Context(ctx),
		retry.Attempts(transientAttempts),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	).Do(func() (*Result, error) {
		return c.callOnce(ctx, imageURL)
	})
}

func (c *Client) callOnce(ctx context.Context, imageURL string) (*Result, error) {
	body, err := json.Marshal(subnetRequest{Image: imageURL})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/subnets/%d/detect-image", c.cfg.BaseURL, c.cfg.SubnetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detect: status %d: %s", resp.StatusCode, string(respBody))
	}

	var raw rawResult
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
	}
	if raw.IsAI == nil || raw.Confidence == nil {
		return nil, retry.Unrecoverable(errors.New("detect: response missing isAI or confidence"))
	}

	return &Result{IsAI: *raw.IsAI, Confidence: *raw.Confidence}, nil
}

// isTransient reports whether an error is worth an immediate local
// retry: network failures and 5xx responses. 4xx responses, including
// 429, are not.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "send request") {
		return true
	}
	for code := 500; code <= 504; code++ {
		if strings.Contains(s, fmt.Sprintf("status %d", code)) {
			return true
		}
	}
	return false
}
