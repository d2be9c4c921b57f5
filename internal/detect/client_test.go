package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestCallSubnet_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subnets/34/detect-image" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		w.Write([]byte(`{"isAI": true, "confidence": 0.93}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "key", SubnetID: 34})

	res, err := c.CallSubnet(context.Background(), "https://img.example/a.jpg")
	if err != nil {
		t.Fatalf("CallSubnet failed: %v", err)
	}
	if !res.IsAI || res.Confidence != 0.93 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCallSubnet_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream blew up", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"isAI": false, "confidence": 0.12}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SubnetID: 34})

	res, err := c.CallSubnet(context.Background(), "https://img.example/a.jpg")
	if err != nil {
		t.Fatalf("CallSubnet failed after retries: %v", err)
	}
	if res.IsAI {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestCallSubnet_NoRetryOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SubnetID: 34})

	_, err := c.CallSubnet(context.Background(), "https://img.example/a.jpg")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error must carry the status code, got: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("429 must not be retried locally, got %d calls", got)
	}
}

func TestCallSubnet_MalformedResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"verdict": "maybe"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SubnetID: 34})

	if _, err := c.CallSubnet(context.Background(), "https://img.example/a.jpg"); err == nil {
		t.Fatal("expected error for response missing fields")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("malformed response must not be retried, got %d calls", got)
	}
}

func TestFormatReport(t *testing.T) {
	r := &Result{IsAI: true, Confidence: 0.875}

	got := FormatReport(r, 34, "alice", "bob", true)

	for _, want := range []string{
		"@alice ",
		"Analyzing image from @bob",
		"AI-Generated",
		"87.50%",
		"SN34",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestFormatReport_NoAttribution(t *testing.T) {
	r := &Result{IsAI: false, Confidence: 0.2}

	got := FormatReport(r, 34, "alice", "", false)

	if strings.Contains(got, "Analyzing image from") {
		t.Errorf("unexpected attribution:\n%s", got)
	}
	if !strings.Contains(got, "Not AI-Generated") {
		t.Errorf("missing verdict:\n%s", got)
	}
}
