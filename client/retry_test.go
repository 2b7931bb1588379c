package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

type transportResult struct {
	status  int
	body    string
	headers map[string]string
	err     error
}

type sequenceTransport struct {
	t          *testing.T
	results    []transportResult
	calls      int
	requestIDs []string
}

func (s *sequenceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	s.requestIDs = append(s.requestIDs, req.Header.Get("X-Request-ID"))
	i := s.calls - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	r := s.results[i]
	if r.err != nil {
		return nil, r.err
	}

	h := make(http.Header)
	for k, v := range r.headers {
		h.Set(k, v)
	}

	return &http.Response{
		StatusCode: r.status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Request:    req,
	}, nil
}

func newTestClient(t *testing.T, tr http.RoundTripper) *Client {
	t.Helper()
	c := New("https://planner.test.local", "test-key")
	c.HTTPClient = &http.Client{Transport: tr}
	c.sleep = func(time.Duration) {}
	c.randInt63n = func(n int64) int64 { return 0 }
	c.newRequestID = func() string { return "req-1" }
	return c
}

func getTest() (*http.Request, error) {
	return http.NewRequest("GET", "https://planner.test.local/health", nil)
}

func TestDoWithRetry_RetriesTransientStatusThenSuccess(t *testing.T) {
	tr := &sequenceTransport{
		t: t,
		results: []transportResult{
			{status: http.StatusServiceUnavailable, body: "busy"},
			{status: http.StatusBadGateway, body: "gateway"},
			{status: http.StatusOK, body: "ok"},
		},
	}
	c := newTestClient(t, tr)

	raw, err := c.doWithRetry(context.Background(), getTest)
	if err != nil {
		t.Fatalf("doWithRetry failed: %v", err)
	}
	if tr.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", tr.calls)
	}
	if raw.StatusCode != http.StatusOK || string(raw.Body) != "ok" {
		t.Fatalf("unexpected response: status=%d body=%q", raw.StatusCode, string(raw.Body))
	}
	for i, id := range tr.requestIDs {
		if id != "req-1" {
			t.Fatalf("attempt %d sent request id %q, want req-1", i+1, id)
		}
	}
}

func TestDoWithRetry_DoesNotRetryNonRetryableStatus(t *testing.T) {
	tr := &sequenceTransport{
		t: t,
		results: []transportResult{
			{status: http.StatusBadRequest, body: "bad"},
		},
	}
	c := newTestClient(t, tr)

	raw, err := c.doWithRetry(context.Background(), getTest)
	if err != nil {
		t.Fatalf("doWithRetry failed: %v", err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", tr.calls)
	}
	if raw.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", raw.StatusCode)
	}
}

func TestDoWithRetry_RetriesTransportTimeoutThenSuccess(t *testing.T) {
	tr := &sequenceTransport{
		t: t,
		results: []transportResult{
			{err: &url.Error{Op: "Get", URL: "https://planner.test.local/health", Err: context.DeadlineExceeded}},
			{status: http.StatusOK, body: "ok"},
		},
	}
	c := newTestClient(t, tr)

	raw, err := c.doWithRetry(context.Background(), getTest)
	if err != nil {
		t.Fatalf("doWithRetry failed: %v", err)
	}
	if tr.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", tr.calls)
	}
	if raw.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", raw.StatusCode)
	}
}

func TestDoWithRetry_StopsWhenContextCancelled(t *testing.T) {
	tr := &sequenceTransport{
		t: t,
		results: []transportResult{
			{status: http.StatusServiceUnavailable, body: "busy"},
		},
	}
	c := newTestClient(t, tr)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(time.Duration) { cancel() }

	_, err := c.doWithRetry(ctx, getTest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", tr.calls)
	}
}

func TestDoWithRetry_HonorsRetryAfterHeader(t *testing.T) {
	tr := &sequenceTransport{
		t: t,
		results: []transportResult{
			{status: http.StatusTooManyRequests, body: "rate limited", headers: map[string]string{"Retry-After": "2"}},
			{status: http.StatusOK, body: "ok"},
		},
	}
	c := newTestClient(t, tr)

	var slept []time.Duration
	c.sleep = func(d time.Duration) {
		slept = append(slept, d)
	}

	_, err := c.doWithRetry(context.Background(), getTest)
	if err != nil {
		t.Fatalf("doWithRetry failed: %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("expected one sleep, got %d", len(slept))
	}
	if slept[0] != 2*time.Second {
		t.Fatalf("expected sleep of 2s, got %s", slept[0])
	}
}

func TestDoWithRetry_ReturnsRetryAfterOnTerminalRateLimit(t *testing.T) {
	tr := &sequenceTransport{
		t: t,
		results: []transportResult{
			{status: http.StatusTooManyRequests, body: "rate limited", headers: map[string]string{"Retry-After": "7"}},
		},
	}
	c := newTestClient(t, tr)
	c.maxAttempts = 1

	raw, err := c.doWithRetry(context.Background(), getTest)
	if err != nil {
		t.Fatalf("doWithRetry failed: %v", err)
	}
	if raw.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", raw.StatusCode)
	}
	if raw.RetryAfter != "7" {
		t.Fatalf("expected Retry-After header to be preserved, got %q", raw.RetryAfter)
	}
}

func TestSleepWithBackoff_CapsExponentialDelay(t *testing.T) {
	c := newTestClient(t, &sequenceTransport{t: t})
	c.randInt63n = nil

	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	for attempt := 1; attempt <= 6; attempt++ {
		c.sleepWithBackoff(attempt, "")
	}

	want := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond,
		1600 * time.Millisecond, 2 * time.Second, 2 * time.Second}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("attempt %d slept %s, want %s", i+1, slept[i], want[i])
		}
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	c := newTestClient(t, &sequenceTransport{t: t})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	d, ok := c.parseRetryAfter(now.Add(5 * time.Second).Format(http.TimeFormat))
	if !ok || d != 5*time.Second {
		t.Fatalf("got %s %v, want 5s", d, ok)
	}
	if _, ok := c.parseRetryAfter("0"); ok {
		t.Fatal("zero seconds should not parse as a delay")
	}
}

func TestParseAPIError_RateLimitMessage(t *testing.T) {
	err := parseAPIError(&rawResponse{StatusCode: http.StatusTooManyRequests, Body: []byte(`{"message":"too many requests"}`), RetryAfter: "9"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if got := apiErr.Error(); got != "rate limited by planner; retry after 9" {
		t.Fatalf("unexpected rate-limit message: %q", got)
	}

	err = parseAPIError(&rawResponse{StatusCode: http.StatusTooManyRequests, Body: []byte("rate limited")})
	if got := err.Error(); got != "rate limited by planner; retry in a moment" {
		t.Fatalf("unexpected rate-limit fallback message: %q", got)
	}
}

func TestParseAPIError_Detail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"Not Found"}`, "planner error 404: Not Found"},
		{`{"message":"boom"}`, "planner error 404: boom"},
		{`plain text`, "planner error 404: plain text"},
	}
	for _, tt := range tests {
		err := parseAPIError(&rawResponse{StatusCode: http.StatusNotFound, Body: []byte(tt.body)})
		if err.Error() != tt.want {
			t.Errorf("body %s: got %q, want %q", tt.body, err.Error(), tt.want)
		}
		if !IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false", err)
		}
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
