package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxAttempts    = 3
	defaultBaseBackoff    = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
	defaultUserAgent      = "voicesheet/dev"
)

// Client is a planner service client
type Client struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client

	requestTimeout time.Duration
	maxAttempts    int
	baseBackoff    time.Duration
	maxBackoff     time.Duration
	sleep          func(time.Duration)
	randInt63n     func(int64) int64
	now            func() time.Time
	newRequestID   func() string
}

type rawResponse struct {
	StatusCode  int
	ContentType string
	RetryAfter  string
	RequestID   string
	Body        []byte
}

// New creates a planner client for the service at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIKey:         apiKey,
		UserAgent:      defaultUserAgent,
		HTTPClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
		maxAttempts:    defaultMaxAttempts,
		baseBackoff:    defaultBaseBackoff,
		maxBackoff:     defaultMaxBackoff,
		sleep:          time.Sleep,
		randInt63n:     rand.Int63n,
		now:            time.Now,
		newRequestID:   func() string { return uuid.NewString() },
	}
}

// doWithRetry sends the request built by makeRequest, retrying transient
// failures. Every attempt of one call carries the same X-Request-ID.
func (c *Client) doWithRetry(ctx context.Context, makeRequest func() (*http.Request, error)) (*rawResponse, error) {
	maxAttempts := c.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	requestID := ""
	if c.newRequestID != nil {
		requestID = c.newRequestID()
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := makeRequest()
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if requestID != "" {
			req.Header.Set("X-Request-ID", requestID)
		}

		timeout := c.requestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		req = req.WithContext(attemptCtx)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			cancel()
			if attempt < maxAttempts && ctx.Err() == nil && isRetryableTransportError(err) {
				c.sleepWithBackoff(attempt, "")
				continue
			}
			return nil, fmt.Errorf("planner request failed after %d attempt(s): %w", attempt, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		if readErr != nil {
			if attempt < maxAttempts && ctx.Err() == nil && isRetryableTransportError(readErr) {
				c.sleepWithBackoff(attempt, "")
				continue
			}
			return nil, fmt.Errorf("reading response after %d attempt(s): %w", attempt, readErr)
		}

		if attempt < maxAttempts && shouldRetryStatus(resp.StatusCode) {
			c.sleepWithBackoff(attempt, resp.Header.Get("Retry-After"))
			continue
		}

		return &rawResponse{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			RetryAfter:  resp.Header.Get("Retry-After"),
			RequestID:   requestID,
			Body:        body,
		}, nil
	}

	return nil, fmt.Errorf("planner request failed after %d attempt(s)", maxAttempts)
}

func isRetryableTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func shouldRetryStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (c *Client) sleepWithBackoff(attempt int, retryAfterHeader string) {
	if d, ok := c.parseRetryAfter(retryAfterHeader); ok {
		c.sleep(d)
		return
	}

	base := c.baseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay <= 0 {
			delay = defaultMaxBackoff
			break
		}
	}

	maxBackoff := c.maxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	if delay > maxBackoff {
		delay = maxBackoff
	}
	if delay <= 0 {
		return
	}

	// Full jitter in [0, delay).
	if c.randInt63n != nil {
		delay = time.Duration(c.randInt63n(int64(delay)))
	}
	c.sleep(delay)
}

func (c *Client) parseRetryAfter(headerValue string) (time.Duration, bool) {
	v := strings.TrimSpace(headerValue)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		now := time.Now
		if c.now != nil {
			now = c.now
		}
		d := t.Sub(now())
		if d > 0 {
			return d, true
		}
	}
	return 0, false
}

// APIError is a non-2xx reply from the planner service.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.StatusCode == http.StatusTooManyRequests {
		if e.RetryAfter != "" {
			return fmt.Sprintf("rate limited by planner; retry after %s", e.RetryAfter)
		}
		return "rate limited by planner; retry in a moment"
	}
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return fmt.Sprintf("planner rejected the API key (%d): set one with 'voicesheet config set api_key <key>'", e.StatusCode)
	}
	return fmt.Sprintf("planner error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404 APIError.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

func parseAPIError(raw *rawResponse) error {
	msg := strings.TrimSpace(string(raw.Body))
	var detail ErrorResponse
	if json.Unmarshal(raw.Body, &detail) == nil {
		switch {
		case detail.Message != "":
			msg = detail.Message
		case len(detail.Detail) > 0:
			var s string
			if json.Unmarshal(detail.Detail, &s) == nil {
				msg = s
			} else {
				msg = string(detail.Detail)
			}
		}
	}
	return &APIError{
		StatusCode: raw.StatusCode,
		Message:    msg,
		RetryAfter: raw.RetryAfter,
		RequestID:  raw.RequestID,
	}
}

func (c *Client) setCommonHeaders(req *http.Request) {
	userAgent := strings.TrimSpace(c.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	if c.APIKey == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
}
