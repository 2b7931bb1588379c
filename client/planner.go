package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/witanlabs/voicesheet/plan"
)

// ActionError is the action a planner returns when it could not build a plan.
const ActionError = "error"

// PlannerError is a /command reply reporting that no plan could be built,
// e.g. because the model output did not validate.
type PlannerError struct {
	Message     string
	RawResponse string // model output, when the planner included it
}

func (e *PlannerError) Error() string {
	if e.Message == "" {
		return "planner could not build a plan"
	}
	return "planner: " + e.Message
}

// Plan sends an utterance to POST /command and decodes the returned plan.
// The plan is not validated here.
func (c *Client) Plan(ctx context.Context, text string) (plan.Plan, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return plan.Plan{}, fmt.Errorf("empty utterance")
	}
	body, err := json.Marshal(CommandRequest{Text: text})
	if err != nil {
		return plan.Plan{}, fmt.Errorf("marshaling command: %w", err)
	}

	raw, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/command", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.setCommonHeaders(req)
		return req, nil
	})
	if err != nil {
		return plan.Plan{}, err
	}
	if raw.StatusCode != http.StatusOK {
		return plan.Plan{}, parseAPIError(raw)
	}

	payload := []byte(CleanJSON(string(raw.Body)))
	var reply errorReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return plan.Plan{}, fmt.Errorf("parsing planner response: %w", err)
	}
	if reply.Action == ActionError {
		return plan.Plan{}, &PlannerError{Message: reply.Message, RawResponse: reply.RawResponse}
	}

	p, err := plan.Decode(payload)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("parsing planner response: %w", err)
	}
	return p, nil
}

// Health checks GET /health and expects {"status": "running"}.
func (c *Client) Health(ctx context.Context) error {
	raw, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, c.BaseURL+"/health", nil)
		if err != nil {
			return nil, err
		}
		c.setCommonHeaders(req)
		return req, nil
	})
	if err != nil {
		return err
	}
	if raw.StatusCode != http.StatusOK {
		return parseAPIError(raw)
	}

	var health HealthResponse
	if err := json.Unmarshal(raw.Body, &health); err != nil {
		return fmt.Errorf("parsing health response: %w", err)
	}
	if health.Status != "running" {
		return fmt.Errorf("planner status %q", health.Status)
	}
	return nil
}

// CleanJSON strips a markdown code fence (``` or ```json) around model
// output.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
