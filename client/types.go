package client

import "encoding/json"

// ErrorResponse covers the error bodies the planner returns: a plain
// message, or a framework "detail" that is a string or a list of field errors.
type ErrorResponse struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// CommandRequest is the body of POST /command.
type CommandRequest struct {
	Text string `json:"text"`
}

// errorReply is the in-band failure shape of /command: HTTP 200 with
// action "error".
type errorReply struct {
	Action      string `json:"action"`
	Message     string `json:"message"`
	RawResponse string `json:"raw_response"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
