package http

import "github.com/fyrsmithlabs/bookseek/internal/rag"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AskRequest is the request body for POST /api/v1/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	State     string   `json:"state"`
	SessionID string   `json:"session_id"`
	Entries   int      `json:"entries"`
	Dimension int      `json:"dimension"`
	Sources   []string `json:"sources"`
}

// SourcesResponse is the response body for GET /api/v1/sources.
type SourcesResponse struct {
	Sources []string `json:"sources"`
}

// ConversationsResponse is the response body for GET /api/v1/conversations.
type ConversationsResponse struct {
	Current       string             `json:"current"`
	Conversations []rag.Conversation `json:"conversations"`
}

// ConversationResponse is the response body for POST /api/v1/conversations.
type ConversationResponse struct {
	ID string `json:"id"`
}
