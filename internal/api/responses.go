package api

import (
	"encoding/json"

	"github.com/rohankatakam/scholargraph/internal/audit"
)

// StatusResponse is the generic {status, message} body
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

func success(msg string) StatusResponse {
	return StatusResponse{Status: statusSuccess, Message: msg}
}

func failure(msg string) StatusResponse {
	return StatusResponse{Status: statusError, Message: msg}
}

// QueryRequest is the body of POST /query
type QueryRequest struct {
	QueryText string  `json:"query_text" binding:"required,min=1"`
	UserID    *string `json:"user_id"`
}

// CypherRequest is the body of POST /cypher. Parameters stay raw until
// graph.DecodeParams so integers are not widened to float64.
type CypherRequest struct {
	Query      string          `json:"query"`
	Parameters json.RawMessage `json:"parameters"`
}

// AICypherRequest is the body of POST /ai-cypher
type AICypherRequest struct {
	UserInput string `json:"user_input"`
}

// HistoryResponse is the body of GET /ai-cypher/history
type HistoryResponse struct {
	Status  string                   `json:"status"`
	Records []audit.GenerationRecord `json:"records"`
}
