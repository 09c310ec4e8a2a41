package api

import "github.com/rickgao/haltwatch/internal/model"

// TicketResponse from POST {ticket_path}
type TicketResponse struct {
	SSETicket string `json:"sseTicket"`
}

// HaltsResponse is the wrapped form of GET {halts_path}. A bare JSON array
// is accepted as well.
type HaltsResponse struct {
	Halts []model.HaltRecord `json:"halts"`
}

// FieldError is one entry of a validation error body.
type FieldError struct {
	Field          string `json:"field"`
	Message        string `json:"message"`
	DefaultMessage string `json:"defaultMessage"`
}

// ErrorPayload covers the error bodies the server produces:
// {"message": "...", "errors": [...]} and {"error": "...", "status": 400}.
type ErrorPayload struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
	Error   string       `json:"error"`
	Status  int          `json:"status"`
}
