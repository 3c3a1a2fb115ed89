package api

// UpdateSessionRequest is the PATCH payload for a scheduler session.
// Nil fields are left unchanged.
type UpdateSessionRequest struct {
	Theme    *string `json:"theme,omitempty"`
	Interval *int    `json:"interval,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
