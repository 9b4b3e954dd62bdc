package handlers

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

// TokenErrorResponse is the error body of the token proxy endpoint.
type TokenErrorResponse struct {
	Error   string `json:"error"             example:"Failed to retrieve token"`
	Details string `json:"details,omitempty" example:"authentication failed: token endpoint returned 401"`
}

// StatusResponse is the body of the health probes. Checks maps each
// dependency to "ok", "disabled" or its error.
type StatusResponse struct {
	Status string            `json:"status"           example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// MessageResponse is a plain status message body.
type MessageResponse struct {
	Message string `json:"message" example:"eBay Token Proxy is running successfully."`
}
