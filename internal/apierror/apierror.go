// Package apierror carries the error taxonomy of the auth core and the JSON
// envelope every 4xx/5xx response uses. Store and token internals never reach
// the client; only the Kind and a fixed message do.
package apierror

// APIError is the response body: {"detail": "...", "code": "..."}.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// New is an envelope without a code, used for malformed request bodies.
func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code Kind, msg string) *APIError {
	return &APIError{Detail: msg, Code: string(code)}
}

// ValidationError lists rejected fields by their JSON name.
type ValidationError struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Code: string(KindValidation), Fields: fields}
}
