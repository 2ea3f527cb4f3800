package models

// Diagnostic is a non-fatal condition recorded while decoding.
type Diagnostic struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}
