// Package errs provides the structured error type shared across the
// tagger's packages.
package errs

import "fmt"

// Error codes for the tagger packages.
const (
	CodeMalformedInput = 1
	CodeUnknownTag     = 2
	CodeModelFormat    = 3
	CodeIO             = 4
	CodeOverflow       = 5
)

// TaggerError is a structured error carrying a stable numeric code alongside
// a human-readable message and optional detail.
type TaggerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *TaggerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("tagger: [%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("tagger: [%d] %s", e.Code, e.Message)
}

// New builds a TaggerError, attaching details when provided.
func New(code int, message string, details ...string) error {
	err := &TaggerError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// Predefined errors for the common cases named in spec.md §7.
var (
	ErrMalformedInput = New(CodeMalformedInput, "malformed input sentence")
	ErrUnknownTag     = New(CodeUnknownTag, "tag not present in tag set")
	ErrModelFormat    = New(CodeModelFormat, "model file is not a valid weight vector")
	ErrOverflow       = New(CodeOverflow, "sentence count exceeds maximum")
)

// Code returns the TaggerError code carried by err, or 0 if err is not a
// *TaggerError.
func Code(err error) int {
	te, ok := err.(*TaggerError)
	if !ok {
		return 0
	}
	return te.Code
}
