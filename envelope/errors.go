package envelope

import (
	"fmt"
	"unicode/utf8"
)

// Code classifies a decode failure.
type Code string

// Decode error codes, in evaluation order.
const (
	CodeSchemaMissing   Code = "schema-missing"
	CodeSchemaInvalid   Code = "schema-invalid"
	CodeDecodeFailed    Code = "decode-failed"
	CodeSchemaViolation Code = "schema-violation"
	CodeRoutingInvalid  Code = "routing-invalid"
)

// MaxSnippetRunes caps the payload excerpt attached to a DecodeError.
const MaxSnippetRunes = 512

// DecodeError is a classified per-message decode failure.
type DecodeError struct {
	Code       Code   `json:"errorCode"`
	Message    string `json:"message"`
	SchemaPath string `json:"schemaPath,omitempty"`
	DataPath   string `json:"dataPath,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.DataPath != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.DataPath)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newDecodeError(code Code, payload, format string, args ...any) *DecodeError {
	return &DecodeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Snippet: Snippet(payload),
	}
}

// Snippet truncates payload to MaxSnippetRunes runes.
func Snippet(payload string) string {
	if utf8.RuneCountInString(payload) <= MaxSnippetRunes {
		return payload
	}
	n := 0
	for i := range payload {
		if n == MaxSnippetRunes {
			return payload[:i]
		}
		n++
	}
	return payload
}
