package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConnected is returned by calls that need a terminal session when
	// connecting on demand fails.
	ErrNotConnected = errors.New("not connected to trading terminal")

	// ErrSymbolNotFound is returned when the gateway has no information for
	// a symbol.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrUnexpectedShape is returned when a response parses but matches none
	// of the shapes the operation accepts.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// maxErrorBody is how much of an unparseable error body is kept.
const maxErrorBody = 200

// APIError describes a failed gateway call: either a non-success HTTP status
// or a success status whose body is an error record.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Details    any    // parsed JSON error body, if any
	Body       string // leading part of a non-JSON body
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway %s failed", e.Operation)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
	case e.Details != nil:
		fmt.Fprintf(&b, ": %v", e.Details)
	case e.Body != "":
		b.WriteString(": " + e.Body)
	}
	return b.String()
}

// newAPIError builds an APIError from an HTTP error response body.
func newAPIError(op string, status int, body []byte) *APIError {
	e := &APIError{Operation: op, StatusCode: status}

	var details any
	if len(body) > 0 && json.Unmarshal(body, &details) == nil {
		e.Details = details
		if m, ok := details.(map[string]any); ok {
			e.Message = toString(m["message"])
		}
		return e
	}

	text := strings.TrimSpace(string(body))
	if r := []rune(text); len(r) > maxErrorBody {
		text = string(r[:maxErrorBody])
	}
	e.Body = text
	return e
}
