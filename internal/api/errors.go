package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned after a 401 has been handled. Callers must
// stop processing and must not surface another error to the user.
var ErrUnauthorized = errors.New("api: unauthorized")

// ErrNotFound matches any *APIError carrying a 404 status.
var ErrNotFound = errors.New("api: not found")

// networkErrorMessage is what the user sees for any transport failure.
const networkErrorMessage = "Network error: Unable to connect to server"

// APIError represents a non-success HTTP response from the backend.
type APIError struct {
	StatusCode     int
	Body           string
	Detail         string
	Message        string
	TextualSummary []string
	Suggestions    []string
}

func (e *APIError) Error() string {
	msg := e.Summary()
	if msg == "" {
		msg = e.Detail
	}
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		return fmt.Sprintf("api: HTTP error! status: %d", e.StatusCode)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, msg)
}

// Is reports whether the error is a 404 when compared against ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// Summary joins the server's textual_summary entries with spaces.
func (e *APIError) Summary() string {
	return strings.Join(e.TextualSummary, " ")
}

// NetworkError wraps a transport failure.
type NetworkError struct {
	Path string
	Err  error
}

func (e *NetworkError) Error() string {
	return networkErrorMessage
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type errorBody struct {
	Detail         json.RawMessage `json:"detail"`
	Message        string          `json:"message"`
	TextualSummary []string        `json:"textual_summary"`
	Suggestions    []string        `json:"suggestions"`
}

// parseAPIError builds an APIError from a status code and raw body. Bodies
// that are not JSON are kept verbatim.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	apiErr.Message = eb.Message
	apiErr.TextualSummary = eb.TextualSummary
	apiErr.Suggestions = eb.Suggestions
	apiErr.Detail = detailString(eb.Detail)
	return apiErr
}

// detailString flattens a detail field that may be a string or any JSON value
// (validation errors arrive as arrays of objects).
func detailString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Message turns err into the text shown to a user. Server-provided fields
// win in the order textual_summary, detail, message; otherwise fallback is
// used, and without a fallback a status-coded message.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Summary() != "":
			return apiErr.Summary()
		case apiErr.Detail != "":
			return apiErr.Detail
		case apiErr.Message != "":
			return apiErr.Message
		case fallback != "":
			return fallback
		default:
			return fmt.Sprintf("HTTP error! status: %d", apiErr.StatusCode)
		}
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Error()
	}

	if fallback != "" {
		return fallback
	}
	return err.Error()
}

// Suggestions returns server-supplied suggestions carried by err, if any.
func Suggestions(err error) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Suggestions
	}
	return nil
}
