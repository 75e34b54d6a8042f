package documenso

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned when no upstream base URL is configured.
var ErrNotConfigured = errors.New("documenso: base URL is not configured")

const errorBodyLimit = 300

// HTTPError is a non-2xx upstream response.
// Code and Message are populated when the body is an application error envelope.
type HTTPError struct {
	Op      string
	Status  int
	Body    string
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Documenso %s failed (%d): %s", e.Op, e.Status, e.Body)
}

// NetworkError is a transport failure, timeout, or an undecodable success body.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("Documenso %s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AsHTTPError unwraps err to an *HTTPError.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// IsNetworkError reports whether err is a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

type appErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newHTTPError(op string, status int, body []byte) *HTTPError {
	text := string(body)
	if len(text) > errorBodyLimit {
		text = text[:errorBodyLimit]
	}
	e := &HTTPError{Op: op, Status: status, Body: text}

	var app appErrorBody
	if err := json.Unmarshal(body, &app); err == nil {
		e.Code = strings.ToUpper(strings.TrimSpace(app.Code))
		e.Message = strings.TrimSpace(app.Message)
		if e.Message == "" {
			e.Message = strings.TrimSpace(app.Error)
		}
	}
	return e
}
