package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinels matched by HubError through errors.Is.
var (
	ErrUnauthorized       = errors.New("hub: unauthorized")
	ErrNotFound           = errors.New("hub: not found")
	ErrConflict           = errors.New("hub: conflict")
	ErrPreconditionFailed = errors.New("hub: precondition failed")
	ErrPayloadTooLarge    = errors.New("hub: payload too large")
)

// HubError is a non-2xx hub response.
type HubError struct {
	StatusCode int
	StatusText string
	Message    string
}

// NewHubError builds a HubError from a response status and body. A JSON
// body with a "message" field contributes only that field.
func NewHubError(status int, body []byte) *HubError {
	e := &HubError{StatusCode: status, StatusText: http.StatusText(status)}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		e.Message = payload.Message
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

func (e *HubError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hub error %d %s", e.StatusCode, e.StatusText)
	}
	return fmt.Sprintf("hub error %d %s: %s", e.StatusCode, e.StatusText, e.Message)
}

// Status returns the HTTP status code.
func (e *HubError) Status() int { return e.StatusCode }

func (e *HubError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrPreconditionFailed:
		return e.StatusCode == http.StatusPreconditionFailed
	case ErrPayloadTooLarge:
		return e.StatusCode == http.StatusRequestEntityTooLarge
	}
	return false
}

// RemoteWriteError is a failed store or delete of Path.
type RemoteWriteError struct {
	Path string
	Hub  *HubError
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("write %q: %v", e.Path, e.Hub)
}

func (e *RemoteWriteError) Unwrap() error { return e.Hub }

// RemoteReadError is a failed read of URL.
type RemoteReadError struct {
	URL string
	Hub *HubError
}

func (e *RemoteReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.URL, e.Hub)
}

func (e *RemoteReadError) Unwrap() error { return e.Hub }
