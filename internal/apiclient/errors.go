package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed API call.
type Kind string

const (
	// KindTransport covers network failures and timeouts. Retryable.
	KindTransport Kind = "transport"
	// KindAuthorization covers 401/403. Not fixed by re-fetching.
	KindAuthorization Kind = "authorization"
	// KindValidation covers every other 4xx: the write was rejected.
	KindValidation Kind = "validation"
	// KindServer covers 5xx.
	KindServer Kind = "server"
)

// Sentinels for errors.Is.
var (
	ErrTransport     = errors.New("apiclient: transport error")
	ErrAuthorization = errors.New("apiclient: authorization error")
	ErrValidation    = errors.New("apiclient: validation error")
	ErrServer        = errors.New("apiclient: server error")
)

const genericMessage = "request failed"

// Error is returned by every Client method that fails.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the message to show the operator.
func (e *Error) UserMessage() string { return e.Message }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrAuthorization:
		return e.Kind == KindAuthorization
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// KindOf returns the classification of err, or "" when err is not an API error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether a read that failed with err is worth retrying on
// the next scheduled refresh.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindServer:
		return true
	}
	return false
}

// Message returns the most specific user-facing message carried by err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthorization
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

func statusError(op string, status int, body []byte) *Error {
	return &Error{
		Kind:    kindForStatus(status),
		Op:      op,
		Status:  status,
		Message: resolveMessage(body, genericMessage),
	}
}

func transportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: err.Error(), Err: err}
}

// resolveMessage extracts the most specific message from an error body:
// detail.message, detail, message, error, errors, then the raw text.
func resolveMessage(body []byte, fallback string) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fallback
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return text
	}

	if detail, ok := payload["detail"]; ok {
		if m, ok := detail.(map[string]any); ok {
			if s := stringify(m["message"]); s != "" {
				return s
			}
		}
		if s := stringify(detail); s != "" {
			return s
		}
	}
	for _, key := range []string{"message", "error", "errors"} {
		if s := stringify(payload[key]); s != "" {
			return s
		}
	}
	return text
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
