package api

import (
	"errors"
	"fmt"
	"net/http"
)

// UnreachableMessage is shown to the operator when the backend cannot be
// contacted at all.
const UnreachableMessage = "Unable to connect to server. Is it running?"

// Kind classifies a failed request.
type Kind int

const (
	// KindUnreachable means no HTTP response was received.
	KindUnreachable Kind = iota + 1
	// KindRejected means the backend answered with a failure.
	KindRejected
	// KindDecode means a success response could not be parsed.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

var (
	// ErrUnreachable matches any Error of KindUnreachable.
	ErrUnreachable = errors.New("server unreachable")
	// ErrRejected matches any Error of KindRejected.
	ErrRejected = errors.New("request rejected")
)

// Error describes a failed backend request.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnreachable:
		return fmt.Sprintf("%s: %s: %v", e.Op, ErrUnreachable, e.Err)
	case KindRejected:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	case ErrRejected:
		return e.Kind == KindRejected
	}
	return false
}

// IsUnreachable reports whether err is (or wraps) an unreachable error.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// UserMessage returns the human-readable text for err: the fixed
// unreachable message, the backend's own message for rejections, or the
// error text otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindUnreachable:
			return UnreachableMessage
		case KindRejected:
			return apiErr.Message
		}
	}
	return err.Error()
}

// rejectionMessage picks the message for a failed response: the body's
// "error" field, else the status text, else "HTTP <code>".
func rejectionMessage(status int, bodyError string) string {
	if bodyError != "" {
		return bodyError
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}
