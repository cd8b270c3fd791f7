package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable covers transport failures and timeouts.
	ErrUnreachable = errors.New("remote: endpoint unreachable")
	// ErrRejected covers structured failures returned by the endpoint.
	ErrRejected = errors.New("remote: request rejected")
)

// RejectedError carries the details of a rejected call. It matches
// ErrRejected with errors.Is.
type RejectedError struct {
	Action     string
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no reason given"
	}
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote: %s rejected (status %d): %s", e.Action, e.StatusCode, msg)
	}
	return fmt.Sprintf("remote: %s rejected: %s", e.Action, msg)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}
