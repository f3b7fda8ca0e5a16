package platform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIntegrityChallenge means the platform rejected the client with an
	// anti-bot challenge. Retrying without user remediation will not help.
	ErrIntegrityChallenge = errors.New("integrity challenge required")

	// ErrStreamUnavailable means the channel is offline or the video does not exist.
	ErrStreamUnavailable = errors.New("stream unavailable")
)

// integrityFailureMessage is the GraphQL error message of an integrity challenge.
const integrityFailureMessage = "failed integrity check"

// TransportError is a network or protocol failure talking to the platform.
// It is retryable.
type TransportError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsIntegrityChallenge reports whether err signals an integrity challenge,
// either as ErrIntegrityChallenge or as any error carrying the platform's
// challenge message.
func IsIntegrityChallenge(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrIntegrityChallenge) || strings.Contains(err.Error(), integrityFailureMessage)
}
