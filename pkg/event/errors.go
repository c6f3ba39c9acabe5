package event

import (
	"errors"
	"fmt"
)

// ErrUnknownEventType marks an event type outside the closed set. At
// publish time it is a configuration error; at dispatch time it is
// acknowledged as a no-op for forward compatibility.
var ErrUnknownEventType = errors.New("unknown event type")

// ErrStaleTarget marks an update event whose target projection was
// already deleted. Dropped, never retried.
var ErrStaleTarget = errors.New("target projection no longer exists")

// MalformedPayloadError marks a payload that cannot be decoded into its
// typed fact. Retrying cannot fix it, so the envelope is dropped.
type MalformedPayloadError struct {
	EventType Type
	Err       error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.EventType, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// IsPoison reports whether err can never succeed on retry. Poison
// envelopes are dropped (acknowledged) so they cannot block the ordered
// per-aggregate stream behind them.
func IsPoison(err error) bool {
	var malformed *MalformedPayloadError
	return errors.As(err, &malformed) ||
		errors.Is(err, ErrStaleTarget) ||
		errors.Is(err, ErrUnknownEventType)
}
