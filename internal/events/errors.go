package events

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEvent is returned by On when the event is not in the catalog.
	ErrUnknownEvent = errors.New("unknown event name")
)

// HandlerError describes one handler that failed during dispatch, either by
// returning an error or by panicking.
type HandlerError struct {
	Event   string
	Handler string
	Err     error
	Panic   any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %s panicked on %q: %v", e.Handler, e.Event, e.Panic)
	}
	return fmt.Sprintf("handler %s failed on %q: %v", e.Handler, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
