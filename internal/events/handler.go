package events

import (
	"fmt"
)

// Handler is a subscribed callback. Handlers are compared by pointer, so keep
// the value returned by Func to unsubscribe later.
type Handler struct {
	name string
	fn   func(args ...any) error
}

// Func wraps fn into a Handler.
func Func(fn func(args ...any) error) *Handler {
	return &Handler{fn: fn}
}

// Named wraps fn into a Handler that is reported as name in logs and outcomes.
func Named(name string, fn func(args ...any) error) *Handler {
	return &Handler{name: name, fn: fn}
}

func (h *Handler) String() string {
	if h == nil {
		return "<nil>"
	}
	if h.name != "" {
		return h.name
	}
	return fmt.Sprintf("handler@%p", h)
}

func (h *Handler) invoke(event string, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			herr := &HandlerError{Event: event, Handler: h.String(), Panic: r}
			if e, ok := r.(error); ok {
				herr.Err = e
			}
			err = herr
		}
	}()

	if cause := h.fn(args...); cause != nil {
		return &HandlerError{Event: event, Handler: h.String(), Err: cause}
	}
	return nil
}

// Scope tells whether a handler ran from an id queue or from the global queue.
type Scope int

const (
	ScopeID Scope = iota
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeID {
		return "id"
	}
	return "global"
}

// Outcome is the result of one handler invocation within a dispatch.
type Outcome struct {
	Handler *Handler
	Scope   Scope
	Err     error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}
