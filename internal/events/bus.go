// Package events implements the auction event bus: a registry of handlers keyed
// by event name and, optionally, by an id taken from the emitted payload.
//
// Dispatch is synchronous. Every handler of an emission runs on the emitting
// goroutine before Emit returns, id-scoped handlers first, then global ones,
// each group in registration order.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/echoface/pbevents/pkg/logger"
)

// FiredEvent is one entry of the audit log. Args holds the first emitted
// argument by reference.
type FiredEvent struct {
	EventType string `json:"eventType"`
	Args      any    `json:"args"`
	ID        string `json:"id,omitempty"`
}

// Subscriptions is the handler set of one event name.
type Subscriptions struct {
	Global []*Handler
	ByID   map[string][]*Handler
}

// Observer receives dispatch telemetry. Calls happen on the emitting goroutine.
type Observer interface {
	ObserveEmit(event string, outcomes []Outcome, elapsed time.Duration)
	ObserveRejected(event string)
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		b.observer = o
	}
}

// Bus is the event registry. Construct one per process with NewBus and pass
// it to every producer and consumer.
type Bus struct {
	catalog  *Catalog
	log      logger.Logger
	observer Observer

	mu       sync.Mutex
	handlers map[string]*Subscriptions
	fired    []FiredEvent
}

// NewBus creates an empty bus recognizing the events of catalog.
func NewBus(catalog *Catalog, opts ...Option) *Bus {
	if catalog == nil {
		catalog = NewCatalog()
	}
	b := &Bus{
		catalog:  catalog,
		log:      logger.Default,
		handlers: make(map[string]*Subscriptions),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Catalog returns the recognized events.
func (b *Bus) Catalog() *Catalog {
	return b.catalog
}

// On subscribes handler to event. An empty id subscribes globally; otherwise
// handler only receives emissions whose payload id equals id.
// Unrecognized events are logged and rejected; nothing is stored.
func (b *Bus) On(event string, handler *Handler, id string) error {
	if !b.catalog.Has(event) {
		b.log.Error("wrong event name", "event", event, "valid", b.catalog.Names())
		if b.observer != nil {
			b.observer.ObserveRejected(event)
		}
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[event]
	if subs == nil {
		subs = &Subscriptions{ByID: make(map[string][]*Handler)}
		b.handlers[event] = subs
	}
	if id == "" {
		subs.Global = append(subs.Global, handler)
	} else {
		subs.ByID[id] = append(subs.ByID[id], handler)
	}
	return nil
}

// Off removes the first occurrence of handler from the id queue, or from the
// global queue when id is empty. Removing something absent is a no-op.
func (b *Bus) Off(event string, handler *Handler, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[event]
	if subs == nil {
		return
	}
	if id == "" {
		subs.Global = removeFirst(subs.Global, handler)
		return
	}

	queue, ok := subs.ByID[id]
	if !ok {
		return
	}
	queue = removeFirst(queue, handler)
	if len(queue) == 0 {
		delete(subs.ByID, id)
		return
	}
	subs.ByID[id] = queue
}

func removeFirst(queue []*Handler, handler *Handler) []*Handler {
	for i, h := range queue {
		if h == handler {
			return append(queue[:i:i], queue[i+1:]...)
		}
	}
	return queue
}

// Emit dispatches args to the subscribers of event. See Dispatch.
func (b *Bus) Emit(event string, args ...any) {
	b.Dispatch(event, args...)
}

// Dispatch records the emission in the audit log, then calls the handlers
// subscribed to the payload id followed by the global handlers, passing all
// of args. A failing handler is logged and does not stop the others. The
// event name is not checked against the catalog.
func (b *Bus) Dispatch(event string, args ...any) []Outcome {
	b.log.Debug("emitting event", "event", event)
	start := time.Now()

	var payload any = map[string]any{}
	if len(args) > 0 && args[0] != nil {
		payload = args[0]
	}
	id, hasID := b.catalog.ID(event, payload)

	b.mu.Lock()
	b.fired = append(b.fired, FiredEvent{EventType: event, Args: payload, ID: id})

	var callbacks []*Handler
	var scoped int
	if subs := b.handlers[event]; subs != nil {
		if hasID {
			callbacks = append(callbacks, subs.ByID[id]...)
			scoped = len(callbacks)
		}
		callbacks = append(callbacks, subs.Global...)
	}
	b.mu.Unlock()

	outcomes := make([]Outcome, 0, len(callbacks))
	for i, h := range callbacks {
		if h == nil || h.fn == nil {
			continue
		}
		scope := ScopeGlobal
		if i < scoped {
			scope = ScopeID
		}
		err := h.invoke(event, args)
		if err != nil {
			b.log.Error("error executing handler", "event", event, "source", "events", "handler", h.String(), "scope", scope.String(), "error", err)
		}
		outcomes = append(outcomes, Outcome{Handler: h, Scope: scope, Err: err})
	}

	if b.observer != nil {
		b.observer.ObserveEmit(event, outcomes, time.Since(start))
	}
	return outcomes
}

// Get returns a snapshot of the subscriptions, keyed by event name.
func (b *Bus) Get() map[string]Subscriptions {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]Subscriptions, len(b.handlers))
	for event, subs := range b.handlers {
		cp := Subscriptions{
			Global: append([]*Handler(nil), subs.Global...),
			ByID:   make(map[string][]*Handler, len(subs.ByID)),
		}
		for id, queue := range subs.ByID {
			cp.ByID[id] = append([]*Handler(nil), queue...)
		}
		out[event] = cp
	}
	return out
}

// GetEvents returns a copy of the audit log in emission order.
func (b *Bus) GetEvents() []FiredEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]FiredEvent, len(b.fired))
	copy(out, b.fired)
	return out
}
