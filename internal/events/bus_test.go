package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoface/pbevents/pkg/logger"
)

func newTestBus(t *testing.T, opts ...Option) (*Bus, *logger.Recorder) {
	t.Helper()
	rec := logger.NewRecorder()
	catalog := NewCatalog("A", "B", "X").WithPath("X", "key")
	return NewBus(catalog, append([]Option{WithLogger(rec)}, opts...)...), rec
}

// recorder returns a handler that appends a label to calls and stores its args.
func recorder(label string, calls *[]string, got *[][]any) *Handler {
	return Named(label, func(args ...any) error {
		*calls = append(*calls, label)
		if got != nil {
			*got = append(*got, args)
		}
		return nil
	})
}

func TestBus_OnEmitInvokesOnce(t *testing.T) {
	bus, _ := newTestBus(t)
	var calls []string
	var got [][]any

	require.NoError(t, bus.On("A", recorder("h", &calls, &got), ""))
	payload := map[string]any{"v": 1}
	bus.Emit("A", payload)

	assert.Equal(t, []string{"h"}, calls)
	require.Len(t, got, 1)
	assert.Equal(t, []any{payload}, got[0])
}

func TestBus_IDScopedDelivery(t *testing.T) {
	bus, _ := newTestBus(t)
	var calls []string
	var got [][]any

	require.NoError(t, bus.On("X", recorder("h", &calls, &got), "a"))

	bus.Emit("X", map[string]any{"key": "a", "v": 1})
	bus.Emit("X", map[string]any{"key": "b", "v": 2})

	assert.Equal(t, []string{"h"}, calls)
	assert.Equal(t, []any{map[string]any{"key": "a", "v": 1}}, got[0])
}

func TestBus_IDHandlersRunBeforeGlobal(t *testing.T) {
	bus, _ := newTestBus(t)
	var calls []string

	require.NoError(t, bus.On("X", recorder("g1", &calls, nil), ""))
	require.NoError(t, bus.On("X", recorder("a1", &calls, nil), "a"))
	require.NoError(t, bus.On("X", recorder("g2", &calls, nil), ""))
	require.NoError(t, bus.On("X", recorder("a2", &calls, nil), "a"))
	require.NoError(t, bus.On("X", recorder("b1", &calls, nil), "b"))

	outcomes := bus.Dispatch("X", map[string]any{"key": "a"})
	assert.Equal(t, []string{"a1", "a2", "g1", "g2"}, calls)
	require.Len(t, outcomes, 4)
	assert.Equal(t, ScopeID, outcomes[0].Scope)
	assert.Equal(t, ScopeID, outcomes[1].Scope)
	assert.Equal(t, ScopeGlobal, outcomes[2].Scope)

	calls = nil
	bus.Emit("X", map[string]any{"other": 1})
	assert.Equal(t, []string{"g1", "g2"}, calls, "no id extracted, only globals run")
}

func TestBus_FalsyIDsAreAbsent(t *testing.T) {
	bus, _ := newTestBus(t)
	var calls []string

	require.NoError(t, bus.On("X", recorder("zero", &calls, nil), "0"))
	require.NoError(t, bus.On("X", recorder("false", &calls, nil), "false"))
	require.NoError(t, bus.On("X", recorder("global", &calls, nil), ""))

	bus.Emit("X", map[string]any{"key": 0})
	bus.Emit("X", map[string]any{"key": false})

	assert.Equal(t, []string{"global", "global"}, calls)
	for _, fired := range bus.GetEvents() {
		assert.Empty(t, fired.ID)
	}
}

func TestBus_IDIgnoredWithoutPath(t *testing.T) {
	bus, _ := newTestBus(t)
	var calls []string

	require.NoError(t, bus.On("A", recorder("scoped", &calls, nil), "a"))
	require.NoError(t, bus.On("A", recorder("global", &calls, nil), ""))
	bus.Emit("A", map[string]any{"key": "a"})

	assert.Equal(t, []string{"global"}, calls)
	assert.Empty(t, bus.GetEvents()[0].ID)
}

func TestBus_Off(t *testing.T) {
	bus, _ := newTestBus(t)
	var calls []string
	h := recorder("h", &calls, nil)
	scoped := recorder("scoped", &calls, nil)

	require.NoError(t, bus.On("X", h, ""))
	require.NoError(t, bus.On("X", scoped, "a"))

	bus.Off("X", h, "")
	bus.Off("X", h, "")
	bus.Off("X", scoped, "a")
	bus.Off("X", scoped, "missing")
	bus.Off("unknown", h, "")

	bus.Emit("X", map[string]any{"key": "a"})
	assert.Empty(t, calls)
}

func TestBus_OffRemovesFirstOccurrenceOnly(t *testing.T) {
	bus, _ := newTestBus(t)
	var calls []string
	h := recorder("h", &calls, nil)

	require.NoError(t, bus.On("A", h, ""))
	require.NoError(t, bus.On("A", h, ""))
	bus.Off("A", h, "")

	bus.Emit("A")
	assert.Equal(t, []string{"h"}, calls)
}

func TestBus_FailingHandlerIsIsolated(t *testing.T) {
	bus, rec := newTestBus(t)
	boom := errors.New("boom")
	flag := false

	require.NoError(t, bus.On("A", Named("fails", func(args ...any) error { return boom }), ""))
	require.NoError(t, bus.On("A", Named("panics", func(args ...any) error { panic("kaboom") }), ""))
	require.NoError(t, bus.On("A", Func(func(args ...any) error { flag = true; return nil }), ""))

	var outcomes []Outcome
	assert.NotPanics(t, func() { outcomes = bus.Dispatch("A") })
	assert.True(t, flag)

	require.Len(t, outcomes, 3)
	assert.ErrorIs(t, outcomes[0].Err, boom)

	var herr *HandlerError
	require.ErrorAs(t, outcomes[1].Err, &herr)
	assert.Equal(t, "kaboom", herr.Panic)
	assert.Equal(t, "A", herr.Event)
	assert.Equal(t, "panics", herr.Handler)
	assert.True(t, outcomes[2].OK())

	errs := rec.ByLevel("error")
	require.Len(t, errs, 2)
	assert.Equal(t, "A", errs[0].Fields["event"])
	assert.Equal(t, "events", errs[0].Fields["source"])
}

func TestBus_UnknownEventRejected(t *testing.T) {
	bus, rec := newTestBus(t)
	called := false

	err := bus.On("nope", Func(func(args ...any) error { called = true; return nil }), "")
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Empty(t, bus.Get())

	bus.Emit("nope")
	bus.Emit("A")
	assert.False(t, called)

	errs := rec.ByLevel("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "nope", errs[0].Fields["event"])
	assert.Equal(t, []string{"A", "B", "X"}, errs[0].Fields["valid"])
}

func TestBus_NilHandlersSkipped(t *testing.T) {
	bus, rec := newTestBus(t)
	var calls []string

	require.NoError(t, bus.On("A", nil, ""))
	require.NoError(t, bus.On("A", Func(nil), ""))
	require.NoError(t, bus.On("A", recorder("h", &calls, nil), ""))

	outcomes := bus.Dispatch("A")
	assert.Equal(t, []string{"h"}, calls)
	assert.Len(t, outcomes, 1)
	assert.Empty(t, rec.ByLevel("error"))
}

func TestBus_ForwardsAllArgsButRecordsFirst(t *testing.T) {
	bus, _ := newTestBus(t)
	var got [][]any
	var calls []string

	require.NoError(t, bus.On("X", recorder("h", &calls, &got), "a"))
	first := map[string]any{"key": "a"}
	bus.Emit("X", first, "second", 3)

	require.Len(t, got, 1)
	assert.Equal(t, []any{first, "second", 3}, got[0])

	fired := bus.GetEvents()
	require.Len(t, fired, 1)
	assert.Equal(t, FiredEvent{EventType: "X", Args: first, ID: "a"}, fired[0])
}

func TestBus_GetEventsIsIndependentCopy(t *testing.T) {
	bus, _ := newTestBus(t)

	bus.Emit("X", map[string]any{"key": "a"})
	bus.Emit("A")
	bus.Emit("unregistered", "payload")

	first := bus.GetEvents()
	require.Len(t, first, 3)
	assert.Equal(t, "X", first[0].EventType)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, map[string]any{}, first[1].Args)
	assert.Empty(t, first[1].ID)
	assert.Equal(t, "unregistered", first[2].EventType)

	first[0].EventType = "mutated"
	_ = append(first[:1], first[2:]...)

	bus.Emit("B")
	second := bus.GetEvents()
	require.Len(t, second, 4)
	assert.Equal(t, "X", second[0].EventType)
	assert.Equal(t, "A", second[1].EventType)
	assert.Equal(t, "B", second[3].EventType)
}

func TestBus_GetReturnsSnapshot(t *testing.T) {
	bus, _ := newTestBus(t)
	h := Func(func(args ...any) error { return nil })

	require.NoError(t, bus.On("X", h, ""))
	require.NoError(t, bus.On("X", h, "a"))

	subs := bus.Get()
	require.Contains(t, subs, "X")
	assert.Equal(t, []*Handler{h}, subs["X"].Global)
	assert.Equal(t, []*Handler{h}, subs["X"].ByID["a"])

	subs["X"].ByID["a"] = nil
	assert.Len(t, bus.Get()["X"].ByID["a"], 1)

	bus.Off("X", h, "a")
	assert.NotContains(t, bus.Get()["X"].ByID, "a")
}

func TestBus_ReentrantHandlers(t *testing.T) {
	bus, _ := newTestBus(t)
	var calls []string
	late := recorder("late", &calls, nil)

	var self *Handler
	self = Named("self", func(args ...any) error {
		calls = append(calls, "self")
		bus.Off("A", self, "")
		_ = bus.On("A", late, "")
		bus.Emit("B")
		return nil
	})
	require.NoError(t, bus.On("A", self, ""))
	require.NoError(t, bus.On("A", recorder("next", &calls, nil), ""))

	bus.Emit("A")
	assert.Equal(t, []string{"self", "next"}, calls, "handler list is fixed when the emission starts")

	calls = nil
	bus.Emit("A")
	assert.Equal(t, []string{"next", "late"}, calls)
	assert.Len(t, bus.GetEvents(), 3)
}

type stubObserver struct {
	emits    map[string]int
	failures int
	rejected []string
}

func (s *stubObserver) ObserveEmit(event string, outcomes []Outcome, _ time.Duration) {
	if s.emits == nil {
		s.emits = make(map[string]int)
	}
	s.emits[event]++
	for _, o := range outcomes {
		if !o.OK() {
			s.failures++
		}
	}
}

func (s *stubObserver) ObserveRejected(event string) {
	s.rejected = append(s.rejected, event)
}

func TestBus_Observer(t *testing.T) {
	obs := &stubObserver{}
	bus, _ := newTestBus(t, WithObserver(obs))

	require.NoError(t, bus.On("A", Func(func(args ...any) error { return errors.New("x") }), ""))
	_ = bus.On("bad", Func(func(args ...any) error { return nil }), "")
	bus.Emit("A")
	bus.Emit("A")
	bus.Emit("B")

	assert.Equal(t, map[string]int{"A": 2, "B": 1}, obs.emits)
	assert.Equal(t, 2, obs.failures)
	assert.Equal(t, []string{"bad"}, obs.rejected)
}
