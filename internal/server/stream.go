package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/echoface/pbevents/internal/events"
	"github.com/echoface/pbevents/pkg/jsonx"
	"github.com/echoface/pbevents/pkg/logger"
)

const (
	streamBuffer = 256
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamMessage is one emission forwarded to a websocket client.
type streamMessage struct {
	Event string `json:"eventType"`
	Args  any    `json:"args"`
	ID    string `json:"id,omitempty"`
}

// streamHub tracks live websocket subscribers. Each connection owns one bus
// handler per streamed event; the handler never blocks dispatch and drops
// messages once the connection buffer is full.
type streamHub struct {
	bus *events.Bus
	log logger.Logger

	mu      sync.Mutex
	closed  bool
	streams map[*stream]struct{}
}

type stream struct {
	conn   *websocket.Conn
	out    chan streamMessage
	done   chan struct{}
	once   sync.Once
	events []string
	id     string

	dropMu  sync.Mutex
	dropped int
}

func newStreamHub(bus *events.Bus, log logger.Logger) *streamHub {
	return &streamHub{bus: bus, log: log, streams: make(map[*stream]struct{})}
}

// handleStream upgrades to a websocket and forwards emissions. Query
// parameters: events (comma separated, default all catalog events) and id
// (subscribe to that id only).
func (ac *AppContext) handleStream(c *gin.Context) {
	names := ac.Bus.Catalog().Names()
	if q := c.Query("events"); q != "" {
		names = names[:0]
		for _, name := range strings.Split(q, ",") {
			name = strings.TrimSpace(name)
			if !ac.Bus.Catalog().Has(name) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event", "event": name})
				return
			}
			names = append(names, name)
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ac.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	ac.streams.serve(conn, names, c.Query("id"))
}

func (h *streamHub) serve(conn *websocket.Conn, names []string, id string) {
	s := newStream(conn, names, id)
	// The bus passes no event name to handlers, so bind one handler per event.
	handlers := make(map[string]*events.Handler, len(names))
	for _, name := range names {
		handlers[name] = s.handler(h.bus.Catalog(), name)
	}

	if !h.track(s) {
		_ = conn.Close()
		return
	}
	for name, handler := range handlers {
		_ = h.bus.On(name, handler, id)
	}
	h.log.Info("stream connected", "events", len(names), "id", id)

	defer func() {
		for name, handler := range handlers {
			h.bus.Off(name, handler, id)
		}
		h.untrack(s)
		s.close()
		_ = conn.Close()
		h.log.Info("stream closed", "dropped", s.droppedCount())
	}()

	go s.readLoop()
	s.writeLoop()
}

func newStream(conn *websocket.Conn, names []string, id string) *stream {
	return &stream{
		conn:   conn,
		out:    make(chan streamMessage, streamBuffer),
		done:   make(chan struct{}),
		events: names,
		id:     id,
	}
}

// handler forwards emissions of event to the stream without blocking.
func (s *stream) handler(catalog *events.Catalog, event string) *events.Handler {
	return events.Named("stream:"+event, func(args ...any) error {
		msg := streamMessage{Event: event, Args: map[string]any{}}
		if len(args) > 0 && args[0] != nil {
			msg.Args = args[0]
		}
		msg.ID, _ = catalog.ID(event, msg.Args)
		return s.push(msg)
	})
}

func (h *streamHub) track(s *stream) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.streams[s] = struct{}{}
	return true
}

func (h *streamHub) untrack(s *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, s)
}

// closeAll ends every live stream with a normal closure.
func (h *streamHub) closeAll() {
	h.mu.Lock()
	h.closed = true
	streams := make([]*stream, 0, len(h.streams))
	for s := range h.streams {
		streams = append(streams, s)
	}
	h.mu.Unlock()

	for _, s := range streams {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"),
			time.Now().Add(time.Second),
		)
		s.close()
	}
}

func (s *stream) push(msg streamMessage) error {
	select {
	case <-s.done:
		return nil
	default:
	}
	select {
	case s.out <- msg:
	default:
		s.dropMu.Lock()
		s.dropped++
		s.dropMu.Unlock()
	}
	return nil
}

func (s *stream) droppedCount() int {
	s.dropMu.Lock()
	defer s.dropMu.Unlock()
	return s.dropped
}

func (s *stream) close() {
	s.once.Do(func() { close(s.done) })
}

// readLoop discards client frames and ends the stream when the peer goes away.
func (s *stream) readLoop() {
	defer s.close()
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *stream) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			data, err := jsonx.JSONE(msg)
			if err != nil {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
