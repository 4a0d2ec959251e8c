package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/budget"
	"github.com/dvloznov/budget-tracker/internal/identity"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/session"
)

const streamWriteTimeout = 5 * time.Second

// StreamMessage is one frame on the stream. Data is the complete current
// state of Kind, never a delta.
type StreamMessage struct {
	Kind string      `json:"type"`
	Data interface{} `json:"data"`
}

// StreamHandler pushes the session state and the active view over a
// WebSocket whenever either changes.
type StreamHandler struct {
	sessions *SessionHandler
	manager  *session.Manager
	ledger   *ledger.Ledger
	tracker  *budget.Tracker
	origins  []string
	log      zerolog.Logger
}

// NewStreamHandler creates a stream handler. Exactly one of l and t is
// expected to be non-nil.
func NewStreamHandler(sessions *session.Manager, l *ledger.Ledger, t *budget.Tracker, origins []string, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		sessions: NewSessionHandler(sessions, log),
		manager:  sessions,
		ledger:   l,
		tracker:  t,
		origins:  origins,
		log:      log.With().Str("component", "stream").Logger(),
	}
}

// ServeHTTP handles GET /api/stream
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The server's write timeout must not cut the long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	opts := &websocket.AcceptOptions{OriginPatterns: originHosts(h.origins)}
	for _, o := range h.origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
		}
	}

	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer c.CloseNow()

	log := logger.WithFields(h.log, map[string]interface{}{
		"request_id":  middleware.RequestIDFromContext(r.Context()),
		"remote_addr": r.RemoteAddr,
	})

	ctx := c.CloseRead(r.Context())
	out := newOutbox()

	cancels := []func(){
		h.manager.Watch(func(*identity.Identity) { out.put("session", h.sessions.State()) }),
	}
	out.put("session", h.sessions.State())

	if h.ledger != nil {
		cancels = append(cancels, h.ledger.Watch(func(v ledger.View) { out.put("ledger", v) }))
		out.put("ledger", h.ledger.View())
	}
	if h.tracker != nil {
		cancels = append(cancels, h.tracker.Watch(func(v budget.View) { out.put("budget", v) }))
		out.put("budget", h.tracker.View())
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	log.Info().Msg("Client connected to stream")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Client disconnected from stream")
			c.Close(websocket.StatusNormalClosure, "")
			return
		case <-out.wake:
			for _, msg := range out.drain() {
				if err := h.write(ctx, c, msg); err != nil {
					log.Debug().Err(err).Msg("Stream write failed")
					return
				}
			}
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, c *websocket.Conn, msg StreamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, msg)
}

// originHosts turns CORS origins into the host patterns the WebSocket
// handshake matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		hosts = append(hosts, strings.TrimSuffix(o, "/"))
	}
	return hosts
}

// outbox keeps only the latest pending state per kind, so a slow client
// skips intermediate states instead of falling behind.
type outbox struct {
	mu      sync.Mutex
	pending map[string]interface{}
	order   []string
	wake    chan struct{}
}

func newOutbox() *outbox {
	return &outbox{
		pending: make(map[string]interface{}),
		wake:    make(chan struct{}, 1),
	}
}

func (o *outbox) put(kind string, data interface{}) {
	o.mu.Lock()
	if _, ok := o.pending[kind]; !ok {
		o.order = append(o.order, kind)
	}
	o.pending[kind] = data
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) drain() []StreamMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	msgs := make([]StreamMessage, 0, len(o.order))
	for _, kind := range o.order {
		msgs = append(msgs, StreamMessage{Kind: kind, Data: o.pending[kind]})
	}
	o.pending = make(map[string]interface{})
	o.order = nil
	return msgs
}
