package websocket

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tiger/interview-assistant/api/transport"
	"github.com/tiger/interview-assistant/internal/observability/telemetry"
	"github.com/tiger/interview-assistant/internal/runtime/audio"
	"github.com/tiger/interview-assistant/internal/runtime/pipeline"
	"github.com/tiger/interview-assistant/internal/runtime/session"
)

// Config controls per-connection limits.
type Config struct {
	// QueueSize bounds pending audio chunks per session.
	QueueSize int
	// OutboundBuffer bounds encoded frames waiting for the writer.
	OutboundBuffer int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	ReadLimit      int64
	// CloseTimeout bounds how long a closing session waits for its queue.
	CloseTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize < 1 {
		c.QueueSize = 16
	}
	if c.OutboundBuffer < 1 {
		c.OutboundBuffer = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 3
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 8 << 20
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
	return c
}

// DefaultsFunc returns the configuration a new session starts with.
type DefaultsFunc func() pipeline.Snapshot

// Hub multiplexes websocket sessions by id. A session is present iff its
// connection is live.
type Hub struct {
	cfg      Config
	runner   *pipeline.Runner
	defaults DefaultsFunc
	logger   *zap.SugaredLogger
	emitter  telemetry.Emitter
	now      func() time.Time
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*conn
}

// Option customizes a Hub.
type Option func(*Hub)

func WithEmitter(emitter telemetry.Emitter) Option {
	return func(h *Hub) { h.emitter = telemetry.OrNoop(emitter) }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub builds a hub that runs every session's chunks through runner.
func NewHub(cfg Config, runner *pipeline.Runner, defaults DefaultsFunc, logger *zap.SugaredLogger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if defaults == nil {
		defaults = func() pipeline.Snapshot { return pipeline.Snapshot{} }
	}
	h := &Hub{
		cfg:      cfg.withDefaults(),
		runner:   runner,
		defaults: defaults,
		logger:   logger,
		emitter:  telemetry.Noop(),
		now:      time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// SessionIDs returns live session ids in sorted order.
func (h *Hub) SessionIDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Send queues msg on the session's connection. It reports false when the
// session is not connected; the message is dropped.
func (h *Hub) Send(sessionID string, msg transport.Outbound) bool {
	h.mu.RLock()
	c, ok := h.conns[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	c.send(msg)
	return true
}

// CloseAll closes every live connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
}

// ServeSession upgrades the request and serves sessionID until the client
// disconnects or the session is replaced.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := session.New(context.Background(), sessionID, h.defaults(), h.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "sessionID", sessionID, "error", err)
		sess.Close()
		return
	}

	c := &conn{
		hub:     h,
		ws:      ws,
		session: sess,
		out:     make(chan []byte, h.cfg.OutboundBuffer),
		done:    make(chan struct{}),
	}
	orch, err := session.NewOrchestrator(sess, h.runner, pipeline.EventSinkFunc(c.send), h.cfg.QueueSize, h.logger)
	if err != nil {
		h.logger.Errorw("session setup failed", "sessionID", sessionID, "error", err)
		sess.Close()
		_ = ws.Close()
		return
	}
	c.orch = orch

	h.register(c)
	go c.writeLoop()
	h.logger.Infow("session connected", "sessionID", sessionID, "remote", r.RemoteAddr)
	c.send(transport.Outbound{
		Type:      transport.OutboundStatus,
		SessionID: sessionID,
		Timestamp: h.now(),
		Data: transport.StatusData{
			Message:      "Connected to interview assistant",
			SessionID:    sessionID,
			Capabilities: transport.Capabilities,
		},
	})
	c.readLoop()
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	previous := h.conns[c.session.ID()]
	h.conns[c.session.ID()] = c
	count := len(h.conns)
	h.mu.Unlock()

	if previous != nil {
		h.logger.Infow("replacing existing session connection", "sessionID", c.session.ID())
		previous.close()
	}
	h.reportSessions(count)
}

// unregister removes c only if it is still the registered connection for its id.
func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	removed := false
	if current, ok := h.conns[c.session.ID()]; ok && current == c {
		delete(h.conns, c.session.ID())
		removed = true
	}
	count := len(h.conns)
	h.mu.Unlock()
	if removed {
		h.reportSessions(count)
	}
}

func (h *Hub) reportSessions(count int) {
	h.emitter.EmitMetric(telemetry.MetricSessionsActive, float64(count), "sessions", nil, telemetry.Correlation{})
}

type conn struct {
	hub     *Hub
	ws      *websocket.Conn
	session *session.Session
	orch    *session.Orchestrator

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	// overflowed marks a connection closed because the client fell behind.
	overflowed atomic.Bool
}

// send encodes msg and queues it for the writer. Messages sent after close are
// dropped. A live connection whose outbound buffer is full is closed rather
// than silently losing frames.
func (c *conn) send(msg transport.Outbound) {
	select {
	case <-c.done:
		return
	default:
	}
	if msg.SessionID == "" {
		msg.SessionID = c.session.ID()
	}
	payload, err := transport.EncodeOutbound(msg)
	if err != nil {
		c.hub.logger.Errorw("encode outbound frame", "sessionID", c.session.ID(), "type", msg.Type, "error", err)
		return
	}
	select {
	case <-c.done:
	case c.out <- payload:
	default:
		if c.overflowed.CompareAndSwap(false, true) {
			c.hub.logger.Warnw("outbound buffer full, closing connection", "sessionID", c.session.ID(), "type", msg.Type)
			// send may run on the session worker, which close waits for.
			go c.close()
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		ctx, cancel := context.WithTimeout(context.Background(), c.hub.cfg.CloseTimeout)
		defer cancel()
		if err := c.orch.Close(ctx); err != nil {
			c.hub.logger.Warnw("session queue did not drain", "sessionID", c.session.ID(), "error", err)
		}
		c.hub.logger.Infow("session disconnected", "sessionID", c.session.ID())
	})
}

func (c *conn) writeLoop() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			code, text := websocket.CloseNormalClosure, ""
			if c.overflowed.Load() {
				code, text = websocket.CloseTryAgainLater, "outbound buffer full"
			}
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(cfg.WriteTimeout))
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				c.hub.logger.Debugw("ping failed", "sessionID", c.session.ID(), "error", err)
				return
			}
		case payload := <-c.out:
			if err := c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.logger.Debugw("write failed", "sessionID", c.session.ID(), "error", err)
				return
			}
		}
	}
}

func (c *conn) readLoop() {
	defer c.close()

	cfg := c.hub.cfg
	c.ws.SetReadLimit(cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		messageType, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debugw("read failed", "sessionID", c.session.ID(), "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
		if messageType != websocket.TextMessage {
			c.hub.logger.Debugw("ignoring non-text frame", "sessionID", c.session.ID(), "messageType", messageType)
			continue
		}
		c.handle(raw)
	}
}

func (c *conn) handle(raw []byte) {
	inbound, err := transport.DecodeInbound(raw)
	if err != nil {
		var perr *transport.ProtocolError
		if errors.As(err, &perr) {
			c.hub.logger.Warnw("dropping malformed frame", "sessionID", c.session.ID(), "reason", perr.Reason, "error", perr.Err)
			return
		}
		c.hub.logger.Errorw("decode inbound frame", "sessionID", c.session.ID(), "error", err)
		return
	}

	switch inbound.Type {
	case transport.InboundAudioChunk:
		c.handleAudio(inbound.AudioChunk)
	case transport.InboundConfigUpdate:
		updated := c.session.UpdateLanguages(*inbound.ConfigUpdate)
		c.hub.logger.Infow("session languages updated", "sessionID", c.session.ID(), "source", updated.SourceLanguage, "target", updated.TargetLanguage)
		c.send(transport.Outbound{Type: transport.OutboundConfigUpdated, Timestamp: c.hub.now(), Data: updated})
	case transport.InboundPing:
		now := c.hub.now()
		c.send(transport.Outbound{Type: transport.OutboundPong, Timestamp: now, Data: transport.PongData{Timestamp: now.UTC().Format(time.RFC3339Nano)}})
	default:
		c.hub.logger.Warnw("ignoring unknown message type", "sessionID", c.session.ID(), "type", inbound.Type)
	}
}

func (c *conn) handleAudio(chunk *transport.AudioChunk) {
	if chunk == nil || len(chunk.Audio) == 0 {
		c.hub.logger.Debugw("ignoring empty audio chunk", "sessionID", c.session.ID())
		return
	}
	sampleRate := chunk.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	duration := chunk.Duration
	if duration <= 0 && !audio.IsWAV(chunk.Audio) {
		duration = audio.PCMDuration(len(chunk.Audio), sampleRate)
	}

	err := c.orch.Submit(audio.Chunk{Data: chunk.Audio, SampleRate: sampleRate, Duration: duration})
	switch {
	case err == nil:
	case errors.Is(err, session.ErrBackpressure):
		c.hub.logger.Warnw("session queue full, dropping chunk", "sessionID", c.session.ID())
		c.hub.emitter.EmitMetric(telemetry.MetricBackpressureDrops, 1, "count", nil, telemetry.Correlation{SessionID: c.session.ID(), Stage: "ingress"})
		c.send(transport.Outbound{
			Type:      transport.OutboundError,
			Timestamp: c.hub.now(),
			Data: transport.ErrorData{
				Stage:   "ingress",
				Error:   "Backpressure",
				Message: "too many audio chunks pending; chunk dropped",
			},
		})
	case errors.Is(err, session.ErrSessionClosed):
	default:
		c.hub.logger.Errorw("submit audio chunk", "sessionID", c.session.ID(), "error", err)
	}
}
