package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/siteclone/siteclone/internal/config"
	"github.com/siteclone/siteclone/internal/model"
	"github.com/siteclone/siteclone/internal/session"
	"github.com/siteclone/siteclone/internal/webclient"
)

// shutdownGrace is how long in-flight connections get to drain when the
// server context is cancelled.
const shutdownGrace = 5 * time.Second

// Server is the WebSocket push-channel server.
//
// Each connection drives its own set of sessions. Executions run on the
// server's lifetime context rather than the request context, because a
// session must outlive the connection that started it to be recoverable.
type Server struct {
	cfg      *config.Config
	registry *session.Registry
	runner   *session.Runner
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	base context.Context
}

// NewServer creates a push-channel server.
func NewServer(cfg *config.Config, registry *session.Registry, runner *session.Runner, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		runner:   runner,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The local UI is served from file:// or another port.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler: the push channel on /ws plus a
// liveness endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("push channel listening", "addr", s.cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// execContext returns the context session executions run on.
func (s *Server) execContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base != nil {
		return s.base
	}
	return context.Background()
}

// handleWS upgrades the connection and runs its read loop. When the
// loop exits, sessions this connection was driving are interrupted,
// which is what makes them recoverable.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		srv:      s,
		conn:     newSafeConn(raw),
		attached: make(map[string]*session.Machine),
	}
	defer c.conn.Close()
	defer c.detachAll()

	s.logger.Debug("client connected", "remote", r.RemoteAddr)
	c.send(model.Event{Type: model.EventConnectionStatus, EmittedAt: time.Now()})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				s.logger.Debug("client disconnected", "remote", r.RemoteAddr)
			} else {
				s.logger.Warn("websocket read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", "malformed message: "+err.Error())
			continue
		}
		c.handle(r.Context(), msg)
	}
}

// client is one connected push-channel consumer.
type client struct {
	srv  *Server
	conn *safeConn

	mu       sync.Mutex
	attached map[string]*session.Machine
}

// handle dispatches one inbound message. Malformed or unserviceable
// requests produce a typed response and leave sessions untouched.
func (c *client) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case MessageCloneRequest:
		c.handleClone(msg)
	case MessageRecoverSession:
		c.handleRecover(ctx, msg)
	case MessageResumeSession:
		c.handleResume(ctx, msg)
	case MessagePauseSession:
		c.handlePause(msg)
	case MessageCancelSession:
		c.handleCancel(msg)
	default:
		c.sendError(msg.SessionID, "unknown message type: "+string(msg.Type))
	}
}

// handleClone validates the request, creates a session, and starts it.
func (c *client) handleClone(msg ClientMessage) {
	if _, err := webclient.ValidateTargetURL(msg.URL, c.srv.cfg.AllowPrivateHosts); err != nil {
		c.sendError("", "invalid target URL: "+err.Error())
		return
	}
	opts, err := normalizeOptions(c.srv.cfg, msg.Options)
	if err != nil {
		c.sendError("", "invalid options: "+err.Error())
		return
	}

	m, err := c.srv.registry.Create(msg.URL, opts)
	if err != nil {
		c.sendError("", "session creation failed: "+err.Error())
		return
	}

	c.attach(m)
	if err := c.srv.runner.Start(c.srv.execContext(), m); err != nil {
		c.sendError(m.ID(), "session start failed: "+err.Error())
	}
}

// handleRecover answers a recovery probe: unknown IDs get
// session_not_found, interrupted sessions get a recovery offer, and
// everything else gets a live reattach with history replay.
func (c *client) handleRecover(ctx context.Context, msg ClientMessage) {
	m, err := c.srv.registry.Lookup(ctx, msg.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.send(model.Event{
				Type:      model.EventSessionNotFound,
				SessionID: msg.SessionID,
				EmittedAt: time.Now(),
			})
			return
		}
		c.sendError(msg.SessionID, "recovery lookup failed: "+err.Error())
		return
	}

	snapshot := m.Snapshot()
	if snapshot.Resumable() {
		c.send(model.Event{
			Type:        model.EventSessionRecoveryAvailable,
			SessionID:   snapshot.ID,
			EmittedAt:   time.Now(),
			URL:         snapshot.URL,
			Progress:    snapshot.Progress,
			TotalAssets: snapshot.AssetCount,
		})
		return
	}

	// Live or settled: current state first, then the event stream.
	c.send(model.NewStatusEvent(snapshot.ID, snapshot.Status, snapshot.LastError))
	c.attach(m)
}

// handleResume resumes an interrupted session. Failures (unknown ID,
// not resumable, already being resumed) leave the session untouched.
func (c *client) handleResume(ctx context.Context, msg ClientMessage) {
	m, err := c.srv.registry.Lookup(ctx, msg.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.send(model.Event{
				Type:      model.EventSessionNotFound,
				SessionID: msg.SessionID,
				EmittedAt: time.Now(),
			})
			return
		}
		c.sendError(msg.SessionID, "resume lookup failed: "+err.Error())
		return
	}

	if err := c.srv.runner.Resume(c.srv.execContext(), m); err != nil {
		c.send(model.Event{
			Type:      model.EventSessionResumeFailed,
			SessionID: msg.SessionID,
			EmittedAt: time.Now(),
			Error:     err.Error(),
		})
		return
	}

	snapshot := m.Snapshot()
	c.send(model.Event{
		Type:      model.EventSessionResumed,
		SessionID: snapshot.ID,
		EmittedAt: time.Now(),
		URL:       snapshot.URL,
		Progress:  snapshot.Progress,
	})
	c.attach(m)
}

// handlePause interrupts a running session, keeping it resumable.
func (c *client) handlePause(msg ClientMessage) {
	m, ok := c.srv.registry.Get(msg.SessionID)
	if !ok {
		c.send(model.Event{
			Type:      model.EventSessionNotFound,
			SessionID: msg.SessionID,
			EmittedAt: time.Now(),
		})
		return
	}

	if err := m.Interrupt(); err != nil {
		c.sendError(msg.SessionID, "pause failed: "+err.Error())
		return
	}
	c.send(model.NewStatusEvent(msg.SessionID, model.StatusInterrupted, ""))
}

// handleCancel stops a session and drops it from the registry. Its
// persisted record, if any, expires with the retention window.
func (c *client) handleCancel(msg ClientMessage) {
	m, ok := c.srv.registry.Get(msg.SessionID)
	if !ok {
		c.send(model.Event{
			Type:      model.EventSessionNotFound,
			SessionID: msg.SessionID,
			EmittedAt: time.Now(),
		})
		return
	}

	// Already-settled sessions cannot transition; dropping them is still
	// valid cancellation.
	_ = m.Interrupt()
	c.srv.registry.Remove(msg.SessionID)

	c.detach(msg.SessionID)
	c.send(model.NewStatusEvent(msg.SessionID, m.Status(), ""))
}

// attach subscribes this connection to a session's events and replays
// the history the connection missed.
func (c *client) attach(m *session.Machine) {
	c.mu.Lock()
	c.attached[m.ID()] = m
	c.mu.Unlock()

	replay := m.SetEmitter(func(e model.Event) { c.send(e) })
	for _, e := range replay {
		c.send(e)
	}
}

// detach unsubscribes one session without interrupting it.
func (c *client) detach(id string) {
	c.mu.Lock()
	m, ok := c.attached[id]
	delete(c.attached, id)
	c.mu.Unlock()

	if ok {
		m.SetEmitter(nil)
	}
}

// detachAll unsubscribes every attached session and interrupts the
// active ones; the connection that drove them is gone.
func (c *client) detachAll() {
	c.mu.Lock()
	machines := make([]*session.Machine, 0, len(c.attached))
	for _, m := range c.attached {
		machines = append(machines, m)
	}
	c.attached = make(map[string]*session.Machine)
	c.mu.Unlock()

	for _, m := range machines {
		m.SetEmitter(nil)
		if m.Status().Active() {
			if err := m.Interrupt(); err != nil {
				c.srv.logger.Debug("interrupt on disconnect refused",
					"sessionID", m.ID(), "error", err)
			}
		}
	}
}

// send writes one event, logging write failures at debug level; a
// failed write surfaces as a read-loop error shortly after.
func (c *client) send(e model.Event) {
	if err := c.conn.WriteJSON(e); err != nil {
		c.srv.logger.Debug("event write failed", "type", string(e.Type), "error", err)
	}
}

// sendError reports a request-level problem without touching sessions.
func (c *client) sendError(sessionID, text string) {
	c.send(model.Event{
		Type:      model.EventConnectionStatus,
		SessionID: sessionID,
		EmittedAt: time.Now(),
		Error:     text,
	})
}
