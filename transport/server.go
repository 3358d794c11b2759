// Package transport exposes the Orchestrator over WebSocket (spec §6).
// The Server/ServerOption/ListenAndServe/Shutdown shape is grounded on
// a2a/server.go — an http.ServeMux, a functional-options constructor, and
// a graceful Shutdown that cancels in-flight work before returning. The
// per-connection upgrade itself uses gorilla/websocket, the same library the
// teacher's realtime LLM vendor clients use on the dial side — here driving
// the inverse (server) role of the same library.
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/interviewrt/runtime/events"
	"github.com/interviewrt/runtime/logger"
	"github.com/interviewrt/runtime/orchestrator"
)

const defaultReadHeaderTimeout = 10 * time.Second

// SessionFactory constructs a fresh Orchestrator session for a newly
// accepted connection.
type SessionFactory func(sessionID string, sender orchestrator.ClientSender, room orchestrator.RoomBroadcaster) *orchestrator.Session

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithAddr sets the listen address for ListenAndServe.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithUpgrader overrides the default gorilla/websocket.Upgrader, e.g. to
// set a custom CheckOrigin in production.
func WithUpgrader(u websocket.Upgrader) ServerOption {
	return func(s *Server) { s.upgrader = u }
}

// WithEventBus registers an events.EventBus that receives
// EventValidationPassed/EventValidationFailed for every inbound client
// frame (spec §10), in addition to whatever bus the Orchestrator's own
// Deps.EventBus publishes session/phase/provider events to. Nil (the
// zero value) disables validation-event emission.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) { s.eventBus = bus }
}

// WithRoute registers an additional HTTP handler alongside /ws and
// /healthz, e.g. the Evaluator's report endpoint — spec §6 only
// describes the WebSocket protocol, but a real deployment needs a plain
// HTTP surface for post-interview report retrieval too.
func WithRoute(pattern string, handler http.HandlerFunc) ServerOption {
	return func(s *Server) { s.routes = append(s.routes, route{pattern, handler}) }
}

type route struct {
	pattern string
	handler http.HandlerFunc
}

// Server accepts WebSocket connections at /ws and runs one
// Orchestrator Session per connection.
type Server struct {
	addr       string
	upgrader   websocket.Upgrader
	newSession SessionFactory
	httpSrv    *http.Server
	routes     []route
	eventBus   *events.EventBus

	rooms *RoomRegistry
}

// NewServer constructs a Server. newSession is called once per accepted
// connection.
func NewServer(newSession SessionFactory, opts ...ServerOption) *Server {
	s := &Server{
		addr:       ":8080",
		newSession: newSession,
		rooms:      NewRoomRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the http.Handler serving /ws and /healthz. Every route
// except the WebSocket upgrade itself (a long-lived connection, not a
// request/response exchange otelhttp's span model fits) is wrapped in an
// OTel span named after its route, so the Evaluator's report endpoint and
// the health check show up as ordinary HTTP spans alongside the
// interview.session spans OTelEventListener produces for the WS traffic.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /healthz", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}), "healthz"))
	for _, rt := range s.routes {
		mux.Handle(rt.pattern, otelhttp.NewHandler(rt.handler, rt.pattern))
	}
	return mux
}

// ListenAndServe starts the HTTP server at the configured address.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Serve starts the HTTP server on a caller-supplied listener.
func (s *Server) Serve(ln net.Listener) error {
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: defaultReadHeaderTimeout}
	return s.httpSrv.Serve(ln)
}

// Shutdown gracefully stops accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	rawConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("transport: websocket upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	conn := &wsConn{conn: rawConn}
	defer conn.Close()

	sess := s.newSession(sessionID, conn, s.rooms)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sess.Run(ctx)
	}()

	s.readLoop(ctx, conn, sess, sessionID)
	cancel()
	wg.Wait()
}

func (s *Server) readLoop(ctx context.Context, conn *wsConn, sess *orchestrator.Session, sessionID string) {
	defer s.rooms.leaveAll(sessionID)
	for {
		msg, err := conn.ReadClientMessage()
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				s.publishValidation(sessionID, "", verr)
				_ = conn.Send(orchestrator.ServerMessage{Type: "error", Status: "client_protocol", Message: verr.Error()})
				continue
			}
			logger.Debug("transport: read loop ending", "session_id", sessionID, "error", err)
			return
		}
		s.publishValidation(sessionID, msg.Type, nil)
		if err := sess.Submit(ctx, msg); err != nil {
			return
		}
	}
}

func (s *Server) publishValidation(sessionID, messageType string, validationErr *ValidationError) {
	if s.eventBus == nil {
		return
	}
	if validationErr != nil {
		s.eventBus.Publish(&events.Event{
			Type:      events.EventValidationFailed,
			Timestamp: time.Now(),
			SessionID: sessionID,
			Data:      &events.ValidationFailedData{MessageType: messageType, Error: validationErr},
		})
		return
	}
	s.eventBus.Publish(&events.Event{
		Type:      events.EventValidationPassed,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      &events.ValidationPassedData{MessageType: messageType},
	})
}
