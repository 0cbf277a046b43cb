// Package server exposes the workflow engine over HTTP.
//
// Routes live under /api and require a bearer token carrying the actor.
// /ws/events streams applied transitions to connected clients, filtered by
// what each actor may view.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teranos/hireflow/auth"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/notify"
	"github.com/teranos/hireflow/pulse/schedule"
	"github.com/teranos/hireflow/workflow"
)

// ServerState is the lifecycle state reported by /health
type ServerState int32

const (
	ServerStateRunning ServerState = iota
	ServerStateDraining
	ServerStateStopped
)

func (s ServerState) String() string {
	switch s {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Creator inserts Draft job posts; both job post stores satisfy it
type Creator interface {
	Create(ctx context.Context, post *workflow.JobPost) error
}

// PulseStats reports automation scheduler activity; *schedule.Ticker satisfies it
type PulseStats interface {
	GetStats() schedule.Stats
}

// Deps are the collaborators a Server routes to. Engine and Auth are required.
type Deps struct {
	Engine *workflow.Engine
	Auth   *auth.Middleware

	Posts  Creator
	Pulse  PulseStats
	Events *notify.Broadcaster

	AllowedOrigins []string
	Logger         *zap.SugaredLogger
}

// Server is the hireflow HTTP API
type Server struct {
	engine *workflow.Engine
	auth   *auth.Middleware
	posts  Creator
	pulse  PulseStats
	events *notify.Broadcaster
	gate   *workflow.Gate

	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.SugaredLogger

	state   atomic.Int32
	clients atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a server and its routes
func New(d Deps) (*Server, error) {
	if d.Engine == nil {
		return nil, errors.New("server requires a workflow engine")
	}
	if d.Auth == nil {
		return nil, errors.New("server requires auth middleware")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		engine: d.Engine,
		auth:   d.Auth,
		posts:  d.Posts,
		pulse:  d.Pulse,
		events: d.Events,
		gate:   workflow.NewGate(),
		logger: d.Logger.Named("server"),
		ctx:    ctx,
		cancel: cancel,
	}
	s.router = s.setupRouter(d.AllowedOrigins)
	return s, nil
}

// Handler returns the routed handler, mainly for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// State returns the current lifecycle state
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

func (s *Server) setState(state ServerState) {
	s.state.Store(int32(state))
	s.logger.Infow("Server state changed", logger.FieldStatus, state.String())
}

// Start listens on port and serves until Shutdown. A port of 0 picks a free one.
func (s *Server) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", port)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	logger.AddPulseOpenSymbol(s.logger).Infow("HTTP server listening",
		logger.FieldAddress, ln.Addr().String(),
	)
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrap(err, "http server failed")
}

// Shutdown drains in-flight requests, closes websocket clients and stops serving
func (s *Server) Shutdown(ctx context.Context) error {
	if s.State() == ServerStateStopped {
		return nil
	}
	s.setState(ServerStateDraining)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	// websocket connections are hijacked, so http.Server.Shutdown does not wait for them
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warnw("Timed out waiting for websocket clients", "clients", s.clients.Load())
	}

	s.setState(ServerStateStopped)
	logger.AddPulseCloseSymbol(s.logger).Infow("HTTP server stopped")
	return errors.Wrap(err, "http server shutdown")
}
