// Package api serves the HTTP control surface of the daemon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"bgservice/internal/controller"
	"bgservice/internal/logger"
)

// Controller is the part of the service controller the API drives.
type Controller interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	EnterForeground(ctx context.Context) error
	LeaveForeground(ctx context.Context) error
	Snapshot() controller.Snapshot
	Available() bool
}

// Status is the body of GET /status.
type Status struct {
	Service    string           `json:"service"`
	State      controller.State `json:"state"`
	Running    bool             `json:"running"`
	Foreground bool             `json:"foreground"`
	Available  bool             `json:"available"`
}

// Err is an error carrying the HTTP status to respond with.
type Err struct {
	Code int
	Text string
}

func (e Err) Error() string {
	return e.Text
}

type handlerFunc func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) (interface{}, int, error)

// Server serves the control API.
type Server struct {
	ctl    Controller
	router *httprouter.Router

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// New builds the router. metricsHandler is mounted at GET /metrics when non-nil.
func New(ctl Controller, metricsHandler http.Handler) *Server {
	s := &Server{ctl: ctl}

	router := httprouter.New()
	router.HandleMethodNotAllowed = true
	router.PanicHandler = s.panicHandler
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respond(w, req, nil, 0, Err{http.StatusNotFound, "NOT_FOUND"})
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		respond(w, req, nil, 0, Err{http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"})
	})

	router.Handle("GET", "/ping", decorate(s.pingHandler))
	router.Handle("GET", "/status", decorate(s.statusHandler))
	router.Handle("POST", "/start", decorate(s.action(ctl.Start)))
	router.Handle("POST", "/stop", decorate(s.action(ctl.Stop)))
	router.Handle("POST", "/foreground", decorate(s.action(ctl.EnterForeground)))
	router.Handle("POST", "/background", decorate(s.action(ctl.LeaveForeground)))
	if metricsHandler != nil {
		router.Handler("GET", "/metrics", metricsHandler)
	}

	s.router = router
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = l
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})

	log := logger.WithComponent("api")
	log.Info().Str("addr", l.Addr().String()).Msg("HTTP API listening")

	srv, done := s.srv, s.done
	go func() {
		defer close(done)
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP API stopped unexpectedly")
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	<-done
	return err
}

func (s *Server) pingHandler(w http.ResponseWriter, req *http.Request, ps httprouter.Params) (interface{}, int, error) {
	return "OK", http.StatusOK, nil
}

func (s *Server) statusHandler(w http.ResponseWriter, req *http.Request, ps httprouter.Params) (interface{}, int, error) {
	snap := s.ctl.Snapshot()
	return Status{
		Service:    s.ctl.Name(),
		State:      snap.State,
		Running:    snap.Running,
		Foreground: snap.Foreground,
		Available:  s.ctl.Available(),
	}, http.StatusOK, nil
}

// action adapts a controller operation. Start and stop only ask the host, so
// success is 202 with the state observed at return.
func (s *Server) action(op func(context.Context) error) handlerFunc {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) (interface{}, int, error) {
		if err := op(req.Context()); err != nil {
			switch {
			case errors.Is(err, controller.ErrStartRejected):
				return nil, 0, Err{http.StatusConflict, err.Error()}
			case errors.Is(err, controller.ErrHostUnavailable):
				return nil, 0, Err{http.StatusServiceUnavailable, err.Error()}
			default:
				return nil, 0, Err{http.StatusInternalServerError, err.Error()}
			}
		}
		return map[string]string{"state": s.ctl.Snapshot().State.String()}, http.StatusAccepted, nil
	}
}

func (s *Server) panicHandler(w http.ResponseWriter, req *http.Request, p interface{}) {
	log := logger.WithComponent("api")
	log.Error().Interface("panic", p).Str("path", req.URL.Path).Msg("Handler panicked")
	respond(w, req, nil, 0, Err{http.StatusInternalServerError, "INTERNAL_ERROR"})
}

func decorate(f handlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		data, code, err := f(w, req, ps)
		respond(w, req, data, code, err)
	}
}

func respond(w http.ResponseWriter, req *http.Request, data interface{}, code int, err error) {
	log := logger.WithComponent("api")

	if err != nil {
		code = http.StatusInternalServerError
		var e Err
		if errors.As(err, &e) {
			code = e.Code
		}
		data = map[string]string{"message": err.Error()}
	}

	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", code).
		Msg("HTTP request")

	if s, ok := data.(string); ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		fmt.Fprint(w, s)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
