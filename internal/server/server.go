package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"mote-scheduler/internal/commands"
	"mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/metrics"
	"mote-scheduler/internal/sim"
)

var log = logrus.WithField("prefix", "server")

// Server serves the latest schedule and streams scheduler events.
type Server struct {
	sc       *sim.Scenario
	bus      *eventBus.EventBus
	coll     *metrics.Collector
	registry *prometheus.Registry

	mu     sync.RWMutex
	result *sim.Result
}

// ErrNoEventBus is returned by New without an event bus to stream from /ws.
var ErrNoEventBus = errors.New("server: event bus is required")

// New registers the collector on a fresh registry. bus must not be nil. coll
// may be nil, in which case /metrics only exposes the Go runtime.
func New(sc *sim.Scenario, bus *eventBus.EventBus, coll *metrics.Collector) (*Server, error) {
	if bus == nil {
		return nil, ErrNoEventBus
	}
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if coll != nil {
		if err := coll.Register(registry); err != nil {
			return nil, errors.Wrap(err, "register metrics")
		}
	}
	return &Server{sc: sc, bus: bus, coll: coll, registry: registry}, nil
}

// Current returns the latest accepted result, or nil before the first run.
func (s *Server) Current() *sim.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Recompute runs the scenario with the given overrides and, when it succeeds,
// replaces the current result. A rejected run keeps the previous one.
func (s *Server) Recompute(ctx context.Context, policy string, offset *int) (*sim.Result, error) {
	sc := *s.sc
	if policy != "" {
		sc.Schedule.Policy = policy
	}
	if offset != nil {
		sc.Schedule.StartingOffset = *offset
	}
	result, err := sim.NewRunner(&sc, s.bus, s.coll).Run(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
	return result, nil
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /schedule", commands.ScheduleHandler(s))
	mux.HandleFunc("POST /schedule", commands.RecomputeHandler(s))
	mux.HandleFunc("GET /timeline", commands.TimelineHandler(s))
	mux.HandleFunc("GET /firmware", commands.FirmwareHandler(s))
	mux.HandleFunc("GET /motes/{id}", commands.MoteHandler(s))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wsHandler(s.bus, w, r)
	})
	return mux
}

// ListenAndServe computes the initial schedule and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if _, err := s.Recompute(ctx, "", nil); err != nil {
		return err
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Server started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}
