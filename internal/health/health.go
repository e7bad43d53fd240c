package health

import (
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/felixbrucker/chia-canary/internal/store"
)

// Server maps store state onto a grpc health server.
type Server struct {
	store *store.Store
	hs    *health.Server

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

// New creates a Server backed by st. The overall service starts SERVING.
func New(st *store.Store) *Server {
	return &Server{
		store: st,
		hs:    health.NewServer(),
		last:  make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
}

// Attach refreshes the serving status after every stored event.
func (s *Server) Attach() {
	s.store.Subscribe(func(store.Record) { s.Refresh() })
}

// Register adds the health service to gs.
func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.hs)
}

// Refresh recomputes every service status from the store. Only changed
// statuses are pushed so Watch streams see transitions, not repeats.
func (s *Server) Refresh() {
	overall := healthpb.HealthCheckResponse_SERVING
	next := make(map[string]healthpb.HealthCheckResponse_ServingStatus)
	for _, st := range s.store.List() {
		status := healthpb.HealthCheckResponse_SERVING
		if st.Degraded() {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		next[Service(st.Log)] = status
	}
	next[""] = overall

	s.mu.Lock()
	defer s.mu.Unlock()
	for svc, status := range next {
		if prev, ok := s.last[svc]; ok && prev == status {
			continue
		}
		s.hs.SetServingStatus(svc, status)
		s.last[svc] = status
	}
}

// Shutdown sets every service to NOT_SERVING. Later updates are ignored.
func (s *Server) Shutdown() {
	s.hs.Shutdown()
}

// Service returns the health service name of a log.
func Service(log string) string {
	return strings.ToLower(log)
}
