package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/config"
	"github.com/dbehnke/btbb-nexus/pkg/logger"
)

const (
	// dashboardDir holds an optional dashboard build
	dashboardDir    = "frontend/dist"
	shutdownTimeout = 5 * time.Second
)

// Server serves the scan dashboard, its REST API and the live packet feed
type Server struct {
	config config.WebConfig
	logger *logger.Logger
	server *http.Server
	hub    *WebSocketHub
	api    *API
	deps   Dependencies
	addr   string
	ready  chan struct{}
	mu     sync.RWMutex
}

// NewServer creates a new web server instance
func NewServer(cfg config.WebConfig, deps Dependencies, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	log = log.WithComponent("web")
	hub := NewWebSocketHub(log)
	return &Server{
		config: cfg,
		logger: log,
		hub:    hub,
		api:    NewAPI(deps, hub, log),
		deps:   deps,
		ready:  make(chan struct{}),
	}
}

// Handler builds the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.api.HandleStatus)
	mux.HandleFunc("/api/piconets", s.api.HandlePiconets)
	mux.HandleFunc("/api/packets", s.api.HandlePackets)
	mux.HandleFunc("/api/vendors", s.api.HandleVendors)
	mux.Handle("/ws", s.hub.Handler())

	if fi, err := os.Stat(dashboardDir); err == nil && fi.IsDir() {
		s.logger.Info("Serving dashboard", logger.String("dir", dashboardDir))
		mux.Handle("/", dashboard{dir: dashboardDir})
	}
	return mux
}

// dashboard serves a single page app build. Unknown paths get index.html so
// client side routes such as /piconets/9e8b33 survive a reload.
type dashboard struct {
	dir string
}

func (d dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if name != "/" {
		full := filepath.Join(d.dir, filepath.FromSlash(name))
		if fi, err := os.Stat(full); err == nil && !fi.IsDir() {
			http.ServeFile(w, r, full)
			return
		}
	}
	http.ServeFile(w, r, filepath.Join(d.dir, "index.html"))
}

// Start serves until ctx is done. A disabled server returns immediately.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Web server is disabled")
		return nil
	}

	go s.hub.Run(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Port 0 binds an ephemeral port; record the real one
	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("Dashboard listening", logger.String("address", s.GetAddr()))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down web server",
			logger.Int("websocket_clients", s.hub.GetClientCount()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Ready is closed once the server is listening
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// GetAddr returns the address the server is listening on
func (s *Server) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// GetHub returns the WebSocket hub
func (s *Server) GetHub() *WebSocketHub {
	return s.hub
}

// handleHealth reports liveness plus which scan components are attached
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, scanned := s.hub.LastScan()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "btbb-nexus",
		"time":    time.Now().Unix(),
		"components": map[string]bool{
			"store":   s.deps.Piconets != nil && s.deps.Packets != nil,
			"vendors": s.deps.Vendors != nil,
			"tracker": s.deps.Tracker != nil,
			"metrics": s.deps.Stats != nil,
		},
		"scanned": scanned,
	}); err != nil {
		s.logger.Warn("Failed to encode health response", logger.Error(err))
	}
}
