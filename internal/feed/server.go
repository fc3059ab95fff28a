package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
	"github.com/muurk/farmlink/internal/version"
)

// EventsPath is where clients connect
const EventsPath = "/events"

// DefaultPort is the feed's default TCP port
const DefaultPort = 8765

// Config holds the feed server configuration
type Config struct {
	Host string
	Port int

	// CheckOrigin overrides the WebSocket origin check. Nil accepts any
	// origin; the feed is meant for the local network.
	CheckOrigin func(r *http.Request) bool
}

// Server serves a Hub over HTTP
type Server struct {
	config   *Config
	hub      *Hub
	upgrader websocket.Upgrader
	http     *http.Server

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a feed server
func New(config *Config, hub *Hub) *Server {
	s := &Server{
		config: config,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	if s.upgrader.CheckOrigin == nil {
		s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	mux := http.NewServeMux()
	mux.HandleFunc(EventsPath, s.handleEvents)
	mux.HandleFunc("/status", s.handleStatus)
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Listen binds the configured address. Start calls it if needed; calling it
// first lets the caller learn the bound port (Port 0 picks a free one).
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr(), nil
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = l
	logging.Info("Event feed listening",
		zap.String("addr", l.Addr().String()),
		zap.String("path", EventsPath),
	)
	return l.Addr(), nil
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting clients and closes every open feed connection
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down event feed...")

	// Hijacked WebSocket connections are not tracked by http.Server
	s.hub.closeAll()

	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Info("All feed connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Invalid WebSocket upgrade request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		hub:        s.hub,
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		send:       make(chan []byte, clientQueue),
	}
	if !c.hub.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.serve()
	}()
}

// Status is the /status response
type Status struct {
	Version string `json:"version"`
	Clients int    `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = jsonAPI.NewEncoder(w).Encode(Status{
		Version: version.Version,
		Clients: s.hub.Clients(),
	})
}
