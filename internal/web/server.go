// Package web is the WebSocket bridge between the browser extension and the
// generation pipeline. The extension connects to /ws with the auth token
// printed at startup; every generation request and its streaming responses
// travel over that connection as JSON messages.
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/testweaver-ai/testweaver/internal/config"
	"github.com/testweaver-ai/testweaver/internal/generator"
	"github.com/testweaver-ai/testweaver/internal/logger"
)

const authTokenLength = 32

// Server represents the bridge server
type Server struct {
	addr       string
	authToken  string
	httpServer *http.Server
	cfg        *config.Config
	gen        *generator.Generator
	hub        *Hub
	debug      bool
}

// NewServer creates a new bridge server
func NewServer(cfg *config.Config, gen *generator.Generator, debug bool) (*Server, error) {
	token, err := generateAuthToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate auth token: %w", err)
	}

	return &Server{
		addr:      cfg.ListenAddr,
		authToken: token,
		cfg:       cfg,
		gen:       gen,
		hub:       NewHub(),
		debug:     debug,
	}, nil
}

// Start starts the bridge server
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:        s.addr,
		Handler:     mux,
		ReadTimeout: 60 * time.Second,
		// No write timeout: a WebSocket connection outlives any sane value
	}

	go func() {
		logger.Info("Bridge server listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the bridge server, telling connected extensions first so they
// can surface the disconnect instead of silently losing the socket.
func (s *Server) Stop() error {
	logger.Info("Stopping bridge server with %d connected clients", s.hub.ClientCount())

	s.hub.Broadcast(&WebMessage{
		Type:    MessageTypeSystem,
		Content: "host shutting down",
	})
	s.hub.Close()

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// URL returns the WebSocket URL with auth token, for the extension to connect to
func (s *Server) URL() string {
	return fmt.Sprintf("ws://%s/ws?token=%s", s.addr, s.authToken)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	queryToken := r.URL.Query().Get("token")
	if queryToken != s.authToken {
		logger.Warn("WebSocket connection rejected: invalid auth token")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Extension pages carry a chrome-extension:// origin; the token
			// is the actual gate
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.gen, s.cfg, s.debug)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// generateAuthToken generates a random auth token
func generateAuthToken() (string, error) {
	bytes := make([]byte, authTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
