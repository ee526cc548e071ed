// Package api exposes backtest results and live monitor snapshots over HTTP
// for dashboard consumers.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/monitor"
	"github.com/sirupsen/logrus"
)

type Server struct {
	monitor *monitor.Monitor
	logger  *logrus.Logger
	port    string

	mu     sync.RWMutex
	result *models.BacktestResult
}

// NewServer creates a Server. monitor may be nil when only backtest results
// are served.
func NewServer(m *monitor.Monitor, logger *logrus.Logger, port string) *Server {
	return &Server{
		monitor: m,
		logger:  logger,
		port:    port,
	}
}

// SetResult publishes the latest backtest result.
func (s *Server) SetResult(result *models.BacktestResult) {
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
}

func (s *Server) Start() error {
	s.logger.Infof("Starting API server on port %s", s.port)
	return http.ListenAndServe(":"+s.port, s.Handler())
}

// Handler returns the routed handler with CORS enabled for dashboard
// frontends.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/backtest/summary", s.handleSummary)
	mux.HandleFunc("/api/backtest/trades", s.handleTrades)
	mux.HandleFunc("/api/monitor/snapshots", s.handleSnapshots)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	result := s.result
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, "No backtest result available", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Summary())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	result := s.result
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, "No backtest result available", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, result.TradeRecords())
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.monitor == nil {
		s.writeJSON(w, http.StatusOK, []monitor.Snapshot{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Snapshots())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}
