// Package server exposes a small gin HTTP server reporting a running
// trainer's status, generalizing the REST API wiring the teacher's
// hasher-host orchestrator builds around gin.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lab/tagger/internal/logging"
)

// Status is the training snapshot served at GET /status, and the JSON shape
// WriteStatusFile writes to disk for cmd/monitor to tail directly.
type Status struct {
	WeightsLen   uint64    `json:"weights_len"`
	Epoch        int       `json:"epoch"`
	TrainError   float64   `json:"train_error"`
	TuneError    float64   `json:"tune_error"`
	BestError    float64   `json:"best_error"`
	PatienceLeft int       `json:"patience_left"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Server wraps a gin engine behind a mutex-guarded Status that callers
// update with SetStatus. Neither pkg/train nor cmd/tagger calls SetStatus,
// so a server started by `tagger train -serve` reports the zero Status.
type Server struct {
	mu     sync.RWMutex
	status Status
	logger *logging.Logger
	srv    *http.Server
}

// New builds a Server listening on addr once Start is called.
func New(addr string, logger *logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{logger: logger}
	router.GET("/status", s.handleStatus)
	router.GET("/healthz", s.handleHealthz)

	s.srv = &http.Server{Addr: addr, Handler: router}
	return s
}

// SetStatus updates the status served at GET /status.
func (s *Server) SetStatus(st Status) {
	st.UpdatedAt = time.Now()
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the server in the background, logging any error other than a
// clean shutdown.
func (s *Server) Start() {
	go func() {
		if s.logger != nil {
			s.logger.Info("status server listening on %s", s.srv.Addr)
		}
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("status server error: %v", err)
			}
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// WriteStatusFile is an alternative to the live endpoint: it stamps the
// same Status as JSON to a file that cmd/monitor -file can tail. The tagger
// CLI does not call it.
func WriteStatusFile(path string, st Status) error {
	st.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to atomic-save status: %w", err)
	}
	return nil
}
