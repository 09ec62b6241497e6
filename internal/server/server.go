// Package server exposes the backtest engine over HTTP: a run endpoint, a
// single-point evaluation endpoint, a health probe, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/agent"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/backtest"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/feedback"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// checkDelay is how long after a point decision its outcome is verified.
const checkDelay = 7 * 24 * time.Hour

// Server serves the HTTP API for backtests.
type Server struct {
	engine     *backtest.Engine
	checks     feedback.Store
	log        *logger.Logger
	httpServer *http.Server
	listener   net.Listener
}

// NewServer wires the engine into an HTTP server. Start must be called to
// begin listening. checks may be nil to disable outcome scheduling.
func NewServer(engine *backtest.Engine, checks feedback.Store, log *logger.Logger) *Server {
	return &Server{
		engine: engine,
		checks: checks,
		log:    log,
	}
}

// Router builds the route table. Exposed so tests can drive handlers without
// a listener.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/backtest", s.handleBacktest).Methods("POST")
	router.HandleFunc("/api/backtest/point", s.handlePoint).Methods("POST")
	router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

// Start begins serving on the given address. ":0" picks a free port.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to listen on %s", address)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("http server listening", zap.String("address", listener.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Addr reports the bound address, useful when Start was given ":0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeConfig(w, r)
	if !ok {
		return
	}

	result, err := s.engine.Run(r.Context(), cfg)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, backtestResponse{
		Summary: result.Summary,
		Trades:  result.Trades,
	})
}

func (s *Server) handlePoint(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeConfig(w, r)
	if !ok {
		return
	}

	round, bar, err := s.engine.EvaluatePoint(r.Context(), cfg)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.scheduleCheck(r.Context(), cfg.Symbol, round.Decision.Action, bar)

	s.writeJSON(w, http.StatusOK, pointResponse{
		Bar:           bar,
		Decision:      round.Decision,
		Oversight:     round.Oversight,
		Retrospective: round.Retrospective,
		MemoriesUsed:  round.MemoriesUsed,
	})
}

// scheduleCheck queues an outcome verification so the feedback sweeper can
// later score the decision against the realized price. Best-effort.
func (s *Server) scheduleCheck(ctx context.Context, symbol, action string, bar types.Bar) {
	if s.checks == nil {
		return
	}

	id, err := s.checks.Schedule(ctx, feedback.Check{
		Ticker:        symbol,
		Action:        action,
		DecisionPrice: bar.Close,
		DecidedAt:     bar.Time,
		CheckAt:       bar.Time.Add(checkDelay),
	})
	if err != nil {
		s.log.Warn("failed to schedule outcome check",
			zap.String("symbol", symbol),
			zap.Error(err),
		)

		return
	}

	s.log.Info("scheduled outcome check",
		zap.String("symbol", symbol),
		zap.String("action", action),
		zap.String("check_id", id),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeConfig reads the request body over a default config so omitted
// fields keep sensible values. The symbol must still be supplied.
func (s *Server) decodeConfig(w http.ResponseWriter, r *http.Request) (backtest.Config, bool) {
	cfg := backtest.DefaultConfig("")

	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "invalid request body: " + err.Error(),
		})

		return backtest.Config{}, false
	}

	if err := cfg.Validate(); err != nil {
		s.writeError(w, err)

		return backtest.Config{}, false
	}

	return cfg, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.HasCode(err, errors.ErrCodeMarketDataFetchFailed),
		errors.HasCode(err, errors.ErrCodeGenerationFailed),
		errors.HasCode(err, errors.ErrCodeEmbeddingFailed),
		errors.HasCode(err, errors.ErrCodeIndexUnavailable):
		status = http.StatusBadGateway
	}

	s.log.Warn("request failed",
		zap.Int("status", status),
		zap.Error(err),
	)

	s.writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  int(errors.GetCode(err)),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

type backtestResponse struct {
	Summary types.RunSummary    `json:"summary"`
	Trades  []types.TradeRecord `json:"trades"`
}

type pointResponse struct {
	Bar           types.Bar                  `json:"bar"`
	Decision      agent.TraderPayload        `json:"decision"`
	Oversight     agent.OversightPayload     `json:"oversight"`
	Retrospective agent.RetrospectivePayload `json:"retrospective"`
	MemoriesUsed  []string                   `json:"memories_used,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}
