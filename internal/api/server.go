package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/backtester"
	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/data"
	"github.com/tradewind-labs/papertrader/internal/portfolio"
	"github.com/tradewind-labs/papertrader/internal/regime"
	"github.com/tradewind-labs/papertrader/internal/risk"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

// Server exposes trader state over HTTP and WebSocket.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	hub        *Hub
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	book       *portfolio.Book
	classifier *regime.Classifier
	profiler   *risk.Profiler
	btEngine   *backtester.Engine
	dataStore  *data.Store

	mu        sync.RWMutex
	signals   []types.StrategySignal
	regime    *types.RegimeAssessment
	backtests map[string]*backtestRun
}

type backtestRun struct {
	Status string                `json:"status"` // running | complete | failed
	Error  string                `json:"error,omitempty"`
	Result *types.BacktestResult `json:"result,omitempty"`
}

// NewServer wires the HTTP surface around the trading components.
func NewServer(cfg config.ServerConfig, logger *zap.Logger, book *portfolio.Book, classifier *regime.Classifier, profiler *risk.Profiler, btEngine *backtester.Engine, dataStore *data.Store) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		hub:        NewHub(logger),
		router:     mux.NewRouter(),
		book:       book,
		classifier: classifier,
		profiler:   profiler,
		btEngine:   btEngine,
		dataStore:  dataStore,
		backtests:  make(map[string]*backtestRun),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

// Hub returns the WebSocket hub for cycle broadcasts.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetCycle records the latest cycle's signals and regime for the read
// endpoints.
func (s *Server) SetCycle(signals []types.StrategySignal, assessment types.RegimeAssessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = signals
	s.regime = &assessment
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/regime", s.handleRegime).Methods(http.MethodGet)
	api.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet)
	api.HandleFunc("/positions", s.handlePositions).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	api.HandleFunc("/performance", s.handlePerformance).Methods(http.MethodGet)
	api.HandleFunc("/risk", s.handleRisk).Methods(http.MethodGet)
	api.HandleFunc("/backtest/run", s.handleBacktestRun).Methods(http.MethodPost)
	api.HandleFunc("/backtest/{id}", s.handleBacktestGet).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start runs the hub and serves HTTP until Shutdown.
func (s *Server) Start() error {
	go s.hub.Run()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("api server listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"time":       time.Now().UTC(),
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleRegime(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	current := s.regime
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"current": current,
		"history": s.classifier.History(),
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	signals := s.signals
	s.mu.RUnlock()
	if signals == nil {
		signals = []types.StrategySignal{}
	}
	s.writeJSON(w, http.StatusOK, signals)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.book.Positions())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.book.ClosedTrades())
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.book.Performance())
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	current := s.regime
	s.mu.RUnlock()

	assessment := types.RegimeAssessment{}
	if current != nil {
		assessment = *current
	}
	result := s.profiler.AssessPortfolio(s.book.Positions(), s.book.Performance(), assessment)
	s.writeJSON(w, http.StatusOK, result)
}

type backtestRequest struct {
	MarketTicker    string  `json:"marketTicker"`
	VIXTicker       string  `json:"vixTicker"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	StartingBalance float64 `json:"startingBalance"`
	RiskPerTradePct float64 `json:"riskPerTradePct"`
	MaxPositions    int     `json:"maxPositions"`
}

func (s *Server) handleBacktestRun(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
		return
	}

	btCfg := types.BacktestConfig{
		ID:              uuid.New().String(),
		MarketTicker:    req.MarketTicker,
		VIXTicker:       req.VIXTicker,
		Start:           start,
		End:             end,
		RiskPerTradePct: req.RiskPerTradePct,
		MaxPositions:    req.MaxPositions,
	}
	if req.StartingBalance > 0 {
		btCfg.StartingBalance = decimal.NewFromFloat(req.StartingBalance)
	}

	s.mu.Lock()
	s.backtests[btCfg.ID] = &backtestRun{Status: "running"}
	s.mu.Unlock()
	ObserveBacktest()

	go func() {
		result, err := s.btEngine.Run(btCfg, s.dataStore)
		s.mu.Lock()
		defer s.mu.Unlock()
		run := s.backtests[btCfg.ID]
		if err != nil {
			run.Status = "failed"
			run.Error = err.Error()
			s.logger.Error("backtest failed", zap.String("id", btCfg.ID), zap.Error(err))
			return
		}
		run.Status = "complete"
		run.Result = result
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": btCfg.ID, "status": "running"})
}

func (s *Server) handleBacktestGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.RLock()
	run, ok := s.backtests[id]
	var snapshot backtestRun
	if ok {
		snapshot = *run
	}
	s.mu.RUnlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown backtest id")
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	client := NewClient(uuid.New().String(), s.hub, conn)
	s.hub.register <- client
	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
