package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradewind-labs/papertrader/internal/backtester"
	"github.com/tradewind-labs/papertrader/internal/config"
	"github.com/tradewind-labs/papertrader/internal/data"
	"github.com/tradewind-labs/papertrader/internal/portfolio"
	"github.com/tradewind-labs/papertrader/internal/regime"
	"github.com/tradewind-labs/papertrader/internal/risk"
	"github.com/tradewind-labs/papertrader/pkg/types"
)

func testServer() *Server {
	cfg := config.Default()
	logger := zap.NewNop()

	book := portfolio.NewBook(cfg, logger)
	classifier := regime.NewClassifier(cfg.Regime, logger)
	profiler := risk.NewProfiler(cfg.Risk, cfg.Trader, logger)
	engine := backtester.NewEngine(cfg, logger)
	store := data.NewStore("", logger)

	return NewServer(cfg.Server, logger, book, classifier, profiler, engine, store)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer()

	rec := doRequest(s, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("status field = %v, want ok", payload["status"])
	}
}

func TestPositionsEndpointEmpty(t *testing.T) {
	s := testServer()

	rec := doRequest(s, http.MethodGet, "/api/v1/positions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var positions []types.Position
	if err := json.Unmarshal(rec.Body.Bytes(), &positions); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("positions = %v, want empty", positions)
	}
}

func TestSignalsEndpointAfterCycle(t *testing.T) {
	s := testServer()

	s.SetCycle([]types.StrategySignal{
		{Strategy: types.StrategyBreakout, Action: types.ActionEnterNow},
	}, types.RegimeAssessment{Regime: types.RegimeRangeBound})

	rec := doRequest(s, http.MethodGet, "/api/v1/signals", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var signals []types.StrategySignal
	if err := json.Unmarshal(rec.Body.Bytes(), &signals); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(signals) != 1 || signals[0].Strategy != types.StrategyBreakout {
		t.Errorf("signals = %+v, want the recorded cycle", signals)
	}
}

func TestRegimeEndpointBeforeFirstCycle(t *testing.T) {
	s := testServer()

	rec := doRequest(s, http.MethodGet, "/api/v1/regime", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload struct {
		Current *types.RegimeAssessment `json:"current"`
		History []types.RegimeDay       `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Current != nil {
		t.Errorf("current = %+v, want null before the first cycle", payload.Current)
	}
}

func TestBacktestRunRejectsBadDates(t *testing.T) {
	s := testServer()

	rec := doRequest(s, http.MethodPost, "/api/v1/backtest/run",
		`{"marketTicker":"SPY","start":"March 1","end":"2024-03-31"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a malformed date", rec.Code)
	}
}

func TestBacktestGetPollsWhileRunSettles(t *testing.T) {
	s := testServer()

	// The empty data store has no market ticker, so the run settles as
	// failed; polling while the goroutine finishes must always return a
	// coherent snapshot.
	rec := doRequest(s, http.MethodPost, "/api/v1/backtest/run",
		`{"marketTicker":"SPY","vixTicker":"VIX","start":"2024-02-01","end":"2024-02-29"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var accepted map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	id := accepted["id"]
	if id == "" {
		t.Fatal("run response carried no id")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doRequest(s, http.MethodGet, "/api/v1/backtest/"+id, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var run struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		switch run.Status {
		case "running":
		case "failed":
			if run.Error == "" {
				t.Error("failed run carried no error message")
			}
			return
		default:
			t.Fatalf("status = %q, want running or failed", run.Status)
		}
		if time.Now().After(deadline) {
			t.Fatal("backtest never settled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBacktestGetUnknownID(t *testing.T) {
	s := testServer()

	rec := doRequest(s, http.MethodGet, "/api/v1/backtest/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unknown backtest", rec.Code)
	}
}

func TestRiskEndpoint(t *testing.T) {
	s := testServer()

	rec := doRequest(s, http.MethodGet, "/api/v1/risk", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var assessment types.RiskAssessment
	if err := json.Unmarshal(rec.Body.Bytes(), &assessment); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if assessment.Recommendation != types.RecommendMonitor {
		t.Errorf("recommendation = %s, want monitor", assessment.Recommendation)
	}
}
