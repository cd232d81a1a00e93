package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/config"
	"trading-signal-engine/internal/signal"
)

type mockService struct {
	stats *signal.EngineStats

	lastTicker  string
	lastOpts    signal.Options
	lastTickers []string

	generateErr error
	updateErr   error
}

func newMockService() *mockService {
	return &mockService{stats: signal.NewEngineStats()}
}

func (m *mockService) sampleSignal(ticker string, horizon signal.TimeHorizon) *signal.Signal {
	return &signal.Signal{
		ID:          "sig-1",
		Ticker:      ticker,
		GeneratedAt: time.Now(),
		Horizon:     horizon,
		Action:      signal.ActionBuy,
		Confidence:  0.72,
	}
}

func (m *mockService) GenerateSignal(_ context.Context, ticker string, opts signal.Options) (*signal.Signal, error) {
	m.lastTicker = ticker
	m.lastOpts = opts
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return m.sampleSignal(ticker, opts.Horizon), nil
}

func (m *mockService) GenerateBatchSignals(_ context.Context, tickers []string, opts signal.Options) (*signal.BatchResult, error) {
	m.lastTickers = tickers
	result := &signal.BatchResult{}
	for _, t := range tickers {
		result.Signals = append(result.Signals, m.sampleSignal(t, opts.Horizon))
	}
	result.Summary = signal.BatchSummary{
		TotalAnalyzed:    len(tickers),
		SignalsGenerated: len(tickers),
	}
	return result, nil
}

func (m *mockService) GenerateMultiTimeframeSignal(_ context.Context, ticker string) (*signal.MultiTimeframeResult, error) {
	m.lastTicker = ticker
	return &signal.MultiTimeframeResult{
		Ticker: ticker,
		Signals: map[signal.TimeHorizon]*signal.Signal{
			signal.HorizonShortTerm: m.sampleSignal(ticker, signal.HorizonShortTerm),
		},
		Consensus: signal.ConsensusResult{Action: signal.ActionBuy, Agreement: 1},
	}, nil
}

func (m *mockService) UpdateSignal(_ context.Context, signalID string) (*signal.Signal, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.sampleSignal("AAPL", signal.HorizonMediumTerm), nil
}

func (m *mockService) Stats() *signal.EngineStats {
	return m.stats
}

type mockHistory struct {
	lastLimit int
	signals   []*signal.Signal
}

func (m *mockHistory) ListRecentSignals(_ context.Context, ticker string, _ time.Time, limit int) ([]*signal.Signal, error) {
	m.lastLimit = limit
	return m.signals, nil
}

func newTestServer(t *testing.T, svc SignalService, history SignalHistory) *Server {
	t.Helper()
	s, err := NewServer(config.ServerConfig{Port: 0}, ServerDeps{
		Service: svc,
		History: history,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestGenerateSignalEndpoint(t *testing.T) {
	svc := newMockService()
	s := newTestServer(t, svc, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/signals/aapl", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.lastTicker != "AAPL" {
		t.Errorf("ticker should be normalized, got %q", svc.lastTicker)
	}
	if svc.lastOpts.Horizon != signal.HorizonMediumTerm {
		t.Errorf("default horizon = %s", svc.lastOpts.Horizon)
	}

	var resp struct {
		Signal *signal.Signal `json:"signal"`
		Cached bool           `json:"cached"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Cached {
		t.Error("fresh generation should report cached=false")
	}
	if resp.Signal == nil || resp.Signal.Action != signal.ActionBuy {
		t.Errorf("unexpected signal payload: %+v", resp.Signal)
	}
}

func TestGenerateSignalHonorsRequestOptions(t *testing.T) {
	svc := newMockService()
	s := newTestServer(t, svc, nil)

	body := `{"horizon": "LONG_TERM", "depth": "COMPREHENSIVE", "include_patterns": false}`
	w := doRequest(s, http.MethodPost, "/api/v1/signals/MSFT", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.lastOpts.Horizon != signal.HorizonLongTerm {
		t.Errorf("horizon = %s", svc.lastOpts.Horizon)
	}
	if svc.lastOpts.Depth != signal.DepthComprehensive {
		t.Errorf("depth = %s", svc.lastOpts.Depth)
	}
	if svc.lastOpts.IncludePatterns {
		t.Error("include_patterns=false was not honored")
	}
}

func TestGenerateSignalRejectsUnknownHorizon(t *testing.T) {
	s := newTestServer(t, newMockService(), nil)

	w := doRequest(s, http.MethodPost, "/api/v1/signals/AAPL", `{"horizon": "WEEKLY"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGenerateSignalUpstreamFailure(t *testing.T) {
	svc := newMockService()
	svc.generateErr = fmt.Errorf("technical provider unreachable")
	s := newTestServer(t, svc, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/signals/AAPL", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestBatchEndpointNormalizesTickers(t *testing.T) {
	svc := newMockService()
	s := newTestServer(t, svc, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/signals/batch",
		`{"tickers": ["aapl", " msft ", ""]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(svc.lastTickers) != 2 || svc.lastTickers[0] != "AAPL" || svc.lastTickers[1] != "MSFT" {
		t.Errorf("tickers = %v", svc.lastTickers)
	}

	var result signal.BatchResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Summary.TotalAnalyzed != 2 {
		t.Errorf("total analyzed = %d", result.Summary.TotalAnalyzed)
	}
}

func TestBatchEndpointRequiresTickers(t *testing.T) {
	s := newTestServer(t, newMockService(), nil)

	for _, body := range []string{`{}`, `{"tickers": []}`, `{"tickers": ["  "]}`} {
		if w := doRequest(s, http.MethodPost, "/api/v1/signals/batch", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestBatchEndpointCapsTickerCount(t *testing.T) {
	s := newTestServer(t, newMockService(), nil)

	tickers := make([]string, maxBatchTickers+1)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%d", i)
	}
	body, _ := json.Marshal(map[string]interface{}{"tickers": tickers})

	if w := doRequest(s, http.MethodPost, "/api/v1/signals/batch", string(body)); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTimeframesEndpoint(t *testing.T) {
	svc := newMockService()
	s := newTestServer(t, svc, nil)

	w := doRequest(s, http.MethodGet, "/api/v1/signals/nvda/timeframes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.lastTicker != "NVDA" {
		t.Errorf("ticker = %q", svc.lastTicker)
	}
}

func TestUpdateSignalNotFound(t *testing.T) {
	svc := newMockService()
	svc.updateErr = fmt.Errorf("fetching signal abc: %w", signal.ErrSignalNotFound)
	s := newTestServer(t, svc, nil)

	w := doRequest(s, http.MethodPost, "/api/v1/signals/update/abc", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestUpdateSignalReturnsFreshSignal(t *testing.T) {
	s := newTestServer(t, newMockService(), nil)

	w := doRequest(s, http.MethodPost, "/api/v1/signals/update/sig-0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		PreviousID string `json:"previous_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PreviousID != "sig-0" {
		t.Errorf("previous_id = %q", resp.PreviousID)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	history := &mockHistory{signals: []*signal.Signal{{ID: "a", Ticker: "AAPL"}}}
	s := newTestServer(t, newMockService(), history)

	w := doRequest(s, http.MethodGet, "/api/v1/signals/AAPL/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if history.lastLimit != 5 {
		t.Errorf("limit = %d", history.lastLimit)
	}

	if w := doRequest(s, http.MethodGet, "/api/v1/signals/AAPL/history?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", w.Code)
	}
}

func TestHistoryEndpointWithoutStore(t *testing.T) {
	s := newTestServer(t, newMockService(), nil)

	if w := doRequest(s, http.MethodGet, "/api/v1/signals/AAPL/history", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, newMockService(), nil)

	w := doRequest(s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestStatsEndpoint(t *testing.T) {
	svc := newMockService()
	svc.stats.RecordSignal(&signal.Signal{Action: signal.ActionBuy, Confidence: 0.8})
	s := newTestServer(t, svc, nil)

	w := doRequest(s, http.MethodGet, "/api/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Engine    signal.StatsSnapshot `json:"engine"`
		WSClients int                  `json:"ws_clients"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Engine.SignalsGenerated != 1 {
		t.Errorf("signals generated = %d", resp.Engine.SignalsGenerated)
	}
}
