package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/signal"
)

func TestTechnicalClientDecodesResponse(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ticker": "AAPL",
			"overall_signal": "BUY",
			"confidence": 0.8,
			"trend": "UPTREND",
			"rsi": 58,
			"current_price": 185,
			"volatility": 2.2,
			"volume_ratio": 1.6,
			"support_levels": [170],
			"resistance_levels": [195]
		}`))
	}))
	defer srv.Close()

	c := NewTechnicalClient(Config{BaseURL: srv.URL, APIKey: "k1"}, zerolog.Nop())
	analysis, err := c.AnalyzeStock(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("AnalyzeStock: %v", err)
	}

	if gotPath != "/v1/technical/AAPL" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "k1" {
		t.Errorf("api key header = %q", gotKey)
	}
	if analysis.OverallSignal != signal.ActionBuy || analysis.CurrentPrice != 185 {
		t.Errorf("decoded analysis mismatch: %+v", analysis)
	}
}

func TestTechnicalClientSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no data", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewTechnicalClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := c.AnalyzeStock(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestSentimentClientDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"sentiment_score": 0.6,
			"sentiment_label": "bullish",
			"impact": "POSITIVE",
			"confidence": 0.7,
			"news_count": 24
		}`))
	}))
	defer srv.Close()

	c := NewSentimentClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	analysis, err := c.AnalyzeSentiment(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("AnalyzeSentiment: %v", err)
	}
	if analysis.Ticker != "MSFT" {
		t.Errorf("ticker should be backfilled, got %q", analysis.Ticker)
	}
	if analysis.SentimentScore != 0.6 || analysis.NewsCount != 24 {
		t.Errorf("decoded sentiment mismatch: %+v", analysis)
	}
}

func calmTechnical() *signal.TechnicalAnalysis {
	return &signal.TechnicalAnalysis{
		Ticker:        "AAPL",
		OverallSignal: signal.ActionBuy,
		CurrentPrice:  185,
		Volatility:    1.5,
		VolumeRatio:   1.2,
		SupportLevels: []float64{170},
	}
}

func richSentiment() *signal.SentimentAnalysis {
	return &signal.SentimentAnalysis{SentimentScore: 0.5, NewsCount: 30, Confidence: 0.7}
}

func TestRiskAnalyzerCalmMarketIsLowRisk(t *testing.T) {
	r := NewRiskAnalyzer()
	sig := &signal.Signal{Action: signal.ActionBuy, Agreement: signal.AgreementResult{Overall: 1}}

	out, err := r.AnalyzeSignalRisk(context.Background(), "AAPL", sig, calmTechnical(), richSentiment())
	if err != nil {
		t.Fatalf("AnalyzeSignalRisk: %v", err)
	}
	if out.OverallRisk != signal.RiskLow {
		t.Errorf("risk = %s (score %.3f), want LOW", out.OverallRisk, out.RiskScore)
	}
	// Stop should sit just below the 170 support.
	if out.StopLossLevel <= 0 || out.StopLossLevel >= 170 {
		t.Errorf("stop = %.2f, want just below support 170", out.StopLossLevel)
	}
	if out.MaxPositionSize <= 0 || out.MaxPositionSize > 0.10 {
		t.Errorf("max position = %.3f, want (0, 0.10]", out.MaxPositionSize)
	}
}

func TestRiskAnalyzerVolatileDisagreementIsHighRisk(t *testing.T) {
	r := NewRiskAnalyzer()
	tech := calmTechnical()
	tech.Volatility = 8
	tech.Returns = []float64{-5, -6, 3, -8, 2}
	tech.VolumeRatio = 0.3
	sent := &signal.SentimentAnalysis{SentimentScore: -0.2, NewsCount: 2}
	sig := &signal.Signal{Action: signal.ActionBuy, Agreement: signal.AgreementResult{Overall: 0.2}}

	out, err := r.AnalyzeSignalRisk(context.Background(), "AAPL", sig, tech, sent)
	if err != nil {
		t.Fatalf("AnalyzeSignalRisk: %v", err)
	}
	if out.OverallRisk != signal.RiskHigh {
		t.Errorf("risk = %s (score %.3f), want HIGH", out.OverallRisk, out.RiskScore)
	}
	if len(out.Warnings) < 3 {
		t.Errorf("expected multiple warnings, got %v", out.Warnings)
	}
	if out.MaxPositionSize >= 0.10*0.7 {
		t.Errorf("high risk should cut position size sharply, got %.3f", out.MaxPositionSize)
	}
}

func TestRiskAnalyzerDeterministic(t *testing.T) {
	r := NewRiskAnalyzer()
	sig := &signal.Signal{Action: signal.ActionBuy, Agreement: signal.AgreementResult{Overall: 0.8}}

	a, err := r.AnalyzeSignalRisk(context.Background(), "AAPL", sig, calmTechnical(), richSentiment())
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.AnalyzeSignalRisk(context.Background(), "AAPL", sig, calmTechnical(), richSentiment())
	if err != nil {
		t.Fatal(err)
	}
	if a.RiskScore != b.RiskScore || a.OverallRisk != b.OverallRisk || a.StopLossLevel != b.StopLossLevel {
		t.Errorf("risk assessment must be deterministic: %+v vs %+v", a, b)
	}
}

func TestRiskAnalyzerSellSideStopAboveResistance(t *testing.T) {
	r := NewRiskAnalyzer()
	tech := calmTechnical()
	tech.ResistanceLevels = []float64{195}
	sig := &signal.Signal{Action: signal.ActionSell, Agreement: signal.AgreementResult{Overall: 0.9}}

	out, err := r.AnalyzeSignalRisk(context.Background(), "AAPL", sig, tech, richSentiment())
	if err != nil {
		t.Fatal(err)
	}
	if out.StopLossLevel <= 195 {
		t.Errorf("sell-side stop = %.2f, want above resistance 195", out.StopLossLevel)
	}
}
