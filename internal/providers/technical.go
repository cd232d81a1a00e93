// Package providers holds the upstream collaborator clients: HTTP technical
// and sentiment analysis services plus the in-process risk analyzer.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"trading-signal-engine/internal/signal"
)

// Config holds the shared HTTP client settings for both analysis services.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// TechnicalClient fetches technical analysis from the upstream service.
type TechnicalClient struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewTechnicalClient(cfg Config, logger zerolog.Logger) *TechnicalClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TechnicalClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.With().Str("component", "technical-provider").Logger(),
	}
}

// AnalyzeStock implements signal.TechnicalProvider.
func (c *TechnicalClient) AnalyzeStock(ctx context.Context, ticker string) (*signal.TechnicalAnalysis, error) {
	endpoint := fmt.Sprintf("%s/v1/technical/%s", c.cfg.BaseURL, url.PathEscape(ticker))

	var analysis signal.TechnicalAnalysis
	if err := c.getJSON(ctx, endpoint, &analysis); err != nil {
		return nil, fmt.Errorf("technical analysis for %s: %w", ticker, err)
	}
	if analysis.Ticker == "" {
		analysis.Ticker = ticker
	}
	return &analysis, nil
}

func (c *TechnicalClient) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
