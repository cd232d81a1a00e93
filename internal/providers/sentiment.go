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

// SentimentClient fetches news sentiment from the upstream service.
type SentimentClient struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewSentimentClient(cfg Config, logger zerolog.Logger) *SentimentClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SentimentClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.With().Str("component", "sentiment-provider").Logger(),
	}
}

// AnalyzeSentiment implements signal.SentimentProvider.
func (c *SentimentClient) AnalyzeSentiment(ctx context.Context, ticker string) (*signal.SentimentAnalysis, error) {
	endpoint := fmt.Sprintf("%s/v1/sentiment/%s", c.cfg.BaseURL, url.PathEscape(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sentiment analysis for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sentiment analysis for %s: unexpected status %d: %s",
			ticker, resp.StatusCode, body)
	}

	var analysis signal.SentimentAnalysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("sentiment analysis for %s: decode json: %w", ticker, err)
	}
	if analysis.Ticker == "" {
		analysis.Ticker = ticker
	}
	return &analysis, nil
}
