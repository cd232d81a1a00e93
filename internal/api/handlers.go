package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trading-signal-engine/internal/signal"
)

const maxBatchTickers = 50

// generateRequest is the optional body for POST /signals/:ticker. A missing
// body selects the defaults.
type generateRequest struct {
	Horizon         signal.TimeHorizon   `json:"horizon"`
	RiskTolerance   string               `json:"risk_tolerance"`
	Depth           signal.AnalysisDepth `json:"depth"`
	IncludePatterns *bool                `json:"include_patterns"`
	IncludeBacktest bool                 `json:"include_backtest"`
	CustomWeights   *signal.Weights      `json:"custom_weights"`
}

func (r generateRequest) options() signal.Options {
	opts := signal.DefaultOptions()
	if r.Horizon != "" {
		opts.Horizon = r.Horizon
	}
	if r.Depth != "" {
		opts.Depth = r.Depth
	}
	if r.IncludePatterns != nil {
		opts.IncludePatterns = *r.IncludePatterns
	}
	opts.RiskTolerance = r.RiskTolerance
	opts.IncludeBacktest = r.IncludeBacktest
	opts.CustomWeights = r.CustomWeights
	return opts
}

type batchRequest struct {
	Tickers []string `json:"tickers" binding:"required"`
	generateRequest
}

func validHorizon(h signal.TimeHorizon) bool {
	if h == "" {
		return true
	}
	for _, known := range signal.AllHorizons() {
		if h == known {
			return true
		}
	}
	return false
}

func normalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func (s *Server) recordLatency(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordLatency(operation, time.Since(start).Seconds())
	}
}

// handleGenerateSignal serves POST /api/v1/signals/:ticker. A fresh result is
// cached; ?refresh=true bypasses the cache.
func (s *Server) handleGenerateSignal(c *gin.Context) {
	start := time.Now()
	ticker := normalizeTicker(c.Param("ticker"))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}

	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}
	if !validHorizon(req.Horizon) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown horizon: " + string(req.Horizon)})
		return
	}
	opts := req.options()

	refresh := c.Query("refresh") == "true"
	if !refresh {
		if cached := s.sigCache.GetSignal(c.Request.Context(), ticker, opts.Horizon); cached != nil {
			if s.metrics != nil {
				s.metrics.RecordCache("hit")
			}
			c.JSON(http.StatusOK, gin.H{"signal": cached, "cached": true})
			return
		}
		if s.metrics != nil {
			s.metrics.RecordCache("miss")
		}
	}

	sig, err := s.service.GenerateSignal(c.Request.Context(), ticker, opts)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordFailure("generate")
		}
		s.log.Error().Err(err).Str("ticker", ticker).Msg("signal generation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.sigCache.PutSignal(c.Request.Context(), sig)
	if s.metrics != nil {
		s.metrics.RecordSignal(string(sig.Action), string(sig.Horizon), sig.Confidence)
	}
	s.recordLatency("generate", start)

	c.JSON(http.StatusOK, gin.H{"signal": sig, "cached": false})
}

// handleBatchSignals serves POST /api/v1/signals/batch.
func (s *Server) handleBatchSignals(c *gin.Context) {
	start := time.Now()

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if !validHorizon(req.Horizon) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown horizon: " + string(req.Horizon)})
		return
	}

	tickers := make([]string, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		if t = normalizeTicker(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one ticker is required"})
		return
	}
	if len(tickers) > maxBatchTickers {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "too many tickers, maximum is " + strconv.Itoa(maxBatchTickers),
		})
		return
	}

	result, err := s.service.GenerateBatchSignals(c.Request.Context(), tickers, req.options())
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordFailure("batch")
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	for _, sig := range result.Signals {
		s.sigCache.PutSignal(c.Request.Context(), sig)
		if s.metrics != nil {
			s.metrics.RecordSignal(string(sig.Action), string(sig.Horizon), sig.Confidence)
		}
	}
	if s.events != nil {
		s.events.PublishBatchCompleted(result.Summary)
	}
	s.recordLatency("batch", start)

	c.JSON(http.StatusOK, result)
}

// handleTimeframes serves GET /api/v1/signals/:ticker/timeframes.
func (s *Server) handleTimeframes(c *gin.Context) {
	start := time.Now()
	ticker := normalizeTicker(c.Param("ticker"))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}

	if cached := s.sigCache.GetTimeframes(c.Request.Context(), ticker); cached != nil {
		if s.metrics != nil {
			s.metrics.RecordCache("hit")
		}
		c.JSON(http.StatusOK, gin.H{"analysis": cached, "cached": true})
		return
	}
	if s.metrics != nil {
		s.metrics.RecordCache("miss")
	}

	result, err := s.service.GenerateMultiTimeframeSignal(c.Request.Context(), ticker)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordFailure("timeframes")
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.sigCache.PutTimeframes(c.Request.Context(), ticker, result)
	s.recordLatency("timeframes", start)

	c.JSON(http.StatusOK, gin.H{"analysis": result, "cached": false})
}

// handleUpdateSignal serves POST /api/v1/signals/update/:id. It re-evaluates
// an existing signal and reports whether the recommendation moved.
func (s *Server) handleUpdateSignal(c *gin.Context) {
	start := time.Now()
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signal id is required"})
		return
	}

	sig, err := s.service.UpdateSignal(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, signal.ErrSignalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "signal not found: " + id})
			return
		}
		if s.metrics != nil {
			s.metrics.RecordFailure("update")
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	s.sigCache.Invalidate(c.Request.Context(), sig.Ticker)
	if s.events != nil {
		s.events.PublishSignalUpdated(id, sig)
	}
	s.recordLatency("update", start)

	c.JSON(http.StatusOK, gin.H{"signal": sig, "previous_id": id})
}

// handleHistory serves GET /api/v1/signals/:ticker/history.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal history is not available"})
		return
	}

	ticker := normalizeTicker(c.Param("ticker"))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = v
	}

	days := 30
	if raw := c.Query("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = v
	}
	since := time.Now().AddDate(0, 0, -days)

	signals, err := s.history.ListRecentSignals(c.Request.Context(), ticker, since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker":  ticker,
		"count":   len(signals),
		"signals": signals,
	})
}

// handleStats serves GET /api/v1/stats.
func (s *Server) handleStats(c *gin.Context) {
	resp := gin.H{
		"engine":     s.service.Stats().Snapshot(),
		"ws_clients": s.wsHub.ClientCount(),
	}
	if s.cacheSvc != nil {
		resp["cache"] = s.cacheSvc.GetStats()
	}
	c.JSON(http.StatusOK, resp)
}

// handleHealth serves GET /health. The engine itself has no state to probe;
// health reflects the attached backing services.
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if s.db != nil {
		if err := s.db.HealthCheck(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if s.cacheSvc != nil {
		// Redis being down degrades caching but not signal generation.
		if s.cacheSvc.IsHealthy() {
			checks["redis"] = "ok"
		} else {
			checks["redis"] = "degraded"
		}
	}
	if s.secrets != nil && s.secrets.IsEnabled() {
		if err := s.secrets.Health(c.Request.Context()); err != nil {
			checks["vault"] = "unhealthy: " + err.Error()
		} else {
			checks["vault"] = "ok"
		}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}
