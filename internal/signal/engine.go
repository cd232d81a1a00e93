package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EngineConfig holds tunables for the generation pipeline.
type EngineConfig struct {
	// Weights is the default source weighting; per-request custom weights
	// override it.
	Weights Weights
	// Similarity tunes the pattern search.
	Similarity SimilarityConfig
	// PatternFetchLimit bounds how many candidate patterns are requested
	// from the store per generation call.
	PatternFetchLimit int
	// BatchChunkSize bounds concurrent in-flight tickers during batch runs.
	BatchChunkSize int
	// BatchChunkDelay is the pause between batch chunks.
	BatchChunkDelay time.Duration
	// AnalysisTimeout is the advisory per-collaborator call timeout.
	AnalysisTimeout time.Duration
}

// DefaultEngineConfig returns the standard engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Weights:           DefaultWeights(),
		Similarity:        DefaultSimilarityConfig(),
		PatternFetchLimit: 200,
		BatchChunkSize:    5,
		BatchChunkDelay:   500 * time.Millisecond,
		AnalysisTimeout:   30 * time.Second,
	}
}

// Publisher receives every successfully generated signal, e.g. for fan-out
// to streaming subscribers. Implementations must not block.
type Publisher interface {
	PublishSignal(sig *Signal)
}

// Deps are the collaborators an Engine needs.
type Deps struct {
	Technical TechnicalProvider
	Sentiment SentimentProvider
	Risk      RiskProvider
	Patterns  PatternStore
	Signals   SignalStore
	Embedder  TextEmbedder // nil selects the hash embedder
	Publisher Publisher    // optional
	Logger    zerolog.Logger
}

// Engine fuses technical, sentiment, pattern and risk opinions into
// actionable trading signals.
type Engine struct {
	cfg        EngineConfig
	technical  TechnicalProvider
	sentiment  SentimentProvider
	risk       RiskProvider
	patterns   PatternStore
	signals    SignalStore
	vectorizer *ContextVectorizer
	searcher   *SimilaritySearcher
	publisher  Publisher
	stats      *EngineStats
	log        zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates an engine. Technical, sentiment and risk providers plus
// both stores are required; the publisher is optional.
func NewEngine(cfg EngineConfig, deps Deps) (*Engine, error) {
	if deps.Technical == nil || deps.Sentiment == nil || deps.Risk == nil {
		return nil, fmt.Errorf("technical, sentiment and risk providers are required")
	}
	if deps.Patterns == nil || deps.Signals == nil {
		return nil, fmt.Errorf("pattern and signal stores are required")
	}
	def := DefaultEngineConfig()
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.PatternFetchLimit <= 0 {
		cfg.PatternFetchLimit = def.PatternFetchLimit
	}
	if cfg.BatchChunkSize <= 0 {
		cfg.BatchChunkSize = def.BatchChunkSize
	}
	if cfg.BatchChunkDelay <= 0 {
		cfg.BatchChunkDelay = def.BatchChunkDelay
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = def.AnalysisTimeout
	}

	return &Engine{
		cfg:        cfg,
		technical:  deps.Technical,
		sentiment:  deps.Sentiment,
		risk:       deps.Risk,
		patterns:   deps.Patterns,
		signals:    deps.Signals,
		vectorizer: NewContextVectorizer(deps.Embedder),
		searcher:   NewSimilaritySearcher(cfg.Similarity),
		publisher:  deps.Publisher,
		stats:      NewEngineStats(),
		log:        deps.Logger.With().Str("component", "signal-engine").Logger(),
		now:        time.Now,
	}, nil
}

// Stats returns the engine's statistics tracker.
func (e *Engine) Stats() *EngineStats {
	return e.stats
}

// GenerateSignal runs the full pipeline for one ticker and persists the
// result. Upstream analysis failures are fatal for single-ticker calls.
func (e *Engine) GenerateSignal(ctx context.Context, ticker string, opts Options) (*Signal, error) {
	return e.generate(ctx, ticker, opts, true)
}

func (e *Engine) generate(ctx context.Context, ticker string, opts Options, persist bool) (*Signal, error) {
	opts = opts.normalized()
	start := e.now()

	tech, sent, err := e.fetchAnalyses(ctx, ticker)
	if err != nil {
		e.stats.RecordFailure()
		return nil, err
	}

	market := deriveMarketContext(tech, sent)
	snap := buildSnapshot(ticker, opts.Horizon, tech, sent, market)
	embedding := e.vectorizer.Vectorize(snap)

	var matches []SimilarPattern
	if opts.IncludePatterns {
		matches = e.findPatterns(ctx, snap, embedding)
	}

	weights := e.cfg.Weights
	if opts.CustomWeights != nil {
		if err := opts.CustomWeights.Validate(); err != nil {
			e.stats.RecordFailure()
			return nil, fmt.Errorf("custom weights: %w", err)
		}
		weights = *opts.CustomWeights
	}
	agg := NewConfidenceAggregator(weights).Aggregate(tech, sent, matches, market)
	decision := MapDecision(agg.Score, agg.Agreement.Overall)
	targets := ComputeTargets(tech, sent.SentimentScore, opts.Horizon, agg.FinalConfidence, decision.Action)

	sig := &Signal{
		ID:          uuid.NewString(),
		Ticker:      ticker,
		GeneratedAt: start.UTC(),
		Horizon:     opts.Horizon,
		Action:      decision.Action,
		Strength:    decision.Strength,
		Confidence:  agg.FinalConfidence,
		Score:       agg.Score,
		Factors:     agg.Factors,
		Agreement:   agg.Agreement,
		Market:      market,
		Matches:     matches,
		Targets:     targets,
		Warnings:    agg.Warnings,
		ValidUntil:  start.UTC().Add(opts.Horizon.validity()),
	}

	risk, err := e.assessRisk(ctx, ticker, sig, tech, sent)
	if err != nil {
		e.stats.RecordFailure()
		return nil, fmt.Errorf("risk assessment for %s: %w", ticker, err)
	}
	sig.Risk = risk
	sig.Warnings = append(sig.Warnings, risk.Warnings...)

	sig.Reasoning = buildReasoning(sig, tech, sent, matches)
	sig.KeyFactors = keyFactors(sig, tech, sent, matches)

	if warning := validateSignal(sig); warning != "" {
		sig.Warnings = append(sig.Warnings, warning)
	}

	if persist {
		e.persist(ctx, sig)
	}

	e.stats.RecordSignal(sig)
	if e.publisher != nil {
		e.publisher.PublishSignal(sig)
	}

	e.log.Info().
		Str("ticker", ticker).
		Str("horizon", string(opts.Horizon)).
		Str("action", string(sig.Action)).
		Float64("confidence", sig.Confidence).
		Int("pattern_matches", len(matches)).
		Dur("took", e.now().Sub(start)).
		Msg("signal generated")

	return sig, nil
}

// fetchAnalyses retrieves technical and sentiment analyses concurrently.
// Both are required; the first error wins.
func (e *Engine) fetchAnalyses(ctx context.Context, ticker string) (*TechnicalAnalysis, *SentimentAnalysis, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.AnalysisTimeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		tech    *TechnicalAnalysis
		sent    *SentimentAnalysis
		techErr error
		sentErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tech, techErr = e.technical.AnalyzeStock(fetchCtx, ticker)
	}()
	go func() {
		defer wg.Done()
		sent, sentErr = e.sentiment.AnalyzeSentiment(fetchCtx, ticker)
	}()
	wg.Wait()

	if techErr != nil {
		return nil, nil, fmt.Errorf("technical analysis for %s: %w", ticker, techErr)
	}
	if sentErr != nil {
		return nil, nil, fmt.Errorf("sentiment analysis for %s: %w", ticker, sentErr)
	}
	return tech, sent, nil
}

// findPatterns fetches candidate patterns and ranks them. Pattern matching
// is optional enrichment: any failure degrades to an empty result.
func (e *Engine) findPatterns(ctx context.Context, snap *ContextSnapshot, embedding []float64) []SimilarPattern {
	corpus, err := e.patterns.SelectPatterns(ctx, PatternQuery{
		Ticker:    snap.Ticker,
		Horizon:   snap.Horizon,
		Limit:     e.cfg.PatternFetchLimit,
		Embedding: embedding,
	})
	if err != nil {
		e.log.Warn().Err(err).Str("ticker", snap.Ticker).Msg("pattern fetch failed, continuing without matches")
		return nil
	}
	return e.searcher.Search(embedding, snap, corpus, e.now())
}

func (e *Engine) assessRisk(ctx context.Context, ticker string, sig *Signal,
	tech *TechnicalAnalysis, sent *SentimentAnalysis) (*RiskAssessment, error) {

	riskCtx, cancel := context.WithTimeout(ctx, e.cfg.AnalysisTimeout)
	defer cancel()
	return e.risk.AnalyzeSignalRisk(riskCtx, ticker, sig, tech, sent)
}

// persist writes the signal best-effort; a storage failure is logged and the
// computed signal is still returned to the caller.
func (e *Engine) persist(ctx context.Context, sig *Signal) {
	if err := e.signals.InsertSignal(ctx, sig); err != nil {
		e.log.Error().Err(err).Str("signal_id", sig.ID).Msg("failed to persist signal")
	}
}

// GenerateBatchSignals analyzes tickers in fixed-size chunks, fully awaiting
// one chunk before starting the next. Per-ticker failures are isolated and
// recorded in the error list.
func (e *Engine) GenerateBatchSignals(ctx context.Context, tickers []string, opts Options) (*BatchResult, error) {
	start := e.now()
	result := &BatchResult{
		Signals: make([]*Signal, 0, len(tickers)),
		Errors:  make([]BatchError, 0),
	}

	var mu sync.Mutex
	for chunkStart := 0; chunkStart < len(tickers); chunkStart += e.cfg.BatchChunkSize {
		chunkEnd := chunkStart + e.cfg.BatchChunkSize
		if chunkEnd > len(tickers) {
			chunkEnd = len(tickers)
		}
		chunk := tickers[chunkStart:chunkEnd]

		var wg sync.WaitGroup
		for _, ticker := range chunk {
			wg.Add(1)
			go func(ticker string) {
				defer wg.Done()
				sig, err := e.generate(ctx, ticker, opts, true)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Errors = append(result.Errors, BatchError{Ticker: ticker, Error: err.Error()})
					return
				}
				result.Signals = append(result.Signals, sig)
			}(ticker)
		}
		wg.Wait()

		if chunkEnd < len(tickers) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.cfg.BatchChunkDelay):
			}
		}
	}

	result.Summary = summarize(tickers, result.Signals, e.now().Sub(start))
	return result, nil
}

func summarize(tickers []string, signals []*Signal, took time.Duration) BatchSummary {
	summary := BatchSummary{
		TotalAnalyzed:    len(tickers),
		SignalsGenerated: len(signals),
		ActionBreakdown:  make(map[Action]int),
		ProcessingTime:   took,
	}
	confSum := 0.0
	for _, sig := range signals {
		summary.ActionBreakdown[sig.Action]++
		confSum += sig.Confidence
	}
	if len(signals) > 0 {
		summary.AverageConfidence = confSum / float64(len(signals))
	}
	return summary
}

// GenerateMultiTimeframeSignal runs the pipeline once per supported horizon
// and aggregates the results. A failure on one horizon does not abort the
// others; that horizon is simply omitted.
func (e *Engine) GenerateMultiTimeframeSignal(ctx context.Context, ticker string) (*MultiTimeframeResult, error) {
	horizons := AllHorizons()
	signals := make(map[TimeHorizon]*Signal, len(horizons))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, horizon := range horizons {
		wg.Add(1)
		go func(h TimeHorizon) {
			defer wg.Done()
			opts := DefaultOptions()
			opts.Horizon = h
			sig, err := e.generate(ctx, ticker, opts, true)
			if err != nil {
				e.log.Warn().Err(err).Str("ticker", ticker).Str("horizon", string(h)).
					Msg("horizon generation failed, omitting from consensus")
				return
			}
			mu.Lock()
			signals[h] = sig
			mu.Unlock()
		}(horizon)
	}
	wg.Wait()

	if len(signals) == 0 {
		return nil, fmt.Errorf("all horizon analyses failed for %s", ticker)
	}

	consensus, conflicts := BuildConsensus(signals)
	return &MultiTimeframeResult{
		Ticker:          ticker,
		Signals:         signals,
		Consensus:       consensus,
		Conflicts:       conflicts,
		Recommendations: consensusRecommendations(consensus, conflicts, len(signals)),
	}, nil
}

// UpdateSignal fetches a prior signal, regenerates a fresh one for the same
// ticker and horizon, and classifies the change. Significant changes persist
// as a new record; non-significant ones are returned without being stored.
func (e *Engine) UpdateSignal(ctx context.Context, signalID string) (*Signal, error) {
	prior, err := e.signals.GetSignal(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("fetching signal %s: %w", signalID, err)
	}

	opts := DefaultOptions()
	opts.Horizon = prior.Horizon
	fresh, err := e.generate(ctx, prior.Ticker, opts, false)
	if err != nil {
		return nil, err
	}

	if reason := significantChange(prior, fresh); reason != "" {
		fresh.Reasoning = append(fresh.Reasoning, "Replaces signal "+prior.ID+": "+reason)
		e.persist(ctx, fresh)
		e.log.Info().Str("ticker", fresh.Ticker).Str("prior_id", prior.ID).
			Str("reason", reason).Msg("signal updated with significant change")
	} else {
		fresh.Reasoning = append(fresh.Reasoning, "No significant change versus signal "+prior.ID)
	}
	return fresh, nil
}

// significantChange reports why a fresh signal differs meaningfully from the
// prior one, or "" when it does not.
func significantChange(prior, fresh *Signal) string {
	if prior.Action != fresh.Action {
		return fmt.Sprintf("action changed %s -> %s", prior.Action, fresh.Action)
	}
	if diff := fresh.Confidence - prior.Confidence; diff > 0.2 || diff < -0.2 {
		return fmt.Sprintf("confidence moved %.2f -> %.2f", prior.Confidence, fresh.Confidence)
	}
	if prior.Risk != nil && fresh.Risk != nil && prior.Risk.OverallRisk != fresh.Risk.OverallRisk {
		return fmt.Sprintf("risk level changed %s -> %s", prior.Risk.OverallRisk, fresh.Risk.OverallRisk)
	}
	return ""
}

// deriveMarketContext condenses the collaborator views into broad market
// condition facts.
func deriveMarketContext(tech *TechnicalAnalysis, sent *SentimentAnalysis) MarketContext {
	condition := "NEUTRAL"
	switch {
	case tech.Volatility > 5:
		condition = "VOLATILE"
	case tech.Trend == "UPTREND" && sent.SentimentScore > 0:
		condition = "BULL"
	case tech.Trend == "DOWNTREND" && sent.SentimentScore < 0:
		condition = "BEAR"
	}

	volBucket := "MEDIUM"
	switch {
	case tech.Volatility <= 1.5:
		volBucket = "LOW"
	case tech.Volatility > 4:
		volBucket = "HIGH"
	}

	volumeBucket := "NORMAL"
	switch {
	case tech.VolumeRatio >= 1.5:
		volumeBucket = "HIGH"
	case tech.VolumeRatio > 0 && tech.VolumeRatio < 0.7:
		volumeBucket = "LOW"
	}

	return MarketContext{
		Condition:        condition,
		Trend:            tech.Trend,
		VolatilityBucket: volBucket,
		VolumeBucket:     volumeBucket,
	}
}

// buildSnapshot assembles the immutable per-request context summary.
func buildSnapshot(ticker string, horizon TimeHorizon, tech *TechnicalAnalysis,
	sent *SentimentAnalysis, market MarketContext) *ContextSnapshot {

	return &ContextSnapshot{
		Ticker:  ticker,
		Horizon: horizon,
		Technical: TechnicalSummary{
			Signal:     tech.OverallSignal,
			Confidence: tech.Confidence,
			Trend:      tech.Trend,
			Support:    tech.NearestSupport(),
			Resistance: tech.NearestResistance(),
		},
		Sentiment: SentimentSummary{
			Score:      sent.SentimentScore,
			Label:      sent.SentimentLabel,
			NewsVolume: sent.NewsCount,
		},
		Market: market,
	}
}

// buildReasoning produces the human-readable explanation attached to a
// signal.
func buildReasoning(sig *Signal, tech *TechnicalAnalysis, sent *SentimentAnalysis, matches []SimilarPattern) []string {
	reasoning := []string{
		fmt.Sprintf("%s signal with %.0f%% confidence over %s horizon",
			sig.Action, sig.Confidence*100, sig.Horizon),
		fmt.Sprintf("Technical analysis reads %s (confidence %.2f, trend %s)",
			tech.OverallSignal, tech.Confidence, tech.Trend),
		fmt.Sprintf("News sentiment is %s (score %+.2f across %d articles)",
			sent.SentimentLabel, sent.SentimentScore, sent.NewsCount),
	}

	if len(matches) > 0 {
		successes := 0
		returnSum := 0.0
		for _, m := range matches {
			if m.Pattern.Outcome.Successful {
				successes++
			}
			returnSum += m.Pattern.Outcome.ActualReturn
		}
		reasoning = append(reasoning, fmt.Sprintf(
			"%d similar historical setups found: %d successful, avg %+.1f%% return",
			len(matches), successes, returnSum/float64(len(matches))))
	}

	if sig.Agreement.Overall >= 0.75 {
		reasoning = append(reasoning, fmt.Sprintf(
			"Sources agree strongly on direction (agreement %.2f)", sig.Agreement.Overall))
	}
	if sig.Risk != nil {
		reasoning = append(reasoning, fmt.Sprintf("Overall risk assessed as %s", sig.Risk.OverallRisk))
	}
	return reasoning
}

// keyFactors lists the dominant drivers behind the decision.
func keyFactors(sig *Signal, tech *TechnicalAnalysis, sent *SentimentAnalysis, matches []SimilarPattern) []string {
	var factors []string
	if tech.RSI >= 70 {
		factors = append(factors, fmt.Sprintf("RSI overbought at %.0f", tech.RSI))
	} else if tech.RSI > 0 && tech.RSI <= 30 {
		factors = append(factors, fmt.Sprintf("RSI oversold at %.0f", tech.RSI))
	}
	if sent.SentimentScore >= 0.5 {
		factors = append(factors, "strongly bullish news flow")
	} else if sent.SentimentScore <= -0.5 {
		factors = append(factors, "strongly bearish news flow")
	}
	if len(matches) > 0 {
		factors = append(factors, fmt.Sprintf("%d high-similarity historical patterns", len(matches)))
	}
	if sig.Market.Condition != "NEUTRAL" {
		factors = append(factors, fmt.Sprintf("%s market conditions", sig.Market.Condition))
	}
	return factors
}

// validateSignal checks internal consistency. An inconsistent signal is
// still returned to callers, flagged with a warning rather than rejected.
func validateSignal(sig *Signal) string {
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return fmt.Sprintf("confidence %.3f outside [0,1]", sig.Confidence)
	}
	if sig.Agreement.Overall < 0 || sig.Agreement.Overall > 1 {
		return fmt.Sprintf("agreement %.3f outside [0,1]", sig.Agreement.Overall)
	}
	expected := MapDecision(sig.Score, sig.Agreement.Overall)
	if expected.Action != sig.Action || expected.Strength != sig.Strength {
		return fmt.Sprintf("decision (%s, %s) inconsistent with score %.3f", sig.Action, sig.Strength, sig.Score)
	}
	return ""
}
