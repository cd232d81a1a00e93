package cache

import (
	"context"
	"fmt"
	"time"

	"trading-signal-engine/internal/signal"
)

// Key layouts for cached signal documents.
const (
	keySignal    = "signal:%s:%s" // ticker, horizon
	keyTimeframe = "signal:%s:timeframes"
)

// jsonStore is the subset of CacheService the signal cache needs.
type jsonStore interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	IsHealthy() bool
}

// SignalCache keeps recently generated signals warm so repeated requests for
// the same ticker/horizon within the TTL skip the provider round trips.
// Every method degrades to a miss when Redis is down.
type SignalCache struct {
	store jsonStore
	ttl   time.Duration
}

func NewSignalCache(store jsonStore, ttl time.Duration) *SignalCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SignalCache{store: store, ttl: ttl}
}

// GetSignal returns the cached signal for a ticker/horizon, or nil on miss.
func (c *SignalCache) GetSignal(ctx context.Context, ticker string, horizon signal.TimeHorizon) *signal.Signal {
	if c == nil || !c.store.IsHealthy() {
		return nil
	}
	var sig signal.Signal
	if err := c.store.GetJSON(ctx, signalKey(ticker, horizon), &sig); err != nil {
		return nil
	}
	if time.Now().After(sig.ValidUntil) {
		return nil
	}
	return &sig
}

// PutSignal stores a freshly generated signal. Errors are swallowed; caching
// is best-effort.
func (c *SignalCache) PutSignal(ctx context.Context, sig *signal.Signal) {
	if c == nil || sig == nil {
		return
	}
	_ = c.store.SetJSON(ctx, signalKey(sig.Ticker, sig.Horizon), sig, c.ttl)
}

// GetTimeframes returns the cached multi-timeframe result for a ticker.
func (c *SignalCache) GetTimeframes(ctx context.Context, ticker string) *signal.MultiTimeframeResult {
	if c == nil || !c.store.IsHealthy() {
		return nil
	}
	var result signal.MultiTimeframeResult
	if err := c.store.GetJSON(ctx, timeframeKey(ticker), &result); err != nil {
		return nil
	}
	return &result
}

// PutTimeframes stores a multi-timeframe result.
func (c *SignalCache) PutTimeframes(ctx context.Context, ticker string, result *signal.MultiTimeframeResult) {
	if c == nil || result == nil {
		return
	}
	_ = c.store.SetJSON(ctx, timeframeKey(ticker), result, c.ttl)
}

// Invalidate drops all cached entries for a ticker. Called after a signal
// update persists a changed recommendation.
func (c *SignalCache) Invalidate(ctx context.Context, ticker string) {
	if c == nil {
		return
	}
	for _, h := range signal.AllHorizons() {
		_ = c.store.Delete(ctx, signalKey(ticker, h))
	}
	_ = c.store.Delete(ctx, timeframeKey(ticker))
}

func signalKey(ticker string, horizon signal.TimeHorizon) string {
	return fmt.Sprintf(keySignal, ticker, horizon)
}

func timeframeKey(ticker string) string {
	return fmt.Sprintf(keyTimeframe, ticker)
}
