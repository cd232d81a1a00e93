package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"trading-signal-engine/internal/signal"
)

// Repository implements the engine's pattern and signal stores on top of
// PostgreSQL.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SelectPatterns returns the historical pattern candidates for one ticker,
// newest first, bounded by the query limit.
func (r *Repository) SelectPatterns(ctx context.Context, q signal.PatternQuery) ([]*signal.HistoricalPattern, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, ticker, horizon, observed_at, snapshot, embedding,
		       action, actual_return, days_to_target, successful
		FROM historical_patterns
		WHERE ticker = $1 AND observed_at >= $2
		ORDER BY observed_at DESC
		LIMIT $3`,
		q.Ticker, q.Since, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("select patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*signal.HistoricalPattern
	for rows.Next() {
		var (
			p        signal.HistoricalPattern
			snapshot []byte
		)
		if err := rows.Scan(&p.ID, &p.Ticker, &p.Snapshot.Horizon, &p.Timestamp,
			&snapshot, &p.Embedding, &p.Action,
			&p.Outcome.ActualReturn, &p.Outcome.DaysToTarget, &p.Outcome.Successful); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if err := json.Unmarshal(snapshot, &p.Snapshot); err != nil {
			return nil, fmt.Errorf("decode pattern snapshot %s: %w", p.ID, err)
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}

// SelectPatternsByIDs returns the full pattern rows for a candidate ID set,
// preserving no particular order.
func (r *Repository) SelectPatternsByIDs(ctx context.Context, ids []string) ([]*signal.HistoricalPattern, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, ticker, horizon, observed_at, snapshot, embedding,
		       action, actual_return, days_to_target, successful
		FROM historical_patterns
		WHERE id = ANY($1)`,
		ids)
	if err != nil {
		return nil, fmt.Errorf("select patterns by id: %w", err)
	}
	defer rows.Close()

	var patterns []*signal.HistoricalPattern
	for rows.Next() {
		var (
			p        signal.HistoricalPattern
			snapshot []byte
		)
		if err := rows.Scan(&p.ID, &p.Ticker, &p.Snapshot.Horizon, &p.Timestamp,
			&snapshot, &p.Embedding, &p.Action,
			&p.Outcome.ActualReturn, &p.Outcome.DaysToTarget, &p.Outcome.Successful); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if err := json.Unmarshal(snapshot, &p.Snapshot); err != nil {
			return nil, fmt.Errorf("decode pattern snapshot %s: %w", p.ID, err)
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}

// SelectPatternsAfter pages the whole corpus by primary key, for index
// backfills. Pass an empty afterID to start from the beginning.
func (r *Repository) SelectPatternsAfter(ctx context.Context, afterID string, limit int) ([]*signal.HistoricalPattern, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, ticker, horizon, observed_at, snapshot, embedding,
		       action, actual_return, days_to_target, successful
		FROM historical_patterns
		WHERE id > $1
		ORDER BY id
		LIMIT $2`,
		afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("page patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*signal.HistoricalPattern
	for rows.Next() {
		var (
			p        signal.HistoricalPattern
			snapshot []byte
		)
		if err := rows.Scan(&p.ID, &p.Ticker, &p.Snapshot.Horizon, &p.Timestamp,
			&snapshot, &p.Embedding, &p.Action,
			&p.Outcome.ActualReturn, &p.Outcome.DaysToTarget, &p.Outcome.Successful); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if err := json.Unmarshal(snapshot, &p.Snapshot); err != nil {
			return nil, fmt.Errorf("decode pattern snapshot %s: %w", p.ID, err)
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}

// InsertPattern appends one outcome-labeled pattern to the corpus.
func (r *Repository) InsertPattern(ctx context.Context, p *signal.HistoricalPattern) error {
	snapshot, err := json.Marshal(p.Snapshot)
	if err != nil {
		return fmt.Errorf("encode pattern snapshot: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO historical_patterns
			(id, ticker, horizon, observed_at, snapshot, embedding,
			 action, actual_return, days_to_target, successful)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Ticker, p.Snapshot.Horizon, p.Timestamp, snapshot, p.Embedding,
		p.Action, p.Outcome.ActualReturn, p.Outcome.DaysToTarget, p.Outcome.Successful)
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

// InsertSignal persists a finished signal.
func (r *Repository) InsertSignal(ctx context.Context, sig *signal.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	riskLevel := ""
	if sig.Risk != nil {
		riskLevel = string(sig.Risk.OverallRisk)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO trading_signals
			(id, ticker, generated_at, horizon, action, strength,
			 confidence, score, risk_level, payload, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sig.ID, sig.Ticker, sig.GeneratedAt, sig.Horizon, sig.Action, sig.Strength,
		sig.Confidence, sig.Score, riskLevel, payload, sig.ValidUntil)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetSignal loads a signal by ID.
func (r *Repository) GetSignal(ctx context.Context, id string) (*signal.Signal, error) {
	var payload []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT payload FROM trading_signals WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, signal.ErrSignalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get signal %s: %w", id, err)
	}

	var sig signal.Signal
	if err := json.Unmarshal(payload, &sig); err != nil {
		return nil, fmt.Errorf("decode signal %s: %w", id, err)
	}
	return &sig, nil
}

// ListRecentSignals returns the latest signals for a ticker, newest first.
func (r *Repository) ListRecentSignals(ctx context.Context, ticker string, since time.Time, limit int) ([]*signal.Signal, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT payload FROM trading_signals
		WHERE ticker = $1 AND generated_at >= $2
		ORDER BY generated_at DESC
		LIMIT $3`,
		ticker, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var signals []*signal.Signal
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		var sig signal.Signal
		if err := json.Unmarshal(payload, &sig); err != nil {
			return nil, fmt.Errorf("decode signal: %w", err)
		}
		signals = append(signals, &sig)
	}
	return signals, rows.Err()
}
