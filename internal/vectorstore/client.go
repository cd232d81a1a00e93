// Package vectorstore keeps pattern embeddings in Milvus for approximate
// nearest-neighbour candidate selection ahead of the exact in-process
// similarity scoring.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Client manages Milvus connections
type Client struct {
	conn       client.Client
	collection string
}

// Config holds Milvus connection configuration
type Config struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Dimension  int
}

// NewClient creates a new Milvus client and ensures the pattern collection
// exists, is indexed and loaded.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var conn client.Client
	var err error

	if cfg.Username != "" && cfg.Password != "" {
		conn, err = client.NewClient(ctx, client.Config{
			Address:  cfg.Address,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	} else {
		conn, err = client.NewClient(ctx, client.Config{Address: cfg.Address})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	c := &Client{conn: conn, collection: cfg.Collection}
	if err := c.ensureCollection(ctx, cfg.Dimension); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the Milvus connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, dim int) error {
	exists, err := c.conn.HasCollection(ctx, c.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: c.collection,
			Description:    "Historical pattern embeddings for signal generation",
			Fields: []*entity.Field{
				{
					Name:       "pattern_id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "64"},
				},
				{
					Name:     "embedding",
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", dim),
					},
				},
				{
					Name:       "ticker",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "20"},
				},
				{
					Name:       "horizon",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "20"},
				},
				{
					Name:     "observed_at",
					DataType: entity.FieldTypeInt64,
				},
			},
		}
		if err := c.conn.CreateCollection(ctx, schema, 2); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := c.conn.CreateIndex(ctx, c.collection, "embedding", idx, false); err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}
	}

	if err := c.conn.LoadCollection(ctx, c.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// PatternVector holds one embedding row.
type PatternVector struct {
	PatternID  string
	Embedding  []float32
	Ticker     string
	Horizon    string
	ObservedAt time.Time
}

// Insert inserts a single pattern embedding.
func (c *Client) Insert(ctx context.Context, v *PatternVector) error {
	return c.InsertBatch(ctx, []*PatternVector{v})
}

// InsertBatch inserts multiple pattern embeddings.
func (c *Client) InsertBatch(ctx context.Context, vectors []*PatternVector) error {
	if len(vectors) == 0 {
		return nil
	}

	ids := make([]string, len(vectors))
	embeddings := make([][]float32, len(vectors))
	tickers := make([]string, len(vectors))
	horizons := make([]string, len(vectors))
	observed := make([]int64, len(vectors))

	for i, v := range vectors {
		ids[i] = v.PatternID
		embeddings[i] = v.Embedding
		tickers[i] = v.Ticker
		horizons[i] = v.Horizon
		observed[i] = v.ObservedAt.Unix()
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("pattern_id", ids),
		entity.NewColumnFloatVector("embedding", len(embeddings[0]), embeddings),
		entity.NewColumnVarChar("ticker", tickers),
		entity.NewColumnVarChar("horizon", horizons),
		entity.NewColumnInt64("observed_at", observed),
	}

	if _, err := c.conn.Insert(ctx, c.collection, "", columns...); err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Candidate is one ANN search hit.
type Candidate struct {
	PatternID string
	Score     float32
}

// SearchCandidates runs a TopK cosine search restricted to one ticker and
// returns candidate pattern IDs for the exact scorer.
func (c *Client) SearchCandidates(ctx context.Context, embedding []float32, ticker string, since time.Time, topK int) ([]Candidate, error) {
	vectors := []entity.Vector{entity.FloatVector(embedding)}

	sp, err := entity.NewIndexIvfFlatSearchParam(16) // nprobe
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	filter := fmt.Sprintf(`ticker == "%s" && observed_at >= %d`, ticker, since.Unix())

	results, err := c.conn.Search(
		ctx,
		c.collection,
		nil,
		filter,
		[]string{"pattern_id"},
		vectors,
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		candidate := Candidate{Score: results[0].Scores[i]}
		for _, field := range results[0].Fields {
			if field.Name() == "pattern_id" {
				if col, ok := field.(*entity.ColumnVarChar); ok {
					val, _ := col.ValueByIdx(i)
					candidate.PatternID = val
				}
			}
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// Flush flushes the collection to ensure data persistence
func (c *Client) Flush(ctx context.Context) error {
	return c.conn.Flush(ctx, c.collection, false)
}
