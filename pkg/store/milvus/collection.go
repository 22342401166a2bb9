package milvus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/tunogya/seqprep/pkg/model"
)

const (
	// DefaultCollectionName is the default collection for training windows
	DefaultCollectionName = "seq_windows"

	fieldSampleID  = "sample_id"
	fieldEmbedding = "embedding"
	fieldSeries    = "series"
	fieldSplit     = "split"
	fieldTEnd      = "t_end"
	fieldTarget    = "target"

	typeParamDim = "dim"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Schema describes the window collection for embeddings of the given dimension
func Schema(name string, dimension int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Description:    "Normalized input windows for analog search",
		Fields: []*entity.Field{
			{
				Name:       fieldSampleID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					typeParamDim: strconv.Itoa(dimension),
				},
			},
			{
				Name:     fieldSeries,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldSplit,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8",
				},
			},
			{
				Name:     fieldTEnd,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldTarget,
				DataType: entity.FieldTypeDouble,
			},
		},
	}
}

// CreateCollection creates the bound collection unless it already exists.
// dimension is seq_length x number of fields. An existing collection built
// for another dimension returns ErrDimensionMismatch.
func (c *Client) CreateCollection(ctx context.Context, dimension, shards int) error {
	exists, err := c.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		have, err := c.Dimension(ctx)
		if err != nil {
			return err
		}
		if have != dimension {
			return fmt.Errorf("%w: collection %s stores %d, windows have %d", ErrDimensionMismatch, c.collection, have, dimension)
		}
		return nil
	}

	if err := c.conn.CreateCollection(ctx, Schema(c.collection, dimension), int32(shards)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Dimension returns the embedding dimension of the existing collection
func (c *Client) Dimension(ctx context.Context) (int, error) {
	coll, err := c.conn.DescribeCollection(ctx, c.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to describe collection: %w", err)
	}
	return embeddingDim(coll.Schema)
}

func embeddingDim(schema *entity.Schema) (int, error) {
	if schema != nil {
		for _, f := range schema.Fields {
			if f.Name == fieldEmbedding {
				return strconv.Atoi(f.TypeParams[typeParamDim])
			}
		}
	}
	return 0, fmt.Errorf("collection has no %s field", fieldEmbedding)
}

// DeleteSeries removes every vector of a series. The collection must be
// indexed so it can be loaded for the filtered delete.
func (c *Client) DeleteSeries(ctx context.Context, series string) error {
	if err := c.Load(ctx); err != nil {
		return err
	}
	if err := c.conn.Delete(ctx, c.collection, "", Filter(series, "", time.Time{})); err != nil {
		return fmt.Errorf("failed to delete series %s: %w", series, err)
	}
	return nil
}

// InsertBatch inserts sample embeddings. The embedding is the flattened
// input window; the stored target is the first target field.
func (c *Client) InsertBatch(ctx context.Context, samples []model.SampleRecord) error {
	if len(samples) == 0 {
		return nil
	}

	columns, err := toColumns(samples)
	if err != nil {
		return err
	}

	if _, err := c.conn.Insert(ctx, c.collection, "", columns...); err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

func toColumns(samples []model.SampleRecord) ([]entity.Column, error) {
	ids := make([]string, len(samples))
	embeddings := make([][]float32, len(samples))
	series := make([]string, len(samples))
	splits := make([]string, len(samples))
	tEnds := make([]int64, len(samples))
	targets := make([]float64, len(samples))

	dim := 0
	for i := range samples {
		s := &samples[i]
		emb := s.Flatten()
		if i == 0 {
			dim = len(emb)
		}
		if len(emb) == 0 || len(emb) != dim {
			return nil, fmt.Errorf("%w: sample %s has %d values, want %d", ErrDimensionMismatch, s.SampleID, len(emb), dim)
		}

		ids[i] = s.SampleID
		embeddings[i] = emb
		series[i] = s.Series
		splits[i] = s.Split
		tEnds[i] = s.TEnd.UnixMilli()
		if len(s.Target) > 0 {
			targets[i] = s.Target[0]
		}
	}

	return []entity.Column{
		entity.NewColumnVarChar(fieldSampleID, ids),
		entity.NewColumnFloatVector(fieldEmbedding, dim, embeddings),
		entity.NewColumnVarChar(fieldSeries, series),
		entity.NewColumnVarChar(fieldSplit, splits),
		entity.NewColumnInt64(fieldTEnd, tEnds),
		entity.NewColumnDouble(fieldTarget, targets),
	}, nil
}

// SearchResult represents a single search hit
type SearchResult struct {
	SampleID string
	Distance float32 // L2, smaller is closer
	Series   string
	Split    string
	TEnd     time.Time
	Target   float64 // normalized
}

// Similarity maps the distance into (0, 1]
func (r SearchResult) Similarity() float64 {
	return 1 / (1 + float64(r.Distance))
}

// Filter builds a search expression restricting hits to one series and
// split, optionally only windows whose target precedes before
func Filter(series, split string, before time.Time) string {
	var parts []string
	if series != "" {
		parts = append(parts, fmt.Sprintf("%s == %q", fieldSeries, series))
	}
	if split != "" {
		parts = append(parts, fmt.Sprintf("%s == %q", fieldSplit, split))
	}
	if !before.IsZero() {
		parts = append(parts, fmt.Sprintf("%s < %d", fieldTEnd, before.UnixMilli()))
	}
	return strings.Join(parts, " && ")
}

// Search performs a TopK similarity search
func (c *Client) Search(ctx context.Context, embedding []float32, filter string, topK int) ([]SearchResult, error) {
	vectors := []entity.Vector{entity.FloatVector(embedding)}

	sp, err := entity.NewIndexIvfFlatSearchParam(16) // clusters searched
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	outputFields := []string{fieldSampleID, fieldSeries, fieldSplit, fieldTEnd, fieldTarget}

	results, err := c.conn.Search(
		ctx,
		c.collection,
		nil,          // partitions
		filter,       // expression filter
		outputFields, // output fields
		vectors,
		fieldEmbedding,
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return nil, nil
	}
	return parseResults(results[0].Fields, results[0].Scores, results[0].ResultCount), nil
}

func parseResults(fields []entity.Column, scores []float32, count int) []SearchResult {
	out := make([]SearchResult, 0, count)
	for i := 0; i < count; i++ {
		result := SearchResult{
			Distance: scores[i],
		}

		for _, field := range fields {
			switch field.Name() {
			case fieldSampleID:
				if col, ok := field.(*entity.ColumnVarChar); ok {
					result.SampleID, _ = col.ValueByIdx(i)
				}
			case fieldSeries:
				if col, ok := field.(*entity.ColumnVarChar); ok {
					result.Series, _ = col.ValueByIdx(i)
				}
			case fieldSplit:
				if col, ok := field.(*entity.ColumnVarChar); ok {
					result.Split, _ = col.ValueByIdx(i)
				}
			case fieldTEnd:
				if col, ok := field.(*entity.ColumnInt64); ok {
					val, _ := col.ValueByIdx(i)
					result.TEnd = time.UnixMilli(val).UTC()
				}
			case fieldTarget:
				if col, ok := field.(*entity.ColumnDouble); ok {
					result.Target, _ = col.ValueByIdx(i)
				}
			}
		}

		out = append(out, result)
	}
	return out
}
