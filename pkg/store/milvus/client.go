package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Config holds Milvus connection configuration
type Config struct {
	Address    string // e.g. "localhost:19530"
	Username   string // optional
	Password   string // optional
	Collection string // defaults to DefaultCollectionName
}

// Client is a Milvus connection bound to one window collection
type Client struct {
	conn       client.Client
	collection string
}

// NewClient connects to Milvus
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	ccfg := client.Config{Address: cfg.Address}
	if cfg.Username != "" && cfg.Password != "" {
		ccfg.Username = cfg.Username
		ccfg.Password = cfg.Password
	}

	conn, err := client.NewClient(ctx, ccfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", cfg.Address, err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollectionName
	}
	return &Client{conn: conn, collection: collection}, nil
}

// Collection returns the bound collection name
func (c *Client) Collection() string {
	return c.collection
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Exists reports whether the collection exists
func (c *Client) Exists(ctx context.Context) (bool, error) {
	return c.conn.HasCollection(ctx, c.collection)
}

// RowCount returns the number of stored vectors
func (c *Client) RowCount(ctx context.Context) (int64, error) {
	stats, err := c.conn.GetCollectionStatistics(ctx, c.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	return strconv.ParseInt(stats["row_count"], 10, 64)
}

// BuildIndex flushes pending inserts, builds an IVF_FLAT/L2 index over the
// embeddings and loads the collection for search
func (c *Client) BuildIndex(ctx context.Context, nlist int) error {
	if err := c.conn.Flush(ctx, c.collection, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, nlist)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := c.conn.CreateIndex(ctx, c.collection, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	return c.Load(ctx)
}

// Load loads the collection into memory
func (c *Client) Load(ctx context.Context) error {
	if err := c.conn.LoadCollection(ctx, c.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// Drop deletes the collection with all vectors. A missing collection is not
// an error.
func (c *Client) Drop(ctx context.Context) error {
	exists, err := c.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil
	}
	if err := c.conn.DropCollection(ctx, c.collection); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", c.collection, err)
	}
	return nil
}
