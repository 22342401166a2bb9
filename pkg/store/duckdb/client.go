package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"
)

var ErrNotFound = errors.New("not found")

// Client manages DuckDB connections
type Client struct {
	db   *sql.DB
	path string
}

// NewClient opens the database file at path, or an in-memory database when
// path is empty
func NewClient(path string) (*Client, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	c := &Client{db: db, path: path}

	if err := db.Ping(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to ping duckdb %q: %w", path, err)
	}
	return c, nil
}

// InMemory reports whether the database lives only in this process
func (c *Client) InMemory() bool {
	return c.path == "" || c.path == ":memory:"
}

// Checkpoint flushes the write-ahead log into the database file. It is a
// no-op for in-memory databases.
func (c *Client) Checkpoint(ctx context.Context) error {
	if c.InMemory() {
		return nil
	}
	if err := c.Exec(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("failed to checkpoint %s: %w", c.path, err)
	}
	return nil
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Exec executes a query without returning results
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

// Query executes a query and returns rows
func (c *Client) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row
func (c *Client) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// Begin starts a new transaction
func (c *Client) Begin(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}

// inTx runs fn inside one transaction and commits only if fn succeeds
func (c *Client) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// insertAll runs exec for every item with a single prepared statement
func insertAll[T any](ctx context.Context, tx *sql.Tx, query string, items []T, exec func(stmt *sql.Stmt, item T) error) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if err := exec(stmt, item); err != nil {
			return err
		}
	}
	return nil
}

// batch runs exec for every item inside one transaction
func batch[T any](ctx context.Context, c *Client, query string, items []T, exec func(stmt *sql.Stmt, item T) error) error {
	return c.inTx(ctx, func(tx *sql.Tx) error {
		return insertAll(ctx, tx, query, items, exec)
	})
}
