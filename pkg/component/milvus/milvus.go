// Package milvus wraps the Milvus SDK for passage collections keyed by a
// string id.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/campus-qa/pkg/options/milvus"
)

// Field names shared by every collection.
const (
	FieldID     = "id"
	FieldVector = "embedding"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New connects to Milvus.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:       opts.Address,
		Username:      opts.Username,
		Password:      opts.Password,
		APIKey:        opts.APIKey,
		DBName:        opts.Database,
		EnableTLSAuth: opts.EnableTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", opts.Address, err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionSchema describes a collection with a VarChar primary key, one
// float vector field and VarChar metadata fields.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	IDMaxLen    int
	MetaFields  []MetaField
}

// MetaField is a VarChar metadata field.
type MetaField struct {
	Name   string
	MaxLen int
}

// EnsureCollection creates, indexes and loads the collection when it does
// not exist yet. An existing collection is only loaded.
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		idLen := schema.IDMaxLen
		if idLen <= 0 {
			idLen = 512
		}

		s := entity.NewSchema().
			WithName(schema.Name).
			WithDescription(schema.Description).
			WithAutoID(false).
			WithField(entity.NewField().
				WithName(FieldID).
				WithDataType(entity.FieldTypeVarChar).
				WithIsPrimaryKey(true).
				WithMaxLength(int64(idLen))).
			WithField(entity.NewField().
				WithName(FieldVector).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(schema.Dimension)))

		for _, f := range schema.MetaFields {
			s.WithField(entity.NewField().
				WithName(f.Name).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(f.MaxLen)))
		}

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, s)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 64)
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldVector, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Rows is a column-oriented batch. Every metadata slice has len(IDs) entries.
type Rows struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]string
}

// Upsert writes rows, replacing rows with the same id, and flushes so they
// are visible to the next search.
func (c *Client) Upsert(ctx context.Context, collection string, rows *Rows) error {
	if len(rows.IDs) == 0 {
		return nil
	}
	if len(rows.Embeddings) != len(rows.IDs) {
		return fmt.Errorf("got %d embeddings for %d ids", len(rows.Embeddings), len(rows.IDs))
	}

	cols := []column.Column{
		column.NewColumnVarChar(FieldID, rows.IDs),
		column.NewColumnFloatVector(FieldVector, len(rows.Embeddings[0]), rows.Embeddings),
	}
	for name, values := range rows.Metadata {
		if len(values) != len(rows.IDs) {
			return fmt.Errorf("field %s has %d values for %d ids", name, len(values), len(rows.IDs))
		}
		cols = append(cols, column.NewColumnVarChar(name, values))
	}

	if _, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...)); err != nil {
		return fmt.Errorf("failed to upsert: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// SearchResult is one search hit. Score is the cosine similarity.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Search returns the topK rows most similar to vector, best first.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, outputFields []string) ([]SearchResult, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldVector).
		WithSearchParam("ef", strconv.Itoa(max(64, topK))).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		r := SearchResult{Score: rs.Scores[i], Metadata: make(map[string]string, len(rs.Fields))}
		if ids, ok := rs.IDs.(*column.ColumnVarChar); ok {
			r.ID = ids.Data()[i]
		}
		for _, f := range rs.Fields {
			if col, ok := f.(*column.ColumnVarChar); ok {
				r.Metadata[col.Name()] = col.Data()[i]
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// DropCollection drops a collection if it exists.
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Count returns the number of rows in a collection.
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
