// Package milvus stores session chunk vectors in a Milvus collection.
//
// All sessions share one collection. Rows carry the session id as a scalar
// field and every read or delete is filtered on it:
//
//	id | embedding | session_id | doc_id | chunk_start | chunk_end | content
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
)

// 集合字段名。
const (
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldSessionID  = "session_id"
	FieldDocID      = "doc_id"
	FieldChunkStart = "chunk_start"
	FieldChunkEnd   = "chunk_end"
	FieldContent    = "content"

	maxIDLen      = 64
	maxContentLen = 65535
)

// Record is one chunk row.
type Record struct {
	SessionID string
	DocID     string
	Start     int64
	End       int64
	Content   string
	Embedding []float32
}

// Match is a search hit. Distance is the squared L2 distance reported by Milvus.
type Match struct {
	Record
	Distance float32
}

// Client talks to a single Milvus collection.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New connects to Milvus.
func New(opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
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

// Collection returns the configured collection name.
func (c *Client) Collection() string {
	return c.opts.Collection
}

// HasCollection reports whether the chunk collection exists.
func (c *Client) HasCollection(ctx context.Context) (bool, error) {
	ok, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(c.opts.Collection))
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", c.opts.Collection, err)
	}
	return ok, nil
}

// EnsureCollection creates, indexes and loads the chunk collection for
// vectors of dimension dim. An existing collection is left untouched.
func (c *Client) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}
	exists, err := c.HasCollection(ctx)
	if err != nil || exists {
		return err
	}

	name := c.opts.Collection
	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, chunkSchema(name, dim))); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	idx := index.NewIvfFlatIndex(entity.L2, c.opts.NList)
	task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	load, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return load.Await(ctx)
}

func chunkSchema(name string, dim int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("docqa session chunks").
		WithAutoID(true).
		WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).WithIsAutoID(true)).
		WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim))).
		WithField(entity.NewField().WithName(FieldSessionID).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLen)).
		WithField(entity.NewField().WithName(FieldDocID).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLen)).
		WithField(entity.NewField().WithName(FieldChunkStart).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(FieldChunkEnd).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(FieldContent).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxContentLen))
}

// SessionFilter returns the boolean expression selecting one session's rows.
func SessionFilter(sessionID string) string {
	return FieldSessionID + " == " + strconv.Quote(sessionID)
}

// Columns converts records into insert columns. All embeddings must share
// the dimension of the first record.
func Columns(records []Record) ([]column.Column, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records")
	}
	dim := len(records[0].Embedding)

	var (
		vectors  = make([][]float32, len(records))
		sessions = make([]string, len(records))
		docs     = make([]string, len(records))
		starts   = make([]int64, len(records))
		ends     = make([]int64, len(records))
		contents = make([]string, len(records))
	)
	for i, r := range records {
		if len(r.Embedding) != dim {
			return nil, fmt.Errorf("record %d has dimension %d, want %d", i, len(r.Embedding), dim)
		}
		if len(r.Content) > maxContentLen {
			return nil, fmt.Errorf("record %d content exceeds %d bytes", i, maxContentLen)
		}
		vectors[i] = r.Embedding
		sessions[i] = r.SessionID
		docs[i] = r.DocID
		starts[i] = r.Start
		ends[i] = r.End
		contents[i] = r.Content
	}

	return []column.Column{
		column.NewColumnFloatVector(FieldEmbedding, dim, vectors),
		column.NewColumnVarChar(FieldSessionID, sessions),
		column.NewColumnVarChar(FieldDocID, docs),
		column.NewColumnInt64(FieldChunkStart, starts),
		column.NewColumnInt64(FieldChunkEnd, ends),
		column.NewColumnVarChar(FieldContent, contents),
	}, nil
}

// ReplaceSession deletes the session's rows, inserts records and flushes so
// the next search sees them.
func (c *Client) ReplaceSession(ctx context.Context, sessionID string, records []Record) error {
	if _, err := c.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	cols, err := Columns(records)
	if err != nil {
		return err
	}
	name := c.opts.Collection
	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(name, cols...)); err != nil {
		return fmt.Errorf("failed to insert %d chunks: %w", len(records), err)
	}

	flush, err := c.client.Flush(ctx, milvusclient.NewFlushOption(name))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	return flush.Await(ctx)
}

// SearchSession returns the k rows of the session nearest to vector.
func (c *Client) SearchSession(ctx context.Context, sessionID string, vector []float32, k int) ([]Match, error) {
	opt := milvusclient.NewSearchOption(c.opts.Collection, k, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", strconv.Itoa(c.opts.NProbe)).
		WithFilter(SessionFilter(sessionID)).
		WithOutputFields(FieldDocID, FieldChunkStart, FieldChunkEnd, FieldContent)

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	matches := make([]Match, rs.ResultCount)
	for i := range matches {
		matches[i].SessionID = sessionID
		matches[i].Distance = rs.Scores[i]
	}
	for _, field := range rs.Fields {
		for i := range matches {
			m := &matches[i]
			switch col := field.(type) {
			case *column.ColumnVarChar:
				switch col.Name() {
				case FieldDocID:
					m.DocID = col.Data()[i]
				case FieldContent:
					m.Content = col.Data()[i]
				}
			case *column.ColumnInt64:
				switch col.Name() {
				case FieldChunkStart:
					m.Start = col.Data()[i]
				case FieldChunkEnd:
					m.End = col.Data()[i]
				}
			}
		}
	}
	return matches, nil
}

// DeleteSession removes every row of the session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(c.opts.Collection).WithExpr(SessionFilter(sessionID)))
	if err != nil {
		return 0, fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return res.DeleteCount, nil
}

// CountSession counts the rows of the session.
func (c *Client) CountSession(ctx context.Context, sessionID string) (int64, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(c.opts.Collection).
		WithFilter(SessionFilter(sessionID)).
		WithOutputFields("count(*)"))
	if err != nil {
		return 0, fmt.Errorf("failed to count session %s: %w", sessionID, err)
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	return col.GetAsInt64(0)
}
