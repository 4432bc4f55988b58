package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/pkg/rag"
	"github.com/kart-io/docqa/pkg/component/milvus"
)

type fakeCollection struct {
	created bool
	dim     int
	ensures int
	rows    map[string][]milvus.Record
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{rows: make(map[string][]milvus.Record)}
}

func (f *fakeCollection) HasCollection(context.Context) (bool, error) { return f.created, nil }

func (f *fakeCollection) EnsureCollection(_ context.Context, dim int) error {
	f.ensures++
	f.created, f.dim = true, dim
	return nil
}

func (f *fakeCollection) ReplaceSession(_ context.Context, sessionID string, records []milvus.Record) error {
	f.rows[sessionID] = records
	return nil
}

func (f *fakeCollection) SearchSession(_ context.Context, sessionID string, _ []float32, k int) ([]milvus.Match, error) {
	rows := f.rows[sessionID]
	if len(rows) > k {
		rows = rows[:k]
	}
	out := make([]milvus.Match, len(rows))
	for i, r := range rows {
		out[i] = milvus.Match{Record: r, Distance: float32(i)}
	}
	return out, nil
}

func (f *fakeCollection) DeleteSession(_ context.Context, sessionID string) (int64, error) {
	n := len(f.rows[sessionID])
	delete(f.rows, sessionID)
	return int64(n), nil
}

func (f *fakeCollection) CountSession(_ context.Context, sessionID string) (int64, error) {
	return int64(len(f.rows[sessionID])), nil
}

func chunk(doc string, start int, text string) rag.Chunk {
	return rag.Chunk{
		Text:      text,
		Embedding: []float32{1, 0, 0},
		Metadata:  rag.ChunkMetadata{DocID: doc, Start: start, End: start + len([]rune(text))},
	}
}

func TestMilvusVectorStore(t *testing.T) {
	ctx := context.Background()
	coll := newFakeCollection()
	s := &MilvusVectorStore{coll: coll}
	assert.Equal(t, BackendMilvus, s.Name())

	// 集合不存在时读操作为空
	hits, err := s.Search(ctx, "s1", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
	n, err := s.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, s.DeleteSession(ctx, "s1"))
	assert.Zero(t, coll.ensures)

	require.NoError(t, s.Upsert(ctx, "s1", []rag.Chunk{chunk("d1", 0, "alpha"), chunk("d1", 40, "beta")}))
	require.NoError(t, s.Upsert(ctx, "s2", []rag.Chunk{chunk("d9", 0, "gamma")}))
	assert.Equal(t, 1, coll.ensures, "集合只创建一次")
	assert.Equal(t, 3, coll.dim)

	hits, err = s.Search(ctx, "s1", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "beta", hits[1].Text)
	assert.Equal(t, rag.ChunkMetadata{DocID: "d1", Start: 40, End: 44}, hits[1].Metadata)
	assert.Equal(t, 1.0, hits[1].Distance)

	n, err = s.Count(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Upsert(ctx, "s1", nil))
	n, err = s.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Count(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "其它会话不受影响")
}
