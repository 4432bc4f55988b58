package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kart-io/docqa/internal/pkg/rag"
	"github.com/kart-io/docqa/pkg/component/milvus"
)

// chunkCollection 是 MilvusVectorStore 依赖的 Milvus 操作。
type chunkCollection interface {
	HasCollection(ctx context.Context) (bool, error)
	EnsureCollection(ctx context.Context, dim int) error
	ReplaceSession(ctx context.Context, sessionID string, records []milvus.Record) error
	SearchSession(ctx context.Context, sessionID string, vector []float32, k int) ([]milvus.Match, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
	CountSession(ctx context.Context, sessionID string) (int64, error)
}

// MilvusVectorStore 基于 Milvus 的向量存储，所有会话共用一个集合，
// 通过 session_id 标量字段过滤。
type MilvusVectorStore struct {
	coll chunkCollection

	mu    sync.Mutex
	ready bool
}

var _ rag.VectorStore = (*MilvusVectorStore)(nil)

// NewMilvusVectorStore 创建 Milvus 向量存储实例。
func NewMilvusVectorStore(client *milvus.Client) *MilvusVectorStore {
	return &MilvusVectorStore{coll: client}
}

// Name 返回存储类型。
func (s *MilvusVectorStore) Name() string {
	return BackendMilvus
}

// ensureCollection 在首次写入时按向量维度创建集合。
func (s *MilvusVectorStore) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.coll.EnsureCollection(ctx, dim); err != nil {
		return err
	}
	s.ready = true
	return nil
}

// exists 判断集合是否已创建，尚未写入过数据时查询和删除都是空操作。
func (s *MilvusVectorStore) exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready {
		return true, nil
	}
	return s.coll.HasCollection(ctx)
}

// Upsert 用新文本块替换会话已有的文本块。
func (s *MilvusVectorStore) Upsert(ctx context.Context, sessionID string, chunks []rag.Chunk) error {
	if len(chunks) == 0 {
		return s.DeleteSession(ctx, sessionID)
	}
	if err := s.ensureCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return fmt.Errorf("failed to prepare collection: %w", err)
	}

	records := make([]milvus.Record, len(chunks))
	for i, c := range chunks {
		records[i] = milvus.Record{
			SessionID: sessionID,
			DocID:     c.Metadata.DocID,
			Start:     int64(c.Metadata.Start),
			End:       int64(c.Metadata.End),
			Content:   c.Text,
			Embedding: c.Embedding,
		}
	}
	if err := s.coll.ReplaceSession(ctx, sessionID, records); err != nil {
		return fmt.Errorf("failed to write chunks to milvus: %w", err)
	}
	return nil
}

// Search 在会话范围内执行 L2 检索，Milvus 返回的分数即距离。
func (s *MilvusVectorStore) Search(ctx context.Context, sessionID string, vector []float32, k int) ([]rag.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if ok, err := s.exists(ctx); err != nil || !ok {
		return nil, err
	}
	matches, err := s.coll.SearchSession(ctx, sessionID, vector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	hits := make([]rag.Hit, len(matches))
	for i, m := range matches {
		hits[i] = rag.Hit{
			Chunk: rag.Chunk{
				Text:     m.Content,
				Metadata: rag.ChunkMetadata{DocID: m.DocID, Start: int(m.Start), End: int(m.End)},
			},
			Distance: float64(m.Distance),
		}
	}
	return hits, nil
}

// DeleteSession 删除会话的全部文本块。
func (s *MilvusVectorStore) DeleteSession(ctx context.Context, sessionID string) error {
	if ok, err := s.exists(ctx); err != nil || !ok {
		return err
	}
	_, err := s.coll.DeleteSession(ctx, sessionID)
	return err
}

// Count 返回会话的文本块数量。
func (s *MilvusVectorStore) Count(ctx context.Context, sessionID string) (int, error) {
	if ok, err := s.exists(ctx); err != nil || !ok {
		return 0, err
	}
	n, err := s.coll.CountSession(ctx, sessionID)
	return int(n), err
}
