package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kart-io/docqa/internal/pkg/rag"
	"github.com/kart-io/docqa/internal/pkg/textutil"
)

// MemoryVectorStore 按会话保存文本块的精确 L2 平铺索引。
type MemoryVectorStore struct {
	mu     sync.RWMutex
	chunks map[string][]rag.Chunk
}

var _ rag.VectorStore = (*MemoryVectorStore)(nil)

// NewMemoryVectorStore 创建内存向量存储。
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{chunks: make(map[string][]rag.Chunk)}
}

// Name 返回存储类型。
func (s *MemoryVectorStore) Name() string {
	return BackendMemory
}

// Upsert 替换会话的全部文本块。
func (s *MemoryVectorStore) Upsert(_ context.Context, sessionID string, chunks []rag.Chunk) error {
	copied := make([]rag.Chunk, len(chunks))
	copy(copied, chunks)
	s.mu.Lock()
	s.chunks[sessionID] = copied
	s.mu.Unlock()
	return nil
}

// Search 计算查询向量与会话全部文本块的平方 L2 距离，返回最近的 k 个。
func (s *MemoryVectorStore) Search(ctx context.Context, sessionID string, vector []float32, k int) ([]rag.Hit, error) {
	s.mu.RLock()
	chunks := s.chunks[sessionID]
	s.mu.RUnlock()

	if k <= 0 || len(chunks) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]rag.Hit, len(chunks))
	for i, c := range chunks {
		hits[i] = rag.Hit{Chunk: c, Distance: textutil.SquaredL2Distance(vector, c.Embedding)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteSession 删除会话的全部文本块。
func (s *MemoryVectorStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.chunks, sessionID)
	s.mu.Unlock()
	return nil
}

// Count 返回会话的文本块数量。
func (s *MemoryVectorStore) Count(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[sessionID]), nil
}
