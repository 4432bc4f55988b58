// Package rag 提供会话级的检索增强：文档切块、向量化、检索以及上下文拼接。
package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"golang.org/x/sync/singleflight"

	"github.com/kart-io/docqa/internal/pkg/textutil"
	"github.com/kart-io/docqa/pkg/llm"
)

// ErrDimensionMismatch 向量数量与文本块数量不一致。
var ErrDimensionMismatch = errors.New("embedding count does not match chunk count")

// ChunkMetadata 文本块元数据，Start/End 为字符偏移。
type ChunkMetadata struct {
	DocID string `json:"doc_id"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Chunk 表示一个已向量化的文本块。
type Chunk struct {
	// Text 文本内容。
	Text string
	// Metadata 来源文档与位置。
	Metadata ChunkMetadata
	// Embedding 嵌入向量。
	Embedding []float32
}

// Hit 表示向量检索命中。
type Hit struct {
	Chunk
	// Distance L2 距离。
	Distance float64
}

// VectorStore 定义按会话隔离的向量存储接口。
type VectorStore interface {
	// Upsert 替换会话的全部文本块。
	Upsert(ctx context.Context, sessionID string, chunks []Chunk) error
	// Search 返回与 vector 最近的 k 个文本块，按距离升序。
	Search(ctx context.Context, sessionID string, vector []float32, k int) ([]Hit, error)
	// DeleteSession 删除会话的全部文本块。
	DeleteSession(ctx context.Context, sessionID string) error
	// Count 返回会话的文本块数量。
	Count(ctx context.Context, sessionID string) (int, error)
	// Name 返回存储类型。
	Name() string
}

// CachedEmbeddings 缓存的会话向量。
type CachedEmbeddings struct {
	Chunks     []string        `json:"chunks"`
	Metadata   []ChunkMetadata `json:"metadata"`
	Embeddings [][]float32     `json:"embeddings"`
}

// EmbeddingCache 会话向量缓存。
type EmbeddingCache interface {
	GetEmbeddings(ctx context.Context, sessionID string) (*CachedEmbeddings, bool)
	SetEmbeddings(ctx context.Context, sessionID string, data *CachedEmbeddings) error
}

// Retrieved 检索结果。
type Retrieved struct {
	Rank       int           `json:"rank"`
	Chunk      string        `json:"chunk"`
	Distance   float64       `json:"distance"`
	Similarity float64       `json:"similarity"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// IndexStats 会话索引统计。
type IndexStats struct {
	SessionID          string `json:"session_id"`
	NumChunks          int    `json:"num_chunks"`
	NumDocuments       int    `json:"num_documents"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	EmbeddingModel     string `json:"embedding_model"`
}

// Config 引擎配置。
type Config struct {
	// ChunkSize 文本块大小（字符）。
	ChunkSize int
	// ChunkOverlap 相邻块重叠大小（字符）。
	ChunkOverlap int
	// MinChunkLength 去除空白后长度不超过该值的块会被丢弃。
	MinChunkLength int
	// RetrieveK 拼接上下文时检索的块数。
	RetrieveK int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:      500,
		ChunkOverlap:   50,
		MinChunkLength: 50,
		RetrieveK:      10,
	}
}

type sessionIndex struct {
	documents map[string]string
	numChunks int
	dimension int
}

// Engine 会话级检索增强引擎。
type Engine struct {
	store    VectorStore
	embedder llm.EmbeddingProvider
	cache    EmbeddingCache
	config   *Config

	group singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*sessionIndex
}

// Option 引擎选项。
type Option func(*Engine)

// WithEmbeddingCache 设置向量缓存。
func WithEmbeddingCache(c EmbeddingCache) Option {
	return func(e *Engine) { e.cache = c }
}

// NewEngine 创建引擎实例。
func NewEngine(store VectorStore, embedder llm.EmbeddingProvider, config *Config, opts ...Option) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	e := &Engine{
		store:    store,
		embedder: embedder,
		config:   config,
		sessions: make(map[string]*sessionIndex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbeddingModel 返回嵌入模型标识。
func (e *Engine) EmbeddingModel() string {
	return e.embedder.Name() + ":" + e.embedder.Model()
}

// StoreName 返回向量存储类型。
func (e *Engine) StoreName() string {
	return e.store.Name()
}

// Chunk 把文档切分为重叠的文本块，文档按 ID 排序处理。
func (e *Engine) Chunk(docs map[string]string) []Chunk {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	step := e.config.ChunkSize - e.config.ChunkOverlap
	var chunks []Chunk
	for _, id := range ids {
		for _, w := range textutil.SlidingWindows(docs[id], e.config.ChunkSize, step) {
			if len([]rune(strings.TrimSpace(w.Text))) <= e.config.MinChunkLength {
				continue
			}
			chunks = append(chunks, Chunk{
				Text:     w.Text,
				Metadata: ChunkMetadata{DocID: id, Start: w.Start, End: w.End},
			})
		}
	}
	return chunks
}

func buildKey(sessionID string, docs map[string]string) string {
	ids := make([]string, 0, len(docs))
	for id, text := range docs {
		ids = append(ids, fmt.Sprintf("%s/%d", id, len(text)))
	}
	sort.Strings(ids)
	return sessionID + ":" + textutil.HashString(strings.Join(ids, ","))
}

// CreateSessionIndex 为会话重建索引，没有有效文本块时返回 false。
// 同一会话相同文档集合的并发重建只执行一次。
func (e *Engine) CreateSessionIndex(ctx context.Context, sessionID string, docs map[string]string) (bool, error) {
	v, err, _ := e.group.Do(buildKey(sessionID, docs), func() (interface{}, error) {
		return e.createSessionIndex(ctx, sessionID, docs)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (e *Engine) createSessionIndex(ctx context.Context, sessionID string, docs map[string]string) (bool, error) {
	chunks := e.Chunk(docs)
	if len(chunks) == 0 {
		logger.Warnw("No valid chunks found for session", "session_id", sessionID)
		return false, nil
	}

	if err := e.embedChunks(ctx, sessionID, chunks); err != nil {
		return false, err
	}

	if err := e.store.Upsert(ctx, sessionID, chunks); err != nil {
		return false, fmt.Errorf("failed to store chunks: %w", err)
	}

	copied := make(map[string]string, len(docs))
	for k, v := range docs {
		copied[k] = v
	}
	e.mu.Lock()
	e.sessions[sessionID] = &sessionIndex{
		documents: copied,
		numChunks: len(chunks),
		dimension: len(chunks[0].Embedding),
	}
	e.mu.Unlock()

	if e.cache != nil {
		data := &CachedEmbeddings{
			Chunks:     make([]string, len(chunks)),
			Metadata:   make([]ChunkMetadata, len(chunks)),
			Embeddings: make([][]float32, len(chunks)),
		}
		for i, c := range chunks {
			data.Chunks[i] = c.Text
			data.Metadata[i] = c.Metadata
			data.Embeddings[i] = c.Embedding
		}
		if err := e.cache.SetEmbeddings(ctx, sessionID, data); err != nil {
			logger.Warnw("Failed to cache embeddings", "session_id", sessionID, "error", err)
		}
	}

	logger.Infow("Created RAG index",
		"session_id", sessionID,
		"chunks", len(chunks),
		"documents", len(docs),
		"store", e.store.Name(),
	)
	return true, nil
}

// embedChunks 为文本块生成向量，缓存中已有的文本块直接复用。
func (e *Engine) embedChunks(ctx context.Context, sessionID string, chunks []Chunk) error {
	known := make(map[string][]float32)
	if e.cache != nil {
		if cached, ok := e.cache.GetEmbeddings(ctx, sessionID); ok && len(cached.Chunks) == len(cached.Embeddings) {
			for i, text := range cached.Chunks {
				known[text] = cached.Embeddings[i]
			}
		}
	}

	var texts []string
	var pending []int
	for i := range chunks {
		if vec, ok := known[chunks[i].Text]; ok {
			chunks[i].Embedding = vec
			continue
		}
		texts = append(texts, textutil.Normalize(chunks[i].Text))
		pending = append(pending, i)
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return ErrDimensionMismatch
	}
	for j, i := range pending {
		chunks[i].Embedding = vectors[j]
	}
	logger.Debugw("Embedded chunks",
		"session_id", sessionID,
		"embedded", len(texts),
		"reused", len(chunks)-len(texts),
	)
	return nil
}

func (e *Engine) session(sessionID string) (*sessionIndex, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.sessions[sessionID]
	return idx, ok
}

// HasIndex 判断会话是否已建立索引。
func (e *Engine) HasIndex(sessionID string) bool {
	_, ok := e.session(sessionID)
	return ok
}

// Retrieve 检索与 query 最相关的 topK 个文本块，未建立索引的会话返回空结果。
func (e *Engine) Retrieve(ctx context.Context, sessionID, query string, topK int) ([]Retrieved, error) {
	idx, ok := e.session(sessionID)
	if !ok {
		logger.Debugw("No index found for session", "session_id", sessionID)
		return nil, nil
	}
	if topK > idx.numChunks {
		topK = idx.numChunks
	}
	if topK <= 0 {
		return nil, nil
	}

	vector, err := e.embedder.EmbedSingle(ctx, textutil.Normalize(query))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.store.Search(ctx, sessionID, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	results := make([]Retrieved, 0, len(hits))
	for i, h := range hits {
		results = append(results, Retrieved{
			Rank:       i + 1,
			Chunk:      h.Text,
			Distance:   h.Distance,
			Similarity: textutil.SimilarityFromDistance(h.Distance),
			Metadata:   h.Metadata,
		})
	}
	return results, nil
}

// AugmentContext 检索相关文本块并按原文位置拼接为问答上下文，结果截断到 maxLen 个字符。
// 没有检索结果时退化为拼接会话全部文档，未建立索引的会话返回空字符串。
func (e *Engine) AugmentContext(ctx context.Context, sessionID, question string, maxLen int) (string, error) {
	idx, ok := e.session(sessionID)
	if !ok {
		return "", nil
	}

	chunks, err := e.Retrieve(ctx, sessionID, question, e.config.RetrieveK)
	if err != nil {
		return "", err
	}

	var joined string
	if len(chunks) == 0 {
		ids := make([]string, 0, len(idx.documents))
		for id := range idx.documents {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		texts := make([]string, len(ids))
		for i, id := range ids {
			texts[i] = idx.documents[id]
		}
		joined = strings.Join(texts, "\n\n")
	} else {
		sort.SliceStable(chunks, func(i, j int) bool {
			return chunks[i].Metadata.Start < chunks[j].Metadata.Start
		})
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Chunk
		}
		joined = strings.Join(texts, "\n\n")
	}

	if maxLen > 0 {
		joined = textutil.TruncateRunes(joined, maxLen)
	}
	return joined, nil
}

// DeleteSession 删除会话索引。
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()

	if err := e.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session chunks: %w", err)
	}
	logger.Infow("Deleted RAG index", "session_id", sessionID)
	return nil
}

// IndexStats 返回会话索引统计，未建立索引时返回 nil。
func (e *Engine) IndexStats(ctx context.Context, sessionID string) (*IndexStats, error) {
	idx, ok := e.session(sessionID)
	if !ok {
		return nil, nil
	}
	count, err := e.store.Count(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &IndexStats{
		SessionID:          sessionID,
		NumChunks:          count,
		NumDocuments:       len(idx.documents),
		EmbeddingDimension: idx.dimension,
		EmbeddingModel:     e.EmbeddingModel(),
	}, nil
}
