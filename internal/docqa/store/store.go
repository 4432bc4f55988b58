// Package store 提供会话存储与向量存储的实现。
package store

import (
	"context"
	"errors"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
)

var (
	// ErrSessionNotFound 会话不存在。
	ErrSessionNotFound = errors.New("session not found")
	// ErrDocumentNotFound 文档不存在。
	ErrDocumentNotFound = errors.New("document not found")
)

// Session store backends.
const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
	BackendMilvus   = "milvus"
)

// SessionStore 定义会话与文档的存储接口。
type SessionStore interface {
	// CreateSession 创建新会话。
	CreateSession(ctx context.Context) (*model.Session, error)
	// SessionExists 判断会话是否存在。
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	// GetSession 获取会话及其文档。
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	// AddDocument 向会话添加文档。
	AddDocument(ctx context.Context, sessionID string, doc *model.Document) error
	// GetDocuments 按添加顺序返回会话的文档。
	GetDocuments(ctx context.Context, sessionID string) ([]*model.Document, error)
	// GetDocumentText 获取单个文档的文本。
	GetDocumentText(ctx context.Context, sessionID, docID string) (string, error)
	// GetAllTexts 返回会话全部文档的文本，键为文档 ID。
	GetAllTexts(ctx context.Context, sessionID string) (map[string]string, error)
	// SetNERStatus 更新文档的实体识别状态。
	SetNERStatus(ctx context.Context, sessionID, docID string, status model.NERStatus) error
	// SetEntities 保存实体识别结果并把状态置为 completed。
	SetEntities(ctx context.Context, sessionID, docID string, entities *ner.Result) error
	// DeleteSession 删除会话及其文档，会话不存在时返回 false。
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	// ListSessionIDs 返回全部会话 ID。
	ListSessionIDs(ctx context.Context) ([]string, error)
	// CountSessions 返回会话数量。
	CountSessions(ctx context.Context) (int, error)
	// Name 返回存储类型。
	Name() string
}
