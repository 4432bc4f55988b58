package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/pkg/utils/id"
)

// MemoryStore 基于内存的会话存储。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	now      func() time.Time
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore 创建内存会话存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.Session),
		now:      time.Now,
	}
}

// Name 返回存储类型。
func (s *MemoryStore) Name() string {
	return BackendMemory
}

// CreateSession 创建新会话。
func (s *MemoryStore) CreateSession(_ context.Context) (*model.Session, error) {
	sess := &model.Session{
		ID:        id.NewUUID(),
		CreatedAt: s.now().UTC(),
		Documents: make(map[string]*model.Document),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.Clone(), nil
}

// SessionExists 判断会话是否存在。
func (s *MemoryStore) SessionExists(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok, nil
}

// GetSession 获取会话副本。
func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// AddDocument 向会话添加文档。
func (s *MemoryStore) AddDocument(_ context.Context, sessionID string, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	d := *doc
	d.SessionID = sessionID
	d.Size = len(d.Text)
	if d.AddedAt.IsZero() {
		d.AddedAt = s.now().UTC()
	}
	if d.NERStatus == "" {
		d.NERStatus = model.NERPending
	}
	sess.Documents[d.ID] = &d
	return nil
}

// GetDocuments 按添加顺序返回会话的文档副本。
func (s *MemoryStore) GetDocuments(_ context.Context, sessionID string) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	docs := make([]*model.Document, 0, len(sess.Documents))
	for _, d := range sess.Documents {
		dc := *d
		docs = append(docs, &dc)
	}
	sortDocuments(docs)
	return docs, nil
}

func sortDocuments(docs []*model.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].AddedAt.Equal(docs[j].AddedAt) {
			return docs[i].AddedAt.Before(docs[j].AddedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

// GetDocumentText 获取单个文档的文本。
func (s *MemoryStore) GetDocumentText(_ context.Context, sessionID, docID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	doc, ok := sess.Documents[docID]
	if !ok {
		return "", ErrDocumentNotFound
	}
	return doc.Text, nil
}

// GetAllTexts 返回会话全部文档的文本。
func (s *MemoryStore) GetAllTexts(_ context.Context, sessionID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	texts := make(map[string]string, len(sess.Documents))
	for id, d := range sess.Documents {
		texts[id] = d.Text
	}
	return texts, nil
}

func (s *MemoryStore) updateDocument(sessionID, docID string, fn func(*model.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	doc, ok := sess.Documents[docID]
	if !ok {
		return ErrDocumentNotFound
	}
	fn(doc)
	return nil
}

// SetNERStatus 更新文档的实体识别状态。
func (s *MemoryStore) SetNERStatus(_ context.Context, sessionID, docID string, status model.NERStatus) error {
	return s.updateDocument(sessionID, docID, func(d *model.Document) {
		d.NERStatus = status
	})
}

// SetEntities 保存实体识别结果。
func (s *MemoryStore) SetEntities(_ context.Context, sessionID, docID string, entities *ner.Result) error {
	return s.updateDocument(sessionID, docID, func(d *model.Document) {
		d.Entities = entities
		d.NERStatus = model.NERCompleted
	})
}

// DeleteSession 删除会话及其文档。
func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

// ListSessionIDs 返回按创建时间排序的会话 ID。
func (s *MemoryStore) ListSessionIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	sessions := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	return ids, nil
}

// CountSessions 返回会话数量。
func (s *MemoryStore) CountSessions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
