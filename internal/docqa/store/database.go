package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/pkg/utils/id"
)

// DBStore 基于 gorm 的会话存储，支持 sqlite、mysql 和 postgres。
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ SessionStore = (*DBStore)(nil)

// NewDBStore 创建数据库会话存储，autoMigrate 为 true 时创建或更新表结构。
func NewDBStore(db *gorm.DB, autoMigrate bool) (*DBStore, error) {
	if autoMigrate {
		if err := db.AutoMigrate(&model.Session{}, &model.Document{}); err != nil {
			return nil, fmt.Errorf("failed to migrate session tables: %w", err)
		}
	}
	return &DBStore{db: db, now: time.Now}, nil
}

// Name 返回存储类型。
func (s *DBStore) Name() string {
	return BackendDatabase
}

// CreateSession 创建新会话。
func (s *DBStore) CreateSession(ctx context.Context) (*model.Session, error) {
	sess := &model.Session{
		ID:        id.NewUUID(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, err
	}
	sess.Documents = make(map[string]*model.Document)
	return sess, nil
}

// SessionExists 判断会话是否存在。
func (s *DBStore) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetSession 获取会话及其文档。
func (s *DBStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var sess model.Session
	if err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	docs, err := s.documents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Documents = make(map[string]*model.Document, len(docs))
	for _, d := range docs {
		sess.Documents[d.ID] = d
	}
	return &sess, nil
}

// AddDocument 向会话添加文档。
func (s *DBStore) AddDocument(ctx context.Context, sessionID string, doc *model.Document) error {
	exists, err := s.SessionExists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !exists {
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
	return s.db.WithContext(ctx).Create(&d).Error
}

func (s *DBStore) documents(ctx context.Context, sessionID string) ([]*model.Document, error) {
	var docs []*model.Document
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("added_at ASC").
		Order("id ASC").
		Find(&docs).Error
	return docs, err
}

// GetDocuments 按添加顺序返回会话的文档。
func (s *DBStore) GetDocuments(ctx context.Context, sessionID string) ([]*model.Document, error) {
	exists, err := s.SessionExists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s.documents(ctx, sessionID)
}

// GetDocumentText 获取单个文档的文本。
func (s *DBStore) GetDocumentText(ctx context.Context, sessionID, docID string) (string, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).
		Select("id", "text").
		Where("session_id = ? AND id = ?", sessionID, docID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDocumentNotFound
		}
		return "", err
	}
	return doc.Text, nil
}

// GetAllTexts 返回会话全部文档的文本。
func (s *DBStore) GetAllTexts(ctx context.Context, sessionID string) (map[string]string, error) {
	docs, err := s.GetDocuments(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	texts := make(map[string]string, len(docs))
	for _, d := range docs {
		texts[d.ID] = d.Text
	}
	return texts, nil
}

// SetNERStatus 更新文档的实体识别状态。
func (s *DBStore) SetNERStatus(ctx context.Context, sessionID, docID string, status model.NERStatus) error {
	result := s.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("session_id = ? AND id = ?", sessionID, docID).
		Update("ner_status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.requireDocument(ctx, sessionID, docID)
	}
	return nil
}

// SetEntities 保存实体识别结果并把状态置为 completed。
func (s *DBStore) SetEntities(ctx context.Context, sessionID, docID string, entities *ner.Result) error {
	result := s.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("session_id = ? AND id = ?", sessionID, docID).
		Select("entities", "ner_status").
		Updates(&model.Document{Entities: entities, NERStatus: model.NERCompleted})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.requireDocument(ctx, sessionID, docID)
	}
	return nil
}

// requireDocument 确认文档存在。MySQL 对未改变的行返回 0 影响行数，
// 不能据此判断文档不存在。
func (s *DBStore) requireDocument(ctx context.Context, sessionID, docID string) error {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("session_id = ? AND id = ?", sessionID, docID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteSession 在事务中删除会话及其文档。
func (s *DBStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.Document{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", sessionID).Delete(&model.Session{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// ListSessionIDs 返回按创建时间排序的会话 ID。
func (s *DBStore) ListSessionIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&model.Session{}).
		Order("created_at ASC").
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// CountSessions 返回会话数量。
func (s *DBStore) CountSessions(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Session{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
