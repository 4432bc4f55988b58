// Package model provides the persisted data models of the docqa service.
package model

import (
	"time"

	"github.com/kart-io/docqa/internal/pkg/ner"
)

// NERStatus tracks background entity recognition of a document.
type NERStatus string

// NER statuses.
const (
	NERPending    NERStatus = "pending"
	NERProcessing NERStatus = "processing"
	NERCompleted  NERStatus = "completed"
	NERFailed     NERStatus = "failed"
)

// Session groups the documents a user asks questions about.
type Session struct {
	ID        string               `json:"session_id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time            `json:"created_at" gorm:"not null;index"`
	Documents map[string]*Document `json:"-" gorm:"-"`
}

// TableName specifies the table name for Session.
func (Session) TableName() string {
	return "docqa_sessions"
}

// Document is an uploaded file and its extracted text.
type Document struct {
	ID        string      `json:"doc_id" gorm:"primaryKey;type:varchar(36)"`
	SessionID string      `json:"session_id" gorm:"type:varchar(36);index;not null"`
	Filename  string      `json:"filename" gorm:"type:varchar(255);not null"`
	Text      string      `json:"text"`
	Size      int         `json:"text_length" gorm:"not null;default:0"`
	AddedAt   time.Time   `json:"added_at" gorm:"not null;index"`
	NERStatus NERStatus   `json:"ner_status" gorm:"type:varchar(16);not null;default:'pending'"`
	Entities  *ner.Result `json:"entities" gorm:"serializer:json"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "docqa_documents"
}

// Clone returns a copy of the session with copied documents.
func (s *Session) Clone() *Session {
	c := &Session{ID: s.ID, CreatedAt: s.CreatedAt, Documents: make(map[string]*Document, len(s.Documents))}
	for id, d := range s.Documents {
		dc := *d
		c.Documents[id] = &dc
	}
	return c
}
