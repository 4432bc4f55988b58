package model

import (
	"time"

	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/internal/pkg/rag"
)

// Session statuses returned by the session endpoints.
const (
	StatusCreated = "created"
	StatusDeleted = "deleted"
)

// Upload outcomes of a single file.
const (
	UploadSuccess = "success"
	UploadError   = "error"
)

// CreateSessionResponse is returned by POST /session.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// DeleteSessionResponse is returned by DELETE /session/:id.
type DeleteSessionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// UploadResult is the outcome of one uploaded file.
type UploadResult struct {
	DocID      string `json:"doc_id,omitempty"`
	Filename   string `json:"filename"`
	TextLength *int   `json:"text_length,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	SessionID         string         `json:"session_id"`
	DocumentsUploaded int            `json:"documents_uploaded"`
	Documents         []UploadResult `json:"documents"`
}

// DocumentView is a stored document as shown by GET /session/:id.
type DocumentView struct {
	DocID      string      `json:"doc_id"`
	Filename   string      `json:"filename"`
	Text       string      `json:"text"`
	TextLength int         `json:"text_length"`
	AddedAt    time.Time   `json:"added_at"`
	NERStatus  NERStatus   `json:"ner_status"`
	Entities   *ner.Result `json:"entities"`

	// EntityGroups lists entity texts by label once recognition completed.
	EntityGroups map[string][]string `json:"entity_groups,omitempty"`
	// Highlighted is the text with entities marked up, when a format was requested.
	Highlighted string `json:"highlighted,omitempty"`
}

// SessionDetail is returned by GET /session/:id.
type SessionDetail struct {
	SessionID     string         `json:"session_id"`
	CreatedAt     time.Time      `json:"created_at"`
	DocumentCount int            `json:"document_count"`
	Documents     []DocumentView `json:"documents"`
	// RAGIndex is set when the session has a retrieval index.
	RAGIndex *rag.IndexStats `json:"rag_index,omitempty"`
}

// SessionCount is returned by GET /sessions/count.
type SessionCount struct {
	ActiveSessions int      `json:"active_sessions"`
	Sessions       []string `json:"sessions"`
}
