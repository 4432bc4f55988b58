package model

import "github.com/kart-io/docqa/internal/pkg/ner"

// DefaultMaxContextLength is used when a request leaves max_context_length unset.
const DefaultMaxContextLength = 4000

// Fallback values of answers.
const (
	NoAnswer      = "No answer found"
	UnknownSource = "Unknown"
	NoDocument    = "None"
)

// AskRequest is the body of POST /ask and POST /ask-detailed.
type AskRequest struct {
	SessionID         string `json:"session_id" binding:"required"`
	Question          string `json:"question" binding:"required"`
	DocID             string `json:"doc_id,omitempty"`
	HighlightEntities *bool  `json:"highlight_entities,omitempty"`
	MaxContextLength  int    `json:"max_context_length,omitempty" binding:"omitempty,min=1"`
}

// Highlight reports whether answer entities were requested. Defaults to true.
func (r *AskRequest) Highlight() bool {
	return r.HighlightEntities == nil || *r.HighlightEntities
}

// ContextLength returns the requested context length or the default.
func (r *AskRequest) ContextLength() int {
	if r.MaxContextLength <= 0 {
		return DefaultMaxContextLength
	}
	return r.MaxContextLength
}

// AskResponse is returned by POST /ask.
type AskResponse struct {
	Question   string       `json:"question"`
	Answer     string       `json:"answer"`
	Confidence float64      `json:"confidence"`
	SourceDoc  string       `json:"source_doc"`
	Entities   []ner.Entity `json:"entities"`
}

// DocumentAnswer is the answer read from one document.
type DocumentAnswer struct {
	DocID      string       `json:"doc_id"`
	Answer     string       `json:"answer"`
	Confidence float64      `json:"confidence"`
	Entities   []ner.Entity `json:"entities"`
}

// AskDetailedResponse is returned by POST /ask-detailed.
type AskDetailedResponse struct {
	Question   string           `json:"question"`
	Answers    []DocumentAnswer `json:"answers"`
	BestAnswer DocumentAnswer   `json:"best_answer"`
}
