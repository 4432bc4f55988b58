// Package qa answers natural-language questions against document text.
//
// A Reader extracts an answer span from a single context. The Engine adds the
// context cap, error folding and the multi-document search on top of it, and
// consults a retrieval Augmenter first when one is configured.
package qa

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/pkg/textutil"
)

const (
	// MaxContextChars caps the context handed to a Reader.
	MaxContextChars = 4000

	// SourceRAG marks answers read from retrieved chunks.
	SourceRAG = "RAG-retrieved-chunks"

	// NoAnswer is reported when no document yields an answer.
	NoAnswer = "No answer found"

	// NoContext is reported for empty contexts.
	NoContext = "No context provided"
)

// Result is a single extracted answer. Start and End are byte offsets into
// the context the answer was read from.
type Result struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

// Reader extracts an answer span from context.
type Reader interface {
	Answer(ctx context.Context, question, passage string) (Result, error)
	Name() string
}

// Augmenter builds a retrieval-augmented context for a session.
type Augmenter interface {
	AugmentContext(ctx context.Context, sessionID, question string, maxLen int) (string, error)
}

// DocumentAnswer is the best answer across a set of documents.
type DocumentAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// Engine wraps a Reader with the service-level answering rules.
type Engine struct {
	reader   Reader
	rag      Augmenter
	maxChars int
	observe  func(time.Duration)
}

// Option configures an Engine.
type Option func(*Engine)

// WithAugmenter enables retrieval before the per-document search.
func WithAugmenter(a Augmenter) Option {
	return func(e *Engine) { e.rag = a }
}

// WithMaxContextChars overrides MaxContextChars.
func WithMaxContextChars(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxChars = n
		}
	}
}

// WithInferenceObserver is called with the duration of every read.
func WithInferenceObserver(fn func(time.Duration)) Option {
	return func(e *Engine) { e.observe = fn }
}

// NewEngine creates an Engine around reader.
func NewEngine(reader Reader, opts ...Option) *Engine {
	e := &Engine{reader: reader, maxChars: MaxContextChars}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReaderName returns the name of the underlying reader.
func (e *Engine) ReaderName() string {
	return e.reader.Name()
}

// Answer reads question against passage. It never fails: reader errors are
// folded into the answer text with a zero score.
func (e *Engine) Answer(ctx context.Context, question, passage string) Result {
	if strings.TrimSpace(passage) == "" {
		return Result{Answer: NoContext}
	}
	passage = textutil.TruncateRunes(passage, e.maxChars)

	start := time.Now()
	res, err := e.reader.Answer(ctx, question, passage)
	if e.observe != nil {
		e.observe(time.Since(start))
	}
	if err != nil {
		logger.Errorw("Error answering question", "reader", e.reader.Name(), "error", err)
		return Result{Answer: fmt.Sprintf("Error processing question: %v", err)}
	}
	return res
}

// AnswerFromDocuments finds the best answer for question. With an Augmenter
// and a session the retrieved context is answered and returned directly;
// otherwise every document is read and the highest score wins.
func (e *Engine) AnswerFromDocuments(ctx context.Context, question string, docs map[string]string, sessionID string, maxContextLength int) DocumentAnswer {
	best := DocumentAnswer{Answer: NoAnswer}

	if e.rag != nil && sessionID != "" {
		augmented, err := e.rag.AugmentContext(ctx, sessionID, question, maxContextLength)
		if err != nil {
			logger.Warnw("RAG retrieval failed, falling back to full-document search",
				"session_id", sessionID,
				"error", err,
			)
		} else if strings.TrimSpace(augmented) != "" {
			res := e.Answer(ctx, question, augmented)
			if res.Answer != "" {
				best = DocumentAnswer{Answer: res.Answer, Score: res.Score, Source: SourceRAG}
			}
			return best
		}
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := e.Answer(ctx, question, docs[id])
		if res.Score > best.Score {
			best = DocumentAnswer{Answer: res.Answer, Score: res.Score, Source: id}
		}
	}
	return best
}
