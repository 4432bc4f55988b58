// Package ner recognises named entities in document text and renders them as
// structured data, HTML or Markdown highlights.
package ner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/pkg/textutil"
)

// Highlight formats.
const (
	FormatDict     = "dict"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// DefaultChunkSize is the number of characters analysed per recognizer call.
const DefaultChunkSize = 50000

// Entity is a recognised span. Start and End are byte offsets into the
// analysed text.
type Entity struct {
	Text             string `json:"text"`
	Label            string `json:"label"`
	Start            int    `json:"start"`
	End              int    `json:"end"`
	LabelDescription string `json:"label_description"`
}

// Result is the stored outcome of analysing a document.
type Result struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// Recognizer finds entities in text.
type Recognizer interface {
	Entities(ctx context.Context, text string) ([]Entity, error)
	Labels() map[string]string
	Name() string
}

// Service renders recognizer output in the shapes the API exposes.
type Service struct {
	rec     Recognizer
	observe func(time.Duration)
}

// Option configures a Service.
type Option func(*Service)

// WithInferenceObserver is called with the duration of every recognizer call.
func WithInferenceObserver(fn func(time.Duration)) Option {
	return func(s *Service) { s.observe = fn }
}

// NewService creates a Service around rec.
func NewService(rec Recognizer, opts ...Option) *Service {
	s := &Service{rec: rec}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecognizerName returns the name of the underlying recognizer.
func (s *Service) RecognizerName() string {
	return s.rec.Name()
}

// Entities returns the entities of text with label descriptions filled in.
func (s *Service) Entities(ctx context.Context, text string) ([]Entity, error) {
	start := time.Now()
	ents, err := s.rec.Entities(ctx, text)
	if s.observe != nil {
		s.observe(time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	for i := range ents {
		if ents[i].LabelDescription == "" {
			ents[i].LabelDescription = Explain(ents[i].Label)
		}
	}
	return ents, nil
}

// Analyze recognises entities in text chunk by chunk. Chunks hold at most
// chunkSize characters and entity offsets are shifted back into text.
func (s *Service) Analyze(ctx context.Context, text string, chunkSize int) (*Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	result := &Result{Text: text, Entities: []Entity{}}
	for _, seg := range textutil.SplitRunes(text, chunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ents, err := s.Entities(ctx, seg.Text)
		if err != nil {
			return nil, fmt.Errorf("recognize chunk at %d: %w", seg.Offset, err)
		}
		for _, e := range ents {
			e.Start += seg.Offset
			e.End += seg.Offset
			result.Entities = append(result.Entities, e)
		}
	}
	return result, nil
}

// Highlight renders the entities of text in format. Recognizer failures are
// reported in the "error" field.
func (s *Service) Highlight(ctx context.Context, text, format string) map[string]interface{} {
	ents, err := s.Entities(ctx, text)
	if err != nil {
		logger.Errorw("Error highlighting entities", "recognizer", s.rec.Name(), "error", err)
		return map[string]interface{}{"text": text, "error": err.Error()}
	}
	return Render(text, ents, format)
}

// Render renders already recognised entities of text in format. Unknown
// formats return the text unchanged.
func Render(text string, ents []Entity, format string) map[string]interface{} {
	switch format {
	case FormatDict:
		if ents == nil {
			ents = []Entity{}
		}
		return map[string]interface{}{"text": text, "entities": ents}
	case FormatHTML:
		return map[string]interface{}{
			"text": replaceBackwards(text, ents, func(e Entity) string {
				tag := strings.ReplaceAll(strings.ToLower(e.Label), "_", "-")
				return fmt.Sprintf(`<mark class="entity %s" title="%s">%s</mark>`, tag, e.Label, e.Text)
			}),
			"format": FormatHTML,
		}
	case FormatMarkdown:
		return map[string]interface{}{
			"text": replaceBackwards(text, ents, func(e Entity) string {
				return fmt.Sprintf("**%s** (%s)", e.Text, e.Label)
			}),
			"format": FormatMarkdown,
		}
	default:
		return map[string]interface{}{"text": text, "format": format}
	}
}

func replaceBackwards(text string, ents []Entity, render func(Entity) string) string {
	sorted := make([]Entity, len(ents))
	copy(sorted, ents)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	out := text
	for _, e := range sorted {
		if e.Start < 0 || e.End > len(out) || e.Start > e.End {
			continue
		}
		out = out[:e.Start] + render(e) + out[e.End:]
	}
	return out
}

// GroupByLabel returns entity texts grouped by label.
func GroupByLabel(ents []Entity) map[string][]string {
	grouped := make(map[string][]string)
	for _, e := range ents {
		grouped[e.Label] = append(grouped[e.Label], e.Text)
	}
	return grouped
}

// Labels returns the labels the recognizer can emit with their descriptions.
func (s *Service) Labels() map[string]string {
	return s.rec.Labels()
}
