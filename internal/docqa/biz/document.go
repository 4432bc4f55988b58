package biz

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/extractor"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/internal/pkg/rag"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/infra/tracing"
	errs "github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/id"
	"github.com/kart-io/docqa/pkg/utils/validator"
)

// TextExtractor 从上传文件中提取文本。
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// UploadFile is one file of an upload request.
type UploadFile struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// DocumentConfig 文档服务配置。
type DocumentConfig struct {
	// MaxFileSize 单个文件的字节上限。
	MaxFileSize int64
	// Concurrency 并行提取的文件数。
	Concurrency int
	// NERChunkSize 后台实体识别的分块字符数。
	NERChunkSize int
}

// DefaultDocumentConfig 返回默认配置。
func DefaultDocumentConfig() *DocumentConfig {
	return &DocumentConfig{
		MaxFileSize:  50 << 20,
		Concurrency:  4,
		NERChunkSize: ner.DefaultChunkSize,
	}
}

// DocumentService handles uploads, background entity recognition and
// retrieval indexing.
type DocumentService struct {
	sessions  store.SessionStore
	extractor TextExtractor
	ner       *ner.Service
	rag       *rag.Engine
	metrics   *metrics.Metrics
	config    *DocumentConfig
}

// NewDocumentService creates a DocumentService. nerService and ragEngine may
// be nil when the features are disabled.
func NewDocumentService(
	sessions store.SessionStore,
	ext TextExtractor,
	nerService *ner.Service,
	ragEngine *rag.Engine,
	m *metrics.Metrics,
	config *DocumentConfig,
) *DocumentService {
	if config == nil {
		config = DefaultDocumentConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &DocumentService{
		sessions:  sessions,
		extractor: ext,
		ner:       nerService,
		rag:       ragEngine,
		metrics:   m,
		config:    config,
	}
}

type extracted struct {
	file UploadFile
	text string
	err  error
}

// Upload extracts and stores files in a session. An empty sessionID creates a
// new session. Files with unsupported extensions are skipped, extraction
// failures are reported per file.
func (s *DocumentService) Upload(ctx context.Context, sessionID string, files []UploadFile) (*model.UploadResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "biz.document.upload", attribute.Int("files", len(files)))
	defer span.End()

	if len(files) == 0 {
		return nil, errs.ErrNoFiles
	}

	sessionID = validator.NormalizeSessionID(sessionID)
	if sessionID == "" {
		sess, err := s.sessions.CreateSession(ctx)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, toErrno(err)
		}
		sessionID = sess.ID
	} else {
		ok := validator.IsSessionID(sessionID)
		if ok {
			var err error
			if ok, err = s.sessions.SessionExists(ctx, sessionID); err != nil {
				tracing.RecordError(span, err)
				return nil, toErrno(err)
			}
		}
		if !ok {
			return nil, errs.ErrSessionNotFound
		}
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	accepted := make([]UploadFile, 0, len(files))
	for _, f := range files {
		if !extractor.IsSupported(f.Filename) {
			logger.Warnw("Unsupported file type", "filename", f.Filename)
			continue
		}
		accepted = append(accepted, f)
	}

	results := make([]extracted, len(accepted))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, f := range accepted {
		g.Go(func() error {
			text, err := s.extract(gctx, f)
			results[i] = extracted{file: f, text: text, err: err}
			return nil
		})
	}
	_ = g.Wait()

	resp := &model.UploadResponse{SessionID: sessionID, Documents: make([]model.UploadResult, 0, len(results))}
	succeeded := 0
	for _, r := range results {
		if r.err != nil {
			logger.Errorw("Extraction failed", "filename", r.file.Filename, "error", r.err.Error())
			s.metrics.IncDocumentsUploaded(model.UploadError)
			resp.Documents = append(resp.Documents, model.UploadResult{
				Filename: r.file.Filename,
				Status:   model.UploadError,
				Error:    "Extraction failed: " + r.err.Error(),
			})
			continue
		}

		doc := &model.Document{
			ID:       id.NewUUID(),
			Filename: r.file.Filename,
			Text:     r.text,
		}
		if err := s.sessions.AddDocument(ctx, sessionID, doc); err != nil {
			logger.Errorw("Error storing document", "filename", r.file.Filename, "error", err.Error())
			s.metrics.IncDocumentsUploaded(model.UploadError)
			resp.Documents = append(resp.Documents, model.UploadResult{
				Filename: r.file.Filename,
				Status:   model.UploadError,
				Error:    err.Error(),
			})
			continue
		}
		s.scheduleNER(ctx, sessionID, doc.ID, r.text)

		size := len(r.text)
		resp.Documents = append(resp.Documents, model.UploadResult{
			DocID:      doc.ID,
			Filename:   r.file.Filename,
			TextLength: &size,
			Status:     model.UploadSuccess,
		})
		s.metrics.IncDocumentsUploaded(model.UploadSuccess)
		succeeded++
		logger.Infow("Processed document", "filename", r.file.Filename, "doc_id", doc.ID, "text_length", size)
	}
	resp.DocumentsUploaded = succeeded

	if succeeded > 0 {
		s.rebuildIndex(ctx, sessionID)
	}
	return resp, nil
}

func (s *DocumentService) extract(ctx context.Context, f UploadFile) (string, error) {
	if !validator.IsSafeFilename(f.Filename) {
		return "", errs.ErrInvalidFilename
	}
	limit := s.config.MaxFileSize
	if limit > 0 && f.Size > limit {
		return "", fmt.Errorf("file exceeds %d MB limit", limit>>20)
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = rc.Close() }()

	r := io.Reader(rc)
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", fmt.Errorf("file exceeds %d MB limit", limit>>20)
	}
	return s.extractor.Extract(ctx, f.Filename, data)
}

func (s *DocumentService) rebuildIndex(ctx context.Context, sessionID string) {
	if s.rag == nil {
		return
	}
	docs, err := s.sessions.GetAllTexts(ctx, sessionID)
	if err != nil || len(docs) == 0 {
		if err != nil {
			logger.Warnw("Failed to load texts for RAG index", "session_id", sessionID, "error", err.Error())
		}
		return
	}
	ok, err := s.rag.CreateSessionIndex(ctx, sessionID, docs)
	if err != nil {
		logger.Warnw("Failed to create RAG index", "session_id", sessionID, "error", err.Error())
		return
	}
	logger.Infow("RAG index created", "session_id", sessionID, "indexed", ok)
}

// scheduleNER runs entity recognition on the background pool.
func (s *DocumentService) scheduleNER(ctx context.Context, sessionID, docID, text string) {
	if s.ner == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	pool.Go(pool.BackgroundPool, func() {
		s.ProcessNER(bg, sessionID, docID, text)
	})
	logger.Debugw("Scheduled background NER task", "doc_id", docID)
}

// ProcessNER recognises the entities of a stored document and records the
// outcome in its NER status.
func (s *DocumentService) ProcessNER(ctx context.Context, sessionID, docID, text string) {
	ctx, span := tracing.StartSpan(ctx, "biz.document.ner",
		attribute.String("session.id", sessionID),
		attribute.String("document.id", docID),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("NER task panicked", "doc_id", docID, "panic", r, "stack", string(debug.Stack()))
			s.failNER(ctx, sessionID, docID)
		}
	}()

	if err := s.sessions.SetNERStatus(ctx, sessionID, docID, model.NERProcessing); err != nil {
		logger.Errorw("Failed to mark NER processing", "doc_id", docID, "error", err.Error())
		s.failNER(ctx, sessionID, docID)
		return
	}

	if text == "" {
		logger.Warnw("Document has no text, skipping NER", "doc_id", docID)
		if err := s.sessions.SetNERStatus(ctx, sessionID, docID, model.NERCompleted); err != nil {
			logger.Errorw("Failed to mark NER completed", "doc_id", docID, "error", err.Error())
		}
		s.metrics.IncNERTasks(string(model.NERCompleted))
		return
	}

	result, err := s.ner.Analyze(ctx, text, s.config.NERChunkSize)
	if err != nil {
		tracing.RecordError(span, err)
		logger.Errorw("NER processing failed", "doc_id", docID, "error", err.Error())
		s.failNER(ctx, sessionID, docID)
		return
	}
	if err := s.sessions.SetEntities(ctx, sessionID, docID, result); err != nil {
		tracing.RecordError(span, err)
		logger.Errorw("Failed to save entities", "doc_id", docID, "error", err.Error())
		s.failNER(ctx, sessionID, docID)
		return
	}
	s.metrics.IncNERTasks(string(model.NERCompleted))
	logger.Infow("NER processing complete",
		"doc_id", docID,
		"entities", len(result.Entities),
		"duration", time.Since(start).String(),
	)
}

func (s *DocumentService) failNER(ctx context.Context, sessionID, docID string) {
	s.metrics.IncNERTasks(string(model.NERFailed))
	if err := s.sessions.SetNERStatus(ctx, sessionID, docID, model.NERFailed); err != nil {
		logger.Errorw("Failed to mark NER failed", "doc_id", docID, "error", err.Error())
	}
}
