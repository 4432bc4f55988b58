package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/internal/pkg/rag"
	"github.com/kart-io/docqa/pkg/infra/tracing"
	errs "github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/validator"
)

// SessionService manages sessions and their lifecycle across the stores.
type SessionService struct {
	sessions store.SessionStore
	rag      *rag.Engine
	cache    *ResultCache
	metrics  *metrics.Metrics
}

// NewSessionService creates a SessionService. ragEngine may be nil.
func NewSessionService(sessions store.SessionStore, ragEngine *rag.Engine, cache *ResultCache, m *metrics.Metrics) *SessionService {
	return &SessionService{
		sessions: sessions,
		rag:      ragEngine,
		cache:    cache,
		metrics:  m,
	}
}

// Create starts a new empty session.
func (s *SessionService) Create(ctx context.Context) (*model.CreateSessionResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "biz.session.create")
	defer span.End()

	sess, err := s.sessions.CreateSession(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, toErrno(err)
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	logger.Infow("Created session", "session_id", sess.ID)
	s.refreshActive(ctx)

	return &model.CreateSessionResponse{SessionID: sess.ID, Status: model.StatusCreated}, nil
}

// Exists reports whether sessionID names a stored session. Ids that are not
// UUIDs never exist.
func (s *SessionService) Exists(ctx context.Context, sessionID string) (bool, error) {
	sessionID = validator.NormalizeSessionID(sessionID)
	if !validator.IsSessionID(sessionID) {
		return false, nil
	}
	ok, err := s.sessions.SessionExists(ctx, sessionID)
	if err != nil {
		return false, toErrno(err)
	}
	return ok, nil
}

// Get returns the session with its documents in upload order. A format of
// html or markdown also renders each document with its entities marked up.
func (s *SessionService) Get(ctx context.Context, sessionID, format string) (*model.SessionDetail, error) {
	sessionID = validator.NormalizeSessionID(sessionID)
	ctx, span := tracing.StartSpan(ctx, "biz.session.get", attribute.String("session.id", sessionID))
	defer span.End()

	if !validator.IsSessionID(sessionID) {
		return nil, errs.ErrSessionNotFound
	}
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, toErrno(err)
	}
	docs, err := s.sessions.GetDocuments(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, toErrno(err)
	}

	detail := &model.SessionDetail{
		SessionID:     sess.ID,
		CreatedAt:     sess.CreatedAt,
		DocumentCount: len(docs),
		Documents:     make([]model.DocumentView, 0, len(docs)),
	}
	for _, d := range docs {
		view := model.DocumentView{
			DocID:      d.ID,
			Filename:   d.Filename,
			Text:       d.Text,
			TextLength: d.Size,
			AddedAt:    d.AddedAt,
			NERStatus:  d.NERStatus,
			Entities:   d.Entities,
		}
		if d.Entities != nil {
			view.EntityGroups = ner.GroupByLabel(d.Entities.Entities)
			if format == ner.FormatHTML || format == ner.FormatMarkdown {
				view.Highlighted, _ = ner.Render(d.Text, d.Entities.Entities, format)["text"].(string)
			}
		}
		detail.Documents = append(detail.Documents, view)
	}

	if s.rag != nil && s.rag.HasIndex(sessionID) {
		stats, err := s.rag.IndexStats(ctx, sessionID)
		if err != nil {
			logger.Warnw("Failed to read RAG index stats", "session_id", sessionID, "error", err.Error())
		}
		detail.RAGIndex = stats
	}
	return detail, nil
}

// Delete removes the retrieval index, the cached results and the session.
func (s *SessionService) Delete(ctx context.Context, sessionID string) (*model.DeleteSessionResponse, error) {
	sessionID = validator.NormalizeSessionID(sessionID)
	ctx, span := tracing.StartSpan(ctx, "biz.session.delete", attribute.String("session.id", sessionID))
	defer span.End()

	ok, err := s.Exists(ctx, sessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if !ok {
		return nil, errs.ErrSessionNotFound
	}

	if s.rag != nil {
		if err := s.rag.DeleteSession(ctx, sessionID); err != nil {
			logger.Warnw("Failed to delete RAG index", "session_id", sessionID, "error", err.Error())
		}
	}
	if s.cache != nil {
		s.cache.ClearSession(ctx, sessionID)
	}
	if _, err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		tracing.RecordError(span, err)
		return nil, toErrno(err)
	}
	logger.Infow("Deleted session", "session_id", sessionID)
	s.refreshActive(ctx)

	return &model.DeleteSessionResponse{Status: model.StatusDeleted, SessionID: sessionID}, nil
}

// Count lists the active sessions.
func (s *SessionService) Count(ctx context.Context) (*model.SessionCount, error) {
	ids, err := s.sessions.ListSessionIDs(ctx)
	if err != nil {
		return nil, toErrno(err)
	}
	if ids == nil {
		ids = []string{}
	}
	s.metrics.SetActiveSessions(len(ids))
	return &model.SessionCount{ActiveSessions: len(ids), Sessions: ids}, nil
}

func (s *SessionService) refreshActive(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := s.sessions.CountSessions(ctx)
	if err != nil {
		logger.Warnw("Failed to count sessions", "error", err.Error())
		return
	}
	s.metrics.SetActiveSessions(n)
}
