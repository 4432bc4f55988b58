package biz

import (
	"context"
	"sort"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/internal/pkg/qa"
	"github.com/kart-io/docqa/pkg/infra/tracing"
	errs "github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/validator"
)

// DefaultMaxQuestionLength caps sanitized questions.
const DefaultMaxQuestionLength = 1000

// QAService answers questions against the documents of a session.
type QAService struct {
	sessions       store.SessionStore
	engine         *qa.Engine
	ner            *ner.Service
	cache          *ResultCache
	maxQuestionLen int
}

// NewQAService creates a QAService. nerService and cache may be nil.
func NewQAService(sessions store.SessionStore, engine *qa.Engine, nerService *ner.Service, cache *ResultCache, maxQuestionLen int) *QAService {
	if maxQuestionLen <= 0 {
		maxQuestionLen = DefaultMaxQuestionLength
	}
	return &QAService{
		sessions:       sessions,
		engine:         engine,
		ner:            nerService,
		cache:          cache,
		maxQuestionLen: maxQuestionLen,
	}
}

// prepare sanitizes the question and checks that the session exists.
func (s *QAService) prepare(ctx context.Context, req *model.AskRequest) (string, error) {
	req.SessionID = validator.NormalizeSessionID(req.SessionID)
	question := validator.SanitizeInput(req.Question, s.maxQuestionLen)
	if !validator.IsQuestion(question, validator.MinQuestionLength) {
		return "", errs.ErrInvalidQuestion.WithMessagef("Question must be at least %d characters", validator.MinQuestionLength)
	}
	if !validator.IsSessionID(req.SessionID) {
		return "", errs.ErrSessionNotFound
	}
	ok, err := s.sessions.SessionExists(ctx, req.SessionID)
	if err != nil {
		return "", toErrno(err)
	}
	if !ok {
		return "", errs.ErrSessionNotFound
	}
	return question, nil
}

// Ask answers a question from one document or from the whole session.
// Session-wide answers are cached per question.
func (s *QAService) Ask(ctx context.Context, req *model.AskRequest) (*model.AskResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "biz.qa.ask",
		attribute.String("session.id", req.SessionID),
		attribute.Bool("single_document", req.DocID != ""),
	)
	defer span.End()

	question, err := s.prepare(ctx, req)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	if req.DocID == "" && s.cache != nil {
		var cached model.AskResponse
		if s.cache.GetQAResult(ctx, req.SessionID, question, &cached) {
			logger.Infow("Cache hit for question", "session_id", req.SessionID)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &cached, nil
		}
	}

	var answer qa.DocumentAnswer
	if req.DocID != "" {
		text, err := s.sessions.GetDocumentText(ctx, req.SessionID, req.DocID)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, toErrno(err)
		}
		if text == "" {
			return nil, errs.ErrDocumentNotFound
		}
		res := s.engine.Answer(ctx, question, text)
		answer = qa.DocumentAnswer{Answer: res.Answer, Score: res.Score}
	} else {
		docs, err := s.sessions.GetAllTexts(ctx, req.SessionID)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, toErrno(err)
		}
		if len(docs) == 0 {
			return nil, errs.ErrNoDocuments
		}
		answer = s.engine.AnswerFromDocuments(ctx, question, docs, req.SessionID, req.ContextLength())
	}

	resp := &model.AskResponse{
		Question:   question,
		Answer:     answer.Answer,
		Confidence: answer.Score,
		SourceDoc:  answer.Source,
	}
	if resp.Answer == "" {
		resp.Answer = model.NoAnswer
	}
	if resp.SourceDoc == "" {
		resp.SourceDoc = model.UnknownSource
	}
	if req.Highlight() {
		resp.Entities = s.answerEntities(ctx, answer.Answer)
	}

	if req.DocID == "" && s.cache != nil {
		if err := s.cache.SetQAResult(ctx, req.SessionID, question, resp); err != nil {
			logger.Warnw("Failed to cache answer", "session_id", req.SessionID, "error", err.Error())
		}
	}
	return resp, nil
}

// AskDetailed answers the question against every document of the session
// and ranks the answers by confidence.
func (s *QAService) AskDetailed(ctx context.Context, req *model.AskRequest) (*model.AskDetailedResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "biz.qa.ask_detailed", attribute.String("session.id", req.SessionID))
	defer span.End()

	question, err := s.prepare(ctx, req)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	key := Key(PrefixQADetailed, req.SessionID, QuestionDigest(question))
	if s.cache != nil {
		var cached model.AskDetailedResponse
		if s.cache.Get(ctx, key, &cached) {
			logger.Infow("Cache hit for detailed question", "session_id", req.SessionID)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &cached, nil
		}
	}

	docs, err := s.sessions.GetAllTexts(ctx, req.SessionID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, toErrno(err)
	}
	if len(docs) == 0 {
		return nil, errs.ErrNoDocuments
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	answers := make([]model.DocumentAnswer, 0, len(ids))
	for _, id := range ids {
		res := s.engine.Answer(ctx, question, docs[id])
		a := model.DocumentAnswer{DocID: id, Answer: res.Answer, Confidence: res.Score}
		if req.Highlight() {
			a.Entities = s.answerEntities(ctx, res.Answer)
		}
		answers = append(answers, a)
	}
	sort.SliceStable(answers, func(i, j int) bool { return answers[i].Confidence > answers[j].Confidence })

	resp := &model.AskDetailedResponse{
		Question:   question,
		Answers:    answers,
		BestAnswer: model.DocumentAnswer{DocID: model.NoDocument, Answer: model.NoAnswer},
	}
	if len(answers) > 0 {
		resp.BestAnswer = answers[0]
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.cache.config.QATTL); err != nil {
			logger.Warnw("Failed to cache detailed answer", "session_id", req.SessionID, "error", err.Error())
		}
	}
	return resp, nil
}

// answerEntities returns the entities found in an answer, or nil when NER is
// disabled or fails.
func (s *QAService) answerEntities(ctx context.Context, answer string) []ner.Entity {
	if s.ner == nil {
		return nil
	}
	ents, ok := s.ner.Highlight(ctx, answer, ner.FormatDict)["entities"].([]ner.Entity)
	if !ok {
		return nil
	}
	return ents
}
