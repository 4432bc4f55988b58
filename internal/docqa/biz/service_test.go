package biz

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/internal/pkg/qa"
	"github.com/kart-io/docqa/internal/pkg/rag"
	"github.com/kart-io/docqa/pkg/llm/hash"
	authopts "github.com/kart-io/docqa/pkg/options/auth"
	"github.com/kart-io/docqa/pkg/security/jwt"
	errs "github.com/kart-io/docqa/pkg/utils/errors"
)

const reportText = "Acme Corp reported revenue of $5 million on January 5, 2024. " +
	"The board met in Paris to review the quarterly results and approve the budget."

type fakeExtractor struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, filename string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[filename]; ok {
		return "", err
	}
	return f.texts[filename], nil
}

func file(name, content string) UploadFile {
	return UploadFile{
		Filename: name,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte(content))), nil
		},
	}
}

// firstSentenceReader answers with the first sentence of the passage and
// scores longer passages higher.
type firstSentenceReader struct{}

func (firstSentenceReader) Answer(_ context.Context, _ string, passage string) (qa.Result, error) {
	end := strings.Index(passage, ".")
	if end < 0 {
		end = len(passage)
	}
	return qa.Result{Answer: passage[:end], Score: float64(len(passage)) / 1000, End: end}, nil
}

func (firstSentenceReader) Name() string { return "first-sentence" }

type failingRecognizer struct {
	panic bool
}

func (f failingRecognizer) Entities(context.Context, string) ([]ner.Entity, error) {
	if f.panic {
		panic("recognizer crashed")
	}
	return nil, errors.New("model unavailable")
}

func (failingRecognizer) Labels() map[string]string { return nil }
func (failingRecognizer) Name() string               { return "failing" }

type fixture struct {
	sessions *store.MemoryStore
	ext      *fakeExtractor
	cache    *ResultCache
	rag      *rag.Engine
	session  *SessionService
	docs     *DocumentService
	qa       *QAService
}

func newFixture(t *testing.T, rec ner.Recognizer) *fixture {
	t.Helper()
	return buildFixture(t, rec, true)
}

// newFallbackFixture answers without retrieval so every document is read.
func newFallbackFixture(t *testing.T, rec ner.Recognizer) *fixture {
	t.Helper()
	return buildFixture(t, rec, false)
}

func buildFixture(t *testing.T, rec ner.Recognizer, retrieval bool) *fixture {
	t.Helper()
	f := &fixture{
		sessions: store.NewMemoryStore(),
		ext: &fakeExtractor{
			texts: map[string]string{"report.pdf": reportText, "memo.png": "Short memo.", "blank.pdf": ""},
			errs:  map[string]error{"broken.pdf": errors.New("no text layer")},
		},
		cache: NewResultCache(nil, nil),
	}
	f.rag = rag.NewEngine(store.NewMemoryVectorStore(), hash.New(64), rag.DefaultConfig(), rag.WithEmbeddingCache(f.cache))
	var nerService *ner.Service
	if rec != nil {
		nerService = ner.NewService(rec)
	}
	var qaOpts []qa.Option
	if retrieval {
		qaOpts = append(qaOpts, qa.WithAugmenter(f.rag))
	}
	engine := qa.NewEngine(firstSentenceReader{}, qaOpts...)
	f.session = NewSessionService(f.sessions, f.rag, f.cache, nil)
	f.docs = NewDocumentService(f.sessions, f.ext, nerService, f.rag, nil, &DocumentConfig{
		MaxFileSize:  1 << 10,
		Concurrency:  2,
		NERChunkSize: ner.DefaultChunkSize,
	})
	f.qa = NewQAService(f.sessions, engine, nerService, f.cache, 0)
	return f
}

func waitNER(t *testing.T, sessions store.SessionStore, sessionID, docID string, want model.NERStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		docs, err := sessions.GetDocuments(context.Background(), sessionID)
		if err != nil {
			return false
		}
		for _, d := range docs {
			if d.ID == docID {
				return d.NERStatus == want
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	created, err := f.session.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCreated, created.Status)

	detail, err := f.session.Get(ctx, created.SessionID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, detail.DocumentCount)
	assert.NotNil(t, detail.Documents)

	upper, err := f.session.Get(ctx, strings.ToUpper(created.SessionID), "")
	require.NoError(t, err)
	assert.Equal(t, created.SessionID, upper.SessionID)
	ok, err := f.session.Exists(ctx, strings.ToUpper(created.SessionID))
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := f.session.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count.ActiveSessions)
	assert.Equal(t, []string{created.SessionID}, count.Sessions)

	require.NoError(t, f.cache.SetQAResult(ctx, created.SessionID, "q?", model.AskResponse{Answer: "a"}))

	deleted, err := f.session.Delete(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, deleted.Status)
	assert.Equal(t, 0, f.cache.Count(ctx))

	_, err = f.session.Get(ctx, created.SessionID, "")
	assert.True(t, errs.IsCode(err, errs.ErrSessionNotFound.Code))
	_, err = f.session.Delete(ctx, created.SessionID)
	assert.True(t, errs.IsCode(err, errs.ErrSessionNotFound.Code))
	_, err = f.session.Get(ctx, "not-a-uuid", "")
	assert.True(t, errs.IsCode(err, errs.ErrSessionNotFound.Code))
}

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ner.NewRule())

	resp, err := f.docs.Upload(ctx, "", []UploadFile{
		file("report.pdf", "%PDF"),
		file("notes.txt", "ignored"),
		file("broken.pdf", "%PDF"),
		file("huge.pdf", strings.Repeat("x", 2<<10)),
		file("memo.png", "PNG"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Documents, 4)
	assert.Equal(t, 2, resp.DocumentsUploaded)

	report := resp.Documents[0]
	assert.Equal(t, "report.pdf", report.Filename)
	assert.Equal(t, model.UploadSuccess, report.Status)
	require.NotNil(t, report.TextLength)
	assert.Equal(t, len(reportText), *report.TextLength)

	assert.Equal(t, model.UploadError, resp.Documents[1].Status)
	assert.Equal(t, "Extraction failed: no text layer", resp.Documents[1].Error)
	assert.Equal(t, model.UploadError, resp.Documents[2].Status)
	assert.Contains(t, resp.Documents[2].Error, "limit")
	assert.Equal(t, model.UploadSuccess, resp.Documents[3].Status)
	assert.Equal(t, 3, f.ext.calls)

	assert.True(t, f.rag.HasIndex(resp.SessionID))
	waitNER(t, f.sessions, resp.SessionID, report.DocID, model.NERCompleted)

	detail, err := f.session.Get(ctx, resp.SessionID, ner.FormatMarkdown)
	require.NoError(t, err)
	require.Equal(t, 2, detail.DocumentCount)
	require.NotNil(t, detail.RAGIndex)
	assert.Equal(t, 2, detail.RAGIndex.NumDocuments)
	assert.Equal(t, 1, detail.RAGIndex.NumChunks)
	var stored *model.DocumentView
	for i := range detail.Documents {
		if detail.Documents[i].DocID == report.DocID {
			stored = &detail.Documents[i]
		}
	}
	require.NotNil(t, stored)
	require.NotNil(t, stored.Entities)
	labels := map[string]bool{}
	for _, e := range stored.Entities.Entities {
		labels[e.Label] = true
	}
	assert.True(t, labels["ORG"])
	assert.True(t, labels["GPE"])
	assert.Contains(t, stored.EntityGroups, "ORG")
	assert.Contains(t, stored.EntityGroups["GPE"], "Paris")
	assert.Contains(t, stored.Highlighted, "**Paris** (GPE)")

	plain, err := f.session.Get(ctx, resp.SessionID, "")
	require.NoError(t, err)
	for _, d := range plain.Documents {
		assert.Empty(t, d.Highlighted)
	}
}

func TestDocumentService_UploadCountsOnlySuccesses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	resp, err := f.docs.Upload(ctx, "", []UploadFile{file("report.pdf", "%PDF"), file("broken.pdf", "%PDF")})
	require.NoError(t, err)
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, 1, resp.DocumentsUploaded)

	resp, err = f.docs.Upload(ctx, resp.SessionID, []UploadFile{file("broken.pdf", "%PDF")})
	require.NoError(t, err)
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, 0, resp.DocumentsUploaded)
}

func TestDocumentService_UploadErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.docs.Upload(ctx, "", nil)
	assert.True(t, errs.IsCode(err, errs.ErrNoFiles.Code))

	_, err = f.docs.Upload(ctx, "7f1d6c1e-2b7e-4a55-9d61-0a3cf1f0b6a1", []UploadFile{file("report.pdf", "x")})
	assert.True(t, errs.IsCode(err, errs.ErrSessionNotFound.Code))

	resp, err := f.docs.Upload(ctx, "", []UploadFile{file("only.docx", "x")})
	require.NoError(t, err)
	assert.Empty(t, resp.Documents)
	assert.False(t, f.rag.HasIndex(resp.SessionID))
}

func TestDocumentService_ProcessNER(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		rec  ner.Recognizer
		text string
		want model.NERStatus
	}{
		{"empty text", ner.NewRule(), "", model.NERCompleted},
		{"recognizer error", failingRecognizer{}, "Some text", model.NERFailed},
		{"recognizer panic", failingRecognizer{panic: true}, "Some text", model.NERFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.rec)
			sess, err := f.sessions.CreateSession(ctx)
			require.NoError(t, err)
			require.NoError(t, f.sessions.AddDocument(ctx, sess.ID, &model.Document{ID: "d1", Filename: "a.pdf", Text: tt.text}))

			f.docs.ProcessNER(ctx, sess.ID, "d1", tt.text)

			docs, err := f.sessions.GetDocuments(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, docs[0].NERStatus)
		})
	}
}

func TestQAService_Ask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ner.NewRule())

	up, err := f.docs.Upload(ctx, "", []UploadFile{file("report.pdf", "x")})
	require.NoError(t, err)
	sid := up.SessionID
	docID := up.Documents[0].DocID

	resp, err := f.qa.Ask(ctx, &model.AskRequest{SessionID: sid, Question: "Who reported revenue?"})
	require.NoError(t, err)
	assert.Equal(t, "Who reported revenue?", resp.Question)
	assert.Equal(t, qa.SourceRAG, resp.SourceDoc)
	assert.Contains(t, resp.Answer, "Acme Corp")
	assert.NotNil(t, resp.Entities)

	var cached model.AskResponse
	require.True(t, f.cache.GetQAResult(ctx, sid, "Who reported revenue?", &cached))
	assert.Equal(t, resp.Answer, cached.Answer)

	again, err := f.qa.Ask(ctx, &model.AskRequest{SessionID: sid, Question: "Who reported revenue?"})
	require.NoError(t, err)
	assert.Equal(t, resp.Answer, again.Answer)

	off := false
	single, err := f.qa.Ask(ctx, &model.AskRequest{SessionID: sid, Question: "Who reported?", DocID: docID, HighlightEntities: &off})
	require.NoError(t, err)
	assert.Equal(t, model.UnknownSource, single.SourceDoc)
	assert.Nil(t, single.Entities)
	assert.False(t, f.cache.GetQAResult(ctx, sid, "Who reported?", &cached))
}

func TestQAService_AskWithoutRetrieval(t *testing.T) {
	ctx := context.Background()
	f := newFallbackFixture(t, nil)

	up, err := f.docs.Upload(ctx, "", []UploadFile{file("memo.png", "x"), file("report.pdf", "x")})
	require.NoError(t, err)
	require.True(t, f.rag.HasIndex(up.SessionID))

	resp, err := f.qa.Ask(ctx, &model.AskRequest{SessionID: up.SessionID, Question: "Who reported revenue?"})
	require.NoError(t, err)
	assert.Equal(t, up.Documents[1].DocID, resp.SourceDoc)
	assert.Contains(t, resp.Answer, "Acme Corp")
}

func TestQAService_AskEmptyDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	up, err := f.docs.Upload(ctx, "", []UploadFile{file("blank.pdf", "x")})
	require.NoError(t, err)
	require.Equal(t, model.UploadSuccess, up.Documents[0].Status)

	_, err = f.qa.Ask(ctx, &model.AskRequest{SessionID: up.SessionID, Question: "What is inside?", DocID: up.Documents[0].DocID})
	require.Error(t, err)
	assert.Equal(t, errs.ErrDocumentNotFound.Code, errs.GetCode(err))
}

func TestQAService_AskErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess, err := f.session.Create(ctx)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *model.AskRequest
		code int
	}{
		{"short question", &model.AskRequest{SessionID: sess.SessionID, Question: " a "}, errs.ErrInvalidQuestion.Code},
		{"sql only question", &model.AskRequest{SessionID: sess.SessionID, Question: "DROP;"}, errs.ErrInvalidQuestion.Code},
		{"bad session id", &model.AskRequest{SessionID: "../etc", Question: "What happened?"}, errs.ErrSessionNotFound.Code},
		{"unknown session", &model.AskRequest{SessionID: "7f1d6c1e-2b7e-4a55-9d61-0a3cf1f0b6a1", Question: "What happened?"}, errs.ErrSessionNotFound.Code},
		{"no documents", &model.AskRequest{SessionID: sess.SessionID, Question: "What happened?"}, errs.ErrNoDocuments.Code},
		{"unknown document", &model.AskRequest{SessionID: sess.SessionID, Question: "What happened?", DocID: "missing"}, errs.ErrDocumentNotFound.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.qa.Ask(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, errs.GetCode(err))
		})
	}
}

func TestQAService_AskDetailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	up, err := f.docs.Upload(ctx, "", []UploadFile{file("memo.png", "x"), file("report.pdf", "x")})
	require.NoError(t, err)

	resp, err := f.qa.AskDetailed(ctx, &model.AskRequest{SessionID: up.SessionID, Question: "What was reported?"})
	require.NoError(t, err)
	require.Len(t, resp.Answers, 2)
	assert.GreaterOrEqual(t, resp.Answers[0].Confidence, resp.Answers[1].Confidence)
	assert.Equal(t, resp.Answers[0], resp.BestAnswer)
	assert.Equal(t, up.Documents[1].DocID, resp.BestAnswer.DocID)
	assert.Nil(t, resp.BestAnswer.Entities)

	var cached model.AskDetailedResponse
	key := Key(PrefixQADetailed, up.SessionID, QuestionDigest("What was reported?"))
	require.True(t, f.cache.Get(ctx, key, &cached))
	assert.Equal(t, resp.BestAnswer.DocID, cached.BestAnswer.DocID)
}

func TestAuthService_IssueToken(t *testing.T) {
	ctx := context.Background()
	j, err := jwt.New(jwt.WithKey(strings.Repeat("k", 32)))
	require.NoError(t, err)

	demo, err := NewAuthService(j, nil)
	require.NoError(t, err)
	assert.True(t, demo.DemoMode())
	tok, err := demo.IssueToken(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, jwt.TokenTypeBearer, tok.TokenType)
	claims, err := j.Verify(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, authopts.DemoSubject, claims.Subject)

	hashed, err := jwt.HashPassword("s3cret-pass")
	require.NoError(t, err)
	users, err := NewAuthService(j, &authopts.Options{Users: map[string]string{"alice": hashed, "bob": "plain-pass"}})
	require.NoError(t, err)
	assert.False(t, users.DemoMode())
	assert.Equal(t, hashed, users.users["alice"])
	assert.True(t, authopts.IsHashed(users.users["bob"]))
	assert.True(t, jwt.VerifyPassword("plain-pass", users.users["bob"]))

	tok, err = users.IssueToken(ctx, &model.TokenRequest{Username: "bob", Password: "plain-pass"})
	require.NoError(t, err)
	claims, err = j.Verify(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)

	tok, err = users.IssueToken(ctx, &model.TokenRequest{Username: "alice", Password: "s3cret-pass"})
	require.NoError(t, err)
	claims, err = j.Verify(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	for _, req := range []*model.TokenRequest{nil, {Username: "alice", Password: "wrong"}, {Username: "bob", Password: "s3cret-pass"}, {Username: "carol", Password: "plain-pass"}} {
		_, err = users.IssueToken(ctx, req)
		assert.True(t, errs.IsCode(err, errs.ErrInvalidCredentials.Code))
	}
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	revoked := jwt.NewMemoryStore()
	t.Cleanup(func() { _ = revoked.Close() })
	j, err := jwt.New(jwt.WithKey(strings.Repeat("k", 32)), jwt.WithStore(revoked))
	require.NoError(t, err)
	svc, err := NewAuthService(j, nil)
	require.NoError(t, err)

	tok, err := svc.IssueToken(ctx, nil)
	require.NoError(t, err)
	_, err = j.Verify(ctx, tok.AccessToken)
	require.NoError(t, err)

	out, err := svc.Logout(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLoggedOut, out.Status)

	_, err = j.Verify(ctx, tok.AccessToken)
	assert.True(t, errs.IsCode(err, errs.ErrTokenRevoked.Code))

	// revoking twice is not an error
	_, err = svc.Logout(ctx, tok.AccessToken)
	assert.NoError(t, err)

	_, err = svc.Logout(ctx, "not-a-token")
	assert.True(t, errs.IsCode(err, errs.ErrInvalidToken.Code))
}

func TestStatusService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ner.NewRule())
	svc := NewStatusService(f.sessions, qa.NewEngine(firstSentenceReader{}), ner.NewService(ner.NewRule()), f.rag, f.cache, nil, "1.0.0")

	assert.Equal(t, &model.HealthResponse{Status: StatusHealthy, Version: "1.0.0"}, svc.Health())

	health := svc.DetailedHealth(ctx)
	assert.Equal(t, CacheMemory, health.Components.Cache.Type)
	assert.True(t, health.Components.Cache.Connected)
	assert.Equal(t, map[string]string{
		"qa":        "first-sentence",
		"ner":       "rule",
		"embedding": f.rag.EmbeddingModel(),
	}, health.Components.Models)
	assert.False(t, health.Components.GPU.Enabled)
	assert.Equal(t, store.BackendMemory, health.Components.SessionStore)

	models := svc.ModelsStatus().Models
	assert.Equal(t, model.ModelStatus{Loaded: "first-sentence", Type: model.ModelTypeQA}, models["qa"])
	assert.Equal(t, "rule", models["ner"].Loaded)
	assert.Equal(t, model.ModelTypeNER, models["ner"].Type)
	assert.NotEmpty(t, models["ner"].Labels)
	assert.Equal(t, "hash:feature-hash-64", models["embedding"].Loaded)
	assert.Equal(t, CacheMemory, models["cache"].Type)
	assert.Empty(t, models["cache"].Loaded)

	bare := NewStatusService(f.sessions, qa.NewEngine(firstSentenceReader{}), nil, nil, f.cache, nil, "1.0.0")
	assert.Equal(t, "", bare.DetailedHealth(ctx).Components.Models["ner"])
	assert.Empty(t, bare.ModelsStatus().Models["embedding"].Loaded)

	stats := svc.CacheStats(ctx)
	assert.Equal(t, CacheMemory, stats["type"])
}
