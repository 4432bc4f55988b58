package router

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/internal/pkg/qa"
	"github.com/kart-io/docqa/internal/pkg/rag"
	"github.com/kart-io/docqa/pkg/llm/hash"
	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
	"github.com/kart-io/docqa/pkg/security/jwt"
	"github.com/kart-io/docqa/pkg/utils/json"
)

const contract = "This services agreement is signed by Acme Corp and Globex Ltd in London. " +
	"The contract starts on March 1, 2024 and the total fee is $120,000 payable quarterly."

type staticExtractor struct{}

func (staticExtractor) Extract(_ context.Context, _ string, data []byte) (string, error) {
	return string(data), nil
}

func newTestEngine(t *testing.T, rl *mwopts.RateLimitOptions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	revoked := jwt.NewMemoryStore()
	t.Cleanup(func() { _ = revoked.Close() })
	j, err := jwt.New(jwt.WithKey(strings.Repeat("s", 32)), jwt.WithStore(revoked))
	require.NoError(t, err)
	authService, err := biz.NewAuthService(j, nil)
	require.NoError(t, err)
	m, err := metrics.New()
	require.NoError(t, err)

	sessions := store.NewMemoryStore()
	cache := biz.NewResultCache(nil, nil)
	ragEngine := rag.NewEngine(store.NewMemoryVectorStore(), hash.New(128), rag.DefaultConfig(), rag.WithEmbeddingCache(cache))
	nerService := ner.NewService(ner.NewRule())
	qaEngine := qa.NewEngine(qa.NewExtractive(), qa.WithAugmenter(ragEngine))

	h := &Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Session:  handler.NewSessionHandler(biz.NewSessionService(sessions, ragEngine, cache, m)),
		Document: handler.NewDocumentHandler(biz.NewDocumentService(sessions, staticExtractor{}, nerService, ragEngine, m, nil)),
		QA:       handler.NewQAHandler(biz.NewQAService(sessions, qaEngine, nerService, cache, 0)),
		Status: handler.NewStatusHandler(
			biz.NewStatusService(sessions, qaEngine, nerService, ragEngine, cache, m, "1.0.0"),
			"Document QA API", "Ask questions about uploaded documents",
		),
	}

	engine := gin.New()
	stop, err := Register(engine, &Config{RateLimit: rl, Verifier: j, Metrics: m}, h)
	require.NoError(t, err)
	t.Cleanup(stop)
	return engine
}

func do(engine *gin.Engine, method, path, token string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func issueToken(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	w := do(engine, http.MethodPost, "/api/v1/token", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok model.TokenResponse
	decode(t, w, &tok)
	assert.Equal(t, "bearer", tok.TokenType)
	return tok.AccessToken
}

func multipartBody(t *testing.T, files map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestPublicRoutes(t *testing.T) {
	engine := newTestEngine(t, nil)

	w := do(engine, http.MethodGet, "/", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var root model.RootResponse
	decode(t, w, &root)
	assert.Equal(t, "Document QA API", root.Name)
	assert.Equal(t, "POST /api/v1/ask", root.Endpoints.Ask)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Process-Time"))

	w = do(engine, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"1.0.0"}`, w.Body.String())

	w = do(engine, http.MethodGet, "/api/v1/models/status", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var models model.ModelsStatusResponse
	decode(t, w, &models)
	assert.Equal(t, model.ModelStatus{Loaded: "extractive", Type: model.ModelTypeQA}, models.Models["qa"])
	assert.Contains(t, models.Models["embedding"].Loaded, "hash")

	w = do(engine, http.MethodGet, "/api/v1/health/detailed", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"in-memory"`)

	w = do(engine, http.MethodGet, "/api/v1/metrics/prometheus", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `api_requests_total{endpoint="/health",method="GET",status="200"} 1`)
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	engine := newTestEngine(t, nil)

	w := do(engine, http.MethodPost, "/api/v1/session", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Contains(t, w.Body.String(), "Missing authorization header")

	w = do(engine, http.MethodPost, "/api/v1/ask", "not-a-token", []byte(`{}`), "application/json")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentQAFlow(t *testing.T) {
	engine := newTestEngine(t, nil)
	token := issueToken(t, engine)

	body, ct := multipartBody(t, map[string]string{"contract.pdf": contract, "notes.txt": "skipped"})
	w := do(engine, http.MethodPost, "/api/v1/upload", token, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var up model.UploadResponse
	decode(t, w, &up)
	require.Len(t, up.Documents, 1)
	assert.Equal(t, model.UploadSuccess, up.Documents[0].Status)
	sid := up.SessionID

	ask := func(path, question string) *httptest.ResponseRecorder {
		payload, err := json.Marshal(model.AskRequest{SessionID: sid, Question: question})
		require.NoError(t, err)
		return do(engine, http.MethodPost, path, token, payload, "application/json")
	}

	w = ask("/api/v1/ask", "When does the contract start?")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var answer model.AskResponse
	decode(t, w, &answer)
	assert.Contains(t, answer.Answer, "2024")
	assert.Equal(t, qa.SourceRAG, answer.SourceDoc)

	w = ask("/api/v1/ask-detailed", "How much is the total fee?")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detailed model.AskDetailedResponse
	decode(t, w, &detailed)
	require.Len(t, detailed.Answers, 1)
	assert.Equal(t, up.Documents[0].DocID, detailed.BestAnswer.DocID)

	w = ask("/api/v1/ask", "?")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(engine, http.MethodGet, "/api/v1/session/"+sid, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail model.SessionDetail
	decode(t, w, &detail)
	assert.Equal(t, 1, detail.DocumentCount)
	assert.Equal(t, contract, detail.Documents[0].Text)

	w = do(engine, http.MethodGet, "/api/v1/sessions/count", "", nil, "")
	assert.JSONEq(t, `{"active_sessions":1,"sessions":["`+sid+`"]}`, w.Body.String())

	w = do(engine, http.MethodDelete, "/api/v1/session/"+sid, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"deleted","session_id":"`+sid+`"}`, w.Body.String())

	w = do(engine, http.MethodGet, "/api/v1/session/"+sid, token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp map[string]any
	decode(t, w, &errResp)
	assert.Equal(t, "Session not found", errResp["detail"])
}

func TestUploadValidation(t *testing.T) {
	engine := newTestEngine(t, nil)
	token := issueToken(t, engine)

	w := do(engine, http.MethodPost, "/api/v1/upload", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct := multipartBody(t, map[string]string{"a.pdf": contract})
	w = do(engine, http.MethodPost, "/api/v1/upload?session_id=7f1d6c1e-2b7e-4a55-9d61-0a3cf1f0b6a1", token, body, ct)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGlobalRateLimit(t *testing.T) {
	rl := mwopts.NewRateLimitOptions()
	rl.Requests = 2
	engine := newTestEngine(t, rl)

	for i := 0; i < 2; i++ {
		w := do(engine, http.MethodGet, "/api/v1/models/status", "", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(engine, http.MethodGet, "/api/v1/models/status", "", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")

	w = do(engine, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouteRateLimit(t *testing.T) {
	rl := mwopts.NewRateLimitOptions()
	rl.Enabled = false
	engine := newTestEngine(t, rl)
	token := issueToken(t, engine)

	for i := 0; i < sessionWriteLimit; i++ {
		w := do(engine, http.MethodPost, "/api/v1/session", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(engine, http.MethodPost, "/api/v1/session", token, nil, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	engine := newTestEngine(t, nil)
	token := issueToken(t, engine)

	w := do(engine, http.MethodPost, "/api/v1/session", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(engine, http.MethodPost, "/api/v1/logout", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out model.LogoutResponse
	decode(t, w, &out)
	assert.Equal(t, model.StatusLoggedOut, out.Status)

	for _, path := range []string{"/api/v1/session", "/api/v1/logout"} {
		w = do(engine, http.MethodPost, path, token, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	}

	w = do(engine, http.MethodPost, "/api/v1/logout", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// a fresh token still works
	w = do(engine, http.MethodPost, "/api/v1/session", issueToken(t, engine), nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLimiterBackendFallback(t *testing.T) {
	unreachable := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = unreachable.Close() })

	tests := []struct {
		name    string
		enabled bool
		backend string
		client  goredis.UniversalClient
		want    string
	}{
		{"disabled ignores backend", false, mwopts.RateLimitBackendRedis, unreachable, mwopts.RateLimitBackendMemory},
		{"redis without client", true, mwopts.RateLimitBackendRedis, nil, mwopts.RateLimitBackendMemory},
		{"redis unreachable", true, mwopts.RateLimitBackendRedis, unreachable, mwopts.RateLimitBackendMemory},
		{"token bucket kept", true, mwopts.RateLimitBackendTokenBucket, nil, mwopts.RateLimitBackendTokenBucket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := mwopts.NewRateLimitOptions()
			rl.Enabled = tt.enabled
			rl.Backend = tt.backend
			assert.Equal(t, tt.want, limiterBackend(rl, tt.client))
		})
	}
}

func TestRegisterWithRedisBackendDown(t *testing.T) {
	rl := mwopts.NewRateLimitOptions()
	rl.Backend = mwopts.RateLimitBackendRedis
	rl.Requests = 1
	engine := newTestEngine(t, rl)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/v1/sessions/count", "", nil, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(engine, http.MethodGet, "/api/v1/sessions/count", "", nil, "").Code)
}
