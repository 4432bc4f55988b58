package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/json"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestOK(t *testing.T) {
	c, w := newContext()
	OK(c, map[string]string{"status": "healthy"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestFail(t *testing.T) {
	c, w := newContext()
	c.Writer.Header().Set(HeaderRequestID, "req-1")
	Fail(c, errors.ErrSessionNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, c.IsAborted())

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrSessionNotFound.Code, body.Code)
	assert.Equal(t, "Session not found", body.Detail)
	assert.Equal(t, "req-1", body.RequestID)
}

func TestFailChinese(t *testing.T) {
	c, w := newContext()
	c.Request.Header.Set("Accept-Language", "zh")
	Fail(c, errors.ErrDocumentNotFound)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "文档不存在", body.Message)
}

func TestFailWithError(t *testing.T) {
	c, w := newContext()
	FailWithError(c, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	c, w = newContext()
	FailWithError(c, errors.ErrInvalidQuestion.WithMessage("Question must be at least 3 characters"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Question must be at least 3 characters")
}

func TestFailWithBindOrValidation(t *testing.T) {
	c, w := newContext()
	FailWithBindOrValidation(c, assert.AnError)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestHTTPStatusFallback(t *testing.T) {
	tests := []struct {
		code int
		want int
	}{
		{0, http.StatusOK},
		{errors.MakeCode(99, errors.CategoryAuth, 999), http.StatusUnauthorized},
		{errors.MakeCode(99, errors.CategoryRateLimit, 999), http.StatusTooManyRequests},
		{errors.MakeCode(99, errors.CategoryInternal, 999), http.StatusInternalServerError},
		{errors.ErrFileTooLarge.Code, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		r := &ErrorResponse{Code: tt.code}
		assert.Equal(t, tt.want, r.HTTPStatus())
	}
}
