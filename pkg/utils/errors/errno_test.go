package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service  int
		category int
		sequence int
		expected int
	}{
		{0, 0, 0, 0},
		{0, 1, 1, 1001},
		{21, 4, 1, 2104001},
		{21, 11, 1, 2111001},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.service, tt.category, tt.sequence), func(t *testing.T) {
			assert.Equal(t, tt.expected, MakeCode(tt.service, tt.category, tt.sequence))

			s, c, q := ParseCode(tt.expected)
			assert.Equal(t, []int{tt.service, tt.category, tt.sequence}, []int{s, c, q})
		})
	}
}

func TestClientServerClassification(t *testing.T) {
	assert.True(t, IsClientError(ErrSessionNotFound.Code))
	assert.True(t, IsClientError(ErrRateLimitExceeded.Code))
	assert.False(t, IsClientError(ErrInternal.Code))
	assert.True(t, IsServerError(ErrExtractionFailed.Code))
	assert.True(t, IsServerError(ErrExtractionTimeout.Code))
}

func TestDocQACodes(t *testing.T) {
	tests := []struct {
		name   string
		errno  *Errno
		status int
		grpc   codes.Code
	}{
		{"session not found", ErrSessionNotFound, http.StatusNotFound, codes.NotFound},
		{"document not found", ErrDocumentNotFound, http.StatusNotFound, codes.NotFound},
		{"no documents", ErrNoDocuments, http.StatusBadRequest, codes.FailedPrecondition},
		{"invalid question", ErrInvalidQuestion, http.StatusBadRequest, codes.InvalidArgument},
		{"file too large", ErrFileTooLarge, http.StatusRequestEntityTooLarge, codes.InvalidArgument},
		{"extraction timeout", ErrExtractionTimeout, http.StatusGatewayTimeout, codes.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, _ := ParseCode(tt.errno.Code)
			assert.Equal(t, ServiceDocQA, service)
			assert.Equal(t, tt.status, tt.errno.HTTPStatus())
			assert.Equal(t, tt.grpc, tt.errno.GRPCStatus())

			registered, ok := Lookup(tt.errno.Code)
			require.True(t, ok)
			assert.Same(t, tt.errno, registered)
		})
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrSessionNotFound.Code, http.StatusNotFound, codes.NotFound, "dup", "重复"))
	})
}

func TestWithCauseAndMessage(t *testing.T) {
	cause := stderrors.New("disk on fire")

	e := ErrExtractionFailed.WithCause(cause)
	assert.NotSame(t, ErrExtractionFailed, e)
	assert.ErrorIs(t, e, cause)
	assert.ErrorIs(t, e, ErrExtractionFailed)
	assert.Contains(t, e.Error(), "disk on fire")
	assert.Nil(t, ErrExtractionFailed.Unwrap(), "原始错误不应被修改")

	m := ErrInvalidParam.WithMessage("question is required")
	assert.Equal(t, "question is required", m.MessageEN)
	assert.Equal(t, "Invalid parameter", ErrInvalidParam.MessageEN)
	assert.Equal(t, ErrInvalidParam.Code, m.Code)
}

func TestMessageLanguage(t *testing.T) {
	assert.Equal(t, "Session not found", ErrSessionNotFound.Message("en"))
	assert.Equal(t, "会话不存在", ErrSessionNotFound.Message("zh"))
	assert.Equal(t, "会话不存在", ErrSessionNotFound.Message("zh-CN"))
}

func TestHelpers(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("store: %w", ErrDocumentNotFound)
	assert.Same(t, ErrDocumentNotFound, FromError(wrapped))
	assert.True(t, IsCode(wrapped, ErrDocumentNotFound.Code))
	assert.Equal(t, ErrDocumentNotFound.Code, GetCode(wrapped))

	plain := stderrors.New("boom")
	got := FromError(plain)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, plain)
	assert.Equal(t, -1, GetCode(plain))
	assert.False(t, IsCode(plain, ErrInternal.Code))
}

func TestFormat(t *testing.T) {
	e := ErrSessionNotFound.WithCause(stderrors.New("missing"))
	assert.Equal(t, e.Error(), fmt.Sprintf("%s", e))
	verbose := fmt.Sprintf("%+v", e)
	assert.Contains(t, verbose, "HTTP 404")
	assert.Contains(t, verbose, "caused by: missing")
}

func TestRegisterRejectsInconsistentStatus(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(MakeCode(ServiceDocQA, CategoryRequest, 900), http.StatusOK, codes.OK, "ok", "成功"))
	}, "非零错误码不能映射到 2xx")
	assert.Panics(t, func() {
		Register(New(MakeCode(ServiceDocQA, CategoryResource, 900), http.StatusInternalServerError, codes.Internal, "bad", "错误"))
	}, "客户端错误不能映射到 5xx")
}

func TestServiceCodes(t *testing.T) {
	got := ServiceCodes(ServiceDocQA)
	require.NotEmpty(t, got)
	assert.IsIncreasing(t, got)
	assert.Contains(t, got, ErrSessionNotFound.Code)
	assert.NotContains(t, got, ErrInternal.Code)
}
