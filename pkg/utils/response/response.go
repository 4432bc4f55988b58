// Package response writes HTTP responses for docqa handlers.
//
// Successful responses are written as the plain payload. Failures are written
// as an errno envelope:
//
//	{"code": 2104001, "message": "Session not found", "detail": "Session not found"}
//
// with the HTTP status mapped from the errno.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/validator"
)

// HeaderRequestID is the response header carrying the request id.
const HeaderRequestID = "X-Request-ID"

// ErrorResponse is the error envelope returned for failed requests.
type ErrorResponse struct {
	// Code is the business error code
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Detail describes this particular failure
	Detail string `json:"detail"`

	// Errors carries per-field validation failures
	Errors interface{} `json:"errors,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *ErrorResponse {
	return ErrWithLang(e, "")
}

// ErrWithLang creates an error response with a language-specific message.
func ErrWithLang(e *errors.Errno, lang string) *ErrorResponse {
	if e == nil {
		e = errors.ErrInternal
	}
	msg := e.Message(lang)
	return &ErrorResponse{
		Code:    e.Code,
		Message: msg,
		Detail:  msg,
	}
}

// HTTPStatus returns the HTTP status for the response code.
// It looks up the registered errno, then falls back to the code category.
func (r *ErrorResponse) HTTPStatus() int {
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryPermission:
		return http.StatusForbidden
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OK writes data as a 200 JSON body.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Fail writes the errno envelope and aborts the handler chain.
func Fail(c *gin.Context, e *errors.Errno) {
	resp := ErrWithLang(e, language(c))
	resp.RequestID = c.Writer.Header().Get(HeaderRequestID)
	if e == nil {
		e = errors.ErrInternal
	}
	c.AbortWithStatusJSON(e.HTTPStatus(), resp)
}

// FailWithError converts err and writes it. Errnos anywhere in the chain are
// used as is, other errors become ErrInternal.
func FailWithError(c *gin.Context, err error) {
	Fail(c, errors.FromError(err))
}

// FailWithValidation writes a 400 with the translated field errors.
func FailWithValidation(c *gin.Context, verr *validator.ValidationErrors) {
	resp := ErrWithLang(errors.ErrValidationFailed, language(c))
	resp.Detail = verr.First()
	resp.Errors = verr.Errors
	resp.RequestID = c.Writer.Header().Get(HeaderRequestID)
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

// FailWithBindOrValidation handles errors from ShouldBind*. Validation
// failures are translated, anything else is reported as an invalid body.
func FailWithBindOrValidation(c *gin.Context, err error) {
	if verr := validator.Global().Translate(err, language(c)); verr.HasErrors() {
		FailWithValidation(c, verr)
		return
	}
	Fail(c, errors.ErrInvalidParam.WithMessage("invalid request body: "+err.Error()))
}

func language(c *gin.Context) string {
	switch c.GetHeader("Accept-Language") {
	case "zh", "zh-CN", "zh_CN":
		return validator.LangZH
	default:
		return validator.LangEN
	}
}
