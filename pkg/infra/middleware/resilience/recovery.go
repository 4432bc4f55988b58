// Package resilience provides middleware that protects the service from
// panics, oversized payloads and request floods.
package resilience

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// Recovery 返回捕获 panic 的中间件。
// 完整堆栈只写入日志，客户端只收到 500 错误码。
func Recovery(onPanic PanicHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Errorw("Panic recovered",
					"error", fmt.Sprint(r),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", common.RequestIDFromGin(c),
					"stack", string(stack),
				)
				if onPanic != nil {
					onPanic(c, r, stack)
				}
				response.Fail(c, errors.ErrPanic)
			}
		}()
		c.Next()
	}
}
