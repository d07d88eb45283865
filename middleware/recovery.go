package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/KOMKZ/go-yogan-ratelimit/errcode"
	"github.com/KOMKZ/go-yogan-ratelimit/httpx"
	"github.com/KOMKZ/go-yogan-ratelimit/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into the generic internal error. The value
// and stack are logged on "gin-error"; http.ErrAbortHandler is re-raised so
// net/http can drop the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.GetLogger("gin-error").ErrorCtx(c.Request.Context(), "panic recovered",
				zap.String("panic", fmt.Sprint(rec)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
				zap.String("stack", logger.CaptureStacktrace(3, 32)),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, httpx.Response{
				Code: errcode.ErrInternal.Code(),
				Msg:  errcode.ErrInternal.Message(),
			})
		}()
		c.Next()
	}
}
