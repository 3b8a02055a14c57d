package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery はチェーン外で発生したパニックから回復するGinミドルウェアを返す。
// チェーン内のパニックはCatchが処理するため、ここに到達するのはエラーハンドラ等の外側のものに限られる。
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			logger.Error().
				Interface("panic", r).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("パニックから回復しました")
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     true,
				"message":   UnknownErrorMessage,
				"timestamp": time.Now().UTC(),
				"path":      requestPath(c),
			})
		}()
		c.Next()
	}
}
