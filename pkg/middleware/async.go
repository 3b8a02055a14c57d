package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Handler はハンドラチェーンの全ステージが共有する呼び出し規約。
// エラーを返すとエラーパイプラインに転送され、以降のステージは実行されない。
type Handler func(c *gin.Context) error

// FromGin はエラーを返さない通常のGinハンドラをHandlerに変換する。
func FromGin(h gin.HandlerFunc) Handler {
	return func(c *gin.Context) error {
		h(c)
		return nil
	}
}

// capturedError はCatchが捕捉したエラーと、捕捉した時点のスタックトレースを保持する。
type capturedError struct {
	err   error
	stack []byte
}

func (e *capturedError) Error() string { return e.err.Error() }

func (e *capturedError) Unwrap() error { return e.err }

// Catch はHandlerをGinハンドラに変換する。
// 返されたエラーとパニックの両方を捕捉し、c.Errorでエラーパイプラインに渡してチェーンを中断する。
// 捕捉したエラーがプロセスの外へ漏れることはない。
func Catch(h Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := invoke(h, c); err != nil {
			_ = c.Error(err)
			c.Abort()
		}
	}
}

// invoke はハンドラを実行し、パニックをエラーに変換する。
func invoke(h Handler, c *gin.Context) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		// 接続断による中断はnet/httpに処理させる
		if r == http.ErrAbortHandler {
			panic(r)
		}
		perr, ok := r.(error)
		if !ok {
			perr = fmt.Errorf("panic: %v", r)
		}
		err = &capturedError{err: perr, stack: debug.Stack()}
	}()

	if herr := h(c); herr != nil {
		var ce *capturedError
		if errors.As(herr, &ce) {
			return herr
		}
		return &capturedError{err: herr, stack: debug.Stack()}
	}
	return nil
}

// StackTrace はCatchがエラーを捕捉した時点のスタックトレースを返す。
// Catchを経由していないエラーの場合は空文字列を返す。
func StackTrace(err error) string {
	var ce *capturedError
	if errors.As(err, &ce) {
		return string(ce.stack)
	}
	return ""
}
