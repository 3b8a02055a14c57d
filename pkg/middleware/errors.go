package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UnknownErrorMessage は本番環境で未分類エラーの代わりに返すメッセージ。
const UnknownErrorMessage = "Unknown Error"

// UserFacingError は呼び出し元にそのまま表示してよいエラーを表す。
// 独自のエラー型は *UserFacingError を埋め込むことで、同じエラーとして分類される。
type UserFacingError struct {
	// Message は呼び出し元に返すメッセージ。
	Message string
	// StatusCode はHTTPステータスコード。0の場合は500として扱う。
	StatusCode int
	// Timestamp はエラーの生成日時。
	Timestamp time.Time
	// Fields はレスポンスボディに追加で含める任意のフィールド。
	Fields map[string]any
}

// NewUserFacingError は新しいUserFacingErrorを生成する。
// statusCodeに0を渡すと500として扱われる。
func NewUserFacingError(message string, statusCode int) *UserFacingError {
	return &UserFacingError{
		Message:    message,
		StatusCode: statusCode,
		Timestamp:  time.Now().UTC(),
	}
}

func (e *UserFacingError) Error() string {
	return "UserFacingError: " + e.Message
}

// UserFacing はエラーがユーザー向けであることを示すマーカー。
// 埋め込み先の型にも昇格するため、拡張したエラー型も分類対象になる。
func (e *UserFacingError) UserFacing() *UserFacingError {
	return e
}

// Status はレスポンスに使うステータスコードを返す。
func (e *UserFacingError) Status() int {
	if e.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

// WithField はレスポンスに含める追加フィールドを設定し、自身を返す。
func (e *UserFacingError) WithField(key string, value any) *UserFacingError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// UserFacer はユーザー向けエラーとして扱える能力を持つエラー。
type UserFacer interface {
	error
	UserFacing() *UserFacingError
}

// AsUserFacingError はエラーチェーンからユーザー向けエラーを取り出す。
func AsUserFacingError(err error) (*UserFacingError, bool) {
	var uf UserFacer
	if !errors.As(err, &uf) {
		return nil, false
	}
	ufe := uf.UserFacing()
	if ufe == nil {
		return nil, false
	}
	return ufe, true
}

// IsUserFacingError はエラーがユーザー向けエラーかどうかを判定する。
// 型の同一性ではなく、UserFacingメソッドの有無で判定する。
func IsUserFacingError(err error) bool {
	_, ok := AsUserFacingError(err)
	return ok
}

// ErrorKind は終端エラーハンドラによるエラーの分類。
type ErrorKind string

const (
	// ErrorKindUserFacing はユーザー向けエラー。
	ErrorKindUserFacing ErrorKind = "user_facing"
	// ErrorKindUnknown はそれ以外のエラー。
	ErrorKindUnknown ErrorKind = "unknown"
)

// ErrorConfig は終端エラーハンドラの設定。
type ErrorConfig struct {
	// Development がtrueの場合、未分類エラーにスタックトレースを含む詳細を返す。
	Development bool
	// Logger はエラーの出力先。
	Logger zerolog.Logger
	// OnError はエラーを分類するたびに呼ばれる。nilの場合は何もしない。
	OnError func(kind ErrorKind)
}

// UserFacingErrorHandler はハンドラチェーンが記録したエラーをレスポンスに変換するGinミドルウェアを返す。
// エンジンに最初に登録し、チェーンの終端ステージとして機能させる。
func UserFacingErrorHandler(cfg ErrorConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if uf, ok := AsUserFacingError(err); ok {
			cfg.report(ErrorKindUserFacing)
			cfg.Logger.Warn().
				Str("request_id", GetRequestID(c)).
				Int("status", uf.Status()).
				Str("path", c.Request.URL.Path).
				Msg(uf.Error())
			if c.Writer.Written() {
				return
			}
			c.JSON(uf.Status(), userFacingBody(c, uf))
			return
		}

		cfg.report(ErrorKindUnknown)
		if cfg.Development {
			renderVerbose(c, cfg.Logger, err)
			return
		}

		cfg.Logger.Error().
			Err(err).
			Str("request_id", GetRequestID(c)).
			Str("path", c.Request.URL.Path).
			Msg("未分類のエラーが発生しました")
		if c.Writer.Written() {
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     true,
			"message":   UnknownErrorMessage,
			"timestamp": time.Now().UTC(),
			"path":      requestPath(c),
		})
	}
}

// DefaultErrorHandler は未処理のエラーを詳細付きの500レスポンスに変換するGinミドルウェアを返す。
// 開発環境でのみ使用すること。スタックトレースがそのまま返される。
func DefaultErrorHandler(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		renderVerbose(c, logger, c.Errors.Last().Err)
	}
}

func (cfg ErrorConfig) report(kind ErrorKind) {
	if cfg.OnError != nil {
		cfg.OnError(kind)
	}
}

// userFacingBody はユーザー向けエラーのレスポンスボディを組み立てる。
// 追加フィールドが予約キーと衝突した場合は予約キーを優先する。
func userFacingBody(c *gin.Context, uf *UserFacingError) gin.H {
	body := make(gin.H, len(uf.Fields)+4)
	for k, v := range uf.Fields {
		body[k] = v
	}
	body["error"] = true
	body["message"] = uf.Message
	body["timestamp"] = uf.Timestamp
	body["path"] = requestPath(c)
	return body
}

// renderVerbose はメッセージとスタックトレースを含む500レスポンスを書き込む。
func renderVerbose(c *gin.Context, logger zerolog.Logger, err error) {
	logger.Error().
		Err(err).
		Str("request_id", GetRequestID(c)).
		Str("path", c.Request.URL.Path).
		Msg("開発用エラーハンドラで処理しました")
	if c.Writer.Written() {
		return
	}

	message := err.Error()
	if message == "" {
		message = "Unknown error"
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
		"path":      requestPath(c),
		"stack":     StackTrace(err),
	})
}

// requestPath は受信したままのリクエストURI（クエリ文字列を含む）を返す。
func requestPath(c *gin.Context) string {
	return c.Request.URL.RequestURI()
}
