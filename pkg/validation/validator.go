package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/pkg/middleware"
)

const (
	// QueryErrorMessage はクエリパラメータの検証に失敗した場合のメッセージ。
	QueryErrorMessage = "Query parameter validation error"
	// BodyErrorMessage はリクエストボディの検証に失敗した場合のメッセージ。
	BodyErrorMessage = "Body parameter validation error"
)

// NewQueryValidator はクエリパラメータを検証するステージを返す。
// クエリの値はスキーマに宣言された型に変換してから検証する。
func NewQueryValidator(schema map[string]any) (middleware.Handler, error) {
	compiled, err := Compile(schema)
	if err != nil {
		return nil, fmt.Errorf("クエリスキーマ: %w", err)
	}

	return func(c *gin.Context) error {
		doc := coerceQuery(c.Request.URL.Query(), schema)
		errs, err := validate(compiled, doc)
		if err != nil {
			return fmt.Errorf("クエリパラメータの検証に失敗: %w", err)
		}
		if len(errs) > 0 {
			abortInvalid(c, QueryErrorMessage, errs)
		}
		return nil
	}, nil
}

// NewBodyValidator はJSONリクエストボディを検証するステージを返す。
// 読み込んだボディは後続のハンドラが再度読めるように戻される。
func NewBodyValidator(schema map[string]any) (middleware.Handler, error) {
	compiled, err := Compile(schema)
	if err != nil {
		return nil, fmt.Errorf("ボディスキーマ: %w", err)
	}

	return func(c *gin.Context) error {
		raw, err := readBody(c)
		if err != nil {
			return fmt.Errorf("リクエストボディの読み込みに失敗: %w", err)
		}

		var doc any = map[string]any{}
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &doc); err != nil {
				abortInvalid(c, BodyErrorMessage, []FieldError{{Message: "invalid JSON: " + err.Error()}})
				return nil
			}
		}

		errs, err := validate(compiled, doc)
		if err != nil {
			return fmt.Errorf("リクエストボディの検証に失敗: %w", err)
		}
		if len(errs) > 0 {
			abortInvalid(c, BodyErrorMessage, errs)
		}
		return nil
	}, nil
}

// readBody はボディを読み込み、c.Request.Bodyを読み直せる状態に戻す。
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	_ = c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, nil
}

func abortInvalid(c *gin.Context, msg string, errs []FieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   true,
		"message": msg,
		"errors":  errs,
	})
}
