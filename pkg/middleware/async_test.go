package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// runChain は指定したハンドラを登録したルーターでGETリクエストを実行し、記録されたエラーを返す。
func runChain(t *testing.T, handlers ...gin.HandlerFunc) (*httptest.ResponseRecorder, []*gin.Error) {
	t.Helper()

	var recorded []*gin.Error
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Next()
		recorded = append([]*gin.Error(nil), c.Errors...)
	})
	router.GET("/chain", handlers...)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chain", nil))
	return w, recorded
}

// TestCatch は非同期エラーアダプタを検証する。
func TestCatch(t *testing.T) {
	t.Parallel()

	t.Run("返されたエラーが記録され後続が実行されないこと", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("失敗")
		nextCalled := false
		_, errs := runChain(t,
			Catch(func(_ *gin.Context) error { return sentinel }),
			func(_ *gin.Context) { nextCalled = true },
		)

		if len(errs) != 1 {
			t.Fatalf("エラー件数 = %d, want 1", len(errs))
		}
		if !errors.Is(errs[0].Err, sentinel) {
			t.Errorf("記録されたエラー = %v, want %v", errs[0].Err, sentinel)
		}
		if nextCalled {
			t.Error("エラー後に後続ハンドラが実行された")
		}
	})

	t.Run("パニックがエラーとして記録されること", func(t *testing.T) {
		t.Parallel()

		_, errs := runChain(t, Catch(func(_ *gin.Context) error {
			panic("テスト用パニック")
		}))

		if len(errs) != 1 {
			t.Fatalf("エラー件数 = %d, want 1", len(errs))
		}
		if !strings.Contains(errs[0].Err.Error(), "テスト用パニック") {
			t.Errorf("エラーメッセージ = %q, パニック値を含むべき", errs[0].Err.Error())
		}
		if StackTrace(errs[0].Err) == "" {
			t.Error("スタックトレースが記録されていない")
		}
	})

	t.Run("errorを値に持つパニックはそのエラーをラップすること", func(t *testing.T) {
		t.Parallel()

		sentinel := NewUserFacingError("teapot", http.StatusTeapot)
		_, errs := runChain(t, Catch(func(_ *gin.Context) error {
			panic(sentinel)
		}))

		if len(errs) != 1 {
			t.Fatalf("エラー件数 = %d, want 1", len(errs))
		}
		if !IsUserFacingError(errs[0].Err) {
			t.Error("パニック値のUserFacingErrorが分類されない")
		}
	})

	t.Run("エラーがなければ後続が実行されること", func(t *testing.T) {
		t.Parallel()

		w, errs := runChain(t,
			Catch(func(_ *gin.Context) error { return nil }),
			Catch(FromGin(func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })),
		)

		if len(errs) != 0 {
			t.Errorf("エラー件数 = %d, want 0", len(errs))
		}
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("Catchを経由しないエラーのスタックトレースは空であること", func(t *testing.T) {
		t.Parallel()

		if got := StackTrace(errors.New("plain")); got != "" {
			t.Errorf("StackTrace() = %q, want empty", got)
		}
	})
}
