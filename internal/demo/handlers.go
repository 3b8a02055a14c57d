// Package demo は同梱のroutesディレクトリが参照するハンドラを登録する。
package demo

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/parallelworks/fsrouter/pkg/fsrouter"
	"github.com/parallelworks/fsrouter/pkg/middleware"
)

// Widget はデモ用のリソース。
type Widget struct {
	// ID はウィジェットの一意識別子。
	ID string `json:"id"`
	// Name はウィジェット名。
	Name string `json:"name"`
	// Owner は作成したユーザーのID。
	Owner string `json:"owner,omitempty"`
}

// widgetStore はプロセス内に保持するウィジェットの一覧。
type widgetStore struct {
	mu      sync.RWMutex
	widgets []Widget
}

// NotFoundError は存在しないリソースを表すユーザー向けエラー。
type NotFoundError struct {
	*middleware.UserFacingError
}

func newNotFoundError(kind, id string) *NotFoundError {
	e := &NotFoundError{middleware.NewUserFacingError(kind+" not found", http.StatusNotFound)}
	e.WithField("id", id)
	return e
}

// Registry はデモ用のハンドラを登録したレジストリを返す。
func Registry() *fsrouter.Registry {
	store := &widgetStore{}

	return fsrouter.NewRegistry().
		RegisterGin("hello", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "Hello World!"})
		}).
		RegisterGin("helloUnauthorized", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "Hello Unauthorized World!"})
		}).
		RegisterGin("helloAuthorized", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "Hello Authorized World!"})
		}).
		RegisterGin("whoami", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"user_id": middleware.GetUserID(c),
				"roles":   middleware.GetRoles(c),
			})
		}).
		RegisterGin("listWidgets", store.list).
		Register("createWidget", store.create).
		Register("getWidget", store.get).
		Register("fail", func(*gin.Context) error {
			return errors.New("demo handler failed")
		})
}

func (s *widgetStore) list(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	widgets := make([]Widget, len(s.widgets))
	copy(widgets, s.widgets)
	c.JSON(http.StatusOK, gin.H{"widgets": widgets})
}

func (s *widgetStore) create(c *gin.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return middleware.NewUserFacingError("Invalid request body", http.StatusBadRequest)
	}

	w := Widget{ID: uuid.NewString(), Name: req.Name, Owner: middleware.GetUserID(c)}
	s.mu.Lock()
	s.widgets = append(s.widgets, w)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, w)
	return nil
}

func (s *widgetStore) get(c *gin.Context) error {
	id := c.Param("id")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.widgets {
		if w.ID == id {
			c.JSON(http.StatusOK, w)
			return nil
		}
	}
	return newNotFoundError("Widget", id)
}
