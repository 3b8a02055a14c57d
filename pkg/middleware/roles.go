package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PermissionDeniedMessage はロールが不足している場合に返すメッセージ。
const PermissionDeniedMessage = "You do not have permission to access this resource"

// contextKeyRoles はGinコンテキストに解決済みロールを格納するキー。
const contextKeyRoles = "roles"

// RolesResolver はリクエストしたユーザーが持つロールの一覧を返す。
type RolesResolver func(c *gin.Context) ([]string, error)

// NoRoles は常に空のロール一覧を返すRolesResolver。
func NoRoles(_ *gin.Context) ([]string, error) {
	return nil, nil
}

// RequireRoles は許可リストのいずれかのロールを持つ場合のみ後続を実行するHandlerを返す。
// 解決したロールはGinコンテキストに格納され、GetRolesで参照できる。
func RequireRoles(allowed []string, resolve RolesResolver) Handler {
	if resolve == nil {
		resolve = NoRoles
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) error {
		roles, err := resolve(c)
		if err != nil {
			return fmt.Errorf("ロールの解決に失敗: %w", err)
		}
		c.Set(contextKeyRoles, roles)

		for _, r := range roles {
			if _, ok := allowedSet[r]; ok {
				return nil
			}
		}
		return NewUserFacingError(PermissionDeniedMessage, http.StatusForbidden)
	}
}

// GetRoles はRequireRolesが解決したロールをGinコンテキストから取得する。
func GetRoles(c *gin.Context) []string {
	v, ok := c.Get(contextKeyRoles)
	if !ok {
		return nil
	}
	roles, _ := v.([]string)
	return roles
}
