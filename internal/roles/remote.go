package roles

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/pkg/httpclient"
	"github.com/parallelworks/fsrouter/pkg/middleware"
)

// rolesResponse はロールサービスのレスポンス。
type rolesResponse struct {
	Roles []string `json:"roles"`
}

// RemoteResolver はロールサービスの GET /users/{id}/roles に問い合わせるRolesResolverを返す。
// 受け付けたリクエストのAuthorizationとリクエストIDを引き継ぐ。
// ユーザーが見つからない場合（404）はロール無しとして扱う。
func RemoteResolver(client *httpclient.Client) middleware.RolesResolver {
	return func(c *gin.Context) ([]string, error) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			return nil, nil
		}

		forward := http.Header{}
		if auth := c.GetHeader("Authorization"); auth != "" {
			forward.Set("Authorization", auth)
		}
		if id := middleware.GetRequestID(c); id != "" {
			forward.Set(middleware.HeaderRequestID, id)
		}
		ctx := httpclient.WithHeaders(c.Request.Context(), forward)

		var resp rolesResponse
		err := client.GetJSON(ctx, "/users/"+url.PathEscape(userID)+"/roles", &resp)
		var se *httpclient.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ロールサービスへの問い合わせに失敗: %w", err)
		}
		return resp.Roles, nil
	}
}
