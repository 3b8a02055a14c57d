package fsrouter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/pkg/middleware"
	"github.com/rs/zerolog"
)

// testAuth はX-Userヘッダーがあれば認証済みとみなすガード。
func testAuth(c *gin.Context) error {
	user := c.GetHeader("X-User")
	if user == "" {
		return middleware.NewUserFacingError("Unauthorized", http.StatusUnauthorized)
	}
	c.Set("user", user)
	return nil
}

// testAdmin はX-Userがadminの場合のみ通過させるガード。
func testAdmin(c *gin.Context) error {
	if c.GetString("user") != "admin" {
		return middleware.NewUserFacingError("Forbidden", http.StatusForbidden)
	}
	return nil
}

// headerRoles はX-Rolesヘッダーをカンマ区切りのロールとして返すRolesResolver。
func headerRoles(c *gin.Context) ([]string, error) {
	h := c.GetHeader("X-Roles")
	if h == "" {
		return nil, nil
	}
	return strings.Split(h, ","), nil
}

var testCaps = Capabilities{
	EnsureAuthenticated: testAuth,
	EnsureAdmin:         testAdmin,
	RolesResolver:       headerRoles,
}

func ok(message string) middleware.Handler {
	return func(c *gin.Context) error {
		c.JSON(http.StatusOK, gin.H{"message": message})
		return nil
	}
}

// newMountRouter はエラーハンドラを登録したルーターを生成する。
func newMountRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.UserFacingErrorHandler(middleware.ErrorConfig{Logger: zerolog.Nop()}))
	return router
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestMountModule_Stages はHTTPメソッドごとのチェーン構成を検証する。
func TestMountModule_Stages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		module     *EndpointModule
		method     string
		wantStages []string
	}{
		{
			name:       "ゲストアクセスでは認証ガードを挿入しないこと",
			module:     &EndpointModule{Path: "/a", GuestAccess: true, Exports: map[string][]middleware.Handler{"GET": {ok("a")}}},
			method:     "GET",
			wantStages: []string{StageHandler},
		},
		{
			name:       "既定では認証ガードが最初に実行されること",
			module:     &EndpointModule{Path: "/a", Exports: map[string][]middleware.Handler{"GET": {ok("a")}}},
			method:     "GET",
			wantStages: []string{StageAuthenticate, StageHandler},
		},
		{
			name:       "ensureAdminでは認証ガードの後に管理者ガードを挿入すること",
			module:     &EndpointModule{Path: "/a", EnsureAdmin: true, Exports: map[string][]middleware.Handler{"GET": {ok("a")}}},
			method:     "GET",
			wantStages: []string{StageAuthenticate, StageAdmin, StageHandler},
		},
		{
			name:       "ゲストアクセスではensureAdminを無視すること",
			module:     &EndpointModule{Path: "/a", GuestAccess: true, EnsureAdmin: true, Exports: map[string][]middleware.Handler{"GET": {ok("a")}}},
			method:     "GET",
			wantStages: []string{StageHandler},
		},
		{
			name: "ロールと検証の宣言はハンドラの前に挿入されること",
			module: &EndpointModule{
				Path:    "/a",
				Exports: map[string][]middleware.Handler{"post": {ok("a"), ok("b")}},
				Roles:   map[string][]string{"POST": {"org:admin"}},
				Validation: map[string]ValidationSpec{"POST": {
					Query: map[string]any{"type": "object"},
					Body:  map[string]any{"type": "object"},
				}},
			},
			method:     "POST",
			wantStages: []string{StageAuthenticate, StageRoles, StageQuery, StageBody, StageHandler, StageHandler},
		},
		{
			name: "空のロール一覧ではロールゲートを挿入しないこと",
			module: &EndpointModule{
				Path:        "/a",
				GuestAccess: true,
				Exports:     map[string][]middleware.Handler{"DELETE": {ok("a")}},
				Roles:       map[string][]string{"DELETE": {}},
			},
			method:     "DELETE",
			wantStages: []string{StageHandler},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := MountModule(gin.New(), tt.module, testCaps)
			if err != nil {
				t.Fatalf("MountModule() error = %v", err)
			}
			if len(res.Routes) != 1 {
				t.Fatalf("len(Routes) = %d, want 1", len(res.Routes))
			}
			route := res.Routes[0]
			if route.Method != tt.method {
				t.Errorf("Method = %q, want %q", route.Method, tt.method)
			}
			if !slices.Equal(route.Stages, tt.wantStages) {
				t.Errorf("Stages = %v, want %v", route.Stages, tt.wantStages)
			}
		})
	}
}

// TestMountModule_Requests は登録したルートへのリクエストを検証する。
func TestMountModule_Requests(t *testing.T) {
	t.Parallel()

	router := newMountRouter()
	m := &EndpointModule{
		Path:    "/org",
		Aliases: []string{"/organization"},
		Exports: map[string][]middleware.Handler{
			"GET":  {ok("Hello Unauthorized World!")},
			"POST": {ok("Hello Authorized World!")},
			"ALL":  {ok("any")},
		},
		Roles: map[string][]string{"POST": {"org:admin", "org:settings"}},
	}
	res, err := MountModule(router, m, testCaps)
	if err != nil {
		t.Fatalf("MountModule() error = %v", err)
	}

	var methods []string
	for _, r := range res.Routes {
		methods = append(methods, r.Method)
	}
	if want := []string{"GET", "POST", MethodAll}; !slices.Equal(methods, want) {
		t.Errorf("methods = %v, want %v", methods, want)
	}
	if res.WithoutValidation != 3 {
		t.Errorf("WithoutValidation = %d, want 3", res.WithoutValidation)
	}

	tests := []struct {
		name        string
		method      string
		path        string
		user        string
		roles       string
		wantStatus  int
		wantMessage string
	}{
		{name: "ロール宣言の無いメソッドは認証のみで通過すること", method: http.MethodGet, path: "/org", user: "u", wantStatus: http.StatusOK, wantMessage: "Hello Unauthorized World!"},
		{name: "未認証のリクエストは認証ガードで拒否されること", method: http.MethodGet, path: "/org", wantStatus: http.StatusUnauthorized, wantMessage: "Unauthorized"},
		{name: "許可されたロールを持つ場合は通過すること", method: http.MethodPost, path: "/org", user: "u", roles: "org:member,org:settings", wantStatus: http.StatusOK, wantMessage: "Hello Authorized World!"},
		{name: "許可されたロールを持たない場合は403になること", method: http.MethodPost, path: "/org", user: "u", roles: "org:member", wantStatus: http.StatusForbidden, wantMessage: middleware.PermissionDeniedMessage},
		{name: "ロールが無い場合は403になること", method: http.MethodPost, path: "/org", user: "u", wantStatus: http.StatusForbidden, wantMessage: middleware.PermissionDeniedMessage},
		{name: "エイリアスにも同じチェーンが登録されること", method: http.MethodPost, path: "/organization", user: "u", roles: "org:admin", wantStatus: http.StatusOK, wantMessage: "Hello Authorized World!"},
		{name: "ALLは明示されていないメソッドにも登録されること", method: http.MethodPut, path: "/org", user: "u", wantStatus: http.StatusOK, wantMessage: "any"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.user != "" {
				req.Header.Set("X-User", tt.user)
			}
			if tt.roles != "" {
				req.Header.Set("X-Roles", tt.roles)
			}
			w := serve(router, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantMessage) {
				t.Errorf("body = %s, want message %q", w.Body.String(), tt.wantMessage)
			}
		})
	}
}

// TestMountModule_ErrorsReachErrorHandler はハンドラのエラーとパニックが終端ハンドラに届くことを検証する。
func TestMountModule_ErrorsReachErrorHandler(t *testing.T) {
	t.Parallel()

	router := newMountRouter()
	var afterFailure bool
	m := &EndpointModule{
		Path:        "/fail",
		GuestAccess: true,
		Exports: map[string][]middleware.Handler{
			"GET": {
				func(*gin.Context) error { return errors.New("database is down") },
				func(*gin.Context) error { afterFailure = true; return nil },
			},
			"POST": {func(*gin.Context) error { panic("boom") }},
		},
	}
	if _, err := MountModule(router, m, testCaps); err != nil {
		t.Fatalf("MountModule() error = %v", err)
	}

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := serve(router, httptest.NewRequest(method, "/fail", nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want 500", method, w.Code)
		}
		if !strings.Contains(w.Body.String(), middleware.UnknownErrorMessage) {
			t.Errorf("%s body = %s, want %q", method, w.Body.String(), middleware.UnknownErrorMessage)
		}
	}
	if afterFailure {
		t.Error("エラーの後に後続のハンドラが実行された")
	}
}

// TestMountModule_Validation は検証ステージの振る舞いを検証する。
func TestMountModule_Validation(t *testing.T) {
	t.Parallel()

	router := newMountRouter()
	m := &EndpointModule{
		Path:        "/widgets",
		GuestAccess: true,
		Exports: map[string][]middleware.Handler{
			"GET": {ok("listed")},
			"POST": {func(c *gin.Context) error {
				var body struct {
					Name string `json:"name"`
				}
				if err := c.ShouldBindJSON(&body); err != nil {
					return err
				}
				c.JSON(http.StatusCreated, gin.H{"name": body.Name})
				return nil
			}},
		},
		Validation: map[string]ValidationSpec{
			"GET": {Query: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"limit": map[string]any{"type": "integer", "minimum": 1}},
				"additionalProperties": false,
			}},
			"POST": {Body: map[string]any{
				"type":       "object",
				"required":   []any{"name"},
				"properties": map[string]any{"name": map[string]any{"type": "string"}},
			}},
		},
	}
	res, err := MountModule(router, m, testCaps)
	if err != nil {
		t.Fatalf("MountModule() error = %v", err)
	}
	if res.WithoutValidation != 0 {
		t.Errorf("WithoutValidation = %d, want 0", res.WithoutValidation)
	}

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "正しいクエリは通過すること", method: http.MethodGet, target: "/widgets?limit=5", wantStatus: http.StatusOK, wantBody: "listed"},
		{name: "APIキーはスキーマに無くても許可されること", method: http.MethodGet, target: "/widgets?key=secret", wantStatus: http.StatusOK, wantBody: "listed"},
		{name: "範囲外のクエリは400になること", method: http.MethodGet, target: "/widgets?limit=0", wantStatus: http.StatusBadRequest, wantBody: "Query parameter validation error"},
		{name: "未知のクエリは400になること", method: http.MethodGet, target: "/widgets?unknown=1", wantStatus: http.StatusBadRequest, wantBody: "Query parameter validation error"},
		{name: "正しいボディはハンドラで再度読めること", method: http.MethodPost, target: "/widgets", body: `{"name":"gear"}`, wantStatus: http.StatusCreated, wantBody: `"name":"gear"`},
		{name: "必須項目の無いボディは400になること", method: http.MethodPost, target: "/widgets", body: `{}`, wantStatus: http.StatusBadRequest, wantBody: "Body parameter validation error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := serve(router, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body = %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

// TestMountModule_ConfigurationErrors は設定ミスの検出を検証する。
func TestMountModule_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	hello := map[string][]middleware.Handler{"GET": {ok("hello")}}

	tests := []struct {
		name    string
		module  *EndpointModule
		caps    Capabilities
		wantErr error
	}{
		{
			name:    "認証ガードが無い場合はエラーになること",
			module:  &EndpointModule{Path: "/a", Exports: hello},
			caps:    Capabilities{},
			wantErr: ErrMissingGuard,
		},
		{
			name:    "管理者ガードが無い場合はエラーになること",
			module:  &EndpointModule{Path: "/a", EnsureAdmin: true, Exports: hello},
			caps:    Capabilities{EnsureAuthenticated: testAuth},
			wantErr: ErrMissingGuard,
		},
		{
			name:    "空のハンドラ一覧はエラーになること",
			module:  &EndpointModule{Path: "/a", GuestAccess: true, Exports: map[string][]middleware.Handler{"GET": {}}},
			wantErr: ErrInvalidExport,
		},
		{
			name:    "nilのハンドラはエラーになること",
			module:  &EndpointModule{Path: "/a", GuestAccess: true, Exports: map[string][]middleware.Handler{"GET": {nil}}},
			wantErr: ErrInvalidExport,
		},
		{
			name: "同じメソッドの重複エクスポートはエラーになること",
			module: &EndpointModule{Path: "/a", GuestAccess: true, Exports: map[string][]middleware.Handler{
				"GET": {ok("a")},
				"get": {ok("b")},
			}},
			wantErr: ErrInvalidExport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			_, err := MountModule(router, tt.module, tt.caps)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("MountModule() error = %v, want %v", err, tt.wantErr)
			}
			if n := len(router.Routes()); n != 0 {
				t.Errorf("登録されたルート数 = %d, want 0", n)
			}
		})
	}

	t.Run("不正なスキーマはエラーになること", func(t *testing.T) {
		t.Parallel()

		m := &EndpointModule{
			Path:        "/a",
			GuestAccess: true,
			Exports:     hello,
			Validation:  map[string]ValidationSpec{"GET": {Body: map[string]any{"type": 42}}},
		}
		if _, err := MountModule(gin.New(), m, testCaps); err == nil {
			t.Error("MountModule() error = nil, want error")
		}
	})

	t.Run("同じパスへの重複登録はErrRouteConflictになること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		m := &EndpointModule{Path: "/dup", GuestAccess: true, Exports: hello}
		if _, err := MountModule(router, m, testCaps); err != nil {
			t.Fatalf("1回目の MountModule() error = %v", err)
		}
		_, err := MountModule(router, m, testCaps)
		if !errors.Is(err, ErrRouteConflict) {
			t.Errorf("MountModule() error = %v, want ErrRouteConflict", err)
		}
	})
}
