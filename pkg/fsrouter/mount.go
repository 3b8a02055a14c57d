package fsrouter

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/pkg/middleware"
	"github.com/parallelworks/fsrouter/pkg/validation"
)

// ハンドラチェーンの各ステージの名前。
const (
	StageAuthenticate = "authenticate"
	StageAdmin        = "admin"
	StageRoles        = "roles"
	StageQuery        = "query"
	StageBody         = "body"
	StageHandler      = "handler"
)

// Capabilities はマウント時に注入されるガードとロールリゾルバ。
type Capabilities struct {
	// EnsureAuthenticated は認証ガード。guestAccessでないモジュールには必須。
	EnsureAuthenticated middleware.Handler
	// EnsureAdmin は管理者ガード。ensureAdminを宣言したモジュールには必須。
	EnsureAdmin middleware.Handler
	// RolesResolver はリクエストしたユーザーのロールを返す。nilの場合はロール無しとして扱う。
	RolesResolver middleware.RolesResolver
}

// MountedRoute は実際にルーターへ登録したルート。
type MountedRoute struct {
	// Method はHTTPメソッド。ALLは個別にエクスポートされていない全メソッドを表す。
	Method string
	// Paths は登録したルートパス。
	Paths []string
	// Stages はハンドラチェーンの各ステージ名を実行順に並べたもの。
	Stages []string
	// Validated はスキーマ検証の宣言があるかどうか。
	Validated bool
}

// MountResult はMountModuleの結果。
type MountResult struct {
	// Routes は登録したルート。
	Routes []MountedRoute
	// WithoutValidation はスキーマ検証の宣言が無いルートの数。
	WithoutValidation int
}

// MountModule はモジュールがエクスポートするHTTPメソッドごとにハンドラチェーンを組み立てて登録する。
//
// チェーンは 認証ガード → 管理者ガード → ロールゲート → クエリ検証 → ボディ検証 → ハンドラ の順で、
// 各エントリはmiddleware.Catchでラップされる。
// エクスポートの形が不正な場合や必要なガードが無い場合は、何も登録せずにエラーを返す。
func MountModule(r gin.IRoutes, m *EndpointModule, caps Capabilities) (MountResult, error) {
	type plan struct {
		route MountedRoute
		chain []gin.HandlerFunc
	}

	var plans []plan
	var result MountResult
	for _, method := range Methods {
		key, handlers, found, ambiguous := lookup(m.Exports, method)
		if !found {
			continue
		}
		if ambiguous {
			return MountResult{}, fmt.Errorf("%w: %s: %s が複数回エクスポートされています", ErrInvalidExport, m.File, method)
		}

		chain, route, err := buildChain(m, method, key, handlers, caps)
		if err != nil {
			return MountResult{}, fmt.Errorf("%s %s: %w", method, m.Path, err)
		}
		if !route.Validated {
			result.WithoutValidation++
		}
		plans = append(plans, plan{route: route, chain: chain})
	}

	exported := make(map[string]bool, len(plans))
	for _, p := range plans {
		exported[p.route.Method] = true
	}
	for _, p := range plans {
		if err := register(r, p.route.Method, p.route.Paths, p.chain, exported); err != nil {
			return MountResult{}, err
		}
		result.Routes = append(result.Routes, p.route)
	}
	return result, nil
}

// buildChain は1つのHTTPメソッドのハンドラチェーンを組み立てる。
func buildChain(m *EndpointModule, method, key string, handlers []middleware.Handler, caps Capabilities) ([]gin.HandlerFunc, MountedRoute, error) {
	route := MountedRoute{Method: method, Paths: m.Paths()}
	var stages []middleware.Handler
	add := func(name string, h middleware.Handler) {
		stages = append(stages, h)
		route.Stages = append(route.Stages, name)
	}

	if len(handlers) == 0 {
		return nil, route, fmt.Errorf("%w: %s にハンドラがありません", ErrInvalidExport, key)
	}
	for i, h := range handlers {
		if h == nil {
			return nil, route, fmt.Errorf("%w: %s の%d番目がnilです", ErrInvalidExport, key, i)
		}
	}

	if !m.GuestAccess {
		if caps.EnsureAuthenticated == nil {
			return nil, route, fmt.Errorf("%w: EnsureAuthenticated", ErrMissingGuard)
		}
		add(StageAuthenticate, caps.EnsureAuthenticated)

		if m.EnsureAdmin {
			if caps.EnsureAdmin == nil {
				return nil, route, fmt.Errorf("%w: EnsureAdmin", ErrMissingGuard)
			}
			add(StageAdmin, caps.EnsureAdmin)
		}
	}

	if _, roles, found, _ := lookup(m.Roles, method); found && len(roles) > 0 {
		add(StageRoles, middleware.RequireRoles(roles, caps.RolesResolver))
	}

	if _, spec, found, _ := lookup(m.Validation, method); found {
		route.Validated = true
		if spec.Query != nil {
			v, err := validation.NewQueryValidator(validation.WithAPIKey(spec.Query))
			if err != nil {
				return nil, route, err
			}
			add(StageQuery, v)
		}
		if spec.Body != nil {
			v, err := validation.NewBodyValidator(spec.Body)
			if err != nil {
				return nil, route, err
			}
			add(StageBody, v)
		}
	}

	for _, h := range handlers {
		add(StageHandler, h)
	}

	chain := make([]gin.HandlerFunc, len(stages))
	for i, h := range stages {
		chain[i] = middleware.Catch(h)
	}
	return chain, route, nil
}

// anyMethods はALLで登録するHTTPメソッド。gin.IRoutes.Anyと同じ集合。
var anyMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodHead,
	http.MethodOptions,
	http.MethodDelete,
	http.MethodConnect,
	http.MethodTrace,
}

// register はチェーンをルーターに登録する。
// ALLはモジュールが個別にエクスポートしていないメソッドにだけ登録する。
// Ginは登録の衝突をパニックで通知するため、エラーに変換する。
func register(r gin.IRoutes, method string, paths []string, chain []gin.HandlerFunc, exported map[string]bool) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s %v: %v", ErrRouteConflict, method, paths, rec)
		}
	}()

	for _, p := range paths {
		if method != MethodAll {
			r.Handle(method, p, chain...)
			continue
		}
		for _, m := range anyMethods {
			if !exported[m] {
				r.Handle(m, p, chain...)
			}
		}
	}
	return nil
}
