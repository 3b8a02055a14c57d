package fsrouter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/pkg/middleware"
	"gopkg.in/yaml.v3"
)

// Loader はルート定義ファイルを読み込んでEndpointModuleを生成する。
// File と Path は呼び出し側で設定されるため、Loaderが設定する必要はない。
type Loader interface {
	Load(ctx context.Context, file string) (*EndpointModule, error)
}

// LoaderFunc は関数をLoaderとして扱うためのアダプタ。
type LoaderFunc func(ctx context.Context, file string) (*EndpointModule, error)

// Load はf(ctx, file)を呼び出す。
func (f LoaderFunc) Load(ctx context.Context, file string) (*EndpointModule, error) {
	return f(ctx, file)
}

// MapLoader はファイルパスをキーにあらかじめ用意したモジュールを返すLoader。
// Goコードでエンドポイントを定義する場合やテストで使用する。
type MapLoader map[string]*EndpointModule

// Load はfileに対応するモジュールを返す。存在しない場合はエラーを返す。
func (l MapLoader) Load(_ context.Context, file string) (*EndpointModule, error) {
	m, ok := l[file]
	if !ok {
		return nil, fmt.Errorf("%w: %s に対応するモジュールがありません", ErrInvalidModule, file)
	}
	return m, nil
}

// Registry はルート定義ファイルから名前で参照されるハンドラの登録簿。
type Registry struct {
	handlers map[string]middleware.Handler
}

// NewRegistry は空のレジストリを生成する。
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]middleware.Handler)}
}

// Register はハンドラを名前で登録する。
// 初期化時の設定ミスであるため、空の名前・nil・重複登録はパニックする。
func (r *Registry) Register(name string, h middleware.Handler) *Registry {
	if name == "" || h == nil {
		panic("fsrouter: ハンドラ名とハンドラは必須です")
	}
	if _, dup := r.handlers[name]; dup {
		panic(fmt.Sprintf("fsrouter: ハンドラ %q は登録済みです", name))
	}
	r.handlers[name] = h
	return r
}

// RegisterGin はエラーを返さない通常のGinハンドラを名前で登録する。
func (r *Registry) RegisterGin(name string, h gin.HandlerFunc) *Registry {
	if h == nil {
		panic("fsrouter: ハンドラ名とハンドラは必須です")
	}
	return r.Register(name, middleware.FromGin(h))
}

// Lookup は名前に対応するハンドラを返す。
func (r *Registry) Lookup(name string) (middleware.Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// descriptor はYAML形式のルート定義ファイルの構造。
// 予約キー以外のトップレベルキーはExportsに入る。
type descriptor struct {
	GuestAccess bool                      `yaml:"guestAccess"`
	EnsureAdmin bool                      `yaml:"ensureAdmin"`
	Roles       map[string][]string       `yaml:"roles"`
	Validation  map[string]ValidationSpec `yaml:"validation"`
	Aliases     []string                  `yaml:"aliases"`
	Exports     map[string]any            `yaml:",inline"`
}

// YAMLLoader はYAML形式のルート定義ファイルを読み込むLoader。
// HTTPメソッド名のキーにはハンドラ名、またはハンドラ名の一覧を書く。
//
//	guestAccess: true
//	roles:
//	  POST: [org:admin]
//	validation:
//	  POST:
//	    body: {type: object, required: [name]}
//	GET: listWidgets
//	POST: [audit, createWidget]
type YAMLLoader struct {
	// Registry はハンドラ名の解決に使うレジストリ。
	Registry *Registry
}

// NewYAMLLoader は指定したレジストリでハンドラ名を解決するYAMLLoaderを生成する。
func NewYAMLLoader(registry *Registry) *YAMLLoader {
	return &YAMLLoader{Registry: registry}
}

// Load はファイルを読み込み、Parseの結果を返す。
func (l *YAMLLoader) Load(ctx context.Context, file string) (*EndpointModule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	return l.Parse(data)
}

// Parse はYAMLのバイト列からEndpointModuleを生成する。
// HTTPメソッド以外の未知のキーは無視する。
func (l *YAMLLoader) Parse(data []byte) (*EndpointModule, error) {
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: YAMLのパースに失敗: %v", ErrInvalidModule, err)
	}

	m := &EndpointModule{
		Exports:     make(map[string][]middleware.Handler),
		Validation:  make(map[string]ValidationSpec, len(d.Validation)),
		GuestAccess: d.GuestAccess,
		EnsureAdmin: d.EnsureAdmin,
		Roles:       make(map[string][]string, len(d.Roles)),
		Aliases:     d.Aliases,
	}
	for method, spec := range d.Validation {
		m.Validation[strings.ToUpper(method)] = spec
	}
	for method, roles := range d.Roles {
		m.Roles[strings.ToUpper(method)] = roles
	}

	for key, value := range d.Exports {
		if !isMethod(key) {
			continue
		}
		names, err := handlerNames(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidExport, key, err)
		}
		handlers := make([]middleware.Handler, 0, len(names))
		for _, name := range names {
			h, ok := l.lookup(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s: %q", ErrUnknownHandler, key, name)
			}
			handlers = append(handlers, h)
		}
		m.Exports[key] = handlers
	}
	return m, nil
}

func (l *YAMLLoader) lookup(name string) (middleware.Handler, bool) {
	if l.Registry == nil {
		return nil, false
	}
	return l.Registry.Lookup(name)
}

// handlerNames はエクスポートの値をハンドラ名の一覧に変換する。
func handlerNames(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("ハンドラ名が空です")
		}
		return []string{v}, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("ハンドラの一覧が空です")
		}
		names := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%d番目の要素がハンドラ名ではありません: %v", i, item)
			}
			names = append(names, s)
		}
		return names, nil
	default:
		return nil, fmt.Errorf("ハンドラ名またはその一覧が必要です: %T", value)
	}
}
