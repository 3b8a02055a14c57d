package fsrouter

import (
	"net/http"
	"strings"

	"github.com/parallelworks/fsrouter/pkg/middleware"
)

// MethodAll は全HTTPメソッドにマウントするエクスポート名。
const MethodAll = "ALL"

// Methods はマウント対象となるエクスポート名の許可リスト。マウントはこの順で行う。
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	MethodAll,
}

// ValidationSpec はHTTPメソッドごとのJSON Schemaの宣言。
type ValidationSpec struct {
	// Query はクエリパラメータのスキーマ。nilの場合は検証しない。
	Query map[string]any `yaml:"query"`
	// Body はリクエストボディのスキーマ。nilの場合は検証しない。
	Body map[string]any `yaml:"body"`
}

// EndpointModule は1つのルートファイルが定義するエンドポイントを表す。
// 起動時に一度だけ生成され、以降は変更されない。
type EndpointModule struct {
	// File は定義ファイルのパス。
	File string
	// Path はファイルパスから導出したルートパス。
	Path string
	// Exports はエクスポート名（HTTPメソッド名）からハンドラの一覧への対応。
	Exports map[string][]middleware.Handler
	// Validation はHTTPメソッドごとのスキーマ宣言。
	Validation map[string]ValidationSpec
	// GuestAccess がtrueの場合、認証ガードを挿入しない。
	GuestAccess bool
	// EnsureAdmin がtrueの場合、認証ガードの後に管理者ガードを挿入する。
	EnsureAdmin bool
	// Roles はHTTPメソッドごとに要求するロールの許可リスト。
	Roles map[string][]string
	// Aliases はPathに加えて同じチェーンを登録する追加のルートパス。
	Aliases []string
}

// Paths はモジュールを登録するルートパスの一覧を返す。
func (m *EndpointModule) Paths() []string {
	paths := make([]string, 0, 1+len(m.Aliases))
	paths = append(paths, m.Path)
	return append(paths, m.Aliases...)
}

// lookup は大文字小文字を区別せずにキーを探す。
// 同じメソッドを指すキーが複数ある場合はambiguousを返す。
func lookup[T any](values map[string]T, method string) (key string, value T, found, ambiguous bool) {
	for k, v := range values {
		if !strings.EqualFold(k, method) {
			continue
		}
		if found {
			return key, value, true, true
		}
		key, value, found = k, v, true
	}
	return key, value, found, false
}

// isMethod はエクスポート名が許可リストのHTTPメソッドかどうかを判定する。
func isMethod(name string) bool {
	for _, m := range Methods {
		if strings.EqualFold(name, m) {
			return true
		}
	}
	return false
}
