package fsrouter

import (
	"path/filepath"
	"testing"
)

// TestDerivePath はファイルパスからのルートパス導出を検証する。
func TestDerivePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		root string
		want string
	}{
		{name: "ルート直下のindexは/になること", file: "routes/index.yaml", root: "routes", want: "/"},
		{name: "通常のファイルは拡張子を除いたパスになること", file: "routes/widgets.yaml", root: "routes", want: "/widgets"},
		{name: "ネストしたindexはディレクトリのパスになること", file: "routes/users/index.yml", root: "routes", want: "/users"},
		{name: "パラメータ記号はそのまま残ること", file: "routes/users/:id.yaml", root: "routes", want: "/users/:id"},
		{name: "先頭のindexディレクトリは取り除かれること", file: "routes/index/foo.yaml", root: "routes", want: "/foo"},
		{name: "./付きのルートでも導出できること", file: "routes/a/b.yaml", root: "./routes", want: "/a/b"},
		{name: "末尾に/が付いたルートでも導出できること", file: "routes/a.yaml", root: "routes/", want: "/a"},
		{name: "カレントディレクトリをルートにできること", file: "a/index.yaml", root: ".", want: "/a"},
		{name: "index以外で終わるセグメントは変更されないこと", file: "routes/reindex.yaml", root: "routes", want: "/reindex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			file := filepath.FromSlash(tt.file)
			root := filepath.FromSlash(tt.root)
			got := DerivePath(file, root)
			if got != tt.want {
				t.Errorf("DerivePath(%q, %q) = %q, want %q", file, root, got, tt.want)
			}
			// 導出済みのパスに再度適用しても変化しないこと
			if again := DerivePath(got, "/"); again != got {
				t.Errorf("DerivePath(%q) = %q, want idempotent", got, again)
			}
		})
	}
}

// TestIsExcluded はアンダースコアで始まるセグメントの除外判定を検証する。
func TestIsExcluded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{path: "/", want: false},
		{path: "/users", want: false},
		{path: "/_drafts", want: true},
		{path: "/_internal/health", want: true},
		{path: "/users/_helpers", want: true},
		{path: "/snake_case", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			if got := IsExcluded(tt.path); got != tt.want {
				t.Errorf("IsExcluded(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
