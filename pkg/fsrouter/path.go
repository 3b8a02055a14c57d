package fsrouter

import (
	"path/filepath"
	"strings"
)

const indexSegment = "/index"

// DerivePath はファイルパスからルートパスを導出する。
//
// rootの接頭辞と拡張子を取り除き、先頭の "/index" を "/" に、末尾の "/index" を空にする。
// それ以外の正規化は行わないため、":id" のようなパラメータ記号はそのまま残る。
// 同じ入力に対して常に同じ結果を返し、導出済みのパスに再度適用しても変化しない。
func DerivePath(file, root string) string {
	p := filepath.ToSlash(filepath.Clean(file))
	r := filepath.ToSlash(filepath.Clean(root))
	if r != "." {
		p = strings.TrimPrefix(p, strings.TrimSuffix(r, "/"))
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	if hasModuleExt(p) {
		p = strings.TrimSuffix(p, filepath.Ext(p))
	}

	if strings.HasPrefix(p, indexSegment+"/") {
		p = p[len(indexSegment):]
	}
	if p == indexSegment {
		return "/"
	}
	p = strings.TrimSuffix(p, indexSegment)
	if p == "" {
		return "/"
	}
	return p
}

// IsExcluded はルートパスに "_" で始まるセグメントが含まれるかを判定する。
// 該当するファイルは読み込み前に除外され、マウントされない。
func IsExcluded(routePath string) bool {
	for _, seg := range strings.Split(routePath, "/") {
		if strings.HasPrefix(seg, "_") {
			return true
		}
	}
	return false
}
