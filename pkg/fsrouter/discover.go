package fsrouter

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extensions はルート定義ファイルとして扱う拡張子。
var Extensions = []string{".yaml", ".yml"}

// excludedDirs はテスト用として探索から除外するディレクトリ名。
var excludedDirs = map[string]struct{}{
	"testdata":  {},
	"__tests__": {},
}

// Discover はルートディレクトリ配下のルート定義ファイルを再帰的に列挙する。
// rootが定義ファイルそのものを指す場合は、探索せずにそのファイルだけを返す。
// テスト用のファイル（*.test.yaml, *_test.yaml）とディレクトリは除外する。
func Discover(root string) ([]string, error) {
	if hasModuleExt(root) {
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("ルートファイルの確認に失敗: %w", err)
		}
		return []string{root}, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, ok := excludedDirs[d.Name()]; ok && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasModuleExt(path) || isTestFile(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ルートディレクトリの探索に失敗: %w", err)
	}
	return files, nil
}

// hasModuleExt はパスがルート定義ファイルの拡張子を持つかどうかを判定する。
func hasModuleExt(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// isTestFile はファイル名の拡張子を除いた部分が .test または _test で終わるかを判定する。
func isTestFile(path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasSuffix(stem, ".test") || strings.HasSuffix(stem, "_test")
}
