package fsrouter

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// SortForMount はファイルパスを辞書順の降順に並べたコピーを返す。
// ":" は英数字より小さいため、同じ接頭辞を持つ固定パスがパラメータを含むパスより前に来る。
func SortForMount(files []string) []string {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))
	return sorted
}

// LoadResult はLoadAllの結果。
type LoadResult struct {
	// Modules はマウント順に並んだ読み込み済みモジュール。
	Modules []*EndpointModule
	// Skipped は "_" で始まるセグメントを含むため読み込まなかったルートパス。
	Skipped []string
}

// LoadAll はファイルを並行に読み込み、マウント順に並べて返す。
//
// マウント順は読み込みの開始前にSortForMountで決まり、読み込みの完了順には依存しない。
// "_" で始まるセグメントを含むルートは読み込み自体を行わない。
// 1件でも読み込みに失敗した場合は全体をエラーとする。
func LoadAll(ctx context.Context, files []string, root string, loader Loader) (*LoadResult, error) {
	sorted := SortForMount(files)
	loaded := make([]*EndpointModule, len(sorted))
	result := &LoadResult{}

	g, gctx := errgroup.WithContext(ctx)
	for i, file := range sorted {
		routePath := DerivePath(file, root)
		if IsExcluded(routePath) {
			result.Skipped = append(result.Skipped, routePath)
			continue
		}

		g.Go(func() error {
			m, err := loader.Load(gctx, file)
			if err != nil {
				return fmt.Errorf("%s の読み込みに失敗: %w", file, err)
			}
			if m == nil {
				return fmt.Errorf("%w: %s の読み込み結果がnilです", ErrInvalidModule, file)
			}
			mod := *m
			mod.File = file
			mod.Path = routePath
			loaded[i] = &mod
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, m := range loaded {
		if m != nil {
			result.Modules = append(result.Modules, m)
		}
	}
	return result, nil
}
