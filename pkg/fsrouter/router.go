package fsrouter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/pkg/middleware"
	"github.com/rs/zerolog"
)

// Options はMountの設定。
type Options struct {
	// RoutesPath はルートディレクトリ、または単一のルート定義ファイルのパス。
	RoutesPath string
	// Loader はルート定義ファイルを読み込む。必須。
	Loader Loader
	// EnsureAuthenticated は認証ガード。
	EnsureAuthenticated middleware.Handler
	// EnsureAdmin は管理者ガード。
	EnsureAdmin middleware.Handler
	// RolesResolver はリクエストしたユーザーのロールを返す。nilの場合はロール無しとして扱う。
	RolesResolver middleware.RolesResolver
	// LogMounts がtrueの場合、マウントの経過をLoggerに出力する。
	LogMounts bool
	// Logger はマウントログの出力先。
	Logger zerolog.Logger
}

// Summary はMountの結果。
type Summary struct {
	// Files は処理したルート定義ファイルの数。
	Files int
	// Mounted は登録したルートの数。
	Mounted int
	// WithoutValidation はスキーマ検証の宣言が無いルートの数。
	WithoutValidation int
	// Routes は登録したルートをマウント順に並べたもの。
	Routes []MountedRoute
	// Skipped はマウントしなかったルートパス。
	Skipped []string
}

// Mount はRoutesPath配下のルート定義を探索・読み込みし、rに登録する。
// どのファイルで失敗しても起動時の致命的なエラーとして返す。
func Mount(ctx context.Context, r gin.IRoutes, opts Options) (*Summary, error) {
	if opts.Loader == nil {
		return nil, errors.New("fsrouter: Loaderは必須です")
	}
	logger := zerolog.Nop()
	if opts.LogMounts {
		logger = opts.Logger
	}
	logger.Info().Str("root", opts.RoutesPath).Msg("Mounting routes")

	files, err := Discover(opts.RoutesPath)
	if err != nil {
		return nil, err
	}

	root := opts.RoutesPath
	if hasModuleExt(root) {
		root = filepath.Dir(root)
	}

	loaded, err := LoadAll(ctx, files, root, opts.Loader)
	if err != nil {
		return nil, err
	}
	for _, p := range loaded.Skipped {
		logger.Info().Str("path", p).Msg("Skipping mounting")
	}

	caps := Capabilities{
		EnsureAuthenticated: opts.EnsureAuthenticated,
		EnsureAdmin:         opts.EnsureAdmin,
		RolesResolver:       opts.RolesResolver,
	}

	summary := &Summary{Files: len(files), Skipped: loaded.Skipped}
	for _, m := range loaded.Modules {
		logger.Info().Str("path", m.Path).Str("file", m.File).Msg("Mounting route")

		res, err := MountModule(r, m, caps)
		if err != nil {
			return nil, fmt.Errorf("%s のマウントに失敗: %w", m.File, err)
		}
		if len(res.Routes) == 0 {
			logger.Info().Str("path", m.Path).Msg("No exported HTTP methods")
		}
		for _, route := range res.Routes {
			logger.Info().
				Str("method", route.Method).
				Strs("paths", route.Paths).
				Strs("stages", route.Stages).
				Bool("validation", route.Validated).
				Msg("Mounted")
		}

		summary.Routes = append(summary.Routes, res.Routes...)
		summary.Mounted += len(res.Routes)
		summary.WithoutValidation += res.WithoutValidation
	}

	logger.Info().
		Int("files", summary.Files).
		Int("mounted", summary.Mounted).
		Int("without_validation", summary.WithoutValidation).
		Msgf("%d route files processed, %d routes mounted, %d routes do not have validation.",
			summary.Files, summary.Mounted, summary.WithoutValidation)
	return summary, nil
}
