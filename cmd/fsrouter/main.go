// fsrouterサーバーのエントリポイント。
// ROUTES_DIR配下のルート定義ファイルを探索してマウントし、HTTPリクエストを処理する。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/parallelworks/fsrouter/internal/config"
	"github.com/parallelworks/fsrouter/internal/demo"
	"github.com/parallelworks/fsrouter/internal/logger"
	"github.com/parallelworks/fsrouter/internal/roles"
	"github.com/parallelworks/fsrouter/internal/server"
	"github.com/parallelworks/fsrouter/pkg/fsrouter"
	"github.com/parallelworks/fsrouter/pkg/httpclient"
	"github.com/parallelworks/fsrouter/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info", false)
		log.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var resolver middleware.RolesResolver
	if cfg.RolesURL != "" {
		resolver = roles.RemoteResolver(httpclient.New(cfg.RolesURL))
		log.Info().Str("url", cfg.RolesURL).Msg("ロールをロールサービスから取得します")
	} else {
		store, err := roles.Open(ctx, cfg.RolesDB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("ロールストアの初期化に失敗")
		}
		defer func() { _ = store.Close() }()
		resolver = store.Resolver()
	}

	srv, err := server.New(ctx, cfg, fsrouter.NewYAMLLoader(demo.Registry()), resolver, log)
	if err != nil {
		log.Fatal().Err(err).Msg("fsrouterサーバーの初期化に失敗")
	}

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("fsrouterサーバーが異常終了しました")
		stop()
		os.Exit(1)
	}
}
