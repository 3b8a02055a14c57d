package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/internal/config"
	"github.com/parallelworks/fsrouter/internal/metrics"
	"github.com/parallelworks/fsrouter/pkg/fsrouter"
	"github.com/parallelworks/fsrouter/pkg/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// Server はfsrouterのHTTPサーバー。
type Server struct {
	// cfg はサーバーの設定。
	cfg *config.Config
	// loader はルート定義ファイルのローダー。
	loader fsrouter.Loader
	// resolver はロールゲートが使うロールリゾルバ。
	resolver middleware.RolesResolver
	// metrics はPrometheusメトリクス。
	metrics *metrics.Collector
	// logger はサーバーのロガー。
	logger zerolog.Logger
	// reloader は現在のエンジンを保持し、再読み込み時に差し替える。
	reloader *fsrouter.Reloader
}

// New はルート定義をマウントしたサーバーを生成する。
// ルート定義の読み込みやマウントに失敗した場合はエラーを返す。
func New(ctx context.Context, cfg *config.Config, loader fsrouter.Loader, resolver middleware.RolesResolver, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		loader:   loader,
		resolver: resolver,
		metrics:  metrics.New(),
		logger:   logger,
	}

	reloader, err := fsrouter.NewReloader(ctx, cfg.RoutesDir, s.build, logger)
	if err != nil {
		return nil, fmt.Errorf("ルートのマウントに失敗: %w", err)
	}
	reloader.OnReload = s.metrics.ObserveReload
	s.reloader = reloader
	return s, nil
}

// Handler はリクエストを処理するhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.reloader
}

// Run はHTTPサーバーを起動し、ctxが終了するとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.WatchRoutes {
		if err := s.reloader.Watch(ctx); err != nil {
			return err
		}
		defer s.reloader.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.reloader,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", srv.Addr).Msg("fsrouterサーバーを起動します")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info().Msg("fsrouterサーバーを停止します")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// build は共通ミドルウェアを登録したエンジンにルート定義をマウントする。
func (s *Server) build(ctx context.Context) (http.Handler, error) {
	router := gin.New()
	router.Use(middleware.Recovery(s.logger))
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())
	router.Use(s.metrics.Middleware())
	router.Use(middleware.CORS(s.cfg.CORSOrigins))
	router.Use(middleware.UserFacingErrorHandler(middleware.ErrorConfig{
		Development: !s.cfg.IsProduction(),
		Logger:      s.logger,
		OnError:     s.metrics.ObserveError,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "fsrouter"})
	})
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	summary, err := fsrouter.Mount(ctx, router, fsrouter.Options{
		RoutesPath:          s.cfg.RoutesDir,
		Loader:              s.loader,
		EnsureAuthenticated: middleware.EnsureAuthenticated(s.cfg.JWTSecret),
		EnsureAdmin:         middleware.EnsureAdmin(),
		RolesResolver:       s.resolver,
		LogMounts:           s.cfg.LogMounts,
		Logger:              s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMount(summary)
	return router, nil
}
