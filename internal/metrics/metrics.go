// Package metrics はfsrouterサーバーのPrometheusメトリクスを提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/pkg/fsrouter"
	"github.com/parallelworks/fsrouter/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fsrouter"

// Collector はfsrouterサーバーのメトリクスを保持する。
type Collector struct {
	registry *prometheus.Registry

	// マウントの結果
	RouteFiles              prometheus.Gauge
	RoutesMounted           prometheus.Gauge
	RoutesWithoutValidation prometheus.Gauge

	// リクエスト
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// 終端エラーハンドラが分類したエラー
	HandlerErrors *prometheus.CounterVec

	// ルートの再読み込み
	Reloads    *prometheus.CounterVec
	LastReload prometheus.Gauge
}

// New は専用のレジストリにメトリクスを登録したCollectorを生成する。
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		RouteFiles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "route_files",
			Help:      "Number of route files processed by the last mount",
		}),
		RoutesMounted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routes_mounted",
			Help:      "Number of routes mounted by the last mount",
		}),
		RoutesWithoutValidation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routes_without_validation",
			Help:      "Number of mounted routes that declare no schema validation",
		}),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_errors_total",
				Help:      "Errors reaching the terminal error handler, by classification",
			},
			[]string{"kind"},
		),
		Reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_reloads_total",
				Help:      "Route tree reloads, by result",
			},
			[]string{"result"},
		),
		LastReload: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "route_last_reload_timestamp_seconds",
			Help:      "Unix time of the last successful route reload",
		}),
	}
}

// ObserveMount はマウントの結果を記録する。
func (c *Collector) ObserveMount(s *fsrouter.Summary) {
	c.RouteFiles.Set(float64(s.Files))
	c.RoutesMounted.Set(float64(s.Mounted))
	c.RoutesWithoutValidation.Set(float64(s.WithoutValidation))
}

// ObserveError はmiddleware.ErrorConfig.OnErrorに渡すための関数。
func (c *Collector) ObserveError(kind middleware.ErrorKind) {
	c.HandlerErrors.WithLabelValues(string(kind)).Inc()
}

// ObserveReload はfsrouter.Reloader.OnReloadに渡すための関数。
func (c *Collector) ObserveReload(err error) {
	if err != nil {
		c.Reloads.WithLabelValues("failure").Inc()
		return
	}
	c.Reloads.WithLabelValues("success").Inc()
	c.LastReload.SetToCurrentTime()
}

// Middleware はリクエスト数と処理時間を記録するGinミドルウェアを返す。
// ルートはパターン（例: /users/:id）で集計し、未登録のパスは "unmatched" にまとめる。
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := ctx.Request.Method
		c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler は/metricsエンドポイントのハンドラを返す。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
