package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tarotware/paywall/docs"
	"github.com/tarotware/paywall/internal/app/api/handlers"
	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/internal/app/service/orchestrator"
	"github.com/tarotware/paywall/internal/app/service/scheduler"
	"github.com/tarotware/paywall/internal/app/service/validationlog"
	"github.com/tarotware/paywall/internal/app/service/validator"
	cfgpkg "github.com/tarotware/paywall/pkg/config"

	mw "github.com/tarotware/paywall/internal/app/api/middleware"

	metrics "github.com/tarotware/paywall/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Request tracing only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log       *zap.SugaredLogger
	Cfg       *cfgpkg.Config
	Redis     *redis.Client `optional:"true"`
	Orch      *orchestrator.Orchestrator
	Ents      *entitlement.Service
	Sched     *scheduler.Scheduler
	Validator *validator.Service
	Audit     *validationlog.Service
}

func registerRoutes(r *gin.Engine, deps routeDeps) {
	// Prometheus metrics
	if deps.Cfg != nil && deps.Cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: deps.Log,
		})
		p.SetListenAddress(deps.Cfg.MetricsAddr)
		p.Use(r)

		deps.Log.Infow("metrics started", "addr", deps.Cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(deps.Log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Trusted boundary endpoints; store credentials are only reachable here
	handlers.RegisterValidateRoutes(pub, handlers.ValidateDeps{
		Cfg:       deps.Cfg,
		Log:       deps.Log,
		Audit:     deps.Audit,
		Validator: deps.Validator,
	})

	apiV1 := r.Group("/api/v1")
	apiV1.Use(
		mw.RequestLoggerMiddleware(deps.Log),
		mw.AccessLogMiddleware(),
		mw.IdempotencyMiddleware(deps.Redis, deps.Log),
	)
	handlers.RegisterPurchaseRoutes(apiV1, deps.Orch, deps.Cfg)
	handlers.RegisterEntitlementRoutes(apiV1, deps.Ents, deps.Sched)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
