package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tixo-social/tixo/assistant"
	"github.com/tixo-social/tixo/automod"
	"github.com/tixo-social/tixo/automod/cachestore"
	"github.com/tixo-social/tixo/automod/countstore"
	"github.com/tixo-social/tixo/automod/flagstore"
	"github.com/tixo-social/tixo/automod/policy"
	"github.com/tixo-social/tixo/automod/trust"
	"github.com/tixo-social/tixo/chat"
	"github.com/tixo-social/tixo/content"
	"github.com/tixo-social/tixo/util/cliutil"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

type Server struct {
	echo      *echo.Echo
	httpd     *http.Server
	logger    *slog.Logger
	engine    *automod.Engine
	publisher *content.Publisher
	gateway   *chat.Gateway

	// nil disables per-route HTTP metrics
	registerer prometheus.Registerer
}

type Config struct {
	Logger            *slog.Logger
	RedisURL          string
	DatabaseURL       string
	MaxDBConnections  int
	PolicyFile        string
	SuspendThreshold  int
	DedupeWindow      time.Duration
	SlackWebhookURL   string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiRateLimit   float64
	AssistantID       string
	AssistantTimeout  time.Duration
	HistoryLimit      int
	SendRateLimit     int
	ConversationsFile string
	Bind              string
	// adds a span for every database statement
	DBTracing bool
	// HTTP request metrics are registered here when set
	MetricsRegisterer prometheus.Registerer
}

func NewServer(ctx context.Context, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var db *gorm.DB
	if config.DatabaseURL != "" {
		var err error
		db, err = cliutil.SetupDatabase(config.DatabaseURL, config.MaxDBConnections, logger)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if config.DBTracing {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return nil, err
			}
		}
	}

	lex := policy.DefaultLexicon()
	if config.PolicyFile != "" {
		var err error
		lex, err = policy.LoadFile(config.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("loading policy file: %w", err)
		}
		logger.Info("loaded moderation policy", "path", config.PolicyFile, "version", lex.Version, "terms", len(lex.Terms))
	}

	cacheTTL := config.DedupeWindow
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}

	var trustStore trust.Store
	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var flags flagstore.FlagStore
	if config.RedisURL != "" {
		rdb, err := cliutil.SetupRedis(ctx, config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis stores: %w", err)
		}
		trustStore = trust.NewRedisStore(rdb)
		counters = countstore.NewRedisCountStore(rdb)
		cache = cachestore.NewRedisCacheStore(rdb, cacheTTL)
		flags = flagstore.NewRedisFlagStore(rdb)
	} else {
		if db != nil {
			ts, err := trust.NewGormStore(db)
			if err != nil {
				return nil, fmt.Errorf("initializing database trust store: %v", err)
			}
			trustStore = ts
		} else {
			logger.Warn("no redis or database configured, trust state will not survive restarts")
			trustStore = trust.NewMemStore()
		}
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, cacheTTL)
		flags = flagstore.NewMemFlagStore()
	}

	ledger := trust.NewLedger(trustStore, logger)
	if config.SuspendThreshold > 0 {
		ledger.Threshold = config.SuspendThreshold
	}

	engine := &automod.Engine{
		Logger:        logger,
		Ledger:        ledger,
		Policy:        lex,
		Counters:      counters,
		Flags:         flags,
		Cache:         cache,
		DedupeRepeats: config.DedupeWindow > 0,
	}
	if config.SlackWebhookURL != "" {
		engine.Notifier = &automod.SlackNotifier{
			SlackWebhookURL: config.SlackWebhookURL,
			Client:          automod.NotifierHTTPClient(),
		}
	}

	var contentStore content.Store
	var chatStore chat.Store
	if db != nil {
		cs, err := content.NewGormStore(db)
		if err != nil {
			return nil, fmt.Errorf("initializing content store: %w", err)
		}
		contentStore = cs
		ms, err := chat.NewGormStore(db)
		if err != nil {
			return nil, fmt.Errorf("initializing conversation store: %w", err)
		}
		chatStore = ms
	} else {
		contentStore = content.NewMemStore()
		chatStore = chat.NewMemStore()
	}

	if config.ConversationsFile != "" {
		n, err := chat.LoadConversationsJSON(ctx, chatStore, config.ConversationsFile)
		if err != nil {
			return nil, fmt.Errorf("loading conversations: %w", err)
		}
		logger.Info("loaded conversations from JSON", "path", config.ConversationsFile, "count", n)
	}

	var bridge assistant.Bridge
	if config.GeminiAPIKey != "" {
		bridge = assistant.NewGeminiClient(assistant.GeminiConfig{
			APIKey:    config.GeminiAPIKey,
			Model:     config.GeminiModel,
			RateLimit: config.GeminiRateLimit,
			Timeout:   config.AssistantTimeout,
			Logger:    logger,
		})
	} else {
		logger.Warn("no assistant API key configured, assistant replies will be fallback messages")
	}

	srv := &Server{
		registerer: config.MetricsRegisterer,
		logger:     logger,
		engine:     engine,
		publisher:  content.NewPublisher(engine, contentStore, logger),
		gateway: chat.NewGateway(engine, chatStore, bridge, chat.GatewayConfig{
			AssistantID:      config.AssistantID,
			AssistantTimeout: config.AssistantTimeout,
			HistoryLimit:     config.HistoryLimit,
			SendRateLimit:    config.SendRateLimit,
			Logger:           logger,
		}),
	}
	srv.echo = srv.newEcho()
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		ReadTimeout:    1 * time.Minute,
		MaxHeaderBytes: 1 * (1024 * 1024),
	}
	return srv, nil
}

func (srv *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(srv.logger))
	if srv.registerer != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Subsystem:  "tixod",
			Registerer: srv.registerer,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/_health"
			},
		}))
	}
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", srv.HandleHealthCheck)
	e.POST("/api/moderation/evaluate", srv.HandleEvaluate)
	e.GET("/api/moderation/terms", srv.HandleTermStats)
	e.GET("/api/trust/:user", srv.HandleTrustState)
	e.DELETE("/api/trust/:user/flags/:flag", srv.HandleClearFlag)
	e.POST("/api/content", srv.HandleCreateContent)
	e.GET("/api/content/item/:id", srv.HandleGetContent)
	e.PUT("/api/content/item/:id/status", srv.HandleReviewContent)
	e.GET("/api/content/:kind", srv.HandleListContent)
	e.POST("/api/conversations/:id/messages", srv.HandleSendMessage)
	e.GET("/api/conversations/:id/messages", srv.HandleListMessages)
	e.GET("/api/conversations/:id/subscribe", srv.HandleSubscribe)
	return e
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Runs the API and metrics listeners until ctx is cancelled or either fails.
func (srv *Server) Run(ctx context.Context, metricsListen string) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		srv.logger.Info("starting server", "bind", srv.httpd.Addr)
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server shutting down unexpectedly: %w", err)
		}
		return nil
	})

	metricsSrv := &http.Server{Addr: metricsListen, Handler: metricsMux()}
	eg.Go(func() error {
		srv.logger.Info("starting metrics endpoint", "bind", metricsListen)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start metrics endpoint: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		srv.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.httpd.Shutdown(shutdownCtx); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
		srv.engine.WaitNotifications()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	// pprof handlers are registered on the default mux
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return mux
}
