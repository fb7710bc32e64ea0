package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-pulse/internal/cache"
	"market-pulse/internal/config"
	"market-pulse/internal/feed"
	"market-pulse/internal/fetch"
	"market-pulse/internal/handler"
	"market-pulse/internal/marketintel"
	"market-pulse/internal/poller"
	"market-pulse/internal/provider"
	"market-pulse/internal/service"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "market-pulse/docs"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	newLoggerFunc    = logger.New
	initTracerFunc   = tracing.InitTracer
	connectRedisFunc = cache.Connect
	newFetchClient   = func(tracer trace.Tracer, cfg *config.Config, log *logrus.Entry) *fetch.Client {
		return fetch.New(tracer,
			fetch.WithTimeout(cfg.FetchTimeout),
			fetch.WithMaxRetries(cfg.FetchMaxRetries),
			fetch.WithBackoff(cfg.FetchBackoffBase, cfg.FetchBackoffMax),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithLogger(log),
		)
	}
	startHubFunc           = func(h *poller.Hub, ctx context.Context) error { return h.Start(ctx) }
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	exitFunc               = os.Exit
)

// @title           Market Pulse API
// @version         1.0
// @description     Market dashboard data service: quotes, sentiment, fear & greed and polled feeds.

// @host      localhost:8080
// @BasePath  /
func main() {
	if err := loadEnvFunc(); err != nil {
		logrus.Debug("no .env file loaded")
	}

	cfg := loadConfigFunc()

	base, err := newLoggerFunc(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logrus.WithError(err).Error("invalid logger configuration")
		exitFunc(1)
		return
	}
	log := logger.WithComponent(base, "server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.ServiceName)
	if err != nil {
		log.WithError(err).Error("failed to initialize tracer")
		exitFunc(1)
		return
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("error shutting down tracer provider")
		}
	}()

	// Redis is optional; lookups go straight upstream without it.
	var quoteCache service.RedisClient
	redisClient, err := connectRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, quote caching disabled")
	} else if redisClient != nil {
		defer closeRedis(redisClient, log)
		quoteCache = redisClient
		log.Info("connected to redis")
	}

	fetcher := newFetchClient(tracer, cfg, logger.WithComponent(base, "fetch"))

	yahoo := provider.NewYahooProvider(tracer, fetcher, cfg.YahooBaseURL)
	reddit := provider.NewRedditProvider(tracer, fetcher, cfg.RedditBaseURL)
	news := provider.NewNewsProvider(tracer, fetcher)
	cryptoFearGreed := provider.NewFearGreedProvider(tracer, fetcher)

	quoteService := service.NewQuoteService(tracer, yahoo, quoteCache, cfg.QuoteCacheTTL, logger.WithComponent(base, "quotes"))
	sentimentService := service.NewSentimentService(tracer, reddit, news, cryptoFearGreed)
	intel := marketintel.NewService(tracer, quoteService, marketintel.DefaultSymbols)

	h := handler.New(tracer, quoteService, sentimentService, intel)
	h.SetLogger(logger.WithComponent(base, "handler"))
	h.SetDefaults(cfg.DefaultSubreddit, cfg.NewsFeedURL)

	var hub *poller.Hub
	if cfg.PollingEnabled {
		registry, err := feed.NewRegistry(feed.Defaults(cfg.APIBaseURL, cfg.DefaultSymbols, cfg.DefaultSubreddit, cfg.NewsFeedURL)...)
		if err != nil {
			log.WithError(err).Error("invalid feed registry")
			exitFunc(1)
			return
		}
		if cfg.FeedsFile != "" {
			if err := registry.Overlay(cfg.FeedsFile); err != nil {
				log.WithError(err).WithField("file", cfg.FeedsFile).Error("failed to load feeds file")
				exitFunc(1)
				return
			}
		}
		hub = poller.NewHub(tracer, logger.WithComponent(base, "poller"), fetcher, registry)
		h.SetFeedHub(hub)
	}

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(base))
	r.Use(otelgin.Middleware(tracing.ServiceName))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("listen failed")
			cancel()
		}
	}()
	log.WithField("addr", cfg.HTTPAddr).Info("server started")

	// Feeds poll this server's own API, so they start once it is listening.
	if hub != nil {
		if err := startHubFunc(hub, ctx); err != nil {
			log.WithError(err).Warn("some feeds failed to start")
		}
		defer hub.Stop()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server exiting")
}

func closeRedis(client *redis.Client, log *logrus.Entry) {
	if err := client.Close(); err != nil {
		log.WithError(err).Warn("error closing redis client")
	}
}
