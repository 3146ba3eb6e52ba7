package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/shopstack/server/internal/infra/events"
	"github.com/shopstack/server/internal/infra/httpclient"
	"github.com/shopstack/server/internal/module/order"
	"github.com/shopstack/server/internal/module/payment"
	paymentprovider "github.com/shopstack/server/internal/module/payment/provider"
	"github.com/shopstack/server/internal/module/rates"
	"github.com/shopstack/server/internal/module/referral"
	"github.com/shopstack/server/internal/module/shipping"
	sharedcache "github.com/shopstack/server/internal/shared/cache"
	"github.com/shopstack/server/internal/shared/config"
	"github.com/shopstack/server/internal/shared/database"
	"github.com/shopstack/server/internal/shared/logger"
	"github.com/shopstack/server/internal/utils/metrics"
	"github.com/shopstack/server/internal/utils/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App wires the application together.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  redis.UniversalClient
	router *gin.Engine

	eventBus *events.Bus
	metrics  *metrics.Metrics

	rateCache *rates.Cache

	paymentService *payment.Service
	paymentHandler *payment.Handler
	webhookHandler *payment.WebhookHandler

	coordinator   *order.Coordinator
	trackingCache *shipping.TrackingCache
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{
		config: cfg,
		logger: log,
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	app.db = db

	if err := db.AutoMigrate(
		&payment.PaymentIntent{},
		&payment.WebhookEvent{},
		&order.Order{},
		&referral.Referral{},
		&referral.Reward{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	// Redis is optional; the tracking cache is simply absent without it.
	if cfg.Redis.Address != "" {
		redisClient, err := sharedcache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn("redis connection failed, continuing without cache", zap.Error(err))
		} else {
			app.redis = redisClient
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = metrics.New("shopstack", registry)

	app.eventBus = events.NewBus(log)

	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}

	app.router = app.setupRouter(registry)
	return app, nil
}

func (a *App) initModules() error {
	cfg := a.config

	oracleClient := httpclient.NewWithTimeout(cfg.Rates.RequestTimeout)
	oracle := rates.NewOracle(cfg.Rates.OracleURL, oracleClient, a.logger)
	a.rateCache = rates.NewCache(oracle, rates.CacheConfig{
		TTLs: map[rates.Pair]time.Duration{
			{Coin: "bitcoin", Fiat: cfg.Rates.FiatCurrency}: cfg.Rates.BitcoinTTL,
			{Coin: "monero", Fiat: cfg.Rates.FiatCurrency}:  cfg.Rates.MoneroTTL,
		},
		StalenessCeiling: cfg.Rates.StalenessCeiling,
	}, a.logger, a.metrics)

	paypal := paymentprovider.NewPayPalProvider(&paymentprovider.PayPalConfig{
		BaseURL:      cfg.Gateways.PayPal.BaseURL,
		ClientID:     cfg.Gateways.PayPal.ClientID,
		ClientSecret: cfg.Gateways.PayPal.ClientSecret,
		WebhookID:    cfg.Gateways.PayPal.WebhookID,
	}, httpclient.NewWithTimeout(cfg.Gateways.PayPal.RequestTimeout), a.logger, a.metrics)

	bitcoin := paymentprovider.NewBitcoinProvider(&paymentprovider.BitcoinConfig{
		BaseURL:       cfg.Gateways.Bitcoin.BaseURL,
		APIKey:        cfg.Gateways.Bitcoin.APIKey,
		PaymentWindow: cfg.Gateways.Bitcoin.PaymentWindow,
	}, httpclient.NewWithTimeout(cfg.Gateways.Bitcoin.RequestTimeout), a.rateCache, cfg.Rates.FiatCurrency, a.logger, a.metrics)

	monero := paymentprovider.NewMoneroProvider(&paymentprovider.MoneroConfig{
		BaseURL:       cfg.Gateways.Monero.BaseURL,
		APIKey:        cfg.Gateways.Monero.APIKey,
		WebhookSecret: cfg.Gateways.Monero.WebhookSecret,
		PublicBaseURL: cfg.Server.PublicURL,
	}, httpclient.NewWithTimeout(cfg.Gateways.Monero.RequestTimeout), a.logger, a.metrics)

	providerRegistry := payment.NewRegistry(paypal, bitcoin, monero)
	paymentRepo := payment.NewRepository(a.db)
	a.paymentService = payment.NewService(paymentRepo, providerRegistry, a.eventBus, a.logger, a.metrics)
	a.paymentHandler = payment.NewHandler(a.paymentService)
	a.webhookHandler = payment.NewWebhookHandler(a.paymentService, a.logger, a.metrics)

	rewardAmount, err := decimal.NewFromString(cfg.Referral.RewardAmount)
	if err != nil {
		return fmt.Errorf("parse referral reward amount: %w", err)
	}
	referralService := referral.NewService(referral.NewRepository(a.db), rewardAmount, cfg.Referral.Currency, a.logger)

	orderStore := order.NewStore(a.db)
	a.coordinator = order.NewCoordinator(
		orderStore,
		referralService,
		orderStore,
		order.NewLogMailer(a.logger),
		a.logger,
		a.metrics,
	)
	a.eventBus.Register(order.NewEventHandler(a.coordinator, a.logger))

	if a.redis != nil && cfg.Tracking.BaseURL != "" {
		carrier := shipping.NewCarrierClient(shipping.CarrierConfig{
			BaseURL: cfg.Tracking.BaseURL,
			APIKey:  cfg.Tracking.APIKey,
		}, httpclient.NewWithTimeout(cfg.Tracking.RequestTimeout))
		a.trackingCache = shipping.NewTrackingCache(a.redis, carrier.FetchStatus, &shipping.TrackingCacheConfig{
			Prefix: "tracking:",
			TTL:    cfg.Tracking.TTL,
		}, a.logger)
	}

	return nil
}

func (a *App) setupRouter(registry *prometheus.Registry) *gin.Engine {
	if a.config.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(a.logger))
	router.Use(middleware.Metrics(a.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Provider callbacks authenticate per event, not per request.
	webhooks := router.Group("/webhooks")
	a.webhookHandler.RegisterRoutes(webhooks)

	validator := middleware.NewJWTValidator(a.config.Auth.JWTSecret)
	api := router.Group("/api/v1")
	api.Use(middleware.RequireAuth(validator))
	a.paymentHandler.RegisterRoutes(api)
	if a.trackingCache != nil {
		shipping.NewHandler(a.trackingCache).RegisterRoutes(api)
	}

	return router
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases the application's resources.
func (a *App) Stop() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
