package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/zapdesk/zapdesk-backend/internal/config"
	"github.com/zapdesk/zapdesk-backend/internal/handler"
	"github.com/zapdesk/zapdesk-backend/internal/middleware"
	"github.com/zapdesk/zapdesk-backend/internal/repository"
	"github.com/zapdesk/zapdesk-backend/internal/routes"
	"github.com/zapdesk/zapdesk-backend/internal/service"
	pkgcache "github.com/zapdesk/zapdesk-backend/pkg/cache"
	pkglogger "github.com/zapdesk/zapdesk-backend/pkg/logger"
	pkgredis "github.com/zapdesk/zapdesk-backend/pkg/redis"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.Init(env)
	log := pkglogger.GetLogger()
	log.Info().Str("env", env).Strs("env_files", dotenvFiles).Msg("starting")

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to MySQL")
	}
	log.Info().Msg("connected to MySQL")

	// Repositories
	catalogRepo := repository.NewCatalogRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	grantRepo := repository.NewModuleGrantRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)
	txManager := repository.NewTxManager(db)

	for _, m := range []interface{ AutoMigrate() error }{
		catalogRepo, subscriptionRepo, grantRepo, usageRepo,
		creditRepo, couponRepo, invoiceRepo, overrideRepo,
	} {
		if err := m.AutoMigrate(); err != nil {
			log.Fatal().Err(err).Msg("migrate schema")
		}
	}

	// Redis-backed entitlement cache, degraded to no-op without Redis
	cacheService := pkgcache.Noop()
	redisClient, err := pkgredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, entitlement reads go to the database")
	} else {
		cacheService = pkgcache.NewService(redisClient)
		log.Info().Msg("connected to Redis")
	}

	// Services
	clock := service.SystemClock()
	catalogService := service.NewCatalogService(catalogRepo)
	if err := catalogService.SeedFromFile(context.Background(), cfg.Billing.CatalogPath); err != nil {
		log.Fatal().Err(err).Msg("seed catalog")
	}

	usageService := service.NewUsageService(usageRepo, subscriptionRepo, catalogService, clock, cfg.Billing.UsageWarnPercent)
	creditService := service.NewCreditService(creditRepo, clock)
	couponService := service.NewCouponService(couponRepo, clock)
	invoiceService := service.NewInvoiceService(invoiceRepo, grantRepo, usageRepo, catalogService, creditService, couponService, txManager, clock, cfg.Billing.InvoiceGraceDays)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, grantRepo, catalogService, creditService, invoiceService, usageService, txManager, clock, cacheService)
	entitlementService := service.NewEntitlementService(subscriptionRepo, grantRepo, overrideRepo, catalogService, usageService, cacheService, clock)
	paymentService := service.NewPaymentService(invoiceService, subscriptionService, service.NewSandboxProcessor())

	// Periodic sweep: elapsed periods, trial conversions, overdue invoices
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Billing.SweepSchedule, func() {
		ctx := context.Background()
		processed := subscriptionService.SweepDue(ctx)
		overdue, err := invoiceService.SweepOverdue(ctx)
		if err != nil {
			log.Error().Err(err).Msg("sweep: overdue invoices")
		}
		if processed > 0 || overdue > 0 {
			log.Info().Int("subscriptions", processed).Int("invoices_overdue", overdue).Msg("sweep finished")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Billing.SweepSchedule).Msg("schedule sweep")
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Handlers
	catalogHandler := handler.NewCatalogHandler(catalogService)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService)
	usageHandler := handler.NewUsageHandler(usageService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, paymentService)
	creditHandler := handler.NewCreditHandler(creditService)
	entitlementHandler := handler.NewEntitlementHandler(entitlementService)

	if env != "local" && env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "zapdesk-backend",
			"time":    time.Now().Unix(),
		})
	})

	routes.Setup(router, catalogHandler, subscriptionHandler, usageHandler, invoiceHandler, creditHandler, entitlementHandler, cfg)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("listening")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}
