package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/theater-canteen/internal/cache"
	"github.com/iliyamo/theater-canteen/internal/config"
	"github.com/iliyamo/theater-canteen/internal/database"
	"github.com/iliyamo/theater-canteen/internal/handler"
	"github.com/iliyamo/theater-canteen/internal/logger"
	"github.com/iliyamo/theater-canteen/internal/middleware"
	"github.com/iliyamo/theater-canteen/internal/notify"
	"github.com/iliyamo/theater-canteen/internal/queue"
	"github.com/iliyamo/theater-canteen/internal/repository"
	"github.com/iliyamo/theater-canteen/internal/router"
	"github.com/iliyamo/theater-canteen/internal/scheduler"
	"github.com/iliyamo/theater-canteen/internal/service"
	"github.com/iliyamo/theater-canteen/internal/storage"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()
	log := logger.Must(cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database open", zap.Error(err))
	}
	defer db.Close()

	if cfg.AutoMigrate {
		n, err := database.Migrate(ctx, db)
		if err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		log.Info("schema applied", zap.Int("statements", n))
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig()) // nil when redis is down
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Warn("redis unavailable; rate limiting, OTP and shared cache disabled")
	}
	cacheCfg := config.LoadCacheConfig()
	respCache := cache.New(cacheCfg, rdb, log)

	// ----- repositories -----
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	roles := repository.NewRoleRepo(db)
	theaters := repository.NewTheaterRepo(db)
	qrNames := repository.NewQRCodeNameRepo(db)
	qrCodes := repository.NewQRCodeRepo(db)
	banners := repository.NewBannerRepo(db)
	productTypes := repository.NewProductTypeRepo(db)
	products := repository.NewProductRepo(db)
	orders := repository.NewOrderRepo(db)
	stats := repository.NewStatsRepo(db)

	perms := &middleware.CachedPermissions{Users: users, Roles: roles, Cache: respCache}

	// ----- outbound integrations -----
	sms := notify.NewSMSSender(cfg.SMS, log)
	otp := notify.NewOTP(rdb, sms, cfg.SMS.OTPTTL, cfg.SMS.OTPLength)
	var mailer notify.Mailer
	if m := notify.NewMailer(cfg.Mail); m != nil {
		mailer = m
	}

	var images storage.ImageStore
	cld, err := storage.NewCloudinary(cfg.Upload)
	switch {
	case err == nil:
		images = cld
	case errors.Is(err, storage.ErrNotConfigured):
		log.Info("cloudinary not configured; image uploads disabled")
	default:
		log.Warn("cloudinary init failed; image uploads disabled", zap.Error(err))
	}

	publisher := queue.NewPublisher(cfg.RabbitURL, log)
	defer publisher.Close()

	consumer := queue.NewConsumer(cfg.RabbitURL, &queue.Handler{Mailer: mailer, SMS: sms, Log: log}, log)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("order consumer stopped", zap.Error(err))
		}
	}()

	orderSvc := service.NewOrderService(theaters, products, qrCodes, orders, publisher, respCache, cfg.Orders.TaxBasisPoints, log)

	sched, err := scheduler.Start(ctx, &scheduler.Jobs{
		Orders:     orderSvc,
		Tokens:     tokens,
		StaleAfter: cfg.Orders.StaleAfter,
		Log:        log,
	}, cfg.Orders.SweepInterval)
	if err != nil {
		log.Fatal("scheduler start", zap.Error(err))
	}
	defer func() { _ = sched.Shutdown() }()

	// ----- HTTP -----
	h := router.Handlers{
		Auth:     &handler.AuthHandler{Cfg: cfg, Users: users, Tokens: tokens, Theaters: theaters, Perms: perms, Log: log},
		Ready:    &handler.ReadyHandler{DB: db, Redis: rdb, Cache: respCache},
		Theaters: &handler.TheaterHandler{Theaters: theaters, BcryptCost: cfg.BcryptCost},
		Roles:    &handler.RoleHandler{Roles: roles},
		Users:    &handler.UserHandler{Users: users, Roles: roles, Tokens: tokens, BcryptCost: cfg.BcryptCost},
		QRCodes: &handler.QRCodeHandler{
			Names: qrNames, Codes: qrCodes, Theaters: theaters, Images: images, BaseURL: cfg.PublicBaseURL,
		},
		Banners:  &handler.BannerHandler{Banners: banners},
		Products: &handler.ProductHandler{Types: productTypes, Products: products},
		Orders:   &handler.OrderHandler{Service: orderSvc, Orders: orders},
		Public: &handler.PublicHandler{
			QRCodes:  qrCodes,
			Theaters: theaters,
			Types:    productTypes,
			Products: products,
			Orders:   orderSvc,
			Lookup:   orders,
			OTP:      otp,
			Cache:    respCache,
		},
		Uploads:   &handler.UploadHandler{Images: images, MaxBytes: cfg.Upload.MaxBytes, Allowed: cfg.Upload.AllowedMIME},
		SMS:       &handler.SMSHandler{SMS: sms},
		Dashboard: &handler.DashboardHandler{Stats: stats},
	}
	g := router.Guards{
		JWTSecret:       cfg.JWTSecret,
		Perms:           perms,
		Cache:           respCache,
		CacheCfg:        cacheCfg,
		Redis:           rdb,
		RateLimit:       config.LoadRateLimitConfig(),
		PublicRateLimit: config.LoadPublicRateLimitConfig(),
		Log:             log,
	}
	e := router.New(h, g)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
}
