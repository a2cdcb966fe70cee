package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barberline/internal/audit"
	"barberline/internal/auth"
	"barberline/internal/booking"
	"barberline/internal/calls"
	"barberline/internal/config"
	"barberline/internal/dedupe"
	"barberline/internal/httpapi"
	"barberline/internal/metrics"
	"barberline/internal/notify"
	"barberline/internal/oauth"
	"barberline/internal/ratelimit"
	"barberline/internal/reporting"
	"barberline/internal/secretbox"
	"barberline/internal/shops"
	"barberline/internal/vapi"
	"barberline/pkg/logger"
	"barberline/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const outboundTimeout = 10 * time.Second

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	cipher, err := secretbox.New(cfg.Crypto.EncryptionKey)
	if err != nil {
		log.Error("encryption init failed", "err", err)
		os.Exit(1)
	}
	if !cipher.Ready() {
		log.Warn("ENCRYPTION_KEY not set: provider credentials cannot be sealed or read")
	}
	if cfg.Vapi.ServerSecret == "" {
		log.Warn("VAPI_SERVER_SECRET not set: all voice platform requests will be rejected")
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	var rdb *redis.Client
	if addr := cfg.RedisAddr(); addr != "" {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	metricsHandler, err := metrics.Register(prometheus.DefaultRegisterer)
	if err != nil {
		log.Error("metrics init failed", "err", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: outboundTimeout}

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	shopSvc := shops.NewService(shops.NewPostgresRepo(db), cipher, auditSvc, 0)

	factory := booking.NewFactory(cipher, httpClient, cfg.Square.Environment)
	factory.OnLegacyCredential = shopSvc.UpgradeLegacyCredential

	var sender notify.Sender = notify.LogSender{}
	if cfg.TwilioEnabled() {
		sender = notify.NewTwilioSender(httpClient, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber)
	} else {
		log.Warn("twilio not configured: sms notifications are logged only")
	}

	var guard calls.Guard = dedupe.NewMemory(dedupe.DefaultTTL)
	if rdb != nil {
		guard = dedupe.NewRedis(rdb, dedupe.DefaultTTL)
	}

	limiter := ratelimit.New(ratelimit.NewMemoryStore(), nil)
	limiter.StartSweeper(rootCtx, cfg.RateLimit.SweepInterval)

	d := routeDeps{
		db:         db,
		limiter:    limiter,
		session:    auth.RequireSession(authManager),
		vapiSecret: cfg.Vapi.ServerSecret,
		metrics:    metricsHandler,
		vapi: vapi.Handlers{
			Shops:     shopSvc,
			Providers: factory,
			Bookings:  booking.NewPostgresRepo(db),
			Notifier:  sender,
			Audit:     auditSvc,
		},
		webhook: vapi.Webhook{
			Processor: calls.NewProcessor(calls.NewPostgresRepo(db), guard),
		},
		dashboard: httpapi.Handlers{
			Shops:   shopSvc,
			Reports: reporting.NewService(reporting.NewPostgresRepo(db)),
		},
	}
	if cfg.SquareOAuthEnabled() {
		state := oauth.NewStateGuard()
		state.Secure = cfg.IsProduction() || cfg.App.Env == "staging"
		d.oauth = &oauth.Handlers{
			Square: oauth.NewSquareClient(httpClient, cfg.Square.Environment, cfg.Square.AppID, cfg.Square.AppSecret),
			Shops:  shopSvc,
			State:  state,
			Audit:  auditSvc,
			AppURL: cfg.App.URL,
		}
	} else {
		log.Warn("square oauth not configured: account linking disabled")
	}

	// Gin router
	r := gin.New()
	// Rate-limit and audit keys come from ClientIP; only configured proxies
	// may supply X-Forwarded-For.
	if err := r.SetTrustedProxies(cfg.App.TrustedProxies); err != nil {
		log.Error("trusted proxies invalid", "err", err)
		os.Exit(1)
	}
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, d)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
