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

	"voiceai-billing/internal/audit"
	"voiceai-billing/internal/auth"
	"voiceai-billing/internal/billing"
	"voiceai-billing/internal/calls"
	"voiceai-billing/internal/clients"
	"voiceai-billing/internal/config"
	"voiceai-billing/internal/httpapi"
	"voiceai-billing/internal/ledger"
	"voiceai-billing/internal/notify"
	"voiceai-billing/internal/pricing"
	"voiceai-billing/internal/reporting"
	"voiceai-billing/internal/webhooks"
	"voiceai-billing/pkg/logger"
	"voiceai-billing/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local development convenience; missing .env is fine.
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

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Repositories
	clientsRepo := clients.NewRepo(db)
	callsRepo := calls.NewRepo(db)
	ledgerRepo := ledger.NewRepo(db)

	// Notifications: durable rows, plus optional email and realtime fan-out.
	var emailSender notify.EmailSender
	if cfg.EmailEnabled() {
		emailSender = &notify.SMTPSender{Addr: cfg.SMTPAddr(), From: cfg.Email.From}
	}
	notifySvc := notify.NewService(notify.NewPostgresRepo(db), clientsRepo, emailSender, notify.NewRedisPublisher(rdb))

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	rates := pricing.NewResolver(pricing.NewPostgresRepo(db), cfg.Billing.DefaultRatePerMinuteMinor)

	billingSvc := billing.NewService(
		billing.NewPostgresStore(db),
		notifySvc,
		auditSvc,
		billing.PolicyFromConfig(cfg.Billing),
	).WithRateSource(rates)

	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		DB:        db,
		Redis:     rdb,
		Auth:      authManager,
		Telephony: webhooks.TelephonyHandler{Billing: billingSvc},
		Payments:  webhooks.NewPaymentHandler(billingSvc, cfg.Payments),
		Handlers: httpapi.Handlers{
			Auth:    authManager,
			Billing: billingSvc,
			Clients: clientsRepo,
			Calls:   callsRepo,
			Ledger:  ledgerRepo,
			Notify:  notifySvc,
			Reports: reportSvc,
		},
	})

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
