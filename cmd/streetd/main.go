package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"smart-street-backend/config"
	"smart-street-backend/internal/admission"
	"smart-street-backend/internal/api"
	"smart-street-backend/internal/audit"
	"smart-street-backend/internal/conflict"
	"smart-street-backend/internal/db"
	"smart-street-backend/internal/expiry"
	"smart-street-backend/internal/metrics"
	"smart-street-backend/internal/mw"
	"smart-street-backend/internal/notification"
	"smart-street-backend/internal/permit"
	"smart-street-backend/internal/store"
)

const visitorIdleTimeout = 10 * time.Minute

func main() {
	logger := log.New(os.Stdout, "street-backend ", log.LstdFlags)

	configPath := pflag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML configuration file")
	pflag.Parse()
	if *configPath == "" {
		*configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", *configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", *configPath)

	if cfg.Auth.JWTSecret == "" {
		logger.Fatalf("auth.jwt_secret must be configured")
	}
	if cfg.Permit.SigningSecret == "" {
		logger.Fatalf("permit.signing_secret must be configured")
	}

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys are not configured; notifications are stored in the inbox only")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatalf("failed to get sql.DB: %v", err)
	}
	defer sqlDB.Close()
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	m := metrics.New()

	workers := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, gormDB, webpushOptions)
	workers.Start(ctx)

	issuer := permit.NewIssuer(cfg.Permit.SigningSecret, cfg.Permit.CredentialTTL)
	recorder := audit.NewRecorder(gormDB)
	controller := admission.NewController(
		appStore,
		conflict.NewDetector(cfg.Admission.ScopeToSpace),
		issuer,
		recorder,
		workers,
		admission.Options{MaxAttempts: cfg.Admission.MaxAttempts, Metrics: m},
	)

	sweeper := expiry.NewService(cfg.Expiry, appStore, m)
	go sweeper.Run(ctx)

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go func() {
		ticker := time.NewTicker(visitorIdleTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Sweep(visitorIdleTimeout); n > 0 {
					logger.Printf("dropped %d idle rate limiter entries", n)
				}
			}
		}
	}()

	handler := api.NewHandler(controller, issuer, recorder, notification.NewInbox(gormDB), webpushOptions)
	router := api.NewRouter(handler, api.RouterOptions{
		AuthSecret:  cfg.Auth.JWTSecret,
		RateLimiter: limiter,
		CacheTTL:    time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		Metrics:     m,
		Ping:        sqlDB.PingContext,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	// Decisions already committed still get their audit entries and notifications.
	controller.Drain()
	cancel()
	workers.Wait()

	logger.Println("Server gracefully stopped")
}
