package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/absencehub/internal/auth"
	"github.com/geocoder89/absencehub/internal/config"
	"github.com/geocoder89/absencehub/internal/db"
	httpx "github.com/geocoder89/absencehub/internal/http"
	"github.com/geocoder89/absencehub/internal/http/middlewares"
	"github.com/geocoder89/absencehub/internal/notifications"
	"github.com/geocoder89/absencehub/internal/observability"
	"github.com/geocoder89/absencehub/internal/redisclient"
	"github.com/geocoder89/absencehub/internal/repo"
	"github.com/geocoder89/absencehub/internal/security"
	"github.com/geocoder89/absencehub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	startCtx, cancelStart := config.WithTimeout(15 * time.Second)
	defer cancelStart()

	shutdownTracer, err := observability.InitTracer(startCtx, observability.ServiceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	backend, err := repo.Open(startCtx, cfg, prom)
	if err != nil {
		log.Error("store init failed", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, auth.TTLs{
		Access:        cfg.AccessTTL(),
		Refresh:       cfg.RefreshTTL(),
		ResetPassword: cfg.ResetPasswordTTL(),
		VerifyEmail:   cfg.VerifyEmailTTL(),
	})
	rights := auth.DefaultRights()

	// outbound mail
	var transport notifications.Transport = notifications.NewLogTransport()
	if cfg.SMTPHost != "" {
		smtp := notifications.NewSMTPTransport(notifications.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
		if err := smtp.Verify(); err != nil {
			log.Warn("smtp_unreachable", "host", cfg.SMTPHost, "err", err)
		}
		transport = smtp
	}
	mailTransport := notifications.NewProtectedTransport(transport, notifications.ProtectedTransportConfig{
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	})
	mailMetrics := observability.NewMailMetrics()
	notifier := notifications.NewNotifier(mailTransport, cfg.AppURL, prom, mailMetrics)

	// services
	userService := service.NewUserService(backend.Users, backend.Tokens, backend.Tx, security.NewHasher(cfg.BcryptCost))
	tokenService := service.NewTokenService(backend.Tokens, backend.Users, jwtManager)
	authService := service.NewAuthService(userService, tokenService, backend.Tx, notifier)
	absenceService := service.NewAbsenceService(backend.Absences, backend.Users, rights)

	if err := db.EnsureAdminUser(startCtx, userService, cfg); err != nil {
		log.Error("admin seeding failed", "err", err)
		os.Exit(1)
	}

	// auth rate limiting (prod only)
	var authLimiter *middlewares.RateLimiter
	var redisClient *redisclient.Client
	if cfg.IsProd() {
		var store middlewares.LimitStore = middlewares.NewMemoryStore()

		if cfg.RedisAddr != "" {
			redisClient = redisclient.New(redisclient.Config{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})

			if err := redisClient.Ping(startCtx); err != nil {
				log.Error("redis ping failed", "addr", cfg.RedisAddr, "err", err)
				os.Exit(1)
			}
			store = middlewares.NewRedisStore(redisClient, observability.ServiceName+":ratelimit:auth:")
		}

		authLimiter = middlewares.NewRateLimiter(store, cfg.AuthRateLimit, cfg.AuthRateWindow(), prom)
	}

	// set up routers
	router := httpx.NewRouter(httpx.Deps{
		Env:         cfg.Env,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Prom:        prom,
		Gatherer:    reg,
		Auth:        authService,
		Users:       userService,
		Absences:    absenceService,
		Verifier:    jwtManager,
		Rights:      rights,
		AuthLimiter: authLimiter,
		Ping:        backend.Ping,
		Mail:        mailTransport,
		MailMetrics: mailMetrics,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "driver", backend.Driver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		closeAll(ctx, log.Error, backend, redisClient, shutdownTracer)
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func closeAll(ctx context.Context, logErr func(msg string, args ...any), backend *repo.Backend, rc *redisclient.Client, shutdownTracer func(context.Context) error) {
	if err := backend.Close(ctx); err != nil {
		logErr("store close failed", "err", err)
	}

	if rc != nil {
		if err := rc.Close(); err != nil {
			logErr("redis close failed", "err", err)
		}
	}

	if err := shutdownTracer(ctx); err != nil {
		logErr("tracer shutdown failed", "err", err)
	}
}
