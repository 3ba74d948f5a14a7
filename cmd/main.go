package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth-service/internal/config"
	"auth-service/internal/delivery"
	"auth-service/internal/jobs"
	"auth-service/internal/rate"
	"auth-service/internal/repository"
	"auth-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zapLogger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zapLogger); err != nil {
		zapLogger.Fatal("auth service stopped with error", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) error {
	accounts, otps, closeStore, err := openStore(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter, closeLimiter, err := newLimiter(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	opts := []service.Option{
		service.WithCodeGenerator(service.RandomCode{Length: cfg.OTPLength}),
		service.WithLimiter(limiter),
		service.WithOTPTTL(cfg.OTPTTL),
		service.WithMaxAttempts(cfg.OTPMaxAttempts),
		service.WithLatency(cfg.Latency),
		service.WithSupersedeOnReissue(cfg.OTPSupersedeOnReissue),
	}

	if cfg.OTPStaticCode != "" {
		if cfg.IsProduction() {
			return errors.New("OTP_STATIC_CODE must not be set in production")
		}
		zapLogger.Warn("static OTP code enabled", zap.String("code", cfg.OTPStaticCode))
		opts = append(opts, service.WithCodeGenerator(service.StaticCode(cfg.OTPStaticCode)))
	}

	if cfg.SMTPHost != "" {
		mailer, err := service.NewMailNotifier(service.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			return err
		}
		opts = append(opts, service.WithNotifier(mailer))
	} else {
		zapLogger.Info("SMTP_HOST not set, OTP codes are written to the log")
	}

	if cfg.ZitadelDomain != "" {
		mirror, err := service.NewZitadelMirror(ctx, service.ZitadelConfig{
			Domain:  cfg.ZitadelDomain,
			OrgID:   cfg.ZitadelOrgID,
			PAT:     cfg.ZitadelPAT,
			KeyPath: cfg.ZitadelKeyPath,
		}, zapLogger)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithIdentityMirror(mirror))
	}

	if cfg.JWTSecret == config.DefaultJWTSecret {
		if cfg.IsProduction() {
			return errors.New("JWT_SECRET must be set in production")
		}
		zapLogger.Warn("JWT_SECRET not set, tokens are signed with the default secret")
	}
	tokens := service.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)

	authService := service.NewAuthService(accounts, otps, tokens, zapLogger, opts...)

	grants := service.NewResetGrantStore(cfg.ResetTTL)
	go grants.Run(ctx, time.Minute)

	scheduler, err := jobs.NewScheduler(zapLogger)
	if err != nil {
		return err
	}
	if err := scheduler.RegisterDurationJob(cfg.OTPPurgeInterval, jobs.PurgeExpiredOTPsJob(authService, zapLogger)); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			zapLogger.Warn("job scheduler shutdown failed", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	delivery.NewHandler(authService, grants, zapLogger).Routes(app.Group("/api"))

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("auth service listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func openStore(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) (repository.AccountRepository, repository.OTPRepository, func(), error) {
	switch cfg.Store {
	case "memory":
		store := repository.NewMemoryStore()
		return store.Accounts(), store.OTPs(), func() {}, nil
	case "postgres":
		if err := repository.Migrate(cfg.DBConnString); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		zapLogger.Info("connected to postgres")
		store := repository.NewPostgresStore(pool)
		return store.Accounts(), store.OTPs(), pool.Close, nil
	default:
		return nil, nil, nil, errors.New("unknown STORE " + cfg.Store + ", expected memory or postgres")
	}
}

func newLimiter(ctx context.Context, cfg config.Config, zapLogger *zap.Logger) (rate.Limiter, func(), error) {
	policy := rate.Policy{
		Window:      cfg.OTPWindow,
		MaxInWindow: cfg.OTPMaxPerWindow,
		Cooldown:    cfg.OTPCooldown,
	}

	if cfg.RedisAddr == "" {
		return rate.NewMemoryLimiter(policy, nil), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})
	limiter := rate.NewRedisLimiter(client, policy)
	if err := limiter.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	zapLogger.Info("OTP rate limiter backed by redis", zap.String("addr", cfg.RedisAddr))
	return limiter, func() { _ = client.Close() }, nil
}
