package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jordanmellermagic/Sensus-API/internal/blob"
	"github.com/jordanmellermagic/Sensus-API/internal/config"
	handlers "github.com/jordanmellermagic/Sensus-API/internal/http"
	"github.com/jordanmellermagic/Sensus-API/internal/logger"
	"github.com/jordanmellermagic/Sensus-API/internal/notify"
	"github.com/jordanmellermagic/Sensus-API/internal/profile"
	"github.com/jordanmellermagic/Sensus-API/internal/router"
	"github.com/jordanmellermagic/Sensus-API/internal/store"
	"github.com/jordanmellermagic/Sensus-API/internal/subscription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("open store", zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	blobs, err := blob.NewStore(cfg.BlobDir)
	if err != nil {
		zl.Fatal("open blob store", zap.Error(err))
	}

	push := notify.NewWebPush(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	if push.PrivateKey == "" {
		zl.Warn("VAPID keys not configured; push delivery will fail silently")
	}
	notifier := notify.New(push, zl)

	app := fiber.New(fiber.Config{
		BodyLimit: 16 << 20, // base64 screenshots
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal server error"

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
				message = fiberErr.Message
			}

			return c.Status(code).JSON(fiber.Map{"error": message})
		},
	})

	app.Use(router.CorsMiddleware(cfg.CORSOrigin))
	app.Use(requestLogger(zl))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	secret := []byte(cfg.JWTSecret)
	r := &router.Router{
		AuthHandler:    &handlers.AuthHandler{Store: st, Secret: secret},
		ProfileHandler: profile.NewHandler(st, blobs, notifier, zl),
		SubsHandler:    subscription.NewHandler(st, zl),
		AuthMW:         router.AuthMiddleware(secret, cfg.AdminAPIKey),
		AdminMW:        router.AdminMiddleware(cfg.AdminAPIKey),
		WriteLimit: router.RateLimitWrite(cfg.RateLimitMax,
			time.Duration(cfg.RateLimitWindowSeconds)*time.Second),
	}
	r.RegisterRoutes(app)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		zl.Info("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	zl.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func requestLogger(zl *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		zl.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)))
		return err
	}
}
