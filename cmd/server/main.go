package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/mailer"
	"github.com/Skotchmaster/storefront/internal/media"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/search"
	"github.com/Skotchmaster/storefront/internal/service"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/logging"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
	"github.com/Skotchmaster/storefront/pkg/middleware/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() {
		if err := pkgdb.Close(db); err != nil {
			logger.Warn("db_close_failed", "error", err)
		}
	}()
	if err := pkgdb.Migrate(db, models.All()...); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	images, err := newImageHost(cfg, logger)
	if err != nil {
		return err
	}
	mail, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}
	publisher := events.New(cfg.KafkaBrokers)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("publisher_close_failed", "error", err)
		}
	}()

	r := repo.New(db)
	products := &service.ProductService{Repo: r, Images: images, Events: publisher}
	if idx := newSearchIndex(cfg, logger); idx != nil {
		products.Search = idx
	}
	orders := &service.OrderService{Repo: r, Events: publisher}
	users := &service.UserService{
		Repo:        r,
		Images:      images,
		Mailer:      mail,
		Events:      publisher,
		JWTSecret:   []byte(cfg.JWTSecret),
		JWTExpire:   cfg.JWTExpire,
		FrontendURL: cfg.FrontendURL,
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpserver.NewValidator()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(metrics.Prometheus(cfg.ServiceName))
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowCredentials: true,
	}))

	httpserver.Register(e, &httpserver.Deps{
		ProductHandler: &httpserver.ProductHTTP{Svc: products},
		OrderHandler:   &httpserver.OrderHTTP{Svc: orders},
		UserHandler:    &httpserver.UserHTTP{Svc: users},
		JWTSecret:      []byte(cfg.JWTSecret),
		AuthRateLimit:  cfg.AuthRateLimit,
		Ready:          r.Ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-stop:
		logger.Info("shutdown_started", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server_stopped")
	return nil
}

func newImageHost(cfg *config.Config, logger *slog.Logger) (media.ImageHost, error) {
	if cfg.CloudinaryURL == "" {
		logger.Warn("image_host_disabled", "reason", "CLOUDINARY_URL not set")
		return media.Unconfigured{}, nil
	}
	host, err := media.NewCloudinary(cfg.CloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return host, nil
}

func newMailer(cfg *config.Config, logger *slog.Logger) (mailer.Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("smtp_disabled", "reason", "SMTP_HOST not set")
		return mailer.Log{}, nil
	}
	m, err := mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return m, nil
}

// newSearchIndex returns nil when search is not configured or unreachable;
// product search then falls back to the database.
func newSearchIndex(cfg *config.Config, logger *slog.Logger) *search.Index {
	if cfg.ESURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es, err := search.NewClient(ctx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
	if err != nil {
		logger.Warn("search_disabled", "reason", "elasticsearch unreachable", "error", err)
		return nil
	}
	return search.New(es, search.IndexProducts)
}
