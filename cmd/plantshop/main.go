// Package main запускает HTTP-сервер магазина растений.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/plantshop/internal/config"
	"github.com/mmeshcher/plantshop/internal/handler"
	"github.com/mmeshcher/plantshop/internal/metrics"
	"github.com/mmeshcher/plantshop/internal/middleware"
	"github.com/mmeshcher/plantshop/internal/receipt"
	"github.com/mmeshcher/plantshop/internal/repository"
	"github.com/mmeshcher/plantshop/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI, cfg.StorageTimeout)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Без адреса сервиса чеки копятся в очереди до следующего запуска.
	var receipts service.ReceiptSender
	if cfg.ReceiptServiceAddress != "" {
		receipts = receipt.NewClient(cfg.ReceiptServiceAddress)
	} else {
		sugar.Warn("receipt service address is not set, receipts stay queued")
	}

	svc := service.NewService(repo, receipts, service.Options{
		Logger:      logger,
		Metrics:     metrics.New(registry),
		AdminEmails: cfg.AdminEmails,
	})
	defer svc.Close()

	if cfg.AuthSecret == "" {
		sugar.Warn("auth secret is not set, sessions will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая отправка чеков из исходящей очереди
	g.Go(func() error {
		svc.RunReceiptDelivery(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting plantshop server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
