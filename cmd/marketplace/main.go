// Package main starts the HTTP server of the marketplace lifecycle service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajjmal/marketplace-system/internal/config"
	"github.com/ajjmal/marketplace-system/internal/handler"
	"github.com/ajjmal/marketplace-system/internal/middleware"
	"github.com/ajjmal/marketplace-system/internal/push"
	"github.com/ajjmal/marketplace-system/internal/repository"
	"github.com/ajjmal/marketplace-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var pushClient *push.Client
	if cfg.PushGatewayAddress != "" {
		pushClient = push.NewClient(cfg.PushGatewayAddress)
	}

	orders := service.NewOrderService(repo)
	roles := service.NewRoleService(repo)
	notifications := service.NewNotificationService(repo)

	var pusher service.PushSender
	if pushClient != nil {
		pusher = pushClient
	}
	dispatcher := service.NewDispatcher(repo, pusher, logger, cfg.DispatchInterval)

	actorAuth := middleware.NewActorMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(orders, roles, notifications, logger, actorAuth)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Outbox dispatcher delivers lifecycle notifications in the background.
	g.Go(func() error {
		dispatcher.Start(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting marketplace server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown on signal or failure in another goroutine.
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
