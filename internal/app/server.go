package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GoArmGo/PhotoViewer/internal/handler"
)

const (
	shutdownTimeout = 30 * time.Second
	purgeInterval   = time.Hour
)

// runServer запускает HTTP сервер и фоновые задачи каталога
func (a *App) runServer(ctx context.Context) error {
	cfg := a.Config

	if a.prefetcher != nil {
		unsubscribe := a.view.Subscribe(a.prefetcher.Observe)
		defer unsubscribe()

		// Прогрев по содержимому хранилища, пока идёт первое обновление
		if items := a.view.CurrentItems(); !items.IsEmpty() {
			go func() {
				if err := a.prefetcher.Warm(items); err != nil {
					a.logger.Warn("initial prefetch interrupted", "error", err)
				}
			}()
		}
	}

	a.view.Refresh(ctx)

	runEvery(ctx, &a.tasks, cfg.Catalog.RefreshInterval, func(ctx context.Context) {
		a.view.Refresh(ctx)
	})
	runEvery(ctx, &a.tasks, cfg.Store.ReloadInterval, func(ctx context.Context) {
		a.view.Reload(ctx)
	})
	runEvery(ctx, &a.tasks, purgeInterval, func(context.Context) {
		removed, err := a.images.PurgeExpired()
		if err != nil {
			a.logger.Error("image cache purge failed", "error", err)
			return
		}
		a.logger.Info("image cache purged", "removed", removed)
	})

	catalogHandler := handler.NewCatalogHandler(a.view, a.images, a.publisher, a.logger)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.NewRouter(catalogHandler, cfg.RequestTimeout, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("ошибка при запуске сервера: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received, stopping http server")

	ctxServer, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxServer); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.logger.Info("http server stopped")
	return nil
}
