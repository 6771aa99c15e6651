package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoViewer/internal/messaging/payloads"
	"github.com/GoArmGo/PhotoViewer/internal/viewmodel"
)

type refresher interface {
	Refresh(ctx context.Context) <-chan viewmodel.Snapshot
}

// runWorker запускает потребителя очереди и периодическое обновление
func (a *App) runWorker(ctx context.Context) error {
	if a.consumer == nil && a.Config.Catalog.RefreshInterval <= 0 {
		return fmt.Errorf("воркеру нечего делать: не заданы RABBITMQ_URL и CATALOG_REFRESH_INTERVAL")
	}

	if a.consumer != nil {
		if err := a.consumer.StartConsumingRefreshRequests(ctx, refreshMessageHandler(a.view, a.logger)); err != nil {
			return fmt.Errorf("ошибка при запуске потребителя RabbitMQ: %w", err)
		}
		a.logger.Info("worker waiting for refresh requests")
	}

	runEvery(ctx, &a.tasks, a.Config.Catalog.RefreshInterval, func(ctx context.Context) {
		snap := <-a.view.Refresh(ctx)
		a.logger.Info("periodic refresh finished", "status", snap.Status.Kind, "items", len(snap.Items))
	})

	<-ctx.Done()
	a.logger.Info("worker stopped")
	return nil
}

// refreshMessageHandler выполняет обновление и ждёт итога.
// Деградированный итог тоже подтверждается.
func refreshMessageHandler(view refresher, logger *slog.Logger) func(context.Context, payloads.RefreshRequestPayload) error {
	return func(ctx context.Context, payload payloads.RefreshRequestPayload) error {
		start := time.Now()
		select {
		case snap := <-view.Refresh(ctx):
			attrs := []any{
				"reason", payload.Reason,
				"status", snap.Status.Kind,
				"failure", snap.Status.Failure,
				"items", len(snap.Items),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if !payload.RequestedAt.IsZero() {
				attrs = append(attrs, "queue_delay_ms", start.Sub(payload.RequestedAt).Milliseconds())
			}
			logger.Info("queued refresh finished", attrs...)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
