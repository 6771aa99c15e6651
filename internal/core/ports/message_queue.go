package ports

import (
	"context"

	"github.com/GoArmGo/PhotoViewer/internal/messaging/payloads"
)

// RefreshRequestPublisher публикует запросы на обновление каталога
// Этот интерфейс используется обработчиком HTTP-запросов
type RefreshRequestPublisher interface {
	PublishRefreshRequest(ctx context.Context, payload payloads.RefreshRequestPayload) error
}

// RefreshRequestConsumer потребляет запросы на обновление каталога
// используется воркером для получения задач из очереди
type RefreshRequestConsumer interface {
	// StartConsumingRefreshRequests начинает прослушивание очереди,
	// handler вызывается для каждого полученного сообщения
	StartConsumingRefreshRequests(ctx context.Context, handler func(context.Context, payloads.RefreshRequestPayload) error) error
}
