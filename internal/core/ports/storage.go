package ports

import (
	"context"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

// CatalogStore определяет методы постоянного хранилища последнего известного каталога.
// Ошибки чтения не пробрасываются: хранилище в этом случае считается пустым.
type CatalogStore interface {
	// ReadAll возвращает текущий каталог, упорядоченный по Position (пустой, если не заполнялся)
	ReadAll(ctx context.Context) domain.Catalog

	// IsEmpty сообщает, есть ли в хранилище хотя бы одна запись
	IsEmpty(ctx context.Context) bool

	// ReplaceAll транзакционно заменяет весь каталог; при ошибке прежнее состояние сохраняется
	ReplaceAll(ctx context.Context, catalog domain.Catalog) error
}
