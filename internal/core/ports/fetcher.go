package ports

import (
	"context"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

// CatalogFetcher получает каталог из внешнего API фотографий и маппит его в доменные записи
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context, endpoint string) ([]domain.CatalogEntry, error)
}

// ConnectivityProbe сообщает, доступна ли сеть в данный момент
type ConnectivityProbe interface {
	IsReachable() bool
}
