package storage

import (
	"context"
	"sync"

	"github.com/GoArmGo/PhotoViewer/internal/core/ports"
	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

// Guarded оборачивает хранилище в RWMutex: замена каталога: эксклюзивная секция,
// чтения идут параллельно и никогда не видят частично записанный каталог.
type Guarded struct {
	mu    sync.RWMutex
	inner ports.CatalogStore
}

func NewGuarded(inner ports.CatalogStore) *Guarded {
	return &Guarded{inner: inner}
}

func (g *Guarded) ReadAll(ctx context.Context) domain.Catalog {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.ReadAll(ctx)
}

func (g *Guarded) IsEmpty(ctx context.Context) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.IsEmpty(ctx)
}

func (g *Guarded) ReplaceAll(ctx context.Context, catalog domain.Catalog) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.ReplaceAll(ctx, catalog)
}
