package imagecache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alitto/pond/v2"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
	"github.com/GoArmGo/PhotoViewer/internal/viewmodel"
)

// Prefetcher прогревает кэш миниатюр для текущего каталога пулом воркеров
type Prefetcher struct {
	cache  *Cache
	pool   pond.Pool
	ctx    context.Context
	logger *slog.Logger

	mu          sync.Mutex
	lastVersion uint64
}

func NewPrefetcher(ctx context.Context, cache *Cache, workers int, logger *slog.Logger) *Prefetcher {
	if workers <= 0 {
		workers = 1
	}
	return &Prefetcher{
		cache:  cache,
		pool:   pond.NewPool(workers, pond.WithContext(ctx)),
		ctx:    ctx,
		logger: logger,
	}
}

// Observe: наблюдатель модели каталога: при готовом каталоге ставит миниатюры в очередь пула.
// Повторные срезы той же версии игнорируются.
func (p *Prefetcher) Observe(s viewmodel.Snapshot) {
	switch s.Status.Kind {
	case viewmodel.StatusReady, viewmodel.StatusOfflineWithData:
	default:
		return
	}

	p.mu.Lock()
	if s.Version != 0 && s.Version <= p.lastVersion {
		p.mu.Unlock()
		return
	}
	p.lastVersion = s.Version
	p.mu.Unlock()

	for _, e := range s.Items {
		url := e.PreviewOrFull()
		p.pool.Submit(func() {
			p.fetch(url)
		})
	}
}

// Warm загружает миниатюры всех записей и ждёт завершения
func (p *Prefetcher) Warm(items domain.Catalog) error {
	group := p.pool.NewGroup()
	for _, e := range items {
		url := e.PreviewOrFull()
		group.Submit(func() {
			p.fetch(url)
		})
	}
	return group.Wait()
}

func (p *Prefetcher) fetch(url string) {
	if _, err := p.cache.Get(p.ctx, url); err != nil {
		p.logger.Debug("image prefetch failed", "url", url, "error", err)
	}
}

// Close дожидается завершения поставленных задач
func (p *Prefetcher) Close() {
	p.pool.StopAndWait()
}
