package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/GoArmGo/PhotoViewer/internal/core/ports"
	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

const defaultFetchTimeout = 10 * time.Second

// ReconcilerConfig: параметры согласования
type ReconcilerConfig struct {
	Endpoint     string
	FetchTimeout time.Duration
}

// CatalogReconciler решает, какой каталог показывать: сохранённый или свежий из сети,
// и полностью заменяет содержимое хранилища при успешной загрузке.
type CatalogReconciler struct {
	probe   ports.ConnectivityProbe
	fetcher ports.CatalogFetcher
	store   ports.CatalogStore
	cfg     ReconcilerConfig
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	state State
}

// NewCatalogReconciler создает новый экземпляр CatalogReconciler
func NewCatalogReconciler(
	probe ports.ConnectivityProbe,
	fetcher ports.CatalogFetcher,
	store ports.CatalogStore,
	cfg ReconcilerConfig,
	logger *slog.Logger,
) *CatalogReconciler {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &CatalogReconciler{
		probe:   probe,
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		state:   StateIdle,
	}
}

func (r *CatalogReconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *CatalogReconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *CatalogReconciler) Reconcile(ctx context.Context) Outcome {
	v, _, shared := r.group.Do("reconcile", func() (interface{}, error) {
		return r.run(ctx), nil
	})
	out := v.(Outcome)
	out.Catalog = out.Catalog.Clone()
	out.Shared = shared
	return out
}

func (r *CatalogReconciler) ReconcileAsync(ctx context.Context) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		ch <- r.Reconcile(ctx)
	}()
	return ch
}

// run: одна последовательная попытка: проба сети, загрузка, запись.
// Запись в хранилище не прерывается отменой контекста вызывающего.
func (r *CatalogReconciler) run(ctx context.Context) Outcome {
	start := time.Now()
	storeCtx := context.WithoutCancel(ctx)

	if !r.probe.IsReachable() {
		r.logger.Info("network unreachable, skipping fetch")
		return r.fallback(storeCtx, start, domain.NewUnreachableError("reconcile"), NoticeOfflineWithData, NoticeOfflineNoData, nil)
	}

	r.setState(StateFetching)
	r.logger.Info("catalog reconcile started", "state", StateFetching, "endpoint", r.cfg.Endpoint)

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FetchTimeout)
	entries, err := r.fetcher.FetchCatalog(fetchCtx, r.cfg.Endpoint)
	cancel()
	if err != nil {
		return r.fallback(storeCtx, start, classifyFetchError(err), NoticeRefreshFailedWithData, NoticeRefreshFailedNoData, nil)
	}

	fresh, dropped := normalize(entries)
	if dropped > 0 {
		r.logger.Debug("dropped invalid catalog entries", "dropped", dropped)
	}

	stored := r.store.ReadAll(storeCtx)
	if fresh.SameContent(stored) {
		return r.finish(start, Outcome{State: StateSucceeded, Catalog: stored})
	}

	stamped := fresh.Stamp(r.now().UTC().Truncate(time.Microsecond))
	if err := r.store.ReplaceAll(storeCtx, stamped); err != nil {
		if domain.KindOf(err) != domain.FailurePersistence {
			err = domain.NewPersistenceError("replace catalog", err)
		}
		return r.fallback(storeCtx, start, err, NoticeRefreshFailedWithData, NoticeRefreshFailedNoData, stored)
	}

	return r.finish(start, Outcome{State: StateSucceeded, Catalog: stamped, Changed: true})
}

// fallback выбирает деградированное состояние в зависимости от наличия сохранённых данных.
// known: каталог, прочитанный до неудачной записи; nil означает "прочитать из хранилища".
func (r *CatalogReconciler) fallback(ctx context.Context, start time.Time, cause error, withData, noData string, known domain.Catalog) Outcome {
	stored := known
	if stored == nil && !r.store.IsEmpty(ctx) {
		stored = r.store.ReadAll(ctx)
	}

	if !stored.IsEmpty() {
		return r.finish(start, Outcome{
			State:   StateFailedWithFallback,
			Catalog: stored,
			Err:     cause,
			Notice:  withData,
		})
	}
	return r.finish(start, Outcome{
		State:   StateFailedNoData,
		Catalog: domain.Catalog{},
		Err:     cause,
		Notice:  noData,
	})
}

func (r *CatalogReconciler) finish(start time.Time, out Outcome) Outcome {
	out.CompletedAt = r.now().UTC()
	if out.Catalog == nil {
		out.Catalog = domain.Catalog{}
	}
	r.setState(out.State)

	attrs := []any{
		"state", out.State,
		"entries", len(out.Catalog),
		"changed", out.Changed,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if out.Err != nil {
		r.logger.Warn("catalog reconcile degraded", append(attrs, "failure", out.Failure(), "error", out.Err)...)
	} else {
		r.logger.Info("catalog reconciled", attrs...)
	}
	return out
}

// normalize отбрасывает записи без пригодного URL и повторные ключи, позиции пересчитываются по порядку
func normalize(entries []domain.CatalogEntry) (domain.Catalog, int) {
	out := make(domain.Catalog, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	dropped := 0
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			dropped++
			continue
		}
		if e.ID == uuid.Nil {
			e.ID = domain.EntryKey(e.SourceID, e.FullImageURL)
		}
		key := e.ID.String()
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		seen[key] = struct{}{}
		e.Position = len(out)
		out = append(out, e)
	}
	return out, dropped
}

// classifyFetchError приводит ошибки вне таксономии к NetworkFailure
func classifyFetchError(err error) error {
	var ce *domain.CatalogError
	if errors.As(err, &ce) {
		return err
	}
	return domain.NewNetworkError("fetch catalog", err)
}
