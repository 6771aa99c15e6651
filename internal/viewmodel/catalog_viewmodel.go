package viewmodel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GoArmGo/PhotoViewer/internal/core/ports"
	"github.com/GoArmGo/PhotoViewer/internal/domain"
	"github.com/GoArmGo/PhotoViewer/internal/usecase"
)

// StatusKind: то, что видит слой отображения
type StatusKind string

const (
	StatusLoading         StatusKind = "loading"
	StatusReady           StatusKind = "ready"
	StatusOfflineWithData StatusKind = "offline_with_data"
	StatusOfflineNoData   StatusKind = "offline_no_data"
	StatusError           StatusKind = "error"
)

// Status: состояние каталога для отображения. Failure заполнен для деградированных состояний.
type Status struct {
	Kind    StatusKind         `json:"kind"`
	Failure domain.FailureKind `json:"failure,omitempty"`
	Notice  string             `json:"notice,omitempty"`
}

// Snapshot: согласованный срез состояния; Version растёт на каждом переходе
type Snapshot struct {
	Status     Status         `json:"status"`
	Items      domain.Catalog `json:"items"`
	Version    uint64         `json:"version"`
	Refreshing bool           `json:"refreshing"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Observer вызывается один раз на каждый переход (статус или содержимое)
type Observer func(Snapshot)

// Reconciler: то, что нужно модели от согласования
type Reconciler interface {
	Reconcile(ctx context.Context) usecase.Outcome
}

// CatalogViewModel: фасад для слоя отображения.
// Текущие элементы не меняются, пока согласование не завершится.
type CatalogViewModel struct {
	reconciler Reconciler
	store      ports.CatalogStore
	logger     *slog.Logger

	mu         sync.RWMutex
	items      domain.Catalog
	status     Status
	version    uint64
	updatedAt  time.Time
	refreshing bool
	waiters    []chan Snapshot
	idle       chan struct{}
	draining   bool

	obsMu     sync.Mutex
	observers map[uint64]Observer
	nextObsID uint64

	notifyMu  sync.Mutex
	delivered uint64
}

// NewCatalogViewModel создаёт модель и заполняет её из хранилища без обращения к сети
func NewCatalogViewModel(ctx context.Context, reconciler Reconciler, store ports.CatalogStore, logger *slog.Logger) *CatalogViewModel {
	items := store.ReadAll(ctx).Clone()
	status := Status{Kind: StatusLoading}
	if !items.IsEmpty() {
		status = Status{Kind: StatusReady}
	}
	return &CatalogViewModel{
		reconciler: reconciler,
		store:      store,
		logger:     logger,
		items:      items,
		status:     status,
		updatedAt:  time.Now().UTC(),
		observers:  make(map[uint64]Observer),
	}
}

// CurrentItems возвращает копию текущего каталога
func (vm *CatalogViewModel) CurrentItems() domain.Catalog {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.items.Clone()
}

func (vm *CatalogViewModel) Status() Status {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

func (vm *CatalogViewModel) IsRefreshing() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.refreshing
}

func (vm *CatalogViewModel) Snapshot() Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.snapshotLocked()
}

func (vm *CatalogViewModel) snapshotLocked() Snapshot {
	return Snapshot{
		Status:     vm.status,
		Items:      vm.items.Clone(),
		Version:    vm.version,
		Refreshing: vm.refreshing,
		UpdatedAt:  vm.updatedAt,
	}
}

// Subscribe регистрирует наблюдателя и возвращает функцию отписки
func (vm *CatalogViewModel) Subscribe(o Observer) func() {
	vm.obsMu.Lock()
	id := vm.nextObsID
	vm.nextObsID++
	vm.observers[id] = o
	vm.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			vm.obsMu.Lock()
			delete(vm.observers, id)
			vm.obsMu.Unlock()
		})
	}
}

func (vm *CatalogViewModel) notify(s Snapshot) {
	vm.obsMu.Lock()
	observers := make([]Observer, 0, len(vm.observers))
	for _, o := range vm.observers {
		observers = append(observers, o)
	}
	vm.obsMu.Unlock()

	vm.notifyMu.Lock()
	defer vm.notifyMu.Unlock()
	// Переходы, собранные параллельно, могут прийти сюда не по порядку
	if s.Version <= vm.delivered {
		return
	}
	vm.delivered = s.Version
	for _, o := range observers {
		o(s)
	}
}

// Refresh запускает согласование в фоне и сразу возвращает канал с итоговым срезом.
// Вызов во время идущего обновления присоединяется к нему.
func (vm *CatalogViewModel) Refresh(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	vm.mu.Lock()
	if vm.draining {
		ch <- vm.snapshotLocked()
		close(ch)
		vm.mu.Unlock()
		return ch
	}
	vm.waiters = append(vm.waiters, ch)
	if vm.refreshing {
		vm.mu.Unlock()
		vm.logger.Debug("refresh joined in-flight reconcile")
		return ch
	}
	vm.refreshing = true
	vm.idle = make(chan struct{})

	transitioned := false
	if vm.items.IsEmpty() && vm.status.Kind != StatusLoading {
		vm.setLocked(Status{Kind: StatusLoading}, vm.items)
		transitioned = true
	}
	snap := vm.snapshotLocked()
	vm.mu.Unlock()

	if transitioned {
		vm.notify(snap)
	}

	go vm.runRefresh(context.WithoutCancel(ctx))
	return ch
}

func (vm *CatalogViewModel) runRefresh(ctx context.Context) {
	out := vm.reconciler.Reconcile(ctx)
	status := StatusFromOutcome(out)

	items := out.Catalog
	if out.State == usecase.StateFailedNoData || items == nil {
		items = domain.Catalog{}
	}

	vm.mu.Lock()
	transitioned := vm.status != status || !vm.items.SameContent(items)
	if transitioned {
		vm.setLocked(status, items)
	}
	vm.refreshing = false
	idle := vm.idle
	vm.idle = nil
	waiters := vm.waiters
	vm.waiters = nil
	snap := vm.snapshotLocked()
	vm.mu.Unlock()

	vm.logger.Info("catalog view updated",
		"status", snap.Status.Kind,
		"items", len(snap.Items),
		"transitioned", transitioned,
		"version", snap.Version,
	)

	if transitioned {
		vm.notify(snap)
	}
	for _, w := range waiters {
		w <- snap
		close(w)
	}
	close(idle)
}

// Drain запрещает новые обновления и ждёт завершения текущего.
// После Drain вызов Refresh сразу возвращает текущий срез.
func (vm *CatalogViewModel) Drain(ctx context.Context) error {
	vm.mu.Lock()
	vm.draining = true
	idle := vm.idle
	vm.mu.Unlock()

	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload перечитывает хранилище без обращения к сети.
// Нужен, когда каталог обновляется другим процессом.
func (vm *CatalogViewModel) Reload(ctx context.Context) Snapshot {
	items := vm.store.ReadAll(ctx)

	vm.mu.Lock()
	transitioned := false
	if !vm.items.SameContent(items) {
		status := vm.status
		if !items.IsEmpty() {
			switch status.Kind {
			case StatusLoading, StatusOfflineNoData, StatusError:
				status = Status{Kind: StatusReady}
			}
		}
		vm.setLocked(status, items)
		transitioned = true
	}
	snap := vm.snapshotLocked()
	vm.mu.Unlock()

	if transitioned {
		vm.logger.Info("catalog view reloaded from store", "items", len(snap.Items), "version", snap.Version)
		vm.notify(snap)
	}
	return snap
}

func (vm *CatalogViewModel) setLocked(status Status, items domain.Catalog) {
	vm.status = status
	vm.items = items.Clone()
	vm.version++
	vm.updatedAt = time.Now().UTC()
}

// StatusFromOutcome переводит итог согласования в статус отображения
func StatusFromOutcome(out usecase.Outcome) Status {
	switch out.State {
	case usecase.StateSucceeded:
		return Status{Kind: StatusReady}
	case usecase.StateFailedWithFallback:
		return Status{Kind: StatusOfflineWithData, Failure: out.Failure(), Notice: out.Notice}
	case usecase.StateFailedNoData:
		failure := out.Failure()
		if failure == domain.FailureUnreachable {
			return Status{Kind: StatusOfflineNoData, Failure: failure, Notice: out.Notice}
		}
		return Status{Kind: StatusError, Failure: failure, Notice: out.Notice}
	default:
		return Status{Kind: StatusLoading}
	}
}
