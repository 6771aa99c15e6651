package usecase

import (
	"context"
	"time"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

// State: состояние согласования каталога
type State string

const (
	StateIdle               State = "idle"
	StateFetching           State = "fetching"
	StateSucceeded          State = "succeeded"
	StateFailedWithFallback State = "failed_with_fallback"
	StateFailedNoData       State = "failed_no_data"
)

// Уведомления для пользователя; оба вида сбоя временные и снимаются следующим успешным обновлением
const (
	NoticeOfflineWithData       = "offline, showing cached data"
	NoticeOfflineNoData         = "offline, no cached data"
	NoticeRefreshFailedWithData = "refresh failed, showing cached data"
	NoticeRefreshFailedNoData   = "refresh failed, no data available"
)

// Outcome: итог одного согласования.
// Catalog: то, что следует показывать: новый каталог при успехе, сохранённый при FailedWithFallback,
// пустой при FailedNoData.
type Outcome struct {
	State       State
	Catalog     domain.Catalog
	Err         error
	Notice      string
	Changed     bool // хранилище было перезаписано
	Shared      bool // результат разделён между перекрывающимися вызовами
	CompletedAt time.Time
}

// Failure возвращает вид сбоя, FailureNone при успехе
func (o Outcome) Failure() domain.FailureKind {
	return domain.KindOf(o.Err)
}

// CatalogUseCase определяет операции согласования каталога с сетью
type CatalogUseCase interface {
	// Reconcile выполняет согласование и блокируется до результата.
	// Перекрывающиеся вызовы присоединяются к уже идущему.
	Reconcile(ctx context.Context) Outcome

	// ReconcileAsync запускает согласование и сразу возвращает канал с результатом
	ReconcileAsync(ctx context.Context) <-chan Outcome

	// State возвращает текущее состояние
	State() State
}
