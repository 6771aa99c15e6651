package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/GoArmGo/PhotoViewer/internal/config"
	"github.com/GoArmGo/PhotoViewer/internal/core/ports"
	"github.com/GoArmGo/PhotoViewer/internal/imagecache"
	"github.com/GoArmGo/PhotoViewer/internal/viewmodel"
)

// Режимы запуска процесса
const (
	ModeServer = "server"
	ModeWorker = "worker"
)

type App struct {
	Config     *config.Config
	logger     *slog.Logger
	view       *viewmodel.CatalogViewModel
	images     *imagecache.Cache
	prefetcher *imagecache.Prefetcher
	publisher  ports.RefreshRequestPublisher
	consumer   ports.RefreshRequestConsumer
	closers    []io.Closer
	tasks      sync.WaitGroup
}

// NewApp собирает приложение. publisher, consumer и prefetcher могут быть nil.
// closers закрываются в обратном порядке при Shutdown.
func NewApp(
	cfg *config.Config,
	logger *slog.Logger,
	view *viewmodel.CatalogViewModel,
	images *imagecache.Cache,
	prefetcher *imagecache.Prefetcher,
	publisher ports.RefreshRequestPublisher,
	consumer ports.RefreshRequestConsumer,
	closers ...io.Closer,
) *App {
	return &App{
		Config:     cfg,
		logger:     logger,
		view:       view,
		images:     images,
		prefetcher: prefetcher,
		publisher:  publisher,
		consumer:   consumer,
		closers:    closers,
	}
}

// LoggerIns возвращает основной логгер приложения
func (a *App) LoggerIns() *slog.Logger {
	return a.logger
}

func (a *App) Run(ctx context.Context, mode string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("app starting", "mode", mode)

	var err error
	switch mode {
	case ModeServer:
		err = a.runServer(ctx)
	case ModeWorker:
		err = a.runWorker(ctx)
	default:
		err = fmt.Errorf("неизвестный режим: %s (используйте 'server' или 'worker')", mode)
	}

	if closeErr := a.Shutdown(); closeErr != nil {
		a.logger.Error("shutdown finished with errors", "error", closeErr)
	}

	if err != nil {
		return err
	}
	a.logger.Info("app stopped")
	return nil
}

// Shutdown дожидается фоновых задач и идущего обновления, затем закрывает ресурсы.
// Вызывается после отмены контекста Run.
func (a *App) Shutdown() error {
	a.tasks.Wait()

	if a.view != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := a.view.Drain(ctx)
		cancel()
		if err != nil {
			a.logger.Warn("in-flight refresh did not finish before shutdown", "error", err)
		}
	}

	if a.prefetcher != nil {
		a.prefetcher.Close()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("ошибка при закрытии ресурсов: %w", errors.Join(errs...))
	}
	return nil
}
