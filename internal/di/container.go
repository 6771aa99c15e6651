package di

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/GoArmGo/PhotoViewer/internal/adapter/catalogapi"
	"github.com/GoArmGo/PhotoViewer/internal/adapter/connectivity"
	"github.com/GoArmGo/PhotoViewer/internal/adapter/storage/minio"
	"github.com/GoArmGo/PhotoViewer/internal/app"
	"github.com/GoArmGo/PhotoViewer/internal/config"
	"github.com/GoArmGo/PhotoViewer/internal/core/ports"
	"github.com/GoArmGo/PhotoViewer/internal/database/client"
	"github.com/GoArmGo/PhotoViewer/internal/database/embedded"
	"github.com/GoArmGo/PhotoViewer/internal/database/storage"
	"github.com/GoArmGo/PhotoViewer/internal/imagecache"
	"github.com/GoArmGo/PhotoViewer/internal/logger"
	"github.com/GoArmGo/PhotoViewer/internal/rabbitmq"
	"github.com/GoArmGo/PhotoViewer/internal/usecase"
	"github.com/GoArmGo/PhotoViewer/internal/viewmodel"
)

// BuildApp инициализирует все зависимости и возвращает готовый объект App.
func BuildApp(ctx context.Context) (*app.App, error) {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	slogger := logger.NewSlog(logger.SlogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	slogger.Info("logger initialized", "level", cfg.LogLevel, "format", cfg.LogFormat)

	var closers []io.Closer
	fail := func(err error) (*app.App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	// 2. Хранилище каталога, одно на процесс
	store, closer, err := openStore(ctx, cfg, slogger)
	if err != nil {
		return fail(err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	guarded := storage.NewGuarded(store)

	// 3. Клиент API каталога и проверка сети
	mapping, err := loadMapping(cfg)
	if err != nil {
		return fail(err)
	}
	fetcher, err := catalogapi.NewClient(catalogapi.Config{
		Mapping: mapping,
		APIKey:  cfg.Catalog.APIKey,
		Timeout: cfg.Catalog.FetchTimeout,
	}, slogger)
	if err != nil {
		return fail(err)
	}

	endpoint := cfg.Catalog.Endpoint
	if endpoint == "" {
		endpoint = fetcher.Endpoint()
	}
	probe, probeAddr, err := newProbe(cfg, endpoint)
	if err != nil {
		return fail(err)
	}

	// 4. Согласование и модель отображения
	reconciler := usecase.NewCatalogReconciler(probe, fetcher, guarded, usecase.ReconcilerConfig{
		Endpoint:     endpoint,
		FetchTimeout: cfg.Catalog.FetchTimeout,
	}, slogger)
	view := viewmodel.NewCatalogViewModel(ctx, reconciler, guarded, slogger)

	// 5. Кэш изображений
	images, err := imagecache.New(afero.NewOsFs(), imagecache.Config{
		Dir:       cfg.Images.CacheDir,
		MemoryTTL: cfg.Images.MemoryTTL,
		DiskTTL:   cfg.Images.DiskTTL,
	}, slogger)
	if err != nil {
		return fail(err)
	}
	var prefetcher *imagecache.Prefetcher
	if cfg.Images.PrefetchWorkers > 0 {
		prefetcher = imagecache.NewPrefetcher(context.WithoutCancel(ctx), images, cfg.Images.PrefetchWorkers, slogger)
	}

	// 6. Очередь запросов на обновление (необязательна)
	var publisher ports.RefreshRequestPublisher
	var consumer ports.RefreshRequestConsumer
	if cfg.QueueEnabled() {
		rabbitMQClient, err := rabbitmq.NewClient(cfg, slogger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, rabbitMQClient)
		publisher = rabbitMQClient
		consumer = rabbitMQClient
	}

	application := app.NewApp(cfg, slogger, view, images, prefetcher, publisher, consumer, closers...)

	slogger.Info("dependencies initialized",
		"store_backend", cfg.Store.Backend,
		"provider", mapping.Name,
		"endpoint", endpoint,
		"probe_addr", probeAddr,
		"queue", cfg.QueueEnabled(),
	)
	return application, nil
}

// openStore открывает хранилище выбранного бэкенда. Второе значение закрывает соединение, если оно есть.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.CatalogStore, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		s, err := embedded.OpenSQLite(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case config.BackendGormPostgres:
		s, err := embedded.OpenPostgres(cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case config.BackendPostgres:
		dbClient, err := client.NewClient(cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewCatalogPostgres(dbClient.DB, logger), dbClient, nil

	case config.BackendS3:
		fileStorage, err := minio.NewMinioClient(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return minio.NewSnapshotStore(fileStorage, cfg.Minio.SnapshotKey, logger), nil, nil

	default:
		return nil, nil, fmt.Errorf("неизвестный бэкенд хранилища %q", cfg.Store.Backend)
	}
}

// newProbe выбирает проверку сети: TCP-соединение с адресом из конфигурации
// (или выведенным из эндпоинта) либо постоянное "доступна", если проверка отключена.
func newProbe(cfg *config.Config, endpoint string) (ports.ConnectivityProbe, string, error) {
	if cfg.Probe.Disabled {
		return connectivity.Static(true), "", nil
	}
	addr := cfg.Probe.Address
	if addr == "" {
		var err error
		if addr, err = connectivity.AddressFromEndpoint(endpoint); err != nil {
			return nil, "", err
		}
	}
	return connectivity.NewDialProbe(addr, cfg.Probe.Timeout), addr, nil
}

// loadMapping: файл маппинга важнее встроенной таблицы провайдера
func loadMapping(cfg *config.Config) (catalogapi.FieldMapping, error) {
	if cfg.Catalog.MappingFile != "" {
		return catalogapi.LoadMappingFile(cfg.Catalog.MappingFile)
	}
	return catalogapi.Preset(cfg.Catalog.Provider)
}
