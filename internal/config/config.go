package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Бэкенды хранилища каталога
const (
	BackendSQLite       = "sqlite"
	BackendPostgres     = "postgres"
	BackendGormPostgres = "gorm-postgres"
	BackendS3           = "s3"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort     string        `env:"SERVER_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`

	// Источник каталога
	Catalog struct {
		Provider        string        `env:"CATALOG_PROVIDER" envDefault:"picsum"`
		Endpoint        string        `env:"CATALOG_ENDPOINT"`
		APIKey          string        `env:"CATALOG_API_KEY"`
		MappingFile     string        `env:"CATALOG_MAPPING_FILE"`
		FetchTimeout    time.Duration `env:"CATALOG_FETCH_TIMEOUT" envDefault:"10s"`
		RefreshInterval time.Duration `env:"CATALOG_REFRESH_INTERVAL" envDefault:"0s"`
	}

	// Проверка доступности сети. Пустой адрес выводится из эндпоинта каталога.
	// Disabled: сеть всегда считается доступной, о сбое сообщает сама загрузка.
	Probe struct {
		Address  string        `env:"CONNECTIVITY_PROBE_ADDR"`
		Timeout  time.Duration `env:"CONNECTIVITY_PROBE_TIMEOUT" envDefault:"2s"`
		Disabled bool          `env:"CONNECTIVITY_PROBE_DISABLED" envDefault:"false"`
	}

	Store struct {
		Backend        string        `env:"STORE_BACKEND" envDefault:"sqlite"`
		SQLitePath     string        `env:"SQLITE_PATH" envDefault:"data/catalog.db"`
		DatabaseURL    string        `env:"DATABASE_URL"`
		ReloadInterval time.Duration `env:"STORE_RELOAD_INTERVAL" envDefault:"0s"`
	}

	// Настройки для MinIO
	Minio struct {
		Endpoint        string `env:"MINIO_ENDPOINT"`
		AccessKeyID     string `env:"MINIO_ACCESS_KEY_ID"`
		SecretAccessKey string `env:"MINIO_SECRET_ACCESS_KEY"`
		UseSSL          bool   `env:"MINIO_USE_SSL"`
		BucketName      string `env:"MINIO_BUCKET_NAME"`
		Region          string `env:"MINIO_REGION" envDefault:"us-east-1"`
		SnapshotKey     string `env:"MINIO_SNAPSHOT_KEY" envDefault:"catalog/snapshot.json"`
	}

	Images struct {
		CacheDir        string        `env:"IMAGE_CACHE_DIR" envDefault:"data/images"`
		MemoryTTL       time.Duration `env:"IMAGE_MEMORY_TTL" envDefault:"24h"`
		DiskTTL         time.Duration `env:"IMAGE_DISK_TTL" envDefault:"720h"`
		PrefetchWorkers int           `env:"IMAGE_PREFETCH_WORKERS" envDefault:"4"`
	}

	// Очередь запросов на обновление; пустой URL отключает очередь
	RabbitMQ struct {
		RabbitMQURL       string `env:"RABBITMQ_URL"`
		RabbitMQQueueName string `env:"RABBITMQ_QUEUE_NAME" envDefault:"catalog_refresh_queue"`
	}
}

// QueueEnabled сообщает, настроена ли очередь RabbitMQ
func (c *Config) QueueEnabled() bool {
	return c.RabbitMQ.RabbitMQURL != ""
}

// LoadConfig загружает конфигурацию из переменных окружения.
// В режиме разработки пытается загрузить .env файл.
func LoadConfig() (*Config, error) {
	if _, err := os.Stat(".env"); !os.IsNotExist(err) {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("ошибка загрузки .env файла: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации из окружения: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет, что для выбранных бэкендов заданы все нужные параметры
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT: неизвестный формат %q (json или text)", c.LogFormat)
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH должен быть задан для бэкенда %s", BackendSQLite)
		}
	case BackendPostgres, BackendGormPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL должен быть задан для бэкенда %s", c.Store.Backend)
		}
	case BackendS3:
		m := c.Minio
		if m.Endpoint == "" || m.AccessKeyID == "" || m.SecretAccessKey == "" || m.BucketName == "" || m.Region == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY_ID, MINIO_SECRET_ACCESS_KEY, MINIO_BUCKET_NAME и MINIO_REGION должны быть заданы для бэкенда %s", BackendS3)
		}
	default:
		return fmt.Errorf("STORE_BACKEND: неизвестный бэкенд %q", c.Store.Backend)
	}

	if c.Catalog.Provider == "" && c.Catalog.MappingFile == "" {
		return fmt.Errorf("нужно задать CATALOG_PROVIDER или CATALOG_MAPPING_FILE")
	}
	if c.Catalog.FetchTimeout <= 0 {
		return fmt.Errorf("CATALOG_FETCH_TIMEOUT должен быть положительным")
	}
	if c.Catalog.RefreshInterval < 0 || c.Store.ReloadInterval < 0 {
		return fmt.Errorf("интервалы обновления не могут быть отрицательными")
	}
	if c.Images.PrefetchWorkers < 0 {
		return fmt.Errorf("IMAGE_PREFETCH_WORKERS не может быть отрицательным")
	}
	return nil
}
