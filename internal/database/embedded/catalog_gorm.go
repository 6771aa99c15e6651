package embedded

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

// Текущая версия схемы записи; увеличивается при несовместимых изменениях
const recordSchemaVersion = 1

const createBatchSize = 200

// catalogEntryRecord: персистентное представление записи каталога.
// Отображение в domain.CatalogEntry явное, чтобы схема могла эволюционировать отдельно.
type catalogEntryRecord struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)"`
	SchemaVersion   int       `gorm:"not null;default:1"`
	SourceID        *int64    `gorm:"index"`
	Position        int       `gorm:"not null;index"`
	AttributionName *string
	Width           int `gorm:"not null;default:0"`
	Height          int `gorm:"not null;default:0"`
	SourcePageURL   *string
	PreviewImageURL *string
	FullImageURL    string    `gorm:"not null"`
	RetrievedAt     time.Time `gorm:"not null"`
}

func (catalogEntryRecord) TableName() string {
	return "catalog_records"
}

func recordFromEntry(e domain.CatalogEntry) catalogEntryRecord {
	return catalogEntryRecord{
		ID:              e.ID.String(),
		SchemaVersion:   recordSchemaVersion,
		SourceID:        e.SourceID,
		Position:        e.Position,
		AttributionName: e.AttributionName,
		Width:           e.Width,
		Height:          e.Height,
		SourcePageURL:   e.SourcePageURL,
		PreviewImageURL: e.PreviewImageURL,
		FullImageURL:    e.FullImageURL,
		RetrievedAt:     e.RetrievedAt.UTC(),
	}
}

func (r catalogEntryRecord) toEntry() (domain.CatalogEntry, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("некорректный ключ записи %q: %w", r.ID, err)
	}
	return domain.CatalogEntry{
		ID:              id,
		SourceID:        r.SourceID,
		Position:        r.Position,
		AttributionName: r.AttributionName,
		Width:           r.Width,
		Height:          r.Height,
		SourcePageURL:   r.SourcePageURL,
		PreviewImageURL: r.PreviewImageURL,
		FullImageURL:    r.FullImageURL,
		RetrievedAt:     r.RetrievedAt.UTC(),
	}, nil
}

// CatalogGorm хранит каталог через GORM: во встроенной SQLite или в Postgres
type CatalogGorm struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenSQLite открывает (или создаёт) файл встроенной базы и мигрирует схему
func OpenSQLite(path string, logger *slog.Logger) (*CatalogGorm, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.NewPersistenceError("open store", fmt.Errorf("не удалось создать каталог базы %s: %w", dir, err))
		}
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		logger.Error("failed to open sqlite store", "path", path, "error", err)
		return nil, domain.NewPersistenceError("open store", fmt.Errorf("ошибка открытия SQLite: %w", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, domain.NewPersistenceError("open store", err)
	}
	// SQLite допускает одного писателя
	sqlDB.SetMaxOpenConns(1)

	return newCatalogGorm(db, "sqlite", logger)
}

// OpenPostgres подключается к Postgres через GORM
func OpenPostgres(dsn string, logger *slog.Logger) (*CatalogGorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		logger.Error("failed to open gorm postgres store", "error", err)
		return nil, domain.NewPersistenceError("open store", fmt.Errorf("ошибка подключения к PostgreSQL: %w", err))
	}
	return newCatalogGorm(db, "postgres", logger)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
}

func newCatalogGorm(db *gorm.DB, dialect string, logger *slog.Logger) (*CatalogGorm, error) {
	start := time.Now()
	if err := db.AutoMigrate(&catalogEntryRecord{}); err != nil {
		logger.Error("failed to migrate catalog schema", "dialect", dialect, "error", err)
		return nil, domain.NewPersistenceError("open store", fmt.Errorf("ошибка миграции схемы: %w", err))
	}
	logger.Info("catalog store opened",
		"dialect", dialect,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &CatalogGorm{db: db, logger: logger}, nil
}

func (s *CatalogGorm) ReadAll(ctx context.Context) domain.Catalog {
	start := time.Now()

	var records []catalogEntryRecord
	if err := s.db.WithContext(ctx).Order("position").Find(&records).Error; err != nil {
		s.logger.Error("failed to read catalog", "error", err)
		return domain.Catalog{}
	}

	catalog := make(domain.Catalog, 0, len(records))
	for _, r := range records {
		e, err := r.toEntry()
		if err != nil {
			s.logger.Warn("skipping unreadable catalog record", "id", r.ID, "error", err)
			continue
		}
		catalog = append(catalog, e)
	}

	s.logger.Debug("catalog read",
		"entries", len(catalog),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return catalog
}

func (s *CatalogGorm) IsEmpty(ctx context.Context) bool {
	var count int64
	if err := s.db.WithContext(ctx).Model(&catalogEntryRecord{}).Count(&count).Error; err != nil {
		s.logger.Error("failed to count catalog records", "error", err)
		return true
	}
	return count == 0
}

// ReplaceAll заменяет весь каталог в одной транзакции
func (s *CatalogGorm) ReplaceAll(ctx context.Context, catalog domain.Catalog) error {
	start := time.Now()

	records := make([]catalogEntryRecord, 0, len(catalog))
	for _, e := range catalog {
		records = append(records, recordFromEntry(e))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&catalogEntryRecord{}).Error; err != nil {
			return fmt.Errorf("ошибка очистки каталога: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, createBatchSize).Error; err != nil {
			return fmt.Errorf("ошибка вставки записей каталога: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to replace catalog", "error", err)
		return domain.NewPersistenceError("replace catalog", err)
	}

	s.logger.Info("catalog replaced",
		"entries", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Close закрывает соединение с базой
func (s *CatalogGorm) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
