package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

// Лимит Postgres: 65535 параметров на запрос, 9 колонок на запись
const insertChunkSize = 500

const (
	selectCatalogQuery = `
	SELECT id, source_id, position, attribution_name, width, height,
	       source_page_url, preview_image_url, full_image_url, retrieved_at
	FROM catalog_entries
	ORDER BY position
	`
	existsCatalogQuery = `SELECT EXISTS (SELECT 1 FROM catalog_entries)`
	deleteCatalogQuery = `DELETE FROM catalog_entries`
	insertCatalogQuery = `
	INSERT INTO catalog_entries (id, source_id, position, attribution_name, width, height,
	                             source_page_url, preview_image_url, full_image_url, retrieved_at)
	VALUES (:id, :source_id, :position, :attribution_name, :width, :height,
	        :source_page_url, :preview_image_url, :full_image_url, :retrieved_at)
	`
)

// catalogEntryRow: строка таблицы catalog_entries
type catalogEntryRow struct {
	ID              uuid.UUID `db:"id"`
	SourceID        *int64    `db:"source_id"`
	Position        int       `db:"position"`
	AttributionName *string   `db:"attribution_name"`
	Width           int       `db:"width"`
	Height          int       `db:"height"`
	SourcePageURL   *string   `db:"source_page_url"`
	PreviewImageURL *string   `db:"preview_image_url"`
	FullImageURL    string    `db:"full_image_url"`
	RetrievedAt     time.Time `db:"retrieved_at"`
}

func rowFromEntry(e domain.CatalogEntry) catalogEntryRow {
	return catalogEntryRow{
		ID:              e.ID,
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

func (r catalogEntryRow) toEntry() domain.CatalogEntry {
	return domain.CatalogEntry{
		ID:              r.ID,
		SourceID:        r.SourceID,
		Position:        r.Position,
		AttributionName: r.AttributionName,
		Width:           r.Width,
		Height:          r.Height,
		SourcePageURL:   r.SourcePageURL,
		PreviewImageURL: r.PreviewImageURL,
		FullImageURL:    r.FullImageURL,
		RetrievedAt:     r.RetrievedAt.UTC(),
	}
}

// CatalogPostgres хранит каталог в таблице catalog_entries
type CatalogPostgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewCatalogPostgres(db *sqlx.DB, logger *slog.Logger) *CatalogPostgres {
	return &CatalogPostgres{db: db, logger: logger}
}

// ReadAll возвращает каталог, упорядоченный по позиции.
// Ошибка чтения логируется, результат: пустой каталог.
func (s *CatalogPostgres) ReadAll(ctx context.Context) domain.Catalog {
	start := time.Now()

	var rows []catalogEntryRow
	if err := s.db.SelectContext(ctx, &rows, selectCatalogQuery); err != nil {
		s.logger.Error("failed to read catalog", "error", err)
		return domain.Catalog{}
	}

	catalog := make(domain.Catalog, 0, len(rows))
	for _, r := range rows {
		catalog = append(catalog, r.toEntry())
	}

	s.logger.Debug("catalog read from postgres",
		"entries", len(catalog),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return catalog
}

// IsEmpty сообщает, есть ли в хранилище хотя бы одна запись
func (s *CatalogPostgres) IsEmpty(ctx context.Context) bool {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, existsCatalogQuery); err != nil {
		s.logger.Error("failed to check catalog emptiness", "error", err)
		return true
	}
	return !exists
}

// ReplaceAll атомарно заменяет содержимое таблицы: удаление и вставка идут в одной транзакции
func (s *CatalogPostgres) ReplaceAll(ctx context.Context, catalog domain.Catalog) (err error) {
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("failed to begin transaction", "error", err)
		return domain.NewPersistenceError("replace catalog", fmt.Errorf("ошибка начала транзакции: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("failed to rollback transaction", "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, deleteCatalogQuery); err != nil {
		s.logger.Error("failed to clear catalog", "error", err)
		return domain.NewPersistenceError("replace catalog", fmt.Errorf("ошибка очистки каталога: %w", err))
	}

	rows := make([]catalogEntryRow, 0, len(catalog))
	for _, e := range catalog {
		rows = append(rows, rowFromEntry(e))
	}

	for i := 0; i < len(rows); i += insertChunkSize {
		end := min(i+insertChunkSize, len(rows))
		if _, err = tx.NamedExecContext(ctx, insertCatalogQuery, rows[i:end]); err != nil {
			s.logger.Error("failed to insert catalog entries", "offset", i, "error", err)
			return domain.NewPersistenceError("replace catalog", fmt.Errorf("ошибка вставки записей каталога: %w", err))
		}
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("failed to commit catalog replace", "error", err)
		return domain.NewPersistenceError("replace catalog", fmt.Errorf("ошибка фиксации транзакции: %w", err))
	}

	s.logger.Info("catalog replaced in postgres",
		"entries", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
