package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

const snapshotVersion = 1

// ObjectStorage: операции объектного хранилища, нужные SnapshotStore
type ObjectStorage interface {
	UploadFile(ctx context.Context, objectKey string, fileContent io.Reader, contentType string) (string, error)
	GetFile(ctx context.Context, objectKey string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, objectKey string) error
}

type snapshot struct {
	Version   int                   `json:"version"`
	WrittenAt time.Time             `json:"written_at"`
	Entries   []domain.CatalogEntry `json:"entries"`
}

// SnapshotStore хранит весь каталог одним JSON-объектом.
// Замена: одна запись объекта, поэтому читатели видят либо старый, либо новый каталог.
// Пустой каталог хранится как отсутствие объекта.
type SnapshotStore struct {
	storage ObjectStorage
	key     string
	logger  *slog.Logger
}

func NewSnapshotStore(storage ObjectStorage, key string, logger *slog.Logger) *SnapshotStore {
	return &SnapshotStore{storage: storage, key: key, logger: logger}
}

func (s *SnapshotStore) ReadAll(ctx context.Context) domain.Catalog {
	start := time.Now()

	body, err := s.storage.GetFile(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			s.logger.Debug("catalog snapshot not found", "key", s.key)
		} else {
			s.logger.Error("failed to read catalog snapshot", "key", s.key, "error", err)
		}
		return domain.Catalog{}
	}
	defer body.Close()

	var snap snapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		s.logger.Error("failed to decode catalog snapshot", "key", s.key, "error", err)
		return domain.Catalog{}
	}
	if snap.Version != snapshotVersion {
		s.logger.Warn("unsupported catalog snapshot version", "key", s.key, "version", snap.Version)
		return domain.Catalog{}
	}

	s.logger.Debug("catalog snapshot read",
		"entries", len(snap.Entries),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return domain.Catalog(snap.Entries).Clone()
}

func (s *SnapshotStore) IsEmpty(ctx context.Context) bool {
	return s.ReadAll(ctx).IsEmpty()
}

func (s *SnapshotStore) ReplaceAll(ctx context.Context, catalog domain.Catalog) error {
	start := time.Now()

	if catalog.IsEmpty() {
		if err := s.storage.DeleteFile(ctx, s.key); err != nil && !errors.Is(err, ErrObjectNotFound) {
			s.logger.Error("failed to delete catalog snapshot", "key", s.key, "error", err)
			return domain.NewPersistenceError("replace catalog", err)
		}
		s.logger.Info("catalog snapshot deleted",
			"key", s.key,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	body, err := json.Marshal(snapshot{
		Version:   snapshotVersion,
		WrittenAt: time.Now().UTC(),
		Entries:   catalog.Clone(),
	})
	if err != nil {
		return domain.NewPersistenceError("replace catalog", fmt.Errorf("ошибка сериализации снапшота: %w", err))
	}

	if _, err := s.storage.UploadFile(ctx, s.key, bytes.NewReader(body), "application/json"); err != nil {
		s.logger.Error("failed to write catalog snapshot", "key", s.key, "error", err)
		return domain.NewPersistenceError("replace catalog", err)
	}

	s.logger.Info("catalog snapshot written",
		"key", s.key,
		"entries", len(catalog),
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
