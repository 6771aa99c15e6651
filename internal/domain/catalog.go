package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// entryNamespace: пространство имён для детерминированных UUIDv5 записей каталога
var entryNamespace = uuid.MustParse("6f1d2c1e-8a4b-5c7d-9e0f-1a2b3c4d5e6f")

// CatalogEntry представляет одну запись каталога фотографий.
// ID: стабильный ключ хранилища, SourceID: идентификатор из внешнего API (может отсутствовать).
type CatalogEntry struct {
	ID              uuid.UUID `json:"id"`
	SourceID        *int64    `json:"source_id,omitempty"`
	Position        int       `json:"position"`
	AttributionName *string   `json:"attribution_name,omitempty"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	SourcePageURL   *string   `json:"source_page_url,omitempty"`
	PreviewImageURL *string   `json:"preview_image_url,omitempty"`
	FullImageURL    string    `json:"full_image_url"`
	RetrievedAt     time.Time `json:"retrieved_at"`
}

// EntryKey вычисляет стабильный ключ записи: по SourceID, если он есть, иначе по FullImageURL
func EntryKey(sourceID *int64, fullImageURL string) uuid.UUID {
	if sourceID != nil {
		return uuid.NewSHA1(entryNamespace, []byte("source:"+strconv.FormatInt(*sourceID, 10)))
	}
	return uuid.NewSHA1(entryNamespace, []byte("url:"+fullImageURL))
}

// ValidateImageURL проверяет, что ссылка на полное изображение пригодна для отображения.
func ValidateImageURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("пустой URL изображения")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL изображения %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("неподдерживаемая схема URL изображения %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("в URL изображения %q нет хоста", raw)
	}
	return nil
}

// Validate проверяет инварианты записи перед сохранением
func (e CatalogEntry) Validate() error {
	if err := ValidateImageURL(e.FullImageURL); err != nil {
		return err
	}
	if e.Width < 0 || e.Height < 0 {
		return fmt.Errorf("отрицательные размеры изображения %dx%d", e.Width, e.Height)
	}
	return nil
}

// PreviewOrFull возвращает ссылку для миниатюры, при её отсутствии: ссылку на полное изображение
func (e CatalogEntry) PreviewOrFull() string {
	if e.PreviewImageURL != nil && *e.PreviewImageURL != "" {
		return *e.PreviewImageURL
	}
	return e.FullImageURL
}

func (e CatalogEntry) sameContent(o CatalogEntry) bool {
	return e.ID == o.ID &&
		equalInt64Ptr(e.SourceID, o.SourceID) &&
		e.Position == o.Position &&
		equalStringPtr(e.AttributionName, o.AttributionName) &&
		e.Width == o.Width &&
		e.Height == o.Height &&
		equalStringPtr(e.SourcePageURL, o.SourcePageURL) &&
		equalStringPtr(e.PreviewImageURL, o.PreviewImageURL) &&
		e.FullImageURL == o.FullImageURL
}

// Catalog: упорядоченный набор записей, считающийся актуальным.
type Catalog []CatalogEntry

// IsEmpty сообщает, пуст ли каталог
func (c Catalog) IsEmpty() bool {
	return len(c) == 0
}

// Clone возвращает независимую копию каталога
func (c Catalog) Clone() Catalog {
	if c == nil {
		return Catalog{}
	}
	out := make(Catalog, len(c))
	copy(out, c)
	return out
}

// SameContent сравнивает каталоги поэлементно, без учёта RetrievedAt.
func (c Catalog) SameContent(other Catalog) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if !c[i].sameContent(other[i]) {
			return false
		}
	}
	return true
}

// FindByID ищет запись по ключу хранилища
func (c Catalog) FindByID(id uuid.UUID) (CatalogEntry, bool) {
	for _, e := range c {
		if e.ID == id {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// Stamp проставляет RetrievedAt всем записям и возвращает новый каталог
func (c Catalog) Stamp(at time.Time) Catalog {
	out := c.Clone()
	for i := range out {
		out[i].RetrievedAt = at
	}
	return out
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
