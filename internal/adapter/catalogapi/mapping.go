package catalogapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

// FieldMapping: таблица соответствия полей JSON конкретного провайдера полям CatalogEntry.
// Значения: пути gjson ("user.name", "urls.full"); пустой путь означает, что поле не заполняется.
type FieldMapping struct {
	Name         string `yaml:"name"`
	Base         string `yaml:"base,omitempty"`
	Endpoint     string `yaml:"endpoint"`
	Items        string `yaml:"items"`
	ID           string `yaml:"id"`
	Attribution  string `yaml:"attribution"`
	Width        string `yaml:"width"`
	Height       string `yaml:"height"`
	SourcePage   string `yaml:"source_page"`
	PreviewImage string `yaml:"preview_image"`
	FullImage    string `yaml:"full_image"`

	// Способ передачи ключа API: query-параметр или заголовок с префиксом
	APIKeyParam  string `yaml:"api_key_param"`
	APIKeyHeader string `yaml:"api_key_header"`
	APIKeyPrefix string `yaml:"api_key_prefix"`
}

// Встроенные таблицы для провайдеров, встречавшихся у приложения
var presets = map[string]FieldMapping{
	"picsum": {
		Name:        "picsum",
		Endpoint:    "https://picsum.photos/v2/list",
		ID:          "id",
		Attribution: "author",
		Width:       "width",
		Height:      "height",
		SourcePage:  "url",
		FullImage:   "download_url",
	},
	"pixabay": {
		Name:         "pixabay",
		Endpoint:     "https://pixabay.com/api/",
		Items:        "hits",
		ID:           "id",
		Attribution:  "user",
		Width:        "imageWidth",
		Height:       "imageHeight",
		SourcePage:   "pageURL",
		PreviewImage: "previewURL",
		FullImage:    "largeImageURL",
		APIKeyParam:  "key",
	},
	"unsplash": {
		Name:         "unsplash",
		Endpoint:     "https://api.unsplash.com/photos",
		Attribution:  "user.name",
		Width:        "width",
		Height:       "height",
		SourcePage:   "links.html",
		PreviewImage: "urls.small",
		FullImage:    "urls.full",
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Client-ID ",
	},
}

// Preset возвращает встроенную таблицу по имени провайдера
func Preset(name string) (FieldMapping, error) {
	m, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return FieldMapping{}, fmt.Errorf("неизвестный провайдер каталога %q", name)
	}
	return m, nil
}

// LoadMappingFile читает таблицу полей из YAML-файла.
// Если указан base, незаполненные поля наследуются от встроенной таблицы.
func LoadMappingFile(path string) (FieldMapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FieldMapping{}, fmt.Errorf("ошибка чтения файла маппинга %s: %w", path, err)
	}
	return ParseMapping(raw)
}

// ParseMapping разбирает YAML-описание таблицы полей
func ParseMapping(raw []byte) (FieldMapping, error) {
	var m FieldMapping
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return FieldMapping{}, fmt.Errorf("ошибка разбора YAML маппинга: %w", err)
	}
	if m.Base != "" {
		base, err := Preset(m.Base)
		if err != nil {
			return FieldMapping{}, err
		}
		m = m.inherit(base)
	}
	if err := m.Validate(); err != nil {
		return FieldMapping{}, err
	}
	return m, nil
}

// Validate проверяет, что таблица пригодна для декодирования
func (m FieldMapping) Validate() error {
	if m.FullImage == "" {
		return fmt.Errorf("маппинг %q: не задан путь full_image", m.Name)
	}
	if m.APIKeyParam != "" && m.APIKeyHeader != "" {
		return fmt.Errorf("маппинг %q: ключ API передаётся либо параметром, либо заголовком", m.Name)
	}
	return nil
}

func (m FieldMapping) inherit(base FieldMapping) FieldMapping {
	pick := func(v, def string) string {
		if v != "" {
			return v
		}
		return def
	}
	if m.Name == "" {
		m.Name = base.Name
	}
	m.Endpoint = pick(m.Endpoint, base.Endpoint)
	m.Items = pick(m.Items, base.Items)
	m.ID = pick(m.ID, base.ID)
	m.Attribution = pick(m.Attribution, base.Attribution)
	m.Width = pick(m.Width, base.Width)
	m.Height = pick(m.Height, base.Height)
	m.SourcePage = pick(m.SourcePage, base.SourcePage)
	m.PreviewImage = pick(m.PreviewImage, base.PreviewImage)
	m.FullImage = pick(m.FullImage, base.FullImage)
	if m.APIKeyParam == "" && m.APIKeyHeader == "" {
		m.APIKeyParam = base.APIKeyParam
		m.APIKeyHeader = base.APIKeyHeader
		m.APIKeyPrefix = pick(m.APIKeyPrefix, base.APIKeyPrefix)
	}
	return m
}

// DecodeResult: результат декодирования ответа: валидные записи и число отброшенных.
type DecodeResult struct {
	Entries []domain.CatalogEntry
	Dropped int
}

// Decode разбирает тело ответа провайдера. Ошибка возвращается только если тело целиком
// не является JSON или по пути items нет массива; битые записи отбрасываются.
func (m FieldMapping) Decode(body []byte) (DecodeResult, error) {
	if !gjson.ValidBytes(body) {
		return DecodeResult{}, domain.NewDecodeError("decode catalog", fmt.Errorf("тело ответа не является JSON"))
	}

	items := gjson.ParseBytes(body)
	if m.Items != "" {
		items = items.Get(m.Items)
	}
	if !items.IsArray() {
		return DecodeResult{}, domain.NewDecodeError("decode catalog", fmt.Errorf("по пути %q нет массива записей", m.Items))
	}

	result := DecodeResult{Entries: []domain.CatalogEntry{}}
	seen := make(map[string]struct{})

	items.ForEach(func(_, record gjson.Result) bool {
		entry, ok := m.decodeRecord(record)
		if !ok {
			result.Dropped++
			return true
		}
		if _, dup := seen[entry.ID.String()]; dup {
			result.Dropped++
			return true
		}
		seen[entry.ID.String()] = struct{}{}
		entry.Position = len(result.Entries)
		result.Entries = append(result.Entries, entry)
		return true
	})

	return result, nil
}

func (m FieldMapping) decodeRecord(record gjson.Result) (domain.CatalogEntry, bool) {
	if !record.IsObject() {
		return domain.CatalogEntry{}, false
	}

	full := record.Get(m.FullImage)
	if full.Type != gjson.String {
		return domain.CatalogEntry{}, false
	}
	fullURL := strings.TrimSpace(full.Str)
	if err := domain.ValidateImageURL(fullURL); err != nil {
		return domain.CatalogEntry{}, false
	}

	entry := domain.CatalogEntry{
		SourceID:        m.intField(record, m.ID),
		AttributionName: m.stringField(record, m.Attribution),
		Width:           m.dimension(record, m.Width),
		Height:          m.dimension(record, m.Height),
		SourcePageURL:   m.stringField(record, m.SourcePage),
		PreviewImageURL: m.stringField(record, m.PreviewImage),
		FullImageURL:    fullURL,
	}
	entry.ID = domain.EntryKey(entry.SourceID, entry.FullImageURL)
	return entry, true
}

func (m FieldMapping) stringField(record gjson.Result, path string) *string {
	if path == "" {
		return nil
	}
	v := record.Get(path)
	if v.Type != gjson.String || v.Str == "" {
		return nil
	}
	s := v.Str
	return &s
}

func (m FieldMapping) intField(record gjson.Result, path string) *int64 {
	if path == "" {
		return nil
	}
	v := record.Get(path)
	switch v.Type {
	case gjson.Number:
		if v.Num != float64(int64(v.Num)) {
			return nil
		}
		n := int64(v.Num)
		return &n
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

func (m FieldMapping) dimension(record gjson.Result, path string) int {
	n := m.intField(record, path)
	if n == nil || *n < 0 {
		return 0
	}
	return int(*n)
}
