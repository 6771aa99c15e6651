package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMemoryTTL   = 24 * time.Hour
	defaultDiskTTL     = 30 * 24 * time.Hour
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxBytes    = 50 << 20
)

// ErrUpstream: изображение не удалось получить с исходного хоста
var ErrUpstream = errors.New("image upstream failure")

// Источник, из которого отдано изображение
const (
	SourceMemory  = "memory"
	SourceDisk    = "disk"
	SourceNetwork = "network"
)

type Image struct {
	URL         string
	ContentType string
	Data        []byte
	Source      string
}

type Config struct {
	Dir         string
	MemoryTTL   time.Duration
	DiskTTL     time.Duration
	HTTPTimeout time.Duration
	MaxBytes    int64
}

// Cache: двухуровневый кэш изображений: память с коротким TTL и диск с длинным.
// Истечение срока на диске определяется по времени модификации файла.
type Cache struct {
	fs         afero.Fs
	dir        string
	memory     *gocache.Cache
	diskTTL    time.Duration
	maxBytes   int64
	httpClient *http.Client
	group      singleflight.Group
	logger     *slog.Logger
	now        func() time.Time
}

func New(fs afero.Fs, cfg Config, logger *slog.Logger) (*Cache, error) {
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = defaultMemoryTTL
	}
	if cfg.DiskTTL <= 0 {
		cfg.DiskTTL = defaultDiskTTL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if err := fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог кэша изображений %s: %w", cfg.Dir, err)
	}

	return &Cache{
		fs:         fs,
		dir:        cfg.Dir,
		memory:     gocache.New(cfg.MemoryTTL, cfg.MemoryTTL/2),
		diskTTL:    cfg.DiskTTL,
		maxBytes:   cfg.MaxBytes,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
		now:        time.Now,
	}, nil
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Get возвращает изображение, проверяя по очереди память, диск и сеть.
// Одновременные промахи по одному URL разделяют одну загрузку.
func (c *Cache) Get(ctx context.Context, url string) (*Image, error) {
	key := cacheKey(url)

	if v, ok := c.memory.Get(key); ok {
		img := *v.(*Image)
		img.Source = SourceMemory
		return &img, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if img, ok := c.readDisk(key, url); ok {
			c.memory.Set(key, img, gocache.DefaultExpiration)
			return img, nil
		}

		img, err := c.download(ctx, url)
		if err != nil {
			return nil, err
		}
		c.writeDisk(key, img)
		c.memory.Set(key, img, gocache.DefaultExpiration)
		return img, nil
	})
	if err != nil {
		return nil, err
	}

	img := *v.(*Image)
	return &img, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key)
}

func (c *Cache) expired(modTime time.Time) bool {
	return c.now().Sub(modTime) > c.diskTTL
}

func (c *Cache) readDisk(key, url string) (*Image, bool) {
	p := c.path(key)
	info, err := c.fs.Stat(p)
	if err != nil {
		return nil, false
	}
	if c.expired(info.ModTime()) {
		_ = c.fs.Remove(p)
		return nil, false
	}

	data, err := afero.ReadFile(c.fs, p)
	if err != nil {
		c.logger.Warn("failed to read cached image", "key", key, "error", err)
		return nil, false
	}
	return &Image{
		URL:         url,
		ContentType: http.DetectContentType(data),
		Data:        data,
		Source:      SourceDisk,
	}, true
}

// writeDisk пишет через временный файл, чтобы читатели не видели недописанный файл
func (c *Cache) writeDisk(key string, img *Image) {
	p := c.path(key)
	tmp := p + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, img.Data, 0o644); err != nil {
		c.logger.Warn("failed to write image to disk cache", "key", key, "error", err)
		return
	}
	if err := c.fs.Rename(tmp, p); err != nil {
		_ = c.fs.Remove(tmp)
		c.logger.Warn("failed to commit image to disk cache", "key", key, "error", err)
	}
}

func (c *Cache) download(ctx context.Context, url string) (*Image, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: некорректный URL %s: %v", ErrUpstream, url, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("image download failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: хост вернул статус %d для %s", ErrUpstream, resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения изображения: %v", ErrUpstream, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: изображение %s больше %d байт", ErrUpstream, url, c.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}

	c.logger.Debug("image downloaded",
		"url", url,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Image{URL: url, ContentType: contentType, Data: data, Source: SourceNetwork}, nil
}

// PurgeExpired удаляет с диска файлы с истёкшим сроком и возвращает их число
func (c *Cache) PurgeExpired() (int, error) {
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("ошибка чтения каталога кэша: %w", err)
	}

	removed := 0
	for _, info := range infos {
		if info.IsDir() || !c.expired(info.ModTime()) {
			continue
		}
		if err := c.fs.Remove(filepath.Join(c.dir, info.Name())); err != nil {
			c.logger.Warn("failed to remove expired image", "file", info.Name(), "error", err)
			continue
		}
		removed++
	}

	c.memory.DeleteExpired()
	if removed > 0 {
		c.logger.Info("expired images purged", "removed", removed)
	}
	return removed, nil
}

// MemoryItems возвращает число изображений в памяти
func (c *Cache) MemoryItems() int {
	return c.memory.ItemCount()
}
