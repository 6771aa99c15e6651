package catalogapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 32 << 20
)

// Config: параметры клиента внешнего API каталога
type Config struct {
	Mapping FieldMapping
	APIKey  string
	Timeout time.Duration
}

// Client выполняет один GET-запрос к API фотографий и маппит ответ в доменные записи.
// Повторов, бэкоффа и пагинации нет.
type Client struct {
	httpClient *http.Client
	mapping    FieldMapping
	apiKey     string
	logger     *slog.Logger
}

// NewClient создает новый экземпляр Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Mapping.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		mapping:    cfg.Mapping,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}, nil
}

// Endpoint возвращает адрес по умолчанию из таблицы провайдера
func (c *Client) Endpoint() string {
	return c.mapping.Endpoint
}

// FetchCatalog реализует ports.CatalogFetcher.
func (c *Client) FetchCatalog(ctx context.Context, endpoint string) ([]domain.CatalogEntry, error) {
	start := time.Now()

	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return nil, domain.NewNetworkError("fetch catalog", fmt.Errorf("ошибка создания HTTP-запроса: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("catalog request failed", "provider", c.mapping.Name, "error", err)
		return nil, domain.NewNetworkError("fetch catalog", fmt.Errorf("ошибка выполнения HTTP-запроса: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error("catalog API returned unexpected status",
			"provider", c.mapping.Name,
			"status", resp.StatusCode,
		)
		return nil, domain.NewNetworkError("fetch catalog", fmt.Errorf("API вернул статус %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewNetworkError("fetch catalog", fmt.Errorf("ошибка чтения тела ответа: %w", err))
	}

	result, err := c.mapping.Decode(body)
	if err != nil {
		c.logger.Error("failed to decode catalog", "provider", c.mapping.Name, "error", err)
		return nil, err
	}

	if result.Dropped > 0 {
		c.logger.Debug("dropped malformed catalog records", "provider", c.mapping.Name, "dropped", result.Dropped)
	}

	c.logger.Info("catalog fetched",
		"provider", c.mapping.Name,
		"entries", len(result.Entries),
		"dropped", result.Dropped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result.Entries, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	if endpoint == "" {
		endpoint = c.mapping.Endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" && c.mapping.APIKeyParam != "" {
		q := u.Query()
		q.Set(c.mapping.APIKeyParam, c.apiKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" && c.mapping.APIKeyHeader != "" {
		req.Header.Set(c.mapping.APIKeyHeader, c.mapping.APIKeyPrefix+c.apiKey)
	}
	return req, nil
}
