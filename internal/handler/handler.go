package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/GoArmGo/PhotoViewer/internal/core/ports"
	"github.com/GoArmGo/PhotoViewer/internal/domain"
	"github.com/GoArmGo/PhotoViewer/internal/imagecache"
	"github.com/GoArmGo/PhotoViewer/internal/messaging/payloads"
	"github.com/GoArmGo/PhotoViewer/internal/viewmodel"
)

// CatalogView — то, что обработчикам нужно от модели каталога
type CatalogView interface {
	Snapshot() viewmodel.Snapshot
	CurrentItems() domain.Catalog
	Refresh(ctx context.Context) <-chan viewmodel.Snapshot
}

// ImageSource отдаёт байты изображения по URL
type ImageSource interface {
	Get(ctx context.Context, url string) (*imagecache.Image, error)
}

// CatalogHandler — обработчик HTTP-запросов к каталогу.
type CatalogHandler struct {
	view      CatalogView
	images    ImageSource
	publisher ports.RefreshRequestPublisher
	logger    *slog.Logger
}

// NewCatalogHandler создаёт новый экземпляр CatalogHandler.
// publisher может быть nil: тогда обновление выполняется в процессе.
func NewCatalogHandler(
	view CatalogView,
	images ImageSource,
	publisher ports.RefreshRequestPublisher,
	logger *slog.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		view:      view,
		images:    images,
		publisher: publisher,
		logger:    logger,
	}
}

// respondWithJSON — отправляет JSON-ответ клиенту.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}, logger *slog.Logger) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		logger.Error("failed to marshal JSON response", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err = w.Write(response); err != nil {
		logger.Error("failed to write HTTP response", "error", err)
	}
}

// respondWithError — отправляет JSON-ответ с ошибкой.
func respondWithError(w http.ResponseWriter, code int, message string, logger *slog.Logger) {
	respondWithJSON(w, code, map[string]string{"error": message}, logger)
}

// GetCatalog — текущий срез каталога со статусом.
func (h *CatalogHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	snap := h.view.Snapshot()
	respondWithJSON(w, http.StatusOK, snap, h.logger)
}

// RefreshCatalog — запускает обновление. С ?wait=true дожидается результата.
func (h *CatalogHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	if wait {
		select {
		case snap := <-h.view.Refresh(r.Context()):
			respondWithJSON(w, http.StatusOK, snap, h.logger)
		case <-r.Context().Done():
			h.logger.Warn("refresh wait cancelled", "error", r.Context().Err())
			respondWithError(w, http.StatusGatewayTimeout, "Обновление не завершилось вовремя", h.logger)
		}
		return
	}

	if h.publisher != nil {
		payload := payloads.RefreshRequestPayload{Reason: "http", RequestedAt: time.Now().UTC()}
		err := h.publisher.PublishRefreshRequest(r.Context(), payload)
		if err == nil {
			respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Запрос на обновление поставлен в очередь"}, h.logger)
			return
		}
		h.logger.Error("failed to publish refresh request, refreshing in process", "error", err)
	}

	h.view.Refresh(r.Context())
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Обновление запущено"}, h.logger)
}

func (h *CatalogHandler) findEntry(w http.ResponseWriter, r *http.Request) (domain.CatalogEntry, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("invalid entry id", "id", idStr, "error", err)
		respondWithError(w, http.StatusBadRequest, "Некорректный id", h.logger)
		return domain.CatalogEntry{}, false
	}

	entry, ok := h.view.CurrentItems().FindByID(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "Запись не найдена", h.logger)
		return domain.CatalogEntry{}, false
	}
	return entry, true
}

// GetEntry — детальная информация о записи каталога.
func (h *CatalogHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.findEntry(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, entry, h.logger)
}

// GetEntryImage — байты изображения через кэш. variant=preview (по умолчанию) или full.
func (h *CatalogHandler) GetEntryImage(w http.ResponseWriter, r *http.Request) {
	variant := r.URL.Query().Get("variant")
	if variant == "" {
		variant = "preview"
	}
	if variant != "preview" && variant != "full" {
		respondWithError(w, http.StatusBadRequest, "variant должен быть preview или full", h.logger)
		return
	}

	entry, ok := h.findEntry(w, r)
	if !ok {
		return
	}

	url := entry.FullImageURL
	if variant == "preview" {
		url = entry.PreviewOrFull()
	}

	img, err := h.images.Get(r.Context(), url)
	if err != nil {
		h.logger.Error("failed to load image", "id", entry.ID, "variant", variant, "error", err)
		if errors.Is(err, imagecache.ErrUpstream) {
			respondWithError(w, http.StatusBadGateway, "Не удалось загрузить изображение", h.logger)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Ошибка кэша изображений", h.logger)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Image-Source", img.Source)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img.Data); err != nil {
		h.logger.Error("failed to write image response", "error", err)
	}
}

// Healthz — проверка живости процесса.
func (h *CatalogHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}
