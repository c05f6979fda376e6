// handler.go — основной обработчик API File Hub.
// Объединяет health и бизнес-обработчики, делегируя запросы
// в сервисный слой через узкие интерфейсы.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/domain/model"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/repository"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/service"
)

// Uploader — сервис загрузки файлов.
type Uploader interface {
	Upload(ctx context.Context, src io.ReadSeeker, meta service.FileMeta) (*service.UploadResult, error)
}

// Searcher — сервис поиска и получения метаданных.
type Searcher interface {
	Search(ctx context.Context, filters service.SearchFilters, base repository.SearchParams) (*service.SearchResult, error)
	GetFileMetadata(ctx context.Context, fileID string) (*model.FileRecord, error)
}

// Releaser — операции движка дедупликации над существующими записями.
type Releaser interface {
	Release(ctx context.Context, record *model.FileRecord) (model.DeletionOutcome, error)
	StorageSavings(ctx context.Context) (*model.SavingsReport, error)
}

// BlobOpener — чтение физического содержимого по ключу.
type BlobOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// APIHandler — основной обработчик API File Hub.
type APIHandler struct {
	health      *HealthHandler
	uploads     Uploader
	search      Searcher
	dedup       Releaser
	blobs       BlobOpener
	cache       *service.CacheService
	maxFileSize int64
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	uploads Uploader,
	search Searcher,
	dedup Releaser,
	blobs BlobOpener,
	cache *service.CacheService,
	maxFileSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:      health,
		uploads:     uploads,
		search:      search,
		dedup:       dedup,
		blobs:       blobs,
		cache:       cache,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- API-типы ответов ---

// fileResponse — сериализация FileRecord в API-ответах.
type fileResponse struct {
	ID                 string    `json:"id"`
	OriginalName       string    `json:"original_name"`
	ContentType        string    `json:"content_type"`
	SizeBytes          int64     `json:"size_bytes"`
	UploadedAt         time.Time `json:"uploaded_at"`
	ContentFingerprint string    `json:"content_fingerprint"`
	IsReference        bool      `json:"is_reference"`
	ReferenceCount     int       `json:"reference_count,omitempty"`
	OriginalID         *string   `json:"original_id,omitempty"`
}

// fileRecordToResponse конвертирует domain-модель в API-тип.
func fileRecordToResponse(f *model.FileRecord) fileResponse {
	return fileResponse{
		ID:                 f.ID,
		OriginalName:       f.OriginalName,
		ContentType:        f.ContentType,
		SizeBytes:          f.SizeBytes,
		UploadedAt:         f.UploadedAt,
		ContentFingerprint: f.ContentFingerprint,
		IsReference:        f.IsReference,
		ReferenceCount:     f.ReferenceCount,
		OriginalID:         f.OriginalID,
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults нормализует параметры пагинации из query string.
// По умолчанию limit=100, максимум 1000; offset >= 0.
func paginationDefaults(limitStr, offsetStr string) (limit, offset int) {
	limit = 100
	offset = 0

	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	if offsetStr != "" {
		if n, err := strconv.Atoi(offsetStr); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
