// upload.go — сервис загрузки файлов с дедупликацией по содержимому.
// Pipeline: отпечаток → поиск оригинала → ссылка на дубликат
// либо сохранение blob + регистрация оригинала.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/domain/model"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/storage"
)

// Prometheus-метрики загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_uploads_total",
		Help: "Общее количество загрузок по исходу (stored, deduplicated, error).",
	}, []string{"outcome"})
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_upload_bytes_total",
		Help: "Суммарный объём физически сохранённого содержимого.",
	})
)

// FingerprintComputer — вычисление отпечатка содержимого источника.
// Реализуется HashService.
type FingerprintComputer interface {
	ComputeFingerprint(ctx context.Context, src io.ReadSeeker) (string, error)
}

// Deduplicator — операции движка дедупликации, нужные загрузке.
// Реализуется DedupService.
type Deduplicator interface {
	FindOriginal(ctx context.Context, fingerprint string) (*model.FileRecord, error)
	RegisterOriginal(ctx context.Context, meta FileMeta, fingerprint, storageKey string) (*RegisterResult, error)
	CreateReference(ctx context.Context, original *model.FileRecord, meta FileMeta) (*model.FileRecord, error)
}

// UploadResult — результат загрузки файла.
type UploadResult struct {
	// Record — созданная запись (оригинал или ссылка)
	Record *model.FileRecord
	// Deduplicated — содержимое уже хранилось, создана ссылка
	Deduplicated bool
	// StorageSaved — байты, не сохранённые повторно (0 для оригинала)
	StorageSaved int64
}

// UploadService — сервис загрузки файлов.
type UploadService struct {
	hash   FingerprintComputer
	dedup  Deduplicator
	blobs  storage.BlobStore
	logger *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
func NewUploadService(
	hash FingerprintComputer,
	dedup Deduplicator,
	blobs storage.BlobStore,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		hash:   hash,
		dedup:  dedup,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет загружаемый файл с дедупликацией.
//
// Найденный по отпечатку оригинал превращает загрузку в создание
// ссылки: содержимое повторно не сохраняется. Иначе содержимое
// пишется в blob-хранилище и регистрируется оригинал. Проигрыш
// в гонке двух одновременных загрузок одинакового содержимого
// (RegisterResult.AlreadyExists) конвертируется в ссылку на
// победителя, только что сохранённый blob удаляется.
func (s *UploadService) Upload(ctx context.Context, src io.ReadSeeker, meta FileMeta) (*UploadResult, error) {
	fingerprint, err := s.hash.ComputeFingerprint(ctx, src)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	original, err := s.dedup.FindOriginal(ctx, fingerprint)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// Дубликат: содержимое уже хранится, создаём ссылку
	if original != nil {
		ref, err := s.dedup.CreateReference(ctx, original, meta)
		if err != nil {
			uploadsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		uploadsTotal.WithLabelValues("deduplicated").Inc()
		return &UploadResult{Record: ref, Deduplicated: true, StorageSaved: meta.SizeBytes}, nil
	}

	// Новое содержимое: сохраняем blob, затем регистрируем оригинал
	storageKey := newStorageKey(meta.OriginalName)
	written, err := s.blobs.Save(ctx, storageKey, src)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("сохранение содержимого: %w", err)
	}

	result, err := s.dedup.RegisterOriginal(ctx, meta, fingerprint, storageKey)
	if err != nil {
		// Запись не создана — убираем уже сохранённый blob
		s.discardBlob(ctx, storageKey)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if result.AlreadyExists {
		// Гонка: оригинал появился между FindOriginal и INSERT.
		// Наш blob лишний, загрузка становится ссылкой на победителя.
		s.discardBlob(ctx, storageKey)
		ref, err := s.dedup.CreateReference(ctx, result.Record, meta)
		if err != nil {
			uploadsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		uploadsTotal.WithLabelValues("deduplicated").Inc()
		return &UploadResult{Record: ref, Deduplicated: true, StorageSaved: meta.SizeBytes}, nil
	}

	uploadsTotal.WithLabelValues("stored").Inc()
	uploadBytesTotal.Add(float64(written))

	s.logger.Info("Файл сохранён",
		slog.String("file_id", result.Record.ID),
		slog.String("storage_key", storageKey),
		slog.Int64("size", written),
	)

	return &UploadResult{Record: result.Record}, nil
}

// discardBlob удаляет blob, оставшийся без записи.
// Ошибка удаления оставляет осиротевший blob: логируется,
// автоматически не повторяется.
func (s *UploadService) discardBlob(ctx context.Context, storageKey string) {
	if err := s.blobs.Delete(ctx, storageKey); err != nil {
		s.logger.Error("Не удалось удалить лишний blob (осиротевший blob)",
			slog.String("storage_key", storageKey),
			slog.String("error", err.Error()),
		)
	}
}

// newStorageKey генерирует непрозрачный ключ физического содержимого.
// Расширение исходного имени сохраняется для удобства обслуживания
// хранилища, семантической нагрузки не несёт.
func newStorageKey(originalName string) string {
	return "uploads/" + uuid.New().String() + filepath.Ext(originalName)
}
