// dedup.go — движок дедупликации по содержимому.
// Оркестрирует поиск оригинала по отпечатку, создание ссылок,
// state machine удаления и подсчёт экономии места.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/domain/model"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/repository"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/storage"
)

// Prometheus-метрики дедупликации.
var (
	dedupHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_dedup_hits_total",
		Help: "Общее количество загрузок, распознанных как дубликаты.",
	})
	dedupBytesSavedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fh_dedup_bytes_saved_total",
		Help: "Суммарный объём содержимого, не сохранённого повторно благодаря дедупликации.",
	})
	releaseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fh_release_total",
		Help: "Количество операций удаления по исходам state machine.",
	}, []string{"outcome"})
)

// FileMeta — метаданные загружаемого файла.
type FileMeta struct {
	// OriginalName — имя файла при загрузке
	OriginalName string
	// ContentType — MIME-тип файла
	ContentType string
	// SizeBytes — размер содержимого в байтах
	SizeBytes int64
}

// RegisterResult — результат регистрации оригинала.
// AlreadyExists=true означает проигрыш в гонке двух одновременных
// загрузок одинакового содержимого: Record указывает на победителя,
// и вызывающий код конвертирует загрузку в создание ссылки.
type RegisterResult struct {
	Record        *model.FileRecord
	AlreadyExists bool
}

// DedupService — движок дедупликации.
// Составные мутации (создание ссылки, release) выполняются в одной
// транзакции; уникальность оригинала на отпечаток обеспечивает
// частичный уникальный индекс таблицы files.
type DedupService struct {
	files    repository.FileRepository
	txRunner *repository.TxRunner
	blobs    storage.BlobStore
	logger   *slog.Logger
}

// NewDedupService создаёт движок дедупликации.
func NewDedupService(
	files repository.FileRepository,
	txRunner *repository.TxRunner,
	blobs storage.BlobStore,
	logger *slog.Logger,
) *DedupService {
	return &DedupService{
		files:    files,
		txRunner: txRunner,
		blobs:    blobs,
		logger:   logger.With(slog.String("component", "dedup_service")),
	}
}

// FindOriginal возвращает оригинал с указанным отпечатком содержимого
// или nil, если такого оригинала нет. Ссылки не учитываются.
// Некорректный отпечаток — ErrInvalidFingerprint; недоступность
// хранилища записей — ErrLookup (вызывающий код может трактовать
// как отсутствие дубликата).
func (s *DedupService) FindOriginal(ctx context.Context, fingerprint string) (*model.FileRecord, error) {
	if err := ValidateFingerprint(fingerprint); err != nil {
		return nil, err
	}

	record, err := s.files.FindOriginalByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	return record, nil
}

// RegisterOriginal создаёт новый оригинал со счётчиком ссылок 1.
// Уникальность отпечатка заранее не перепроверяется: гонку двух
// одновременных загрузок закрывает уникальный индекс, и проигравший
// получает RegisterResult{AlreadyExists: true} с записью победителя.
func (s *DedupService) RegisterOriginal(ctx context.Context, meta FileMeta, fingerprint, storageKey string) (*RegisterResult, error) {
	if err := ValidateFingerprint(fingerprint); err != nil {
		return nil, err
	}
	if meta.OriginalName == "" {
		return nil, fmt.Errorf("%w: имя файла не задано", ErrInvalidOperation)
	}
	if meta.SizeBytes < 0 {
		return nil, fmt.Errorf("%w: отрицательный размер файла", ErrInvalidOperation)
	}

	record := &model.FileRecord{
		ID:                 uuid.New().String(),
		StorageKey:         &storageKey,
		OriginalName:       meta.OriginalName,
		ContentType:        meta.ContentType,
		SizeBytes:          meta.SizeBytes,
		UploadedAt:         time.Now().UTC(),
		ContentFingerprint: fingerprint,
		ReferenceCount:     1,
		IsReference:        false,
	}

	if err := s.files.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			winner, werr := s.files.FindOriginalByFingerprint(ctx, fingerprint)
			if werr != nil {
				return nil, fmt.Errorf("%w: оригинал-победитель не найден после конфликта: %v", ErrLookup, werr)
			}
			s.logger.Info("Проигрыш в гонке регистрации оригинала",
				slog.String("fingerprint", fingerprint),
				slog.String("winner_id", winner.ID),
			)
			return &RegisterResult{Record: winner, AlreadyExists: true}, nil
		}
		return nil, fmt.Errorf("ошибка регистрации оригинала: %w", err)
	}

	return &RegisterResult{Record: record}, nil
}

// CreateReference создаёт ссылку на оригинал для загрузки-дубликата.
// Инкремент счётчика оригинала и вставка ссылки выполняются единым
// атомарным блоком: частичный результат (потерянная или лишняя
// ссылка) недопустим, любая ошибка откатывает обе мутации.
func (s *DedupService) CreateReference(ctx context.Context, original *model.FileRecord, meta FileMeta) (*model.FileRecord, error) {
	if original == nil {
		return nil, fmt.Errorf("%w: оригинал не задан", ErrInvalidOperation)
	}
	if original.IsReference {
		return nil, fmt.Errorf("%w: нельзя ссылаться на ссылку", ErrInvalidOperation)
	}
	if meta.OriginalName == "" {
		return nil, fmt.Errorf("%w: имя файла не задано", ErrInvalidOperation)
	}
	if meta.SizeBytes < 0 {
		return nil, fmt.Errorf("%w: отрицательный размер файла", ErrInvalidOperation)
	}

	ref := &model.FileRecord{
		ID:                 uuid.New().String(),
		OriginalName:       meta.OriginalName,
		ContentType:        meta.ContentType,
		SizeBytes:          meta.SizeBytes,
		UploadedAt:         time.Now().UTC(),
		ContentFingerprint: original.ContentFingerprint,
		ReferenceCount:     0,
		IsReference:        true,
		OriginalID:         &original.ID,
	}

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewFileRepository(tx)
		// UPDATE счётчика берёт блокировку строки оригинала до конца транзакции
		if _, err := repo.IncrementRefCount(ctx, original.ID); err != nil {
			return err
		}
		return repo.Create(ctx, ref)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceCreation, err)
	}

	dedupHitsTotal.Inc()
	dedupBytesSavedTotal.Add(float64(meta.SizeBytes))

	s.logger.Info("Создана ссылка на оригинал",
		slog.String("reference_id", ref.ID),
		slog.String("original_id", original.ID),
		slog.Int64("size", meta.SizeBytes),
	)

	return ref, nil
}

// Release удаляет запись по state machine жизненного цикла:
//
//   - ссылка: строка удаляется, счётчик оригинала уменьшается,
//     содержимое не тронуто — OutcomeReferenceRemoved;
//   - оригинал со счётчиком > 1: только декремент, физическое
//     удаление откладывается — OutcomeRetainedPendingReferences;
//   - оригинал со счётчиком <= 1: запись удаляется, после коммита
//     удаляется содержимое — OutcomeFullyDeleted.
//
// Запись перечитывается под блокировкой строки внутри транзакции:
// decrement-and-check — единый атомарный блок, гонка с параллельным
// созданием ссылки на тот же оригинал исключена.
// Неудачное удаление содержимого после коммита оставляет осиротевший
// blob: он логируется и не повторяется автоматически.
func (s *DedupService) Release(ctx context.Context, record *model.FileRecord) (model.DeletionOutcome, error) {
	if record == nil {
		return "", fmt.Errorf("%w: запись не задана", ErrInvalidOperation)
	}

	var outcome model.DeletionOutcome
	var orphanKey *string

	err := s.txRunner.RunInTx(ctx, func(tx pgx.Tx) error {
		repo := repository.NewFileRepository(tx)

		fresh, err := repo.GetByIDForUpdate(ctx, record.ID)
		if err != nil {
			return err
		}

		if fresh.IsReference {
			if fresh.OriginalID == nil {
				return fmt.Errorf("%w: ссылка %s без original_id", ErrInvalidOperation, fresh.ID)
			}
			// Сначала забираем строку ссылки, затем уменьшаем счётчик:
			// порядок блокировок совпадает с CreateReference (оригинал
			// блокируется последним только здесь, ссылку он не трогает).
			if err := repo.Delete(ctx, fresh.ID); err != nil {
				return err
			}
			if _, err := repo.DecrementRefCount(ctx, *fresh.OriginalID); err != nil {
				return err
			}
			outcome = model.OutcomeReferenceRemoved
			return nil
		}

		if fresh.ReferenceCount > 1 {
			if _, err := repo.DecrementRefCount(ctx, fresh.ID); err != nil {
				return err
			}
			outcome = model.OutcomeRetainedPendingReferences
			return nil
		}

		// Последняя ссылка на содержимое: запись удаляется,
		// blob — после фиксации транзакции.
		if err := repo.Delete(ctx, fresh.ID); err != nil {
			return err
		}
		orphanKey = fresh.StorageKey
		outcome = model.OutcomeFullyDeleted
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		if errors.Is(err, ErrInvalidOperation) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrDeletion, err)
	}

	releaseTotal.WithLabelValues(string(outcome)).Inc()

	if outcome == model.OutcomeFullyDeleted && orphanKey != nil {
		if err := s.blobs.Delete(ctx, *orphanKey); err != nil {
			s.logger.Error("Запись удалена, но содержимое осталось (осиротевший blob)",
				slog.String("file_id", record.ID),
				slog.String("storage_key", *orphanKey),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Запись удалена",
		slog.String("file_id", record.ID),
		slog.String("outcome", string(outcome)),
	)

	return outcome, nil
}

// StorageSavings возвращает отчёт об экономии места: количество записей
// по видам и суммарный объём содержимого, не сохранённого повторно.
// Чистое чтение без побочных эффектов; без дубликатов экономия нулевая.
func (s *DedupService) StorageSavings(ctx context.Context) (*model.SavingsReport, error) {
	report, err := s.files.SavingsStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("подсчёт экономии места: %w", err)
	}
	report.StorageSavedReadable = FormatBytes(report.StorageSavedBytes)
	return report, nil
}

// FormatBytes форматирует количество байт в человекочитаемую строку
// с двоичными единицами (1024) и двумя знаками после запятой.
// Ноль форматируется как "0 B".
func FormatBytes(size int64) string {
	if size == 0 {
		return "0 B"
	}

	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", value, units[unit])
}
