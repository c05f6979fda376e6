// Пакет model — доменные модели File Hub.
// FileRecord — маппинг таблицы files (оригиналы и ссылки-дубликаты).
package model

import "time"

// FileRecord — запись файла в таблице files.
// Запись существует в двух вариантах: оригинал (владеет физическим
// содержимым, StorageKey задан) и ссылка (дубликат по содержимому,
// StorageKey отсутствует, OriginalID указывает на оригинал).
type FileRecord struct {
	// ID — UUID записи (задаётся при создании)
	ID string
	// StorageKey — ключ физического содержимого в blob-хранилище (только у оригиналов)
	StorageKey *string
	// OriginalName — имя файла при загрузке (не уникально, не нормализуется)
	OriginalName string
	// ContentType — заявленный MIME-тип файла
	ContentType string
	// SizeBytes — размер содержимого в байтах
	SizeBytes int64
	// UploadedAt — время загрузки
	UploadedAt time.Time
	// ContentFingerprint — SHA-256 отпечаток содержимого (hex, 64 символа).
	// У ссылки всегда совпадает с отпечатком её оригинала.
	ContentFingerprint string
	// ReferenceCount — счётчик ссылок. У оригинала начинается с 1 и растёт
	// с каждым дубликатом; у ссылки всегда 0 и не используется.
	ReferenceCount int
	// IsReference — признак ссылки на оригинал
	IsReference bool
	// OriginalID — UUID оригинала (только у ссылок)
	OriginalID *string
}

// IsOriginal сообщает, владеет ли запись физическим содержимым.
func (f *FileRecord) IsOriginal() bool {
	return !f.IsReference
}

// DeletionOutcome — результат удаления записи (state machine release).
type DeletionOutcome string

// Возможные исходы удаления.
const (
	// OutcomeReferenceRemoved — удалена ссылка, счётчик оригинала уменьшен,
	// физическое содержимое не тронуто.
	OutcomeReferenceRemoved DeletionOutcome = "reference_removed"
	// OutcomeRetainedPendingReferences — оригинал сохранён: на него ещё
	// указывают ссылки, уменьшен только счётчик.
	OutcomeRetainedPendingReferences DeletionOutcome = "retained_pending_references"
	// OutcomeFullyDeleted — удалены и запись, и физическое содержимое.
	OutcomeFullyDeleted DeletionOutcome = "fully_deleted"
)

// SavingsReport — отчёт об экономии места за счёт дедупликации.
type SavingsReport struct {
	// TotalFiles — общее количество записей (оригиналы + ссылки)
	TotalFiles int
	// UniqueFiles — количество оригиналов
	UniqueFiles int
	// DuplicateReferences — количество ссылок
	DuplicateReferences int
	// StorageSavedBytes — сэкономленные байты: sum(size * (ref_count - 1))
	// по оригиналам с ref_count > 1
	StorageSavedBytes int64
	// StorageSavedReadable — то же значение в человекочитаемом виде ("1.50 KB")
	StorageSavedReadable string
}
