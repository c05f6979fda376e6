package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, storage_key, original_name, content_type, size_bytes,
	uploaded_at, content_fingerprint, reference_count, is_reference, original_id`

// SearchParams — параметры поиска файлов.
// Скалярные фильтры — указатели, nil = фильтр не применяется.
type SearchParams struct {
	// Search — подстрока имени файла (case-insensitive)
	Search *string
	// FileTypes — допустимые MIME-типы (пустой список = фильтр не применяется)
	FileTypes []string
	// MinSize — минимальный размер файла (байт)
	MinSize *int64
	// MaxSize — максимальный размер файла (байт)
	MaxSize *int64
	// UploadedAfter — файлы, загруженные не раньше указанного времени
	UploadedAfter *time.Time
	// UploadedBefore — файлы, загруженные не позже указанного времени
	UploadedBefore *time.Time
	// SortBy — поле сортировки: uploaded_at, original_name, size_bytes
	SortBy string
	// SortOrder — направление: asc, desc
	SortOrder string
	// Limit — количество результатов
	Limit int
	// Offset — смещение
	Offset int
}

// FileRepository — интерфейс доступа к записям файлов.
// Мутации счётчика ссылок атомарны на уровне строки (UPDATE ... RETURNING);
// составные операции (создание ссылки, release) собираются в транзакцию
// сервисным слоем через TxRunner.
type FileRepository interface {
	// Create вставляет новую запись (оригинал или ссылку).
	// Для оригинала при нарушении уникальности отпечатка возвращает ErrConflict.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает запись по UUID.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// GetByIDForUpdate возвращает запись по UUID с блокировкой строки (FOR UPDATE).
	// Используется внутри транзакций release для сериализации decrement-and-check.
	GetByIDForUpdate(ctx context.Context, id string) (*model.FileRecord, error)
	// FindOriginalByFingerprint возвращает оригинал с указанным отпечатком.
	// Ссылки не учитываются, даже если отпечаток совпадает.
	FindOriginalByFingerprint(ctx context.Context, fingerprint string) (*model.FileRecord, error)
	// IncrementRefCount атомарно увеличивает счётчик ссылок оригинала на 1.
	// Возвращает новое значение счётчика.
	IncrementRefCount(ctx context.Context, id string) (int, error)
	// DecrementRefCount атомарно уменьшает счётчик ссылок оригинала на 1.
	// Возвращает новое значение счётчика.
	DecrementRefCount(ctx context.Context, id string) (int, error)
	// Delete удаляет запись.
	Delete(ctx context.Context, id string) error
	// Search выполняет поиск записей по фильтрам.
	// Возвращает: список записей, общее количество, ошибка.
	Search(ctx context.Context, params SearchParams) ([]*model.FileRecord, int, error)
	// SavingsStats возвращает агрегат экономии места (без форматирования).
	SavingsStats(ctx context.Context) (*model.SavingsReport, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
// db может быть как пулом, так и транзакцией.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// Create вставляет запись файла.
func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (id, storage_key, original_name, content_type, size_bytes,
			uploaded_at, content_fingerprint, reference_count, is_reference, original_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		f.ID, f.StorageKey, f.OriginalName, f.ContentType, f.SizeBytes,
		f.UploadedAt, f.ContentFingerprint, f.ReferenceCount, f.IsReference, f.OriginalID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: оригинал с таким отпечатком уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

// GetByID возвращает запись по UUID или ErrNotFound.
func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByIDForUpdate возвращает запись по UUID, удерживая блокировку строки
// до конца текущей транзакции.
func (r *fileRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1 FOR UPDATE`, fileColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// FindOriginalByFingerprint возвращает оригинал по отпечатку содержимого.
// Частичный уникальный индекс гарантирует не более одной такой записи.
func (r *fileRepo) FindOriginalByFingerprint(ctx context.Context, fingerprint string) (*model.FileRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM files WHERE content_fingerprint = $1 AND NOT is_reference`,
		fileColumns,
	)
	return r.scanOne(r.db.QueryRow(ctx, query, fingerprint))
}

// scanOne сканирует одну запись файла из pgx.Row.
func (r *fileRepo) scanOne(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(
		&f.ID, &f.StorageKey, &f.OriginalName, &f.ContentType, &f.SizeBytes,
		&f.UploadedAt, &f.ContentFingerprint, &f.ReferenceCount, &f.IsReference, &f.OriginalID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return f, nil
}

// IncrementRefCount увеличивает счётчик ссылок оригинала.
// UPDATE берёт блокировку строки, поэтому конкурентные инкременты
// не теряют обновлений.
func (r *fileRepo) IncrementRefCount(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE files
		SET reference_count = reference_count + 1
		WHERE id = $1 AND NOT is_reference
		RETURNING reference_count`

	var count int
	if err := r.db.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка инкремента счётчика ссылок: %w", err)
	}
	return count, nil
}

// DecrementRefCount уменьшает счётчик ссылок оригинала.
func (r *fileRepo) DecrementRefCount(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE files
		SET reference_count = reference_count - 1
		WHERE id = $1 AND NOT is_reference
		RETURNING reference_count`

	var count int
	if err := r.db.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка декремента счётчика ссылок: %w", err)
	}
	return count, nil
}

// Delete удаляет запись файла.
// Для оригинала каскад БД удаляет и все его ссылки.
func (r *fileRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Search выполняет поиск записей с динамическими фильтрами, сортировкой и пагинацией.
// Возвращает (результаты, общее количество, ошибка).
func (r *fileRepo) Search(ctx context.Context, params SearchParams) ([]*model.FileRecord, int, error) {
	// Построение WHERE-условия
	where, args := buildSearchWhere(params, 1)
	argNum := len(args) + 1

	// Сортировка (безопасный whitelist)
	orderBy := buildOrderBy(params.SortBy, params.SortOrder)

	// Запрос данных с пагинацией
	dataQuery := fmt.Sprintf(
		`SELECT %s FROM files %s %s LIMIT $%d OFFSET $%d`,
		fileColumns, where, orderBy, argNum, argNum+1,
	)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка поиска файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.StorageKey, &f.OriginalName, &f.ContentType, &f.SizeBytes,
			&f.UploadedAt, &f.ContentFingerprint, &f.ReferenceCount, &f.IsReference, &f.OriginalID,
		); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	// Запрос общего количества (с теми же фильтрами, без LIMIT/OFFSET)
	countWhere, countArgs := buildSearchWhere(params, 1)
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM files %s`, countWhere)

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}

	return result, total, nil
}

// SavingsStats считает агрегат экономии места за счёт дедупликации.
// Экономия: sum(size_bytes * (reference_count - 1)) по оригиналам
// со счётчиком > 1. Форматирование байтов — на сервисном слое.
func (r *fileRepo) SavingsStats(ctx context.Context) (*model.SavingsReport, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT is_reference),
			COUNT(*) FILTER (WHERE is_reference),
			COALESCE(SUM(size_bytes * (reference_count - 1))
				FILTER (WHERE NOT is_reference AND reference_count > 1), 0)
		FROM files`

	report := &model.SavingsReport{}
	err := r.db.QueryRow(ctx, query).Scan(
		&report.TotalFiles, &report.UniqueFiles,
		&report.DuplicateReferences, &report.StorageSavedBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта экономии места: %w", err)
	}
	return report, nil
}

// buildSearchWhere строит WHERE-условие и аргументы для поиска файлов.
// startArg — номер первого $-параметра (для корректной нумерации).
// Порядок условий фиксирован: подстрока имени, типы, размеры, даты.
func buildSearchWhere(params SearchParams, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Фильтр по подстроке имени файла (case-insensitive ILIKE)
	if params.Search != nil && *params.Search != "" {
		conditions = append(conditions, fmt.Sprintf("original_name ILIKE $%d", argNum))
		args = append(args, "%"+*params.Search+"%")
		argNum++
	}

	// Фильтр по MIME-типам (вхождение в список)
	if len(params.FileTypes) > 0 {
		conditions = append(conditions, fmt.Sprintf("content_type = ANY($%d)", argNum))
		args = append(args, params.FileTypes)
		argNum++
	}

	// Фильтр по минимальному размеру
	if params.MinSize != nil {
		conditions = append(conditions, fmt.Sprintf("size_bytes >= $%d", argNum))
		args = append(args, *params.MinSize)
		argNum++
	}

	// Фильтр по максимальному размеру
	if params.MaxSize != nil {
		conditions = append(conditions, fmt.Sprintf("size_bytes <= $%d", argNum))
		args = append(args, *params.MaxSize)
		argNum++
	}

	// Фильтр по дате загрузки (после)
	if params.UploadedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("uploaded_at >= $%d", argNum))
		args = append(args, *params.UploadedAfter)
		argNum++
	}

	// Фильтр по дате загрузки (до)
	if params.UploadedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("uploaded_at <= $%d", argNum))
		args = append(args, *params.UploadedBefore)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// Поле сортировки по умолчанию.
const defaultSortColumn = "uploaded_at"

// buildOrderBy строит ORDER BY с безопасным whitelist полей.
// Предотвращает SQL-инъекции — только разрешённые значения.
func buildOrderBy(sortBy, sortOrder string) string {
	// Whitelist допустимых полей сортировки
	column := defaultSortColumn
	switch sortBy {
	case "original_name":
		column = "original_name"
	case "size_bytes":
		column = "size_bytes"
	case defaultSortColumn:
		column = defaultSortColumn
	}

	// Whitelist направлений сортировки
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s", column, direction)
}
