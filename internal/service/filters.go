// filters.go — валидация и композиция фильтров поиска файлов.
// Фильтры проверяются целиком до применения: одно некорректное поле
// отклоняет весь набор, частичное применение недопустимо.
package service

import (
	"fmt"
	"time"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/repository"
)

// Допустимые форматы временных меток фильтров (ISO 8601).
var filterTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// SearchFilters — необязательные предикаты поиска файлов.
// nil-поле (или пустой список) означает, что фильтр не применяется.
// Временные метки принимаются строками в ISO 8601 и разбираются
// при валидации.
type SearchFilters struct {
	// Search — подстрока имени файла (case-insensitive)
	Search *string
	// FileTypes — допустимые MIME-типы
	FileTypes []string
	// MinSize — минимальный размер файла в байтах
	MinSize *int64
	// MaxSize — максимальный размер файла в байтах
	MaxSize *int64
	// StartDate — нижняя граница времени загрузки (ISO 8601)
	StartDate *string
	// EndDate — верхняя граница времени загрузки (ISO 8601)
	EndDate *string
}

// Validate проверяет весь набор фильтров.
// Возвращает ErrSearchValidation с человекочитаемой причиной
// при первом нарушении: отрицательные размеры, min_size > max_size,
// неразбираемые даты, start_date позже end_date.
func (f *SearchFilters) Validate() error {
	if f.MinSize != nil && *f.MinSize < 0 {
		return fmt.Errorf("%w: min_size должен быть неотрицательным числом", ErrSearchValidation)
	}
	if f.MaxSize != nil && *f.MaxSize < 0 {
		return fmt.Errorf("%w: max_size должен быть неотрицательным числом", ErrSearchValidation)
	}
	if f.MinSize != nil && f.MaxSize != nil && *f.MinSize > *f.MaxSize {
		return fmt.Errorf("%w: min_size не может быть больше max_size", ErrSearchValidation)
	}

	var start, end *time.Time
	if f.StartDate != nil {
		t, err := parseFilterTime(*f.StartDate)
		if err != nil {
			return fmt.Errorf("%w: некорректный формат start_date: %q, ожидается ISO 8601 (например, 2025-11-06T10:30:00Z)",
				ErrSearchValidation, *f.StartDate)
		}
		start = &t
	}
	if f.EndDate != nil {
		t, err := parseFilterTime(*f.EndDate)
		if err != nil {
			return fmt.Errorf("%w: некорректный формат end_date: %q, ожидается ISO 8601 (например, 2025-11-06T10:30:00Z)",
				ErrSearchValidation, *f.EndDate)
		}
		end = &t
	}
	if start != nil && end != nil && start.After(*end) {
		return fmt.Errorf("%w: start_date не может быть позже end_date", ErrSearchValidation)
	}

	return nil
}

// Apply накладывает валидированные фильтры на параметры поиска.
// Предикаты конъюнктивны и применяются в фиксированном порядке:
// подстрока имени, MIME-типы, размеры, даты. Пагинацию и сортировку
// base-параметров Apply не трогает.
func (f *SearchFilters) Apply(base repository.SearchParams) (repository.SearchParams, error) {
	if err := f.Validate(); err != nil {
		return base, err
	}

	if f.Search != nil && *f.Search != "" {
		base.Search = f.Search
	}
	if len(f.FileTypes) > 0 {
		base.FileTypes = f.FileTypes
	}
	if f.MinSize != nil {
		base.MinSize = f.MinSize
	}
	if f.MaxSize != nil {
		base.MaxSize = f.MaxSize
	}
	// Даты уже прошли валидацию, разбор не может не удаться
	if f.StartDate != nil {
		t, err := parseFilterTime(*f.StartDate)
		if err != nil {
			return base, fmt.Errorf("%w: %v", ErrSearchValidation, err)
		}
		base.UploadedAfter = &t
	}
	if f.EndDate != nil {
		t, err := parseFilterTime(*f.EndDate)
		if err != nil {
			return base, fmt.Errorf("%w: %v", ErrSearchValidation, err)
		}
		base.UploadedBefore = &t
	}

	return base, nil
}

// parseFilterTime разбирает временную метку в одном из допустимых
// форматов ISO 8601. Метки без часового пояса трактуются как UTC.
func parseFilterTime(value string) (time.Time, error) {
	for _, layout := range filterTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("неразбираемая временная метка %q", value)
}
