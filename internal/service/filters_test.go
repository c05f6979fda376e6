package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/repository"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }

// --- Тесты Validate ---

// TestSearchFilters_Validate_Empty проверяет, что пустой набор
// фильтров валиден.
func TestSearchFilters_Validate_Empty(t *testing.T) {
	f := SearchFilters{}
	if err := f.Validate(); err != nil {
		t.Errorf("пустые фильтры отклонены: %v", err)
	}
}

// TestSearchFilters_Validate_NegativeSize проверяет отклонение
// отрицательных размеров.
func TestSearchFilters_Validate_NegativeSize(t *testing.T) {
	f := SearchFilters{MinSize: int64Ptr(-1)}
	if err := f.Validate(); !errors.Is(err, ErrSearchValidation) {
		t.Errorf("ошибка = %v, ожидалась ErrSearchValidation", err)
	}

	f = SearchFilters{MaxSize: int64Ptr(-5)}
	if err := f.Validate(); !errors.Is(err, ErrSearchValidation) {
		t.Errorf("ошибка = %v, ожидалась ErrSearchValidation", err)
	}
}

// TestSearchFilters_Validate_MinGreaterThanMax проверяет отклонение
// min_size > max_size.
func TestSearchFilters_Validate_MinGreaterThanMax(t *testing.T) {
	f := SearchFilters{MinSize: int64Ptr(500), MaxSize: int64Ptr(100)}
	err := f.Validate()
	if !errors.Is(err, ErrSearchValidation) {
		t.Fatalf("ошибка = %v, ожидалась ErrSearchValidation", err)
	}
	if !strings.Contains(err.Error(), "min_size") {
		t.Errorf("сообщение %q не называет min_size", err.Error())
	}
}

// TestSearchFilters_Validate_BadDate проверяет, что сообщение
// об ошибке называет ожидаемый формат ISO 8601.
func TestSearchFilters_Validate_BadDate(t *testing.T) {
	f := SearchFilters{StartDate: strPtr("not-a-date")}
	err := f.Validate()
	if !errors.Is(err, ErrSearchValidation) {
		t.Fatalf("ошибка = %v, ожидалась ErrSearchValidation", err)
	}
	if !strings.Contains(err.Error(), "ISO 8601") {
		t.Errorf("сообщение %q не называет формат ISO 8601", err.Error())
	}
}

// TestSearchFilters_Validate_StartAfterEnd проверяет отклонение
// start_date позже end_date.
func TestSearchFilters_Validate_StartAfterEnd(t *testing.T) {
	f := SearchFilters{
		StartDate: strPtr("2025-11-06T10:30:00Z"),
		EndDate:   strPtr("2025-11-01T10:30:00Z"),
	}
	if err := f.Validate(); !errors.Is(err, ErrSearchValidation) {
		t.Errorf("ошибка = %v, ожидалась ErrSearchValidation", err)
	}
}

// TestSearchFilters_Validate_DateFormats проверяет допустимые
// форматы ISO 8601.
func TestSearchFilters_Validate_DateFormats(t *testing.T) {
	for _, value := range []string{
		"2025-11-06T10:30:00Z",
		"2025-11-06T10:30:00+03:00",
		"2025-11-06T10:30:00",
		"2025-11-06",
	} {
		f := SearchFilters{StartDate: strPtr(value)}
		if err := f.Validate(); err != nil {
			t.Errorf("формат %q отклонён: %v", value, err)
		}
	}
}

// --- Тесты Apply ---

// TestSearchFilters_Apply проверяет наложение всех фильтров
// на параметры поиска.
func TestSearchFilters_Apply(t *testing.T) {
	f := SearchFilters{
		Search:    strPtr("vacation"),
		FileTypes: []string{"image/png", "image/jpeg"},
		MinSize:   int64Ptr(100),
		MaxSize:   int64Ptr(5000),
		StartDate: strPtr("2025-01-01T00:00:00Z"),
		EndDate:   strPtr("2025-12-31T23:59:59Z"),
	}

	params, err := f.Apply(repository.SearchParams{Limit: 50, Offset: 10})
	if err != nil {
		t.Fatalf("Apply ошибка: %v", err)
	}

	if params.Search == nil || *params.Search != "vacation" {
		t.Error("Search не применён")
	}
	if len(params.FileTypes) != 2 {
		t.Errorf("FileTypes count = %d, ожидался 2", len(params.FileTypes))
	}
	if params.MinSize == nil || *params.MinSize != 100 {
		t.Error("MinSize не применён")
	}
	if params.MaxSize == nil || *params.MaxSize != 5000 {
		t.Error("MaxSize не применён")
	}
	if params.UploadedAfter == nil || !params.UploadedAfter.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("UploadedAfter не применён")
	}
	if params.UploadedBefore == nil {
		t.Error("UploadedBefore не применён")
	}

	// Пагинация base-параметров не тронута
	if params.Limit != 50 || params.Offset != 10 {
		t.Errorf("пагинация изменена: limit=%d offset=%d", params.Limit, params.Offset)
	}
}

// TestSearchFilters_Apply_Invalid проверяет, что невалидный набор
// не применяется даже частично.
func TestSearchFilters_Apply_Invalid(t *testing.T) {
	f := SearchFilters{
		Search:  strPtr("vacation"),
		MinSize: int64Ptr(500),
		MaxSize: int64Ptr(100),
	}

	params, err := f.Apply(repository.SearchParams{})
	if !errors.Is(err, ErrSearchValidation) {
		t.Fatalf("ошибка = %v, ожидалась ErrSearchValidation", err)
	}
	if params.Search != nil {
		t.Error("невалидный набор применён частично")
	}
}

// TestSearchFilters_Apply_Omitted проверяет, что отсутствующие
// фильтры не добавляют предикатов.
func TestSearchFilters_Apply_Omitted(t *testing.T) {
	f := SearchFilters{}

	params, err := f.Apply(repository.SearchParams{})
	if err != nil {
		t.Fatalf("Apply ошибка: %v", err)
	}
	if params.Search != nil || params.FileTypes != nil ||
		params.MinSize != nil || params.MaxSize != nil ||
		params.UploadedAfter != nil || params.UploadedBefore != nil {
		t.Error("пустые фильтры добавили предикаты")
	}
}
