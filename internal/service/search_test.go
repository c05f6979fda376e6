package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/domain/model"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/repository"
)

// --- Тесты SearchService ---

// TestSearchService_Search проверяет выполнение поиска через repository.
func TestSearchService_Search(t *testing.T) {
	files := []*model.FileRecord{
		{ID: "file-1", OriginalName: "test1.txt"},
		{ID: "file-2", OriginalName: "test2.txt"},
	}

	repo := &mockFileRepo{
		searchFn: func(_ context.Context, params repository.SearchParams) ([]*model.FileRecord, int, error) {
			if params.Limit != 100 {
				t.Errorf("Limit = %d, ожидался 100", params.Limit)
			}
			return files, 2, nil
		},
	}

	cache := NewCacheService(100, 5*time.Minute)
	svc := NewSearchService(repo, cache, slog.Default())

	result, err := svc.Search(context.Background(), SearchFilters{}, repository.SearchParams{
		Limit:  100,
		Offset: 0,
	})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}

	if result.Total != 2 {
		t.Errorf("Total = %d, ожидался 2", result.Total)
	}
	if len(result.Items) != 2 {
		t.Errorf("Items count = %d, ожидался 2", len(result.Items))
	}
	if result.HasMore {
		t.Error("HasMore = true, ожидался false")
	}
}

// TestSearchService_Search_HasMore проверяет флаг HasMore при пагинации.
func TestSearchService_Search_HasMore(t *testing.T) {
	files := []*model.FileRecord{
		{ID: "file-1"},
	}

	repo := &mockFileRepo{
		searchFn: func(_ context.Context, _ repository.SearchParams) ([]*model.FileRecord, int, error) {
			return files, 5, nil // total=5, но вернули только 1 (limit=1)
		},
	}

	cache := NewCacheService(100, 5*time.Minute)
	svc := NewSearchService(repo, cache, slog.Default())

	result, err := svc.Search(context.Background(), SearchFilters{}, repository.SearchParams{
		Limit:  1,
		Offset: 0,
	})
	if err != nil {
		t.Fatalf("Search ошибка: %v", err)
	}

	if !result.HasMore {
		t.Error("HasMore = false, ожидался true (total=5, offset+items=1)")
	}
}

// TestSearchService_Search_InvalidFilters проверяет, что невалидные
// фильтры отклоняются до обращения к хранилищу.
func TestSearchService_Search_InvalidFilters(t *testing.T) {
	called := false
	repo := &mockFileRepo{
		searchFn: func(_ context.Context, _ repository.SearchParams) ([]*model.FileRecord, int, error) {
			called = true
			return nil, 0, nil
		},
	}

	cache := NewCacheService(100, 5*time.Minute)
	svc := NewSearchService(repo, cache, slog.Default())

	filters := SearchFilters{MinSize: int64Ptr(500), MaxSize: int64Ptr(100)}
	_, err := svc.Search(context.Background(), filters, repository.SearchParams{Limit: 100})
	if !errors.Is(err, ErrSearchValidation) {
		t.Fatalf("ошибка = %v, ожидалась ErrSearchValidation", err)
	}
	if called {
		t.Error("хранилище вызвано при невалидных фильтрах")
	}
}

// TestSearchService_Search_FilterOrderIrrelevant проверяет, что
// параметры поиска не зависят от порядка заполнения фильтров.
func TestSearchService_Search_FilterOrderIrrelevant(t *testing.T) {
	var captured []repository.SearchParams
	repo := &mockFileRepo{
		searchFn: func(_ context.Context, params repository.SearchParams) ([]*model.FileRecord, int, error) {
			captured = append(captured, params)
			return nil, 0, nil
		},
	}

	cache := NewCacheService(100, 5*time.Minute)
	svc := NewSearchService(repo, cache, slog.Default())

	a := SearchFilters{
		Search:    strPtr("vacation"),
		FileTypes: []string{"image/png", "image/jpeg"},
	}
	b := SearchFilters{
		FileTypes: []string{"image/png", "image/jpeg"},
		Search:    strPtr("vacation"),
	}

	for _, f := range []SearchFilters{a, b} {
		if _, err := svc.Search(context.Background(), f, repository.SearchParams{Limit: 100}); err != nil {
			t.Fatalf("Search ошибка: %v", err)
		}
	}

	if *captured[0].Search != *captured[1].Search {
		t.Error("предикат Search зависит от порядка фильтров")
	}
	if len(captured[0].FileTypes) != len(captured[1].FileTypes) {
		t.Error("предикат FileTypes зависит от порядка фильтров")
	}
}

// TestSearchService_GetFileMetadata_CacheHit проверяет получение из кэша.
func TestSearchService_GetFileMetadata_CacheHit(t *testing.T) {
	callCount := 0
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			callCount++
			return &model.FileRecord{ID: "cached-file"}, nil
		},
	}

	cache := NewCacheService(100, 5*time.Minute)
	svc := NewSearchService(repo, cache, slog.Default())

	// Первый вызов — cache miss, идёт в БД
	record, err := svc.GetFileMetadata(context.Background(), "cached-file")
	if err != nil {
		t.Fatalf("GetFileMetadata ошибка: %v", err)
	}
	if record.ID != "cached-file" {
		t.Errorf("ID = %q, ожидался %q", record.ID, "cached-file")
	}
	if callCount != 1 {
		t.Errorf("repo.GetByID вызван %d раз, ожидался 1", callCount)
	}

	// Второй вызов — cache hit, в БД не идёт
	record, err = svc.GetFileMetadata(context.Background(), "cached-file")
	if err != nil {
		t.Fatalf("GetFileMetadata ошибка (cache hit): %v", err)
	}
	if record.ID != "cached-file" {
		t.Errorf("ID = %q, ожидался %q", record.ID, "cached-file")
	}
	if callCount != 1 {
		t.Errorf("repo.GetByID вызван %d раз, ожидался 1 (cache hit)", callCount)
	}
}

// TestSearchService_GetFileMetadata_NotFound проверяет ErrNotFound.
func TestSearchService_GetFileMetadata_NotFound(t *testing.T) {
	repo := &mockFileRepo{
		getByIDFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return nil, repository.ErrNotFound
		},
	}

	cache := NewCacheService(100, 5*time.Minute)
	svc := NewSearchService(repo, cache, slog.Default())

	_, err := svc.GetFileMetadata(context.Background(), "non-existent")
	if err == nil {
		t.Fatal("ожидалась ошибка ErrNotFound")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ошибка = %v, ожидалась ErrNotFound", err)
	}
}
