// search.go — обработчик GET /api/v1/files.
// Разбор query-параметров фильтров, вызов SearchService,
// сериализация ответа с пагинацией.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/shiddhantbehera/abnormal-file-hub/internal/api/errors"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/domain/model"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/repository"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/service"
)

// searchResponse — ответ на поиск файлов.
type searchResponse struct {
	Items   []fileResponse `json:"items"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"has_more"`
}

// SearchFiles — реализация GET /api/v1/files.
//
// Query-параметры: search, file_types (список через запятую),
// min_size, max_size, start_date, end_date (ISO 8601), limit, offset,
// sort_by (uploaded_at, original_name, size_bytes), sort_order (asc, desc).
// Один некорректный фильтр отклоняет весь запрос (400).
func (h *APIHandler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters, err := filtersFromQuery(q)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	limit, offset := paginationDefaults(q.Get("limit"), q.Get("offset"))
	base := repository.SearchParams{
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Limit:     limit,
		Offset:    offset,
	}

	result, err := h.search.Search(r.Context(), filters, base)
	if err != nil {
		if errors.Is(err, service.ErrSearchValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка поиска файлов",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при поиске файлов")
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items:   fileRecordsToResponses(result.Items),
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
		HasMore: result.HasMore,
	})
}

// filtersFromQuery строит SearchFilters из query string.
// Ошибки разбора чисел возвращаются как ошибки валидации;
// семантическую проверку (диапазоны, даты) выполняет сервисный слой.
func filtersFromQuery(q map[string][]string) (service.SearchFilters, error) {
	var filters service.SearchFilters
	get := func(key string) string {
		if vals := q[key]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}

	if v := get("search"); v != "" {
		filters.Search = &v
	}

	if v := get("file_types"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filters.FileTypes = append(filters.FileTypes, t)
			}
		}
	}

	if v := get("min_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filters, errors.New("min_size должен быть неотрицательным числом")
		}
		filters.MinSize = &n
	}
	if v := get("max_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filters, errors.New("max_size должен быть неотрицательным числом")
		}
		filters.MaxSize = &n
	}

	if v := get("start_date"); v != "" {
		filters.StartDate = &v
	}
	if v := get("end_date"); v != "" {
		filters.EndDate = &v
	}

	return filters, nil
}

// fileRecordsToResponses конвертирует domain-модели в API-типы.
func fileRecordsToResponses(records []*model.FileRecord) []fileResponse {
	items := make([]fileResponse, 0, len(records))
	for _, r := range records {
		items = append(items, fileRecordToResponse(r))
	}
	return items
}
