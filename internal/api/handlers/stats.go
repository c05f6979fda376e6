// stats.go — обработчик GET /api/v1/storage/stats.
// Отчёт об экономии места за счёт дедупликации.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/shiddhantbehera/abnormal-file-hub/internal/api/errors"
)

// statsResponse — отчёт об экономии места.
type statsResponse struct {
	TotalFiles           int    `json:"total_files"`
	UniqueFiles          int    `json:"unique_files"`
	DuplicateReferences  int    `json:"duplicate_references"`
	StorageSavedBytes    int64  `json:"storage_saved_bytes"`
	StorageSavedReadable string `json:"storage_saved_readable"`
}

// GetStorageStats — реализация GET /api/v1/storage/stats.
// Чистое чтение: агрегация по таблице files без побочных эффектов.
func (h *APIHandler) GetStorageStats(w http.ResponseWriter, r *http.Request) {
	report, err := h.dedup.StorageSavings(r.Context())
	if err != nil {
		h.logger.Error("Ошибка подсчёта экономии места",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при подсчёте статистики хранилища")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalFiles:           report.TotalFiles,
		UniqueFiles:          report.UniqueFiles,
		DuplicateReferences:  report.DuplicateReferences,
		StorageSavedBytes:    report.StorageSavedBytes,
		StorageSavedReadable: report.StorageSavedReadable,
	})
}
