// files.go — обработчики операций над файлами:
// POST /api/v1/files (multipart upload), GET /api/v1/files/{id},
// GET /api/v1/files/{id}/download, DELETE /api/v1/files/{id}.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/shiddhantbehera/abnormal-file-hub/internal/api/errors"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/domain/model"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/service"
)

// multipartMemoryLimit — порог буферизации multipart в памяти,
// остальное уходит во временные файлы (32 MiB).
const multipartMemoryLimit = 32 << 20

// uploadResponse — ответ на загрузку файла.
type uploadResponse struct {
	fileResponse
	// IsDuplicate — содержимое уже хранилось, создана ссылка
	IsDuplicate bool `json:"is_duplicate"`
	// StorageSaved — байты, не сохранённые повторно
	StorageSaved int64 `json:"storage_saved"`
}

// deleteResponse — ответ на удаление оригинала с оставшимися ссылками.
type deleteResponse struct {
	Message        string `json:"message"`
	ReferenceCount int    `json:"reference_count"`
}

// UploadFile — реализация POST /api/v1/files.
// Принимает multipart/form-data с полем file.
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	// Жёсткий лимит на размер запроса: тело больше maxFileSize
	// обрывается до полной буферизации
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartMemoryLimit)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает лимит %s", service.FormatBytes(h.maxFileSize)))
			return
		}
		apierrors.ValidationError(w, "Некорректный multipart-запрос")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле file отсутствует в запросе")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает лимит %s", service.FormatBytes(h.maxFileSize)))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	} else if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = parsed
	}

	meta := service.FileMeta{
		OriginalName: header.Filename,
		ContentType:  contentType,
		SizeBytes:    header.Size,
	}

	result, err := h.uploads.Upload(r.Context(), file, meta)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOperation),
			errors.Is(err, service.ErrInvalidFingerprint):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка загрузки файла",
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при загрузке файла")
		}
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		fileResponse: fileRecordToResponse(result.Record),
		IsDuplicate:  result.Deduplicated,
		StorageSaved: result.StorageSaved,
	})
}

// GetFileMetadata — реализация GET /api/v1/files/{id}.
func (h *APIHandler) GetFileMetadata(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDFromRequest(w, r)
	if !ok {
		return
	}

	record, err := h.search.GetFileMetadata(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка получения метаданных файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении метаданных файла")
		return
	}

	writeJSON(w, http.StatusOK, fileRecordToResponse(record))
}

// DownloadFile — реализация GET /api/v1/files/{id}/download.
// Для ссылки содержимое читается по ключу её оригинала.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDFromRequest(w, r)
	if !ok {
		return
	}

	record, err := h.search.GetFileMetadata(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка получения метаданных файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
		return
	}

	// Ссылка содержимым не владеет: ключ берём у оригинала
	storageKey := record.StorageKey
	if record.IsReference {
		if record.OriginalID == nil {
			h.logger.Error("Ссылка без original_id", slog.String("file_id", fileID))
			apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
			return
		}
		original, err := h.search.GetFileMetadata(r.Context(), *record.OriginalID)
		if err != nil {
			h.logger.Error("Оригинал ссылки не найден",
				slog.String("file_id", fileID),
				slog.String("original_id", *record.OriginalID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
			return
		}
		storageKey = original.StorageKey
	}
	if storageKey == nil {
		h.logger.Error("Запись без ключа содержимого", slog.String("file_id", fileID))
		apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
		return
	}

	blob, err := h.blobs.Open(r.Context(), *storageKey)
	if err != nil {
		h.logger.Error("Содержимое недоступно в blob-хранилище",
			slog.String("file_id", fileID),
			slog.String("storage_key", *storageKey),
			slog.String("error", err.Error()),
		)
		apierrors.NotFound(w, "Содержимое файла недоступно")
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", record.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", record.SizeBytes))
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": record.OriginalName}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, blob); err != nil {
		// Заголовки уже отправлены, клиенту ошибку не вернуть
		h.logger.Error("Ошибка streaming содержимого",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteFile — реализация DELETE /api/v1/files/{id}.
// State machine удаления: ссылка и последний оригинал — 204,
// оригинал с оставшимися ссылками — 200 с пояснением (физическое
// удаление отложено).
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDFromRequest(w, r)
	if !ok {
		return
	}

	record, err := h.search.GetFileMetadata(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка получения записи перед удалением",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при удалении файла")
		return
	}

	outcome, err := h.dedup.Release(r.Context(), record)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка удаления файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при удалении файла")
		return
	}

	// Инвалидация кэша: сама запись и оригинал ссылки
	// (его счётчик в кэше устарел)
	h.cache.Delete(fileID)
	if record.IsReference && record.OriginalID != nil {
		h.cache.Delete(*record.OriginalID)
	}

	if outcome == model.OutcomeRetainedPendingReferences {
		writeJSON(w, http.StatusOK, deleteResponse{
			Message:        "На содержимое указывают другие записи: физическое удаление отложено",
			ReferenceCount: record.ReferenceCount - 1,
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fileIDFromRequest извлекает и валидирует UUID файла из пути.
// При некорректном UUID записывает 400 и возвращает ok=false.
func (h *APIHandler) fileIDFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	fileID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(fileID); err != nil {
		apierrors.ValidationError(w, "Некорректный UUID файла")
		return "", false
	}
	return fileID, true
}
