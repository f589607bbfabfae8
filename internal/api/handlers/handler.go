// Пакет handlers — HTTP-обработчики границы RefStore: файлы, health.
// Идентичность запроса — заголовок X-User-Uid (по умолчанию "system");
// выпуск и проверка токенов за пределами сервиса.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apierrors "github.com/bigkaa/gorefstore/internal/api/errors"
	"github.com/bigkaa/gorefstore/internal/database"
	"github.com/bigkaa/gorefstore/internal/service"
	"github.com/bigkaa/gorefstore/internal/storage"
)

// userUIDHeader — заголовок идентичности вызывающего.
const userUIDHeader = "X-User-Uid"

// userUID извлекает идентичность запроса.
func userUID(r *http.Request) string {
	uid := r.Header.Get(userUIDHeader)
	if uid == "" {
		return "system"
	}
	return uid
}

// writeJSON сериализует ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError транслирует ошибку слоёв database/storage/service
// в стандартный HTTP-ответ.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, database.ErrValidation), errors.Is(err, database.ErrNotBound):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, database.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrFileNotReady):
		apierrors.FileNotReady(w, err.Error())
	case errors.Is(err, service.ErrUnsupportedStorage):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, storage.ErrConnect):
		apierrors.StorageUnavailable(w, err.Error())
	case errors.Is(err, storage.ErrPartNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, storage.ErrUpload):
		apierrors.UploadFailed(w, err.Error())
	case errors.Is(err, storage.ErrDownload):
		apierrors.DownloadFailed(w, err.Error())
	default:
		apierrors.InternalError(w, err.Error())
	}
}
