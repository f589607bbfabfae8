// files.go — обработчики загрузки и скачивания файлов.
// Соглашение URL: /files/download?storage_id=&bucket_id=&file_id=[&database_id=].
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/gorefstore/internal/api/errors"
	"github.com/bigkaa/gorefstore/internal/domain/model"
	"github.com/bigkaa/gorefstore/internal/service"
	"github.com/bigkaa/gorefstore/internal/storage"
)

// FilesHandler реализует файловые endpoints.
type FilesHandler struct {
	files  *service.FilesService
	logger *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых операций.
func NewFilesHandler(files *service.FilesService, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:  files,
		logger: logger.With(slog.String("component", "files-handler")),
	}
}

// UploadFile обрабатывает POST /files/upload.
// Параметры запроса: storage_id, bucket_id (обязательные), database_id
// (опционально, пусто — первичная база). Тело — multipart с файлом,
// стримится без буферизации в памяти.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	storageID := q.Get("storage_id")
	bucketID := q.Get("bucket_id")
	if storageID == "" || bucketID == "" {
		apierrors.ValidationError(w, "storage_id и bucket_id обязательны")
		return
	}

	source, err := storage.NewMultipartSource(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	defer source.Close()

	rec, err := h.files.Upload(r.Context(), service.UploadRequest{
		DatabaseID: q.Get("database_id"),
		StorageID:  storageID,
		BucketID:   bucketID,
		UserUID:    userUID(r),
		Source:     source,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// DownloadFile обрабатывает GET /files/download.
// Части файла стримятся последовательно в порядке order.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	storageID := q.Get("storage_id")
	bucketID := q.Get("bucket_id")
	fileID := q.Get("file_id")
	if storageID == "" || bucketID == "" || fileID == "" {
		apierrors.ValidationError(w, "storage_id, bucket_id и file_id обязательны")
		return
	}

	started := false
	_, _, err := h.files.Download(r.Context(), service.DownloadRequest{
		DatabaseID: q.Get("database_id"),
		StorageID:  storageID,
		BucketID:   bucketID,
		FileID:     fileID,
		Dest:       w,
		OnRecord: func(_ *model.Record, data *model.FileData) {
			// Заголовки до первого байта тела.
			contentType := data.Type
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			w.Header().Set("Content-Type", contentType)
			w.Header().Set("Content-Length", strconv.FormatInt(data.Size, 10))
			w.Header().Set("Content-Disposition",
				fmt.Sprintf("attachment; filename=%q", data.Filename))
			started = true
		},
	})
	if err != nil {
		if started {
			// Тело уже начало отдаваться: заголовки не изменить,
			// остаётся оборвать соединение и залогировать.
			h.logger.Error("Скачивание прервано после начала отдачи",
				slog.String("file_id", fileID), slog.Any("error", err))
			return
		}
		writeServiceError(w, err)
	}
}
