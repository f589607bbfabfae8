// Пакет storage — подключаемые бэкенды файлового хранилища.
// Контракт адаптера един для локального диска и S3-класса: загрузка,
// скачивание, удаление и потоковое чтение частей с отчётом о прогрессе.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/bigkaa/gorefstore/internal/domain/model"
)

// Sentinel-ошибки файлового движка.
var (
	// ErrConnect — бэкенд не удалось инициализировать или он недоступен.
	ErrConnect = errors.New("хранилище недоступно")
	// ErrUpload — загрузка не удалась.
	ErrUpload = errors.New("загрузка не удалась")
	// ErrDownload — скачивание не удалось.
	ErrDownload = errors.New("скачивание не удалось")
	// ErrPartDelete — не удалось удалить физическую часть.
	ErrPartDelete = errors.New("удаление части не удалось")
	// ErrPartNotFound — физическая часть отсутствует.
	ErrPartNotFound = errors.New("часть файла не найдена")
)

// ProgressFunc — отчёт о прогрессе потоковой операции. written/total —
// байты текущей части; percentage считается от суммарного размера
// (-1, если суммарный размер неизвестен).
type ProgressFunc func(part, totalParts int, written, total int64, percentage int)

// UploadParams — параметры загрузки одного источника.
type UploadParams struct {
	StorageID  string
	BucketID   string
	Source     *Source
	OnProgress ProgressFunc
}

// UploadResult — результат загрузки: физические части и атрибуты файла.
type UploadResult struct {
	Parts    []model.FilePart
	Filename string
	Ext      string
	Type     string
	Size     int64
}

// DownloadParams — параметры скачивания: части в порядке Order пишутся
// в Dest подряд. Size — суммарный размер для процентов прогресса.
type DownloadParams struct {
	Parts      []model.FilePart
	Size       int64
	Dest       io.Writer
	OnProgress ProgressFunc
}

// DeleteParams — параметры удаления физических частей.
type DeleteParams struct {
	Parts []model.FilePart
}

// DeleteResult — результат удаления: успешно удалённые части и список
// пер-частных ошибок (частичный успех допустим).
type DeleteResult struct {
	Deleted []model.FilePart
	Errors  []error
}

// Adapter — контракт бэкенда хранилища. Реализации не хранят состояния
// между вызовами и безопасны для конкурентного использования.
type Adapter interface {
	// Upload принимает один источник и сохраняет его частями.
	Upload(ctx context.Context, params UploadParams) (*UploadResult, error)
	// WritePart записывает готовую часть из потока (используется репликацией).
	WritePart(ctx context.Context, part model.FilePart, r io.Reader, onProgress ProgressFunc) error
	// Download восстанавливает файл из упорядоченных частей.
	Download(ctx context.Context, params DownloadParams) error
	// ReadStream открывает поток чтения одной части.
	ReadStream(ctx context.Context, part model.FilePart) (io.ReadCloser, error)
	// Delete удаляет физические части, собирая пер-частные ошибки.
	Delete(ctx context.Context, params DeleteParams) (*DeleteResult, error)
}

// CleanPrefix нормализует префикс хранилища: обратные слэши приводятся
// к прямым, пустые сегменты отбрасываются.
func CleanPrefix(prefix string) string {
	prefix = strings.ReplaceAll(prefix, "\\", "/")
	segments := []string{}
	for _, seg := range strings.Split(prefix, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "/")
}

// PartKey строит логический путь части (прямые слэши):
// <префикс>/storage/<storage_id>/buckets/<bucket_id>/<uid>.<ext>.
func PartKey(prefix, storageID, bucketID, partUID, ext string) string {
	name := partUID
	if ext != "" {
		name += "." + ext
	}
	elems := []string{}
	if p := CleanPrefix(prefix); p != "" {
		elems = append(elems, p)
	}
	elems = append(elems, "storage", storageID, "buckets", bucketID, name)
	return path.Join(elems...)
}
