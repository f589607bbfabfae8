// Пакет s3 — бэкенд хранилища S3-класса (AWS S3, MinIO и совместимые)
// поверх клиента minio-go. Ключ объекта совпадает с логическим путём части.
package s3

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bigkaa/gorefstore/internal/domain/model"
	"github.com/bigkaa/gorefstore/internal/storage"
)

// Adapter — адаптер S3-класса.
type Adapter struct {
	client *minio.Client
	bucket string
	prefix string
}

// New создаёт адаптер по конфигурации хранилища и проверяет доступность
// целевого S3-бакета. Ошибки инициализации заворачиваются в ErrConnect.
func New(ctx context.Context, cfg model.StorageConfigs, prefix string) (*Adapter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint S3 не задан: %w", storage.ErrConnect)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3-бакет не задан: %w", storage.ErrConnect)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("инициализация клиента S3: %v: %w", err, storage.ErrConnect)
	}
	ok, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("проверка S3-бакета %s: %v: %w", cfg.Bucket, err, storage.ErrConnect)
	}
	if !ok {
		return nil, fmt.Errorf("S3-бакет %s не существует: %w", cfg.Bucket, storage.ErrConnect)
	}
	return &Adapter{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// Upload загружает источник одним объектом. Неизвестный размер (-1)
// допустим: клиент переключается на multipart-стриминг.
func (a *Adapter) Upload(ctx context.Context, params storage.UploadParams) (*storage.UploadResult, error) {
	src := params.Source
	if src == nil || src.Reader == nil {
		return nil, fmt.Errorf("источник загрузки пуст: %w", storage.ErrUpload)
	}
	uid := uuid.New().String()
	ext := src.Ext()
	key := storage.PartKey(a.prefix, params.StorageID, params.BucketID, uid, ext)

	var reader io.Reader = src.Reader
	if params.OnProgress != nil {
		// Прогресс через pipe: PutObject читает, счётчик пишет.
		pr, pw := io.Pipe()
		go func() {
			dst := storage.NewProgressWriter(pw, 1, 1, src.Size, src.Size, 0, params.OnProgress)
			_, copyErr := io.Copy(dst, src.Reader)
			pw.CloseWithError(copyErr)
		}()
		reader = pr
	}

	info, err := a.client.PutObject(ctx, a.bucket, key, reader, src.Size, minio.PutObjectOptions{
		ContentType: src.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("загрузка объекта %s: %v: %w", key, err, storage.ErrUpload)
	}

	part := model.FilePart{
		UID:    uid,
		Order:  1,
		Ext:    ext,
		Size:   info.Size,
		Length: info.Size,
		Path:   key,
	}
	return &storage.UploadResult{
		Parts:    []model.FilePart{part},
		Filename: src.Filename,
		Ext:      ext,
		Type:     src.ContentType,
		Size:     info.Size,
	}, nil
}

// WritePart загружает готовую часть из потока под её логическим ключом.
func (a *Adapter) WritePart(ctx context.Context, part model.FilePart, r io.Reader, onProgress storage.ProgressFunc) error {
	var reader io.Reader = r
	if onProgress != nil {
		pr, pw := io.Pipe()
		go func() {
			dst := storage.NewProgressWriter(pw, part.Order, part.Order, part.Size, part.Size, 0, onProgress)
			_, copyErr := io.Copy(dst, r)
			pw.CloseWithError(copyErr)
		}()
		reader = pr
	}
	if _, err := a.client.PutObject(ctx, a.bucket, part.Path, reader, part.Size, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("загрузка части %s: %v: %w", part.Path, err, storage.ErrUpload)
	}
	return nil
}

// Download пишет части в Dest в порядке Order.
func (a *Adapter) Download(ctx context.Context, params storage.DownloadParams) error {
	parts := make([]model.FilePart, len(params.Parts))
	copy(parts, params.Parts)
	sort.Slice(parts, func(i, j int) bool { return parts[i].Order < parts[j].Order })

	var offset int64
	for i, part := range parts {
		rc, err := a.ReadStream(ctx, part)
		if err != nil {
			return fmt.Errorf("часть %s: %w", part.UID, err)
		}
		dst := storage.NewProgressWriter(params.Dest, i+1, len(parts), part.Size, params.Size, offset, params.OnProgress)
		n, err := io.Copy(dst, rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("чтение части %s: %v: %w", part.UID, err, storage.ErrDownload)
		}
		offset += n
	}
	return nil
}

// ReadStream открывает поток чтения одного объекта.
func (a *Adapter) ReadStream(ctx context.Context, part model.FilePart) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, part.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("открытие объекта %s: %v: %w", part.Path, err, storage.ErrDownload)
	}
	// GetObject ленив: ошибку отсутствия объекта отдаёт только Stat/Read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", part.Path, storage.ErrPartNotFound)
		}
		return nil, fmt.Errorf("атрибуты объекта %s: %v: %w", part.Path, err, storage.ErrDownload)
	}
	return obj, nil
}

// Delete удаляет объекты частей, собирая пер-частные ошибки.
func (a *Adapter) Delete(ctx context.Context, params storage.DeleteParams) (*storage.DeleteResult, error) {
	res := &storage.DeleteResult{}
	for _, part := range params.Parts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := a.client.RemoveObject(ctx, a.bucket, part.Path, minio.RemoveObjectOptions{})
		if err != nil {
			res.Errors = append(res.Errors,
				fmt.Errorf("часть %s: %v: %w", part.UID, err, storage.ErrPartDelete))
			continue
		}
		res.Deleted = append(res.Deleted, part)
	}
	return res, nil
}
