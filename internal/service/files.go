// files.go — сервис файлов: загрузка (синхронная локальная и двухфазная
// удалённая), скачивание, удаление с физическими частями, перескан
// pending-записей для репликации.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/bigkaa/gorefstore/internal/config"
	"github.com/bigkaa/gorefstore/internal/database"
	"github.com/bigkaa/gorefstore/internal/domain/model"
	"github.com/bigkaa/gorefstore/internal/storage"
)

// FilesService — операции над файлами поверх системной таблицы "files".
type FilesService struct {
	cfg      *config.Config
	root     *database.DatabaseAdapter
	storages *StorageService
	repl     *Replicator
	logger   *slog.Logger
}

// NewFilesService создаёт сервис файлов и привязывает перескан
// pending-записей к репликатору.
func NewFilesService(cfg *config.Config, root *database.DatabaseAdapter, storages *StorageService, repl *Replicator, logger *slog.Logger) *FilesService {
	s := &FilesService{
		cfg:      cfg,
		root:     root,
		storages: storages,
		repl:     repl,
		logger:   logger.With(slog.String("component", "files")),
	}
	repl.SetRescan(s.ResumePending)
	return s
}

// UploadRequest — параметры загрузки файла.
type UploadRequest struct {
	DatabaseID string
	StorageID  string
	BucketID   string
	UserUID    string
	Source     *storage.Source
	OnProgress storage.ProgressFunc
}

// Upload загружает файл. Локальный бэкенд — синхронно, запись сразу
// в статусе done. Удалённый — двухфазно: части сохраняются во временное
// локальное хранилище, запись создаётся в статусе pending и возвращается
// немедленно, перенос выполняет фоновая репликация.
func (s *FilesService) Upload(ctx context.Context, req UploadRequest) (*model.Record, error) {
	db := s.root.TemporaryContext(req.DatabaseID)

	// 1. Конфигурация хранилища и бакет.
	_, storageData, err := s.storages.ResolveStorage(ctx, db, req.StorageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.storages.ResolveBucket(ctx, db, req.BucketID); err != nil {
		return nil, err
	}
	prefix := s.storages.Prefix(storageData, req.DatabaseID, req.UserUID)

	// 2. Физическая запись частей.
	local := s.storages.IsLocal(storageData)
	var dest storage.Adapter
	if local {
		dest, err = s.storages.AdapterFor(ctx, storageData, prefix)
	} else {
		dest, err = s.storages.TempAdapter(prefix)
	}
	if err != nil {
		uploadsTotal.WithLabelValues(storageData.Type, "error").Inc()
		return nil, err
	}
	res, err := dest.Upload(ctx, storage.UploadParams{
		StorageID:  req.StorageID,
		BucketID:   req.BucketID,
		Source:     req.Source,
		OnProgress: req.OnProgress,
	})
	if err != nil {
		uploadsTotal.WithLabelValues(storageData.Type, "error").Inc()
		return nil, err
	}

	// 3. Файловая запись.
	fileUID := uuid.New().String()
	status := model.FileStatusDone
	if !local {
		status = model.FileStatusPending
	}
	fileData := model.FileData{
		Filename:    res.Filename,
		Ext:         res.Ext,
		Type:        res.Type,
		Size:        res.Size,
		StorageID:   req.StorageID,
		BucketID:    req.BucketID,
		Parts:       res.Parts,
		Path:        res.Parts[0].Path,
		DownloadURL: s.downloadURL(req.StorageID, req.BucketID, fileUID, req.DatabaseID),
		Status:      status,
	}
	data, err := model.ToDataMap(fileData)
	if err != nil {
		return nil, fmt.Errorf("кодирование файловой записи: %w", err)
	}
	ref, err := s.storages.FilesRef(ctx, db)
	if err != nil {
		return nil, err
	}
	rec, err := ref.Create(ctx, database.CreateRecordRequest{
		UID:       fileUID,
		Data:      data,
		CreatedBy: req.UserUID,
	})
	if err != nil {
		return nil, err
	}

	uploadsTotal.WithLabelValues(storageData.Type, status).Inc()
	uploadBytesTotal.Add(float64(res.Size))
	s.logger.Info("Файл загружен",
		slog.String("file_id", fileUID),
		slog.String("storage_id", req.StorageID),
		slog.String("status", status),
		slog.Int64("size", res.Size))

	// 4. Для удалённого бэкенда — задача репликации. Переполнение очереди
	// не фатально: pending-запись подберёт перескан.
	if !local {
		if err := s.repl.Enqueue(s.replicationTask(req.DatabaseID, fileUID)); err != nil {
			s.logger.Warn("Задача репликации отложена до перескана",
				slog.String("file_id", fileUID), slog.Any("error", err))
		}
	}
	return rec, nil
}

// downloadURL строит ссылку скачивания по соглашению
// /files/download?storage_id=&bucket_id=&file_id=[&database_id=].
func (s *FilesService) downloadURL(storageID, bucketID, fileID, databaseID string) string {
	q := url.Values{}
	q.Set("storage_id", storageID)
	q.Set("bucket_id", bucketID)
	q.Set("file_id", fileID)
	if databaseID != "" {
		q.Set("database_id", databaseID)
	}
	return "/files/download?" + q.Encode()
}

// DownloadRequest — параметры скачивания файла. OnRecord (если задан)
// вызывается после разрешения записи, но до первого байта — для
// выставления HTTP-заголовков.
type DownloadRequest struct {
	DatabaseID string
	StorageID  string
	BucketID   string
	FileID     string
	Dest       io.Writer
	OnRecord   func(rec *model.Record, data *model.FileData)
	OnProgress storage.ProgressFunc
}

// Download восстанавливает файл в Dest из упорядоченных частей.
// pending-файл отдаётся из временного хранилища, done — из целевого
// бэкенда, fail — ошибка ErrFileNotReady.
func (s *FilesService) Download(ctx context.Context, req DownloadRequest) (*model.Record, *model.FileData, error) {
	db := s.root.TemporaryContext(req.DatabaseID)

	ref, err := s.storages.FilesRef(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	rec, err := ref.Get(ctx, database.GetOptions{Filter: database.Filter{
		"uid":       req.FileID,
		"isDeleted": database.Filter{"$ne": true},
	}})
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("файл %s: %w", req.FileID, err)
	}
	var fileData model.FileData
	if err := model.FromDataMap(rec.Data, &fileData); err != nil {
		return nil, nil, fmt.Errorf("декодирование файловой записи %s: %w", req.FileID, err)
	}

	_, storageData, err := s.storages.ResolveStorage(ctx, db, fileData.StorageID)
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	prefix := s.storages.Prefix(storageData, req.DatabaseID, rec.CreatedBy)

	var adapter storage.Adapter
	switch fileData.Status {
	case model.FileStatusFail:
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("файл %s: %w", req.FileID, ErrFileNotReady)
	case model.FileStatusPending:
		adapter, err = s.storages.TempAdapter(prefix)
	default:
		adapter, err = s.storages.AdapterFor(ctx, storageData, prefix)
	}
	if err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	if req.OnRecord != nil {
		req.OnRecord(rec, &fileData)
	}
	if err := adapter.Download(ctx, storage.DownloadParams{
		Parts:      fileData.Parts,
		Size:       fileData.Size,
		Dest:       req.Dest,
		OnProgress: req.OnProgress,
	}); err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	downloadsTotal.WithLabelValues("ok").Inc()
	downloadBytesTotal.Add(float64(fileData.Size))
	return rec, &fileData, nil
}

// FileDeleteRequest — параметры удаления файлов.
type FileDeleteRequest struct {
	DatabaseID     string
	Filter         database.Filter
	WithSoftDelete bool
	UserUID        string
}

// Delete удаляет файлы по фильтру. Мягкое удаление только помечает
// записи; жёсткое сначала удаляет физические части (включая временные
// для pending-файлов), затем записи.
func (s *FilesService) Delete(ctx context.Context, req FileDeleteRequest) (*database.BulkResult, error) {
	db := s.root.TemporaryContext(req.DatabaseID)
	ref, err := s.storages.FilesRef(ctx, db)
	if err != nil {
		return nil, err
	}
	if req.WithSoftDelete {
		return ref.Delete(ctx, req.Filter, database.DeleteOptions{
			WithSoftDelete: true,
			DeletedBy:      req.UserUID,
		})
	}

	result := &database.BulkResult{List: []database.BulkRef{}}
	for {
		page, err := ref.Query(ctx, database.QueryOptions{Filter: req.Filter})
		if err != nil {
			return nil, err
		}
		if len(page.List) == 0 {
			break
		}
		for _, rec := range page.List {
			if err := s.deletePhysical(ctx, db, req.DatabaseID, rec); err != nil {
				return nil, err
			}
			if _, err := ref.Delete(ctx, database.Filter{"uid": rec.UID}, database.DeleteOptions{}); err != nil {
				return nil, err
			}
			result.List = append(result.List, database.BulkRef{UID: rec.UID})
			cascadeDeletesTotal.WithLabelValues("file").Inc()
		}
	}
	result.Total = int64(len(result.List))
	return result, nil
}

// deletePhysical удаляет физические части файла. Поведение при отказе
// части задаётся конфигурацией: продолжить с логированием или прервать.
func (s *FilesService) deletePhysical(ctx context.Context, db *database.DatabaseAdapter, databaseID string, rec *model.Record) error {
	var fileData model.FileData
	if err := model.FromDataMap(rec.Data, &fileData); err != nil {
		return fmt.Errorf("декодирование файловой записи %s: %w", rec.UID, err)
	}

	_, storageData, err := s.storages.ResolveStorage(ctx, db, fileData.StorageID)
	if errors.Is(err, database.ErrNotFound) {
		// Конфигурация хранилища уже удалена: физику чистить негде.
		s.logger.Warn("Хранилище файла не найдено, части пропущены",
			slog.String("file_id", rec.UID), slog.String("storage_id", fileData.StorageID))
		return nil
	}
	if err != nil {
		return err
	}
	prefix := s.storages.Prefix(storageData, databaseID, rec.CreatedBy)

	adapters := []storage.Adapter{}
	if fileData.Status == model.FileStatusDone {
		dest, err := s.storages.AdapterFor(ctx, storageData, prefix)
		if err != nil {
			if !s.cfg.CascadeContinueOnError {
				return err
			}
			s.logger.Warn("Бэкенд недоступен, части пропущены",
				slog.String("file_id", rec.UID), slog.Any("error", err))
		} else {
			adapters = append(adapters, dest)
		}
	}
	// pending и fail держат части во временном хранилище; для удалённого
	// done там могут остаться следы прерванной очистки.
	if fileData.Status != model.FileStatusDone || !s.storages.IsLocal(storageData) {
		if tmp, err := s.storages.TempAdapter(prefix); err == nil {
			adapters = append(adapters, tmp)
		}
	}

	for _, adapter := range adapters {
		res, err := adapter.Delete(ctx, storage.DeleteParams{Parts: fileData.Parts})
		if err != nil {
			return err
		}
		cascadeDeletesTotal.WithLabelValues("part").Add(float64(len(res.Deleted)))
		for _, partErr := range res.Errors {
			if !s.cfg.CascadeContinueOnError {
				return partErr
			}
			s.logger.Warn("Часть файла не удалена",
				slog.String("file_id", rec.UID), slog.Any("error", partErr))
		}
	}
	return nil
}

// patchStatus выполняет односторонний переход статуса файловой записи.
// Допустимость перехода проверяется до запроса; фильтр по текущему
// статусу исключает перезапись терминального состояния.
func (s *FilesService) patchStatus(ctx context.Context, ref *database.RefAdapter, fileUID, from, to string) (*database.BulkResult, error) {
	if !model.ValidStatusTransition(from, to) {
		return nil, fmt.Errorf("переход статуса %s -> %s: %w", from, to, database.ErrValidation)
	}
	return ref.Patch(ctx, database.Filter{
		"uid":         fileUID,
		"data.status": from,
	}, database.UpdateRecordRequest{
		Data:      map[string]any{"status": to},
		UpdatedBy: "system",
	})
}

// replicationTask строит задачу репликации одного файла. Конфигурация
// хранилища разрешается заново в момент выполнения.
func (s *FilesService) replicationTask(databaseID, fileUID string) ReplicationTask {
	return ReplicationTask{
		FileUID: fileUID,
		Run: func(ctx context.Context) error {
			return s.replicate(ctx, databaseID, fileUID)
		},
		OnExhausted: func(ctx context.Context) {
			s.markFailed(ctx, databaseID, fileUID)
		},
	}
}

// replicate переносит части файла из временного хранилища в целевой
// бэкенд и переводит запись pending -> done. Временные части удаляются
// только после успешного перехода.
func (s *FilesService) replicate(ctx context.Context, databaseID, fileUID string) error {
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.FilesRef(ctx, db)
	if err != nil {
		return err
	}
	rec, err := ref.Get(ctx, database.GetOptions{Filter: database.Filter{
		"uid":         fileUID,
		"data.status": model.FileStatusPending,
		"isDeleted":   database.Filter{"$ne": true},
	}})
	if errors.Is(err, database.ErrNotFound) {
		// Запись уже переведена или удалена.
		return nil
	}
	if err != nil {
		return err
	}
	var fileData model.FileData
	if err := model.FromDataMap(rec.Data, &fileData); err != nil {
		return fmt.Errorf("декодирование файловой записи %s: %w", fileUID, err)
	}

	_, storageData, err := s.storages.ResolveStorage(ctx, db, fileData.StorageID)
	if err != nil {
		return err
	}
	prefix := s.storages.Prefix(storageData, databaseID, rec.CreatedBy)
	temp, err := s.storages.TempAdapter(prefix)
	if err != nil {
		return err
	}
	dest, err := s.storages.AdapterFor(ctx, storageData, prefix)
	if err != nil {
		return err
	}

	for _, part := range fileData.Parts {
		rc, err := temp.ReadStream(ctx, part)
		if err != nil {
			return err
		}
		err = dest.WritePart(ctx, part, rc, nil)
		_ = rc.Close()
		if err != nil {
			return err
		}
	}

	patched, err := s.patchStatus(ctx, ref, fileUID, model.FileStatusPending, model.FileStatusDone)
	if err != nil {
		return err
	}
	if patched.Total == 1 {
		if res, err := temp.Delete(ctx, storage.DeleteParams{Parts: fileData.Parts}); err == nil {
			for _, partErr := range res.Errors {
				s.logger.Warn("Временная часть не удалена",
					slog.String("file_id", fileUID), slog.Any("error", partErr))
			}
		}
	}
	return nil
}

// markFailed переводит запись pending -> fail. Временные части
// сохраняются для разбора и ручного повтора.
func (s *FilesService) markFailed(ctx context.Context, databaseID, fileUID string) {
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.FilesRef(ctx, db)
	if err != nil {
		s.logger.Error("Не удалось получить таблицу files",
			slog.String("file_id", fileUID), slog.Any("error", err))
		return
	}
	if _, err := s.patchStatus(ctx, ref, fileUID, model.FileStatusPending, model.FileStatusFail); err != nil {
		s.logger.Error("Не удалось перевести файл в статус fail",
			slog.String("file_id", fileUID), slog.Any("error", err))
	}
}

// ResumePending ставит в очередь репликации все pending-файлы первичной
// базы и активных арендаторов. Вызывается при старте и по таймеру.
func (s *FilesService) ResumePending(ctx context.Context) {
	contexts := []string{""}
	var skip int64
	for {
		page, err := s.root.Query(ctx, database.QueryOptions{
			Filter: database.Filter{"isDeleted": database.Filter{"$ne": true}},
			Skip:   skip,
		})
		if err != nil {
			s.logger.Error("Перескан: список арендаторов недоступен", slog.Any("error", err))
			break
		}
		for _, rec := range page.List {
			contexts = append(contexts, rec.UID)
		}
		if page.Total < s.cfg.MaxQueryLimit {
			break
		}
		skip += page.Total
	}

	enqueued := 0
	for _, databaseID := range contexts {
		db := s.root.TemporaryContext(databaseID)
		ref, err := s.storages.FilesRef(ctx, db)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("Перескан: таблица files недоступна",
				slog.String("database_id", databaseID), slog.Any("error", err))
			continue
		}
		var skip int64
		for {
			page, err := ref.Query(ctx, database.QueryOptions{
				Filter: database.Filter{
					"data.status": model.FileStatusPending,
					"isDeleted":   database.Filter{"$ne": true},
				},
				Skip: skip,
			})
			if err != nil {
				s.logger.Error("Перескан: выборка pending-файлов не удалась",
					slog.String("database_id", databaseID), slog.Any("error", err))
				break
			}
			for _, rec := range page.List {
				if err := s.repl.Enqueue(s.replicationTask(databaseID, rec.UID)); err == nil {
					enqueued++
				}
			}
			if page.Total < s.cfg.MaxQueryLimit {
				break
			}
			skip += page.Total
		}
	}
	if enqueued > 0 {
		s.logger.Info("Перескан pending-файлов", slog.Int("enqueued", enqueued))
	}
}
