// buckets.go — сервис бакетов поверх системной таблицы "buckets".
// Жёсткое удаление бакета каскадирует на его файлы и их физические части.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/gorefstore/internal/config"
	"github.com/bigkaa/gorefstore/internal/database"
	"github.com/bigkaa/gorefstore/internal/domain/model"
)

// BucketsService — операции над бакетами.
type BucketsService struct {
	cfg      *config.Config
	root     *database.DatabaseAdapter
	storages *StorageService
	files    *FilesService
	logger   *slog.Logger
}

// NewBucketsService создаёт сервис бакетов.
func NewBucketsService(cfg *config.Config, root *database.DatabaseAdapter, storages *StorageService, files *FilesService, logger *slog.Logger) *BucketsService {
	return &BucketsService{
		cfg:      cfg,
		root:     root,
		storages: storages,
		files:    files,
		logger:   logger.With(slog.String("component", "buckets")),
	}
}

// Create регистрирует бакет. Хранилище обязано существовать.
func (s *BucketsService) Create(ctx context.Context, databaseID string, data model.BucketData, userUID string) (*model.Record, error) {
	if data.Name == "" {
		return nil, fmt.Errorf("имя бакета обязательно: %w", database.ErrValidation)
	}
	db := s.root.TemporaryContext(databaseID)
	if _, _, err := s.storages.ResolveStorage(ctx, db, data.StorageID); err != nil {
		return nil, err
	}
	ref, err := s.storages.BucketsRef(ctx, db)
	if err != nil {
		return nil, err
	}
	dataMap, err := model.ToDataMap(data)
	if err != nil {
		return nil, fmt.Errorf("кодирование записи бакета: %w", err)
	}
	return ref.Create(ctx, database.CreateRecordRequest{Data: dataMap, CreatedBy: userUID})
}

// Get возвращает запись бакета по фильтру.
func (s *BucketsService) Get(ctx context.Context, databaseID string, f database.Filter) (*model.Record, error) {
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.BucketsRef(ctx, db)
	if err != nil {
		return nil, err
	}
	return ref.Get(ctx, database.GetOptions{Filter: f})
}

// Query возвращает страницу записей бакетов.
func (s *BucketsService) Query(ctx context.Context, databaseID string, opts database.QueryOptions) (*database.QueryResult, error) {
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.BucketsRef(ctx, db)
	if err != nil {
		return nil, err
	}
	return ref.Query(ctx, opts)
}

// Delete удаляет бакеты по фильтру. Мягкое удаление помечает только
// сами записи бакетов. Жёсткое каскадирует на один уровень вниз:
// файлы бакета с их физическими частями, затем запись бакета.
func (s *BucketsService) Delete(ctx context.Context, databaseID string, f database.Filter, withSoftDelete bool, userUID string) (*database.BulkResult, error) {
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.BucketsRef(ctx, db)
	if err != nil {
		return nil, err
	}
	if withSoftDelete {
		return ref.Delete(ctx, f, database.DeleteOptions{
			WithSoftDelete: true,
			DeletedBy:      userUID,
		})
	}

	result := &database.BulkResult{List: []database.BulkRef{}}
	for {
		page, err := ref.Query(ctx, database.QueryOptions{Filter: f})
		if err != nil {
			return nil, err
		}
		if len(page.List) == 0 {
			break
		}
		for _, bucket := range page.List {
			if err := s.cascadeBucket(ctx, databaseID, ref, bucket.UID, userUID); err != nil {
				return nil, err
			}
			result.List = append(result.List, database.BulkRef{UID: bucket.UID})
		}
	}
	result.Total = int64(len(result.List))
	return result, nil
}

// cascadeBucket жёстко удаляет файлы бакета и затем сам бакет.
func (s *BucketsService) cascadeBucket(ctx context.Context, databaseID string, ref *database.RefAdapter, bucketUID, userUID string) error {
	deleted, err := s.files.Delete(ctx, FileDeleteRequest{
		DatabaseID: databaseID,
		Filter:     database.Filter{"data.bucket_id": bucketUID},
		UserUID:    userUID,
	})
	if err != nil {
		return fmt.Errorf("каскад файлов бакета %s: %w", bucketUID, err)
	}
	if _, err := ref.Delete(ctx, database.Filter{"uid": bucketUID}, database.DeleteOptions{}); err != nil {
		return fmt.Errorf("удаление бакета %s: %w", bucketUID, err)
	}
	cascadeDeletesTotal.WithLabelValues("bucket").Inc()
	s.logger.Info("Бакет удалён каскадом",
		slog.String("bucket_id", bucketUID), slog.Int64("files", deleted.Total))
	return nil
}
