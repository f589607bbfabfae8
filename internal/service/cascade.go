// cascade.go — сервис конфигураций хранилищ поверх системной таблицы
// "storage". Жёсткое удаление конфигурации — вершина каскада:
// хранилище -> бакеты -> файлы -> физические части.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/gorefstore/internal/config"
	"github.com/bigkaa/gorefstore/internal/database"
	"github.com/bigkaa/gorefstore/internal/domain/model"
)

// StoragesService — операции над конфигурациями хранилищ.
type StoragesService struct {
	cfg      *config.Config
	root     *database.DatabaseAdapter
	storages *StorageService
	buckets  *BucketsService
	logger   *slog.Logger
}

// NewStoragesService создаёт сервис конфигураций хранилищ.
func NewStoragesService(cfg *config.Config, root *database.DatabaseAdapter, storages *StorageService, buckets *BucketsService, logger *slog.Logger) *StoragesService {
	return &StoragesService{
		cfg:      cfg,
		root:     root,
		storages: storages,
		buckets:  buckets,
		logger:   logger.With(slog.String("component", "storages")),
	}
}

// Create регистрирует конфигурацию хранилища.
func (s *StoragesService) Create(ctx context.Context, databaseID string, data model.StorageData, userUID string) (*model.Record, error) {
	if data.Name == "" {
		return nil, fmt.Errorf("имя хранилища обязательно: %w", database.ErrValidation)
	}
	if data.Type == "" {
		return nil, fmt.Errorf("тип хранилища обязателен: %w", database.ErrValidation)
	}
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.StorageRef(ctx, db)
	if err != nil {
		return nil, err
	}
	dataMap, err := model.ToDataMap(data)
	if err != nil {
		return nil, fmt.Errorf("кодирование записи хранилища: %w", err)
	}
	return ref.Create(ctx, database.CreateRecordRequest{Data: dataMap, CreatedBy: userUID})
}

// Get возвращает запись конфигурации по фильтру.
func (s *StoragesService) Get(ctx context.Context, databaseID string, f database.Filter) (*model.Record, error) {
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.StorageRef(ctx, db)
	if err != nil {
		return nil, err
	}
	return ref.Get(ctx, database.GetOptions{Filter: f})
}

// Query возвращает страницу записей конфигураций.
func (s *StoragesService) Query(ctx context.Context, databaseID string, opts database.QueryOptions) (*database.QueryResult, error) {
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.StorageRef(ctx, db)
	if err != nil {
		return nil, err
	}
	return ref.Query(ctx, opts)
}

// Delete удаляет конфигурации хранилищ по фильтру. Мягкое удаление
// помечает только сами записи. Жёсткое запускает полный каскад:
// для каждого хранилища — его бакеты (а через них файлы и части),
// затем запись конфигурации.
func (s *StoragesService) Delete(ctx context.Context, databaseID string, f database.Filter, withSoftDelete bool, userUID string) (*database.BulkResult, error) {
	db := s.root.TemporaryContext(databaseID)
	ref, err := s.storages.StorageRef(ctx, db)
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
		for _, storageRec := range page.List {
			buckets, err := s.buckets.Delete(ctx, databaseID,
				database.Filter{"data.storage_id": storageRec.UID}, false, userUID)
			if err != nil {
				return nil, fmt.Errorf("каскад бакетов хранилища %s: %w", storageRec.UID, err)
			}
			if _, err := ref.Delete(ctx, database.Filter{"uid": storageRec.UID}, database.DeleteOptions{}); err != nil {
				return nil, fmt.Errorf("удаление хранилища %s: %w", storageRec.UID, err)
			}
			result.List = append(result.List, database.BulkRef{UID: storageRec.UID})
			cascadeDeletesTotal.WithLabelValues("storage").Inc()
			s.logger.Info("Хранилище удалено каскадом",
				slog.String("storage_id", storageRec.UID),
				slog.Int64("buckets", buckets.Total))
		}
	}
	result.Total = int64(len(result.List))
	return result, nil
}
