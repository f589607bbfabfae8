// storage.go — фасад файлового движка: поиск конфигураций хранилищ через
// системные таблицы и выбор бэкенда. Конфигурация и адаптер разрешаются
// заново на каждый вызов, кэша адаптеров нет: смена конфигурации
// подхватывается немедленно.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/gorefstore/internal/config"
	"github.com/bigkaa/gorefstore/internal/database"
	"github.com/bigkaa/gorefstore/internal/domain/model"
	"github.com/bigkaa/gorefstore/internal/storage"
	"github.com/bigkaa/gorefstore/internal/storage/local"
	"github.com/bigkaa/gorefstore/internal/storage/s3"
)

// StorageService разрешает конфигурации хранилищ и создаёт адаптеры.
type StorageService struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewStorageService создаёт фасад файлового движка.
func NewStorageService(cfg *config.Config, logger *slog.Logger) *StorageService {
	return &StorageService{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "storage")),
	}
}

// ResolveStorage находит неудалённую запись конфигурации хранилища по uid
// через системную таблицу "storage".
func (s *StorageService) ResolveStorage(ctx context.Context, db *database.DatabaseAdapter, storageID string) (*model.Record, *model.StorageData, error) {
	table, err := db.Tables.GetByName(ctx, database.StorageTableName)
	if err != nil {
		return nil, nil, fmt.Errorf("системная таблица %s: %w", database.StorageTableName, err)
	}
	rec, err := db.Ref.From(table.UID).Get(ctx, database.GetOptions{Filter: database.Filter{
		"uid":       storageID,
		"isDeleted": database.Filter{"$ne": true},
	}})
	if err != nil {
		return nil, nil, fmt.Errorf("конфигурация хранилища %s: %w", storageID, err)
	}
	var data model.StorageData
	if err := model.FromDataMap(rec.Data, &data); err != nil {
		return nil, nil, fmt.Errorf("декодирование конфигурации хранилища %s: %w", storageID, err)
	}
	return rec, &data, nil
}

// ResolveBucket находит неудалённую запись бакета по uid через системную
// таблицу "buckets".
func (s *StorageService) ResolveBucket(ctx context.Context, db *database.DatabaseAdapter, bucketID string) (*model.Record, error) {
	table, err := db.Tables.GetByName(ctx, database.BucketsTableName)
	if err != nil {
		return nil, fmt.Errorf("системная таблица %s: %w", database.BucketsTableName, err)
	}
	rec, err := db.Ref.From(table.UID).Get(ctx, database.GetOptions{Filter: database.Filter{
		"uid":       bucketID,
		"isDeleted": database.Filter{"$ne": true},
	}})
	if err != nil {
		return nil, fmt.Errorf("бакет %s: %w", bucketID, err)
	}
	return rec, nil
}

// FilesRef возвращает Ref-адаптер системной таблицы "files" текущей базы.
func (s *StorageService) FilesRef(ctx context.Context, db *database.DatabaseAdapter) (*database.RefAdapter, error) {
	table, err := db.Tables.GetByName(ctx, database.FilesTableName)
	if err != nil {
		return nil, fmt.Errorf("системная таблица %s: %w", database.FilesTableName, err)
	}
	return db.Ref.From(table.UID), nil
}

// BucketsRef возвращает Ref-адаптер системной таблицы "buckets".
func (s *StorageService) BucketsRef(ctx context.Context, db *database.DatabaseAdapter) (*database.RefAdapter, error) {
	table, err := db.Tables.GetByName(ctx, database.BucketsTableName)
	if err != nil {
		return nil, fmt.Errorf("системная таблица %s: %w", database.BucketsTableName, err)
	}
	return db.Ref.From(table.UID), nil
}

// StorageRef возвращает Ref-адаптер системной таблицы "storage".
func (s *StorageService) StorageRef(ctx context.Context, db *database.DatabaseAdapter) (*database.RefAdapter, error) {
	table, err := db.Tables.GetByName(ctx, database.StorageTableName)
	if err != nil {
		return nil, fmt.Errorf("системная таблица %s: %w", database.StorageTableName, err)
	}
	return db.Ref.From(table.UID), nil
}

// Prefix возвращает логический префикс хранилища. При пустом префиксе
// в конфигурации действует соглашение /database/<id>/users/<uid>.
func (s *StorageService) Prefix(data *model.StorageData, databaseID, userUID string) string {
	if data.Configs.Prefix != "" {
		return data.Configs.Prefix
	}
	if databaseID == "" {
		databaseID = "primary"
	}
	if userUID == "" {
		userUID = "system"
	}
	return fmt.Sprintf("/database/%s/users/%s", databaseID, userUID)
}

// AdapterFor создаёт адаптер бэкенда по конфигурации хранилища.
func (s *StorageService) AdapterFor(ctx context.Context, data *model.StorageData, prefix string) (storage.Adapter, error) {
	switch data.Type {
	case model.StorageTypeLocal:
		root := data.Configs.LocalStoragePath
		if root == "" {
			root = s.cfg.LocalStoragePath
		}
		return local.New(root, prefix)
	case model.StorageTypeAWS:
		return s3.New(ctx, data.Configs, prefix)
	default:
		return nil, fmt.Errorf("%q: %w", data.Type, ErrUnsupportedStorage)
	}
}

// TempAdapter создаёт адаптер временного локального хранилища —
// промежуточной площадки двухфазной загрузки.
func (s *StorageService) TempAdapter(prefix string) (*local.Adapter, error) {
	return local.New(s.cfg.TempStoragePath, prefix)
}

// IsLocal сообщает, является ли бэкенд локальным (синхронная загрузка).
func (s *StorageService) IsLocal(data *model.StorageData) bool {
	return data.Type == model.StorageTypeLocal
}
