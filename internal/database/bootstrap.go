// bootstrap.go — инициализация первичной базы при старте сервиса.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
)

// Имена системных таблиц первичной базы. Сервисы находят их по data.name,
// а не по именам физических коллекций.
const (
	StorageTableName = "storage"
	BucketsTableName = "buckets"
	FilesTableName   = "files"
)

// EnsureBootstrap приводит первичную базу к рабочему состоянию:
// служебные коллекции реестров и системные таблицы storage/buckets/files.
// Идемпотентна, вызывается при каждом старте.
func EnsureBootstrap(ctx context.Context, a *DatabaseAdapter, logger *slog.Logger) error {
	primary := a.Client().Database(a.PrimaryName())

	// 1. Служебные коллекции реестров.
	existing, err := primary.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("список коллекций первичной базы: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}
	for _, coll := range []string{DatabasesCollection, TablesCollection} {
		if have[coll] {
			continue
		}
		if err := primary.CreateCollection(ctx, coll); err != nil {
			return fmt.Errorf("создание коллекции %s: %w", coll, err)
		}
		logger.Info("Создана служебная коллекция", slog.String("collection", coll))
	}

	// 2. Системные таблицы файлового движка.
	tables := a.TemporaryContext("").Tables
	for _, name := range []string{StorageTableName, BucketsTableName, FilesTableName} {
		_, err := tables.GetByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("поиск системной таблицы %s: %w", name, err)
		}
		rec, err := tables.Create(ctx, CreateRecordRequest{
			Data:      map[string]any{"name": name, "description": "системная таблица"},
			CreatedBy: "system",
		})
		if err != nil {
			return fmt.Errorf("создание системной таблицы %s: %w", name, err)
		}
		logger.Info("Создана системная таблица",
			slog.String("name", name), slog.String("table_id", rec.UID))
	}
	return nil
}
