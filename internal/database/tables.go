// tables.go — реестр таблиц текущей базы. Метаданные живут в коллекции
// tables_records; каждой таблице соответствует физическая коллекция
// table_<uid>.
package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bigkaa/gorefstore/internal/domain/model"
)

// TablesAdapter — адаптер реестра таблиц одной базы.
type TablesAdapter struct {
	db    *mongo.Database
	store recordStore
}

func newTablesAdapter(db *mongo.Database, maxQueryLimit int64) *TablesAdapter {
	return &TablesAdapter{
		db: db,
		store: recordStore{
			coll:          db.Collection(TablesCollection),
			maxQueryLimit: maxQueryLimit,
		},
	}
}

// Exists сообщает, существует ли физическая коллекция таблицы.
func (t *TablesAdapter) Exists(ctx context.Context, tableID string) (bool, error) {
	names, err := t.db.ListCollectionNames(ctx, bson.M{"name": BuildTableName(tableID)})
	if err != nil {
		return false, fmt.Errorf("список коллекций: %w", err)
	}
	return len(names) > 0, nil
}

// Create регистрирует таблицу и создаёт её физическую коллекцию.
// Имя обязательно и уникально среди неудалённых записей (read-then-write,
// см. замечание в DatabaseAdapter.Create).
func (t *TablesAdapter) Create(ctx context.Context, req CreateRecordRequest) (*model.Record, error) {
	name, _ := req.Data["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("имя таблицы обязательно: %w", ErrValidation)
	}
	if err := t.checkNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	rec, err := t.store.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := t.db.CreateCollection(ctx, BuildTableName(rec.UID)); err != nil {
		return nil, fmt.Errorf("создание коллекции таблицы %s: %w", rec.UID, err)
	}
	return rec, nil
}

// Get возвращает запись таблицы по фильтру.
func (t *TablesAdapter) Get(ctx context.Context, opts GetOptions) (*model.Record, error) {
	return t.store.Get(ctx, opts)
}

// GetByName возвращает неудалённую таблицу по data.name.
func (t *TablesAdapter) GetByName(ctx context.Context, name string) (*model.Record, error) {
	return t.store.Get(ctx, GetOptions{Filter: Filter{
		"data.name": name,
		"isDeleted": Filter{"$ne": true},
	}})
}

// Query возвращает страницу записей таблиц.
func (t *TablesAdapter) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	return t.store.Query(ctx, opts)
}

// Count возвращает число записей таблиц по фильтру.
func (t *TablesAdapter) Count(ctx context.Context, f Filter) (int64, error) {
	return t.store.Count(ctx, f)
}

// Put полностью заменяет Data записей таблиц. Новое имя повторно
// проверяется на уникальность, исключая сами затронутые записи.
func (t *TablesAdapter) Put(ctx context.Context, f Filter, req UpdateRecordRequest) (*BulkResult, error) {
	if err := t.revalidateName(ctx, f, req); err != nil {
		return nil, err
	}
	return t.store.Put(ctx, f, req)
}

// Patch сливает Data записей таблиц с той же повторной проверкой имени.
func (t *TablesAdapter) Patch(ctx context.Context, f Filter, req UpdateRecordRequest) (*BulkResult, error) {
	if err := t.revalidateName(ctx, f, req); err != nil {
		return nil, err
	}
	return t.store.Patch(ctx, f, req)
}

// Delete удаляет записи таблиц. Жёсткое удаление дополнительно сбрасывает
// физические коллекции; мягкое оставляет их нетронутыми.
func (t *TablesAdapter) Delete(ctx context.Context, f Filter, opts DeleteOptions) (*BulkResult, error) {
	res, err := t.store.Delete(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	if !opts.WithSoftDelete {
		for _, ref := range res.List {
			if err := t.db.Collection(BuildTableName(ref.UID)).Drop(ctx); err != nil {
				return nil, fmt.Errorf("сброс коллекции таблицы %s: %w", ref.UID, err)
			}
		}
	}
	return res, nil
}

// revalidateName проверяет уникальность нового имени для каждой
// затронутой записи, исключая её саму.
func (t *TablesAdapter) revalidateName(ctx context.Context, f Filter, req UpdateRecordRequest) error {
	name, _ := req.Data["name"].(string)
	if name == "" {
		return nil
	}
	affected, err := t.store.affected(ctx, f)
	if err != nil {
		return err
	}
	for _, ref := range affected.List {
		if err := t.checkNameFree(ctx, name, ref.UID); err != nil {
			return err
		}
	}
	return nil
}

// checkNameFree возвращает ErrConflict, если имя занято другой
// неудалённой записью.
func (t *TablesAdapter) checkNameFree(ctx context.Context, name, ownUID string) error {
	filter := Filter{
		"data.name": name,
		"isDeleted": Filter{"$ne": true},
	}
	if ownUID != "" {
		filter["uid"] = Filter{"$ne": ownUID}
	}
	_, err := t.store.Get(ctx, GetOptions{Filter: filter})
	if err == nil {
		return fmt.Errorf("таблица с именем %q уже существует: %w", name, ErrConflict)
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
