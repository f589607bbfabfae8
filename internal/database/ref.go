// ref.go — адаптер документов. Перед использованием обязательна привязка
// к таблице через From; From возвращает независимое неизменяемое значение,
// общего изменяемого состояния между привязками нет.
package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bigkaa/gorefstore/internal/domain/model"
)

// RefAdapter — адаптер документов одной таблицы. Нулевой tableID означает
// отсутствие привязки: все операции возвращают ErrNotBound.
type RefAdapter struct {
	db            *mongo.Database
	tableID       string
	maxQueryLimit int64
}

// From возвращает новый адаптер, привязанный к таблице. Приёмник
// не меняется; полученные адаптеры можно свободно использовать
// из разных горутин.
func (r *RefAdapter) From(tableID string) *RefAdapter {
	return &RefAdapter{
		db:            r.db,
		tableID:       tableID,
		maxQueryLimit: r.maxQueryLimit,
	}
}

// TableID возвращает uid привязанной таблицы.
func (r *RefAdapter) TableID() string {
	return r.tableID
}

func (r *RefAdapter) records() (recordStore, error) {
	if r.tableID == "" {
		return recordStore{}, ErrNotBound
	}
	return recordStore{
		coll:          r.db.Collection(BuildTableName(r.tableID)),
		maxQueryLimit: r.maxQueryLimit,
	}, nil
}

// Create вставляет документ, штампуя конверт (uid, createdAt, createdBy).
func (r *RefAdapter) Create(ctx context.Context, req CreateRecordRequest) (*model.Record, error) {
	store, err := r.records()
	if err != nil {
		return nil, err
	}
	return store.Create(ctx, req)
}

// Get возвращает первый документ по фильтру.
func (r *RefAdapter) Get(ctx context.Context, opts GetOptions) (*model.Record, error) {
	store, err := r.records()
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, opts)
}

// Query возвращает страницу документов; take ограничен максимумом.
func (r *RefAdapter) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	store, err := r.records()
	if err != nil {
		return nil, err
	}
	return store.Query(ctx, opts)
}

// Count возвращает число документов по фильтру.
func (r *RefAdapter) Count(ctx context.Context, f Filter) (int64, error) {
	store, err := r.records()
	if err != nil {
		return 0, err
	}
	return store.Count(ctx, f)
}

// Put полностью заменяет Data затронутых документов.
func (r *RefAdapter) Put(ctx context.Context, f Filter, req UpdateRecordRequest) (*BulkResult, error) {
	store, err := r.records()
	if err != nil {
		return nil, err
	}
	return store.Put(ctx, f, req)
}

// Patch сливает Data затронутых документов (поверхностно, по каждому
// документу отдельно).
func (r *RefAdapter) Patch(ctx context.Context, f Filter, req UpdateRecordRequest) (*BulkResult, error) {
	store, err := r.records()
	if err != nil {
		return nil, err
	}
	return store.Patch(ctx, f, req)
}

// Delete удаляет документы (мягко или физически); список затронутых uid
// вычисляется до мутации.
func (r *RefAdapter) Delete(ctx context.Context, f Filter, opts DeleteOptions) (*BulkResult, error) {
	store, err := r.records()
	if err != nil {
		return nil, err
	}
	return store.Delete(ctx, f, opts)
}
