// tenant.go — адаптер баз-арендаторов. Реестр арендаторов живёт в коллекции
// database_records первичной базы; каждому арендатору соответствует
// физическая база <первичная>_<uid> со своими служебными коллекциями.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bigkaa/gorefstore/internal/domain/model"
)

// DatabaseAdapter — корневой адаптер хранилища документов. Привязан либо
// к первичной базе, либо к базе арендатора. Use мутирует привязку и
// предназначен только для долгоживущих сессий; обработка запросов обязана
// использовать TemporaryContext.
type DatabaseAdapter struct {
	client        *mongo.Client
	primaryName   string
	maxQueryLimit int64
	logger        *slog.Logger

	databaseID string
	current    *mongo.Database

	// Tables — реестр таблиц текущей базы.
	Tables *TablesAdapter
	// Ref — непривязанный адаптер документов текущей базы (нужен From).
	Ref *RefAdapter
}

// NewAdapter создаёт адаптер, привязанный к первичной базе.
func NewAdapter(client *mongo.Client, primaryName string, maxQueryLimit int64, logger *slog.Logger) *DatabaseAdapter {
	a := &DatabaseAdapter{
		client:        client,
		primaryName:   primaryName,
		maxQueryLimit: maxQueryLimit,
		logger:        logger.With(slog.String("component", "database")),
	}
	a.bind("")
	return a
}

// bind привязывает адаптер к базе арендатора (пустой uid — первичная).
func (a *DatabaseAdapter) bind(databaseID string) {
	name := a.primaryName
	if databaseID != "" {
		name = BuildDatabaseName(a.primaryName, databaseID)
	}
	a.databaseID = databaseID
	a.current = a.client.Database(name)
	a.Tables = newTablesAdapter(a.current, a.maxQueryLimit)
	a.Ref = &RefAdapter{db: a.current, maxQueryLimit: a.maxQueryLimit}
}

// Use переключает адаптер на базу арендатора. Мутирует приёмник —
// использовать только в одиночных долгоживущих сессиях.
func (a *DatabaseAdapter) Use(databaseID string) {
	a.bind(databaseID)
}

// ResetToPrimary возвращает адаптер к первичной базе.
func (a *DatabaseAdapter) ResetToPrimary() {
	a.bind("")
}

// TemporaryContext возвращает независимый адаптер, привязанный к базе
// арендатора (пустой uid — первичная). Исходный адаптер не меняется;
// это основной механизм работы с арендаторами при обработке запросов.
func (a *DatabaseAdapter) TemporaryContext(databaseID string) *DatabaseAdapter {
	tmp := &DatabaseAdapter{
		client:        a.client,
		primaryName:   a.primaryName,
		maxQueryLimit: a.maxQueryLimit,
		logger:        a.logger,
	}
	tmp.bind(databaseID)
	return tmp
}

// DatabaseID возвращает uid базы арендатора ("" — первичная).
func (a *DatabaseAdapter) DatabaseID() string {
	return a.databaseID
}

// PrimaryName возвращает имя первичной базы.
func (a *DatabaseAdapter) PrimaryName() string {
	return a.primaryName
}

// registry — реестр арендаторов в первичной базе (не зависит от привязки).
func (a *DatabaseAdapter) registry() recordStore {
	return recordStore{
		coll:          a.client.Database(a.primaryName).Collection(DatabasesCollection),
		maxQueryLimit: a.maxQueryLimit,
	}
}

// Exists сообщает, существует ли физическая база арендатора.
func (a *DatabaseAdapter) Exists(ctx context.Context, databaseID string) (bool, error) {
	names, err := a.client.ListDatabaseNames(ctx,
		bson.M{"name": BuildDatabaseName(a.primaryName, databaseID)})
	if err != nil {
		return false, fmt.Errorf("список баз: %w", err)
	}
	return len(names) > 0, nil
}

// Create регистрирует арендатора и создаёт его физическую базу.
// Имя обязательно и должно быть уникально среди неудалённых записей
// (проверка read-then-write: гонка двух одновременных create возможна,
// уникальный индекс несовместим с переиспользованием имён после
// мягкого удаления).
func (a *DatabaseAdapter) Create(ctx context.Context, req CreateRecordRequest) (*model.Record, error) {
	name, _ := req.Data["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("имя базы обязательно: %w", ErrValidation)
	}
	existing, err := a.registry().Get(ctx, GetOptions{Filter: Filter{
		"data.name": name,
		"isDeleted": Filter{"$ne": true},
	}})
	if err == nil && existing != nil {
		return nil, fmt.Errorf("база с именем %q уже существует: %w", name, ErrConflict)
	}

	rec, err := a.registry().Create(ctx, req)
	if err != nil {
		return nil, err
	}

	// Провизия физической базы: служебные коллекции реестров.
	phys := a.client.Database(BuildDatabaseName(a.primaryName, rec.UID))
	for _, coll := range []string{DatabasesCollection, TablesCollection} {
		if err := phys.CreateCollection(ctx, coll); err != nil {
			return nil, fmt.Errorf("создание коллекции %s базы %s: %w", coll, rec.UID, err)
		}
	}
	a.logger.Info("База арендатора создана",
		slog.String("database_id", rec.UID), slog.String("name", name))
	return rec, nil
}

// Get возвращает запись арендатора по фильтру.
func (a *DatabaseAdapter) Get(ctx context.Context, opts GetOptions) (*model.Record, error) {
	return a.registry().Get(ctx, opts)
}

// Query возвращает страницу записей арендаторов.
func (a *DatabaseAdapter) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	return a.registry().Query(ctx, opts)
}

// Count возвращает число записей арендаторов по фильтру.
func (a *DatabaseAdapter) Count(ctx context.Context, f Filter) (int64, error) {
	return a.registry().Count(ctx, f)
}

// Put полностью заменяет Data записей арендаторов.
func (a *DatabaseAdapter) Put(ctx context.Context, f Filter, req UpdateRecordRequest) (*BulkResult, error) {
	return a.registry().Put(ctx, f, req)
}

// Patch сливает Data записей арендаторов.
func (a *DatabaseAdapter) Patch(ctx context.Context, f Filter, req UpdateRecordRequest) (*BulkResult, error) {
	return a.registry().Patch(ctx, f, req)
}

// Delete удаляет записи арендаторов. Жёсткое удаление дополнительно
// сбрасывает физические базы (по возможности, с логированием ошибок).
func (a *DatabaseAdapter) Delete(ctx context.Context, f Filter, opts DeleteOptions) (*BulkResult, error) {
	res, err := a.registry().Delete(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	if !opts.WithSoftDelete {
		for _, ref := range res.List {
			phys := a.client.Database(BuildDatabaseName(a.primaryName, ref.UID))
			if err := phys.Drop(ctx); err != nil {
				a.logger.Error("Не удалось сбросить физическую базу",
					slog.String("database_id", ref.UID), slog.Any("error", err))
			}
		}
	}
	return res, nil
}

// Client возвращает низкоуровневый клиент MongoDB (нужен тестам и bootstrap).
func (a *DatabaseAdapter) Client() *mongo.Client {
	return a.client
}

// Database возвращает текущую физическую базу адаптера.
func (a *DatabaseAdapter) Database() *mongo.Database {
	return a.current
}
