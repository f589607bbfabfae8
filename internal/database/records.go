// records.go — общий CRUD над коллекцией записей-конвертов.
// Адаптеры баз, таблиц и документов используют его как основу и добавляют
// собственную логику (физические базы/коллекции, уникальность имён).
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bigkaa/gorefstore/internal/domain/model"
)

// Число повторов read-modify-write при конфликте версий в Patch.
const patchRetries = 3

// CreateRecordRequest — параметры создания записи.
// Пустой UID означает автогенерацию (uuid v4).
type CreateRecordRequest struct {
	UID       string
	Data      map[string]any
	CreatedBy string
}

// UpdateRecordRequest — параметры обновления записи.
// Nil-указатели означают «поле не трогать».
type UpdateRecordRequest struct {
	Data      map[string]any
	UpdatedBy string
	IsDeleted *bool
	DeletedBy string
	IsLocked  *bool
	LockedBy  string
}

// GetOptions — параметры точечного чтения.
type GetOptions struct {
	Filter Filter
}

// QueryOptions — параметры выборки. Take <= 0 или больше максимума
// приводится к настроенному максимуму.
type QueryOptions struct {
	Filter Filter
	Sort   Sort
	Take   int64
	Skip   int64
}

// QueryResult — результат выборки: страница записей и её размер.
type QueryResult struct {
	List  []*model.Record `json:"list"`
	Total int64           `json:"total"`
}

// DeleteOptions — параметры удаления. WithSoftDelete помечает записи
// удалёнными вместо физического удаления.
type DeleteOptions struct {
	WithSoftDelete bool
	DeletedBy      string
}

// BulkRef — ссылка на затронутую запись.
type BulkRef struct {
	UID string `json:"uid"`
}

// BulkResult — результат массовой операции. Список вычисляется
// до применения изменений.
type BulkResult struct {
	List  []BulkRef `json:"list"`
	Total int64     `json:"total"`
}

// recordStore — CRUD над одной коллекцией MongoDB.
type recordStore struct {
	coll          *mongo.Collection
	maxQueryLimit int64
}

// Create вставляет новую запись, штампуя конверт.
func (s recordStore) Create(ctx context.Context, req CreateRecordRequest) (*model.Record, error) {
	uid := req.UID
	if uid == "" {
		uid = uuid.New().String()
	}
	n, err := s.coll.CountDocuments(ctx, bson.M{"uid": uid})
	if err != nil {
		return nil, fmt.Errorf("проверка уникальности uid: %w", err)
	}
	if n > 0 {
		return nil, fmt.Errorf("запись с uid %s уже существует: %w", uid, ErrConflict)
	}

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}
	rec := &model.Record{
		UID:       uid,
		Data:      data,
		CreatedAt: model.NowMillis(),
		CreatedBy: createdBy,
	}
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return nil, fmt.Errorf("вставка записи: %w", err)
	}
	return rec, nil
}

// Get возвращает первую запись, удовлетворяющую фильтру.
func (s recordStore) Get(ctx context.Context, opts GetOptions) (*model.Record, error) {
	var rec model.Record
	err := s.coll.FindOne(ctx, ConvertFilter(opts.Filter)).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение записи: %w", err)
	}
	return &rec, nil
}

// Query возвращает страницу записей. Take ограничивается максимумом.
func (s recordStore) Query(ctx context.Context, opts QueryOptions) (*QueryResult, error) {
	take := opts.Take
	if take <= 0 || take > s.maxQueryLimit {
		take = s.maxQueryLimit
	}
	skip := opts.Skip
	if skip < 0 {
		skip = 0
	}

	findOpts := options.Find().SetLimit(take).SetSkip(skip)
	if len(opts.Sort) > 0 {
		findOpts = findOpts.SetSort(ConvertSort(opts.Sort))
	}
	cur, err := s.coll.Find(ctx, ConvertFilter(opts.Filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("выборка записей: %w", err)
	}
	defer cur.Close(ctx)

	list := []*model.Record{}
	for cur.Next(ctx) {
		var rec model.Record
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("декодирование записи: %w", err)
		}
		list = append(list, &rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("курсор выборки: %w", err)
	}
	return &QueryResult{List: list, Total: int64(len(list))}, nil
}

// Count возвращает число записей, удовлетворяющих фильтру.
func (s recordStore) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, ConvertFilter(f))
	if err != nil {
		return 0, fmt.Errorf("подсчёт записей: %w", err)
	}
	return n, nil
}

// Put полностью заменяет Data затронутых записей.
func (s recordStore) Put(ctx context.Context, f Filter, req UpdateRecordRequest) (*BulkResult, error) {
	affected, err := s.affected(ctx, f)
	if err != nil {
		return nil, err
	}
	set := s.envelopeSet(req)
	if req.Data != nil {
		set["data"] = req.Data
	}
	if _, err := s.coll.UpdateMany(ctx, ConvertFilter(f), bson.M{"$set": set}); err != nil {
		return nil, fmt.Errorf("обновление записей: %w", err)
	}
	return affected, nil
}

// Patch сливает req.Data с текущим Data каждой затронутой записи
// (поверхностное слияние по верхнему уровню ключей). Каждый документ
// обновляется отдельно с оптимистической проверкой версии по updatedAt.
func (s recordStore) Patch(ctx context.Context, f Filter, req UpdateRecordRequest) (*BulkResult, error) {
	affected, err := s.affected(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, ref := range affected.List {
		if err := s.patchOne(ctx, ref.UID, f, req); err != nil {
			return nil, err
		}
	}
	return affected, nil
}

// patchOne — read-modify-write одного документа с повторами при конфликте.
// Исходный фильтр применяется и при перечитывании, и в условии обновления:
// документ, переставший ему удовлетворять (например, сменивший статус),
// не трогается.
func (s recordStore) patchOne(ctx context.Context, uid string, f Filter, req UpdateRecordRequest) error {
	for attempt := 0; attempt < patchRetries; attempt++ {
		read := ConvertFilter(f)
		read["uid"] = uid
		var rec model.Record
		err := s.coll.FindOne(ctx, read).Decode(&rec)
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Документ удалён или вышел из-под фильтра между выборкой и обновлением.
			return nil
		}
		if err != nil {
			return fmt.Errorf("чтение записи %s: %w", uid, err)
		}

		set := s.envelopeSet(req)
		if req.Data != nil {
			merged := make(map[string]any, len(rec.Data)+len(req.Data))
			for k, v := range rec.Data {
				merged[k] = v
			}
			for k, v := range req.Data {
				merged[k] = v
			}
			set["data"] = merged
		}

		// Токен версии: совпадение updatedAt (или его отсутствие у свежих записей).
		match := ConvertFilter(f)
		match["uid"] = uid
		if rec.UpdatedAt == 0 {
			match["updatedAt"] = bson.M{"$exists": false}
		} else {
			match["updatedAt"] = rec.UpdatedAt
		}
		res, err := s.coll.UpdateOne(ctx, match, bson.M{"$set": set})
		if err != nil {
			return fmt.Errorf("обновление записи %s: %w", uid, err)
		}
		if res.MatchedCount == 1 {
			return nil
		}
		// Конкурентное изменение — перечитываем и повторяем.
	}
	return fmt.Errorf("запись %s изменяется конкурентно: %w", uid, ErrConflict)
}

// Delete удаляет записи по фильтру. Список затронутых uid вычисляется
// до мутации. Мягкое удаление только помечает записи.
func (s recordStore) Delete(ctx context.Context, f Filter, opts DeleteOptions) (*BulkResult, error) {
	affected, err := s.affected(ctx, f)
	if err != nil {
		return nil, err
	}
	if opts.WithSoftDelete {
		deletedBy := opts.DeletedBy
		if deletedBy == "" {
			deletedBy = "system"
		}
		set := bson.M{
			"isDeleted": true,
			"deletedAt": model.NowMillis(),
			"deletedBy": deletedBy,
		}
		if _, err := s.coll.UpdateMany(ctx, ConvertFilter(f), bson.M{"$set": set}); err != nil {
			return nil, fmt.Errorf("мягкое удаление записей: %w", err)
		}
		return affected, nil
	}
	if _, err := s.coll.DeleteMany(ctx, ConvertFilter(f)); err != nil {
		return nil, fmt.Errorf("удаление записей: %w", err)
	}
	return affected, nil
}

// affected собирает uid записей, попадающих под фильтр.
func (s recordStore) affected(ctx context.Context, f Filter) (*BulkResult, error) {
	cur, err := s.coll.Find(ctx, ConvertFilter(f),
		options.Find().SetProjection(bson.M{"uid": 1}))
	if err != nil {
		return nil, fmt.Errorf("выборка затронутых записей: %w", err)
	}
	defer cur.Close(ctx)

	res := &BulkResult{List: []BulkRef{}}
	for cur.Next(ctx) {
		var rec struct {
			UID string `bson:"uid"`
		}
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("декодирование uid: %w", err)
		}
		res.List = append(res.List, BulkRef{UID: rec.UID})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("курсор затронутых записей: %w", err)
	}
	res.Total = int64(len(res.List))
	return res, nil
}

// envelopeSet строит $set для служебных полей конверта.
func (s recordStore) envelopeSet(req UpdateRecordRequest) bson.M {
	now := model.NowMillis()
	set := bson.M{"updatedAt": now}
	if req.UpdatedBy != "" {
		set["updatedBy"] = req.UpdatedBy
	}
	if req.IsDeleted != nil {
		set["isDeleted"] = *req.IsDeleted
		if *req.IsDeleted {
			set["deletedAt"] = now
			if req.DeletedBy != "" {
				set["deletedBy"] = req.DeletedBy
			}
		}
	}
	if req.IsLocked != nil {
		set["isLocked"] = *req.IsLocked
		if *req.IsLocked {
			set["lockedAt"] = now
			if req.LockedBy != "" {
				set["lockedBy"] = req.LockedBy
			}
		}
	}
	return set
}
