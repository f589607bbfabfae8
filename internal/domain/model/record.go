// Пакет model — доменные структуры RefStore: универсальный конверт документа,
// конфигурации хранилищ, файловые записи.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Record — универсальный конверт документа. Полезная нагрузка лежит в Data,
// служебные поля (аудит, мягкое удаление, блокировка) — на верхнем уровне.
// Временные метки — Unix-миллисекунды.
type Record struct {
	UID       string         `bson:"uid" json:"uid"`
	Data      map[string]any `bson:"data" json:"data"`
	CreatedAt int64          `bson:"createdAt" json:"createdAt"`
	CreatedBy string         `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	UpdatedAt int64          `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	UpdatedBy string         `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	IsDeleted bool           `bson:"isDeleted,omitempty" json:"isDeleted,omitempty"`
	DeletedAt int64          `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	DeletedBy string         `bson:"deletedBy,omitempty" json:"deletedBy,omitempty"`
	IsLocked  bool           `bson:"isLocked,omitempty" json:"isLocked,omitempty"`
	LockedAt  int64          `bson:"lockedAt,omitempty" json:"lockedAt,omitempty"`
	LockedBy  string         `bson:"lockedBy,omitempty" json:"lockedBy,omitempty"`
}

// Name возвращает data.name записи, если оно задано.
func (r *Record) Name() string {
	if r == nil || r.Data == nil {
		return ""
	}
	name, _ := r.Data["name"].(string)
	return name
}

// NowMillis — текущее время в Unix-миллисекундах. Единый формат
// временных меток для всех записей.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// ToDataMap кодирует типизированную структуру в map для поля Data записи.
func ToDataMap(v any) (map[string]any, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromDataMap декодирует поле Data записи в типизированную структуру.
func FromDataMap(m map[string]any, out any) error {
	raw, err := bson.Marshal(m)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}
