package model

// Типы бэкендов хранилищ. Сейчас реализованы local и aws (S3-класс:
// AWS S3, MinIO и совместимые). Остальные зарезервированы.
const (
	StorageTypeLocal = "local"
	StorageTypeAWS   = "aws"
	StorageTypeAzure = "azure"
	StorageTypeGCP   = "gcp"
	StorageTypeFTP   = "ftp"
)

// StorageData — полезная нагрузка записи конфигурации хранилища
// (системная таблица "storage").
type StorageData struct {
	Name        string         `bson:"name" json:"name"`
	Description string         `bson:"description,omitempty" json:"description,omitempty"`
	Type        string         `bson:"type" json:"type"`
	Configs     StorageConfigs `bson:"configs,omitempty" json:"configs,omitempty"`
}

// StorageConfigs — параметры подключения бэкенда. Для local значимы
// Prefix и LocalStoragePath, для S3-класса — Endpoint/Region/Bucket/ключи.
type StorageConfigs struct {
	Prefix           string `bson:"prefix,omitempty" json:"prefix,omitempty"`
	LocalStoragePath string `bson:"localStoragePath,omitempty" json:"localStoragePath,omitempty"`
	Endpoint         string `bson:"endpoint,omitempty" json:"endpoint,omitempty"`
	Region           string `bson:"region,omitempty" json:"region,omitempty"`
	Bucket           string `bson:"bucket,omitempty" json:"bucket,omitempty"`
	AccessKeyID      string `bson:"accessKeyId,omitempty" json:"accessKeyId,omitempty"`
	SecretAccessKey  string `bson:"secretAccessKey,omitempty" json:"secretAccessKey,omitempty"`
	UseSSL           bool   `bson:"useSsl,omitempty" json:"useSsl,omitempty"`
}

// BucketData — полезная нагрузка записи бакета (системная таблица "buckets").
// StorageID связывает бакет с конфигурацией хранилища.
type BucketData struct {
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	StorageID   string `bson:"storage_id" json:"storage_id"`
}
