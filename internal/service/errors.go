package service

import "errors"

// Sentinel-ошибки сервисного слоя. Ошибки нижних слоёв (database, storage)
// пробрасываются как есть и различаются через errors.Is.
var (
	// ErrUnsupportedStorage — тип бэкенда не поддерживается.
	ErrUnsupportedStorage = errors.New("тип хранилища не поддерживается")
	// ErrFileNotReady — файл в статусе fail, скачивание невозможно.
	ErrFileNotReady = errors.New("файл не готов к скачиванию")
	// ErrQueueFull — очередь репликации переполнена.
	ErrQueueFull = errors.New("очередь репликации переполнена")
)
