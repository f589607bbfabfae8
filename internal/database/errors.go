package database

import "errors"

// Sentinel-ошибки слоя базы данных. Вызывающие различают их через errors.Is.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт: дубликат имени или несовпадение версии записи.
	ErrConflict = errors.New("конфликт записи")
	// ErrNotBound — Ref-адаптер не привязан к таблице (не вызван From).
	ErrNotBound = errors.New("адаптер не привязан к таблице")
	// ErrValidation — некорректные входные данные.
	ErrValidation = errors.New("ошибка валидации")
)
