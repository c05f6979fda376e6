// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrHashComputation — не удалось вычислить отпечаток содержимого.
	ErrHashComputation = errors.New("ошибка вычисления отпечатка содержимого")
	// ErrInvalidFingerprint — отпечаток не является корректной hex-строкой SHA-256.
	ErrInvalidFingerprint = errors.New("некорректный отпечаток содержимого")
	// ErrSearchValidation — ошибка валидации параметров поиска.
	ErrSearchValidation = errors.New("ошибка валидации параметров поиска")
	// ErrLookup — хранилище записей недоступно при поиске оригинала.
	ErrLookup = errors.New("ошибка поиска оригинала")
	// ErrReferenceCreation — атомарное создание ссылки не завершилось.
	ErrReferenceCreation = errors.New("ошибка создания ссылки на оригинал")
	// ErrDeletion — мутация записей при удалении не завершилась.
	ErrDeletion = errors.New("ошибка удаления файла")
	// ErrInvalidOperation — логически недопустимая операция (признак ошибки в коде вызывающего).
	ErrInvalidOperation = errors.New("недопустимая операция")
)
