// Пакет storage — абстракция физического blob-хранилища.
// Ядро дедупликации работает с содержимым только через опечатанный
// ключ (storage_key); конкретный бэкенд выбирается конфигурацией.
package storage

import (
	"context"
	"io"
)

// BlobStore — хранилище физического содержимого файлов.
// Ключи непрозрачны для вызывающего кода: их генерирует сервис
// загрузки, хранит таблица files, интерпретирует только бэкенд.
type BlobStore interface {
	// Save сохраняет содержимое из r под ключом key.
	// Возвращает количество записанных байт.
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open открывает содержимое по ключу для чтения.
	// Вызывающий код обязан закрыть ReadCloser.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete удаляет содержимое по ключу.
	// Возвращает nil, если содержимое уже отсутствует.
	Delete(ctx context.Context, key string) error
	// Exists проверяет наличие содержимого по ключу.
	Exists(ctx context.Context, key string) (bool, error)
}
