// Пакет filestore — локальный дисковый бэкенд blob-хранилища.
// Обеспечивает атомарную запись (temp файл → fsync → rename),
// чтение и удаление содержимого по ключу.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey — ключ выходит за пределы корневого каталога.
var ErrInvalidKey = errors.New("некорректный ключ хранилища")

// FileStore — хранение физического содержимого на локальном диске.
type FileStore struct {
	// rootDir — корневая директория хранения (FH_STORAGE_PATH)
	rootDir string
}

// New создаёт новый FileStore. Проверяет и создаёт директорию,
// если она не существует.
func New(rootDir string) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", rootDir, err)
	}

	return &FileStore{rootDir: rootDir}, nil
}

// Save записывает данные из r на диск под ключом key.
// Возвращает количество записанных байт.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return 0, err
	}

	// Ключ может содержать подкаталог (uploads/...)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return 0, fmt.Errorf("ошибка создания каталога для %s: %w", key, err)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return size, nil
}

// Open открывает содержимое по ключу для чтения.
// Вызывающий код обязан закрыть ReadCloser.
func (fs *FileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("содержимое не найдено: %s", key)
		}
		return nil, fmt.Errorf("ошибка открытия %s: %w", key, err)
	}

	return f, nil
}

// Delete удаляет содержимое по ключу.
// Возвращает nil, если содержимое уже не существует.
func (fs *FileStore) Delete(ctx context.Context, key string) error {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления %s: %w", key, err)
	}
	return nil
}

// Exists проверяет наличие содержимого по ключу.
func (fs *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := fs.resolve(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки %s: %w", key, err)
	}
	return true, nil
}

// RootDir возвращает путь к корневой директории данных.
func (fs *FileStore) RootDir() string {
	return fs.rootDir
}

// resolve превращает ключ в абсолютный путь, не позволяя выйти
// за пределы rootDir (защита от path traversal).
func (fs *FileStore) resolve(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(fs.rootDir, cleaned), nil
}
