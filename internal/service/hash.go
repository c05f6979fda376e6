// hash.go — потоковое вычисление отпечатка содержимого.
// SHA-256 по блокам фиксированного размера; позиция источника
// восстанавливается, чтобы тот же поток можно было сохранить без
// повторного открытия.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
)

// hashChunkSize — размер блока чтения при вычислении отпечатка (8 KiB).
const hashChunkSize = 8192

// FingerprintLength — длина hex-представления SHA-256.
const FingerprintLength = 64

// HashService — вычисление отпечатков содержимого файлов.
type HashService struct {
	logger *slog.Logger
}

// NewHashService создаёт сервис вычисления отпечатков.
func NewHashService(logger *slog.Logger) *HashService {
	return &HashService{
		logger: logger.With(slog.String("component", "hash_service")),
	}
}

// ComputeFingerprint вычисляет SHA-256 отпечаток содержимого src.
// Читает источник блоками по 8 KiB с начала до конца и возвращает
// позицию чтения в начало, чтобы источник можно было сохранить дальше.
// Отмена ctx прерывает вычисление между блоками.
//
// Детерминированность: одинаковое содержимое всегда даёт одинаковый
// отпечаток; вероятность коллизии SHA-256 принята пренебрежимо малой.
func (s *HashService) ComputeFingerprint(ctx context.Context, src io.ReadSeeker) (string, error) {
	if src == nil {
		return "", fmt.Errorf("%w: источник не задан", ErrHashComputation)
	}

	// Читаем с начала независимо от текущей позиции источника
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: ошибка перемотки источника: %v", ErrHashComputation, err)
	}

	digest := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrHashComputation, err)
		}

		n, err := src.Read(buf)
		if n > 0 {
			// hash.Hash.Write не возвращает ошибок
			digest.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: ошибка чтения источника: %v", ErrHashComputation, err)
		}
	}

	// Возвращаем позицию в начало: дальше источник сохраняется как есть
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: ошибка возврата позиции источника: %v", ErrHashComputation, err)
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

// ValidateFingerprint проверяет, что строка является корректным
// hex-представлением SHA-256: непустая, длиной 64 символа, только
// шестнадцатеричные цифры.
func ValidateFingerprint(fingerprint string) error {
	if fingerprint == "" {
		return fmt.Errorf("%w: пустое значение", ErrInvalidFingerprint)
	}
	if len(fingerprint) != FingerprintLength {
		return fmt.Errorf("%w: длина %d, ожидается %d", ErrInvalidFingerprint, len(fingerprint), FingerprintLength)
	}
	if _, err := hex.DecodeString(fingerprint); err != nil {
		return fmt.Errorf("%w: не hex-строка", ErrInvalidFingerprint)
	}
	return nil
}
