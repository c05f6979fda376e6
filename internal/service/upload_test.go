package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/domain/model"
)

// --- Mock зависимости UploadService ---

// mockHasher — мок FingerprintComputer.
type mockHasher struct {
	fingerprint string
	err         error
}

func (m *mockHasher) ComputeFingerprint(_ context.Context, _ io.ReadSeeker) (string, error) {
	return m.fingerprint, m.err
}

// mockDedup — мок Deduplicator.
type mockDedup struct {
	findOriginalFn     func(ctx context.Context, fingerprint string) (*model.FileRecord, error)
	registerOriginalFn func(ctx context.Context, meta FileMeta, fingerprint, storageKey string) (*RegisterResult, error)
	createReferenceFn  func(ctx context.Context, original *model.FileRecord, meta FileMeta) (*model.FileRecord, error)
}

func (m *mockDedup) FindOriginal(ctx context.Context, fingerprint string) (*model.FileRecord, error) {
	if m.findOriginalFn != nil {
		return m.findOriginalFn(ctx, fingerprint)
	}
	return nil, nil
}

func (m *mockDedup) RegisterOriginal(ctx context.Context, meta FileMeta, fingerprint, storageKey string) (*RegisterResult, error) {
	if m.registerOriginalFn != nil {
		return m.registerOriginalFn(ctx, meta, fingerprint, storageKey)
	}
	return &RegisterResult{Record: &model.FileRecord{ID: "new"}}, nil
}

func (m *mockDedup) CreateReference(ctx context.Context, original *model.FileRecord, meta FileMeta) (*model.FileRecord, error) {
	if m.createReferenceFn != nil {
		return m.createReferenceFn(ctx, original, meta)
	}
	return &model.FileRecord{ID: "ref", IsReference: true}, nil
}

// --- Тесты Upload ---

// TestUploadService_Upload_NewContent проверяет сохранение нового
// содержимого: blob записан, оригинал зарегистрирован.
func TestUploadService_Upload_NewContent(t *testing.T) {
	var savedKey, registeredKey string
	blobs := &mockBlobStore{
		saveFn: func(_ context.Context, key string, r io.Reader) (int64, error) {
			savedKey = key
			return io.Copy(io.Discard, r)
		},
	}
	dedup := &mockDedup{
		registerOriginalFn: func(_ context.Context, meta FileMeta, fp, key string) (*RegisterResult, error) {
			registeredKey = key
			if fp != testFingerprint {
				t.Errorf("fingerprint = %q, ожидался %q", fp, testFingerprint)
			}
			return &RegisterResult{Record: &model.FileRecord{ID: "orig-1", StorageKey: &key}}, nil
		},
	}
	svc := NewUploadService(&mockHasher{fingerprint: testFingerprint}, dedup, blobs, slog.Default())

	meta := FileMeta{OriginalName: "photo.png", ContentType: "image/png", SizeBytes: 4}
	result, err := svc.Upload(context.Background(), strings.NewReader("data"), meta)
	if err != nil {
		t.Fatalf("Upload ошибка: %v", err)
	}

	if result.Deduplicated {
		t.Error("Deduplicated = true для нового содержимого")
	}
	if result.StorageSaved != 0 {
		t.Errorf("StorageSaved = %d, ожидался 0", result.StorageSaved)
	}
	if savedKey == "" {
		t.Fatal("blob не сохранён")
	}
	if savedKey != registeredKey {
		t.Errorf("ключ blob %q не совпал с ключом записи %q", savedKey, registeredKey)
	}
	if !strings.HasPrefix(savedKey, "uploads/") || !strings.HasSuffix(savedKey, ".png") {
		t.Errorf("ключ %q не соответствует схеме uploads/<uuid>.png", savedKey)
	}
}

// TestUploadService_Upload_Duplicate проверяет, что найденный
// оригинал превращает загрузку в ссылку без записи blob.
func TestUploadService_Upload_Duplicate(t *testing.T) {
	original := &model.FileRecord{ID: "orig-1", ContentFingerprint: testFingerprint}
	blobSaved := false
	blobs := &mockBlobStore{
		saveFn: func(_ context.Context, _ string, _ io.Reader) (int64, error) {
			blobSaved = true
			return 0, nil
		},
	}
	dedup := &mockDedup{
		findOriginalFn: func(_ context.Context, _ string) (*model.FileRecord, error) {
			return original, nil
		},
		createReferenceFn: func(_ context.Context, got *model.FileRecord, meta FileMeta) (*model.FileRecord, error) {
			if got.ID != "orig-1" {
				t.Errorf("оригинал = %q, ожидался orig-1", got.ID)
			}
			return &model.FileRecord{ID: "ref-1", IsReference: true, OriginalID: &got.ID}, nil
		},
	}
	svc := NewUploadService(&mockHasher{fingerprint: testFingerprint}, dedup, blobs, slog.Default())

	meta := FileMeta{OriginalName: "copy.png", ContentType: "image/png", SizeBytes: 1000}
	result, err := svc.Upload(context.Background(), strings.NewReader("data"), meta)
	if err != nil {
		t.Fatalf("Upload ошибка: %v", err)
	}

	if !result.Deduplicated {
		t.Error("Deduplicated = false для дубликата")
	}
	if result.StorageSaved != 1000 {
		t.Errorf("StorageSaved = %d, ожидался 1000", result.StorageSaved)
	}
	if blobSaved {
		t.Error("blob сохранён для дубликата")
	}
	if !result.Record.IsReference {
		t.Error("запись не является ссылкой")
	}
}

// TestUploadService_Upload_LostRace проверяет проигрыш в гонке
// регистрации: лишний blob удаляется, загрузка становится ссылкой
// на победителя.
func TestUploadService_Upload_LostRace(t *testing.T) {
	winner := &model.FileRecord{ID: "winner", ContentFingerprint: testFingerprint}
	var savedKey, deletedKey string
	blobs := &mockBlobStore{
		saveFn: func(_ context.Context, key string, r io.Reader) (int64, error) {
			savedKey = key
			return io.Copy(io.Discard, r)
		},
		deleteFn: func(_ context.Context, key string) error {
			deletedKey = key
			return nil
		},
	}
	dedup := &mockDedup{
		registerOriginalFn: func(_ context.Context, _ FileMeta, _, _ string) (*RegisterResult, error) {
			return &RegisterResult{Record: winner, AlreadyExists: true}, nil
		},
		createReferenceFn: func(_ context.Context, got *model.FileRecord, _ FileMeta) (*model.FileRecord, error) {
			if got.ID != "winner" {
				t.Errorf("ссылка создана не на победителя: %q", got.ID)
			}
			return &model.FileRecord{ID: "ref-1", IsReference: true, OriginalID: &got.ID}, nil
		},
	}
	svc := NewUploadService(&mockHasher{fingerprint: testFingerprint}, dedup, blobs, slog.Default())

	meta := FileMeta{OriginalName: "race.bin", SizeBytes: 42}
	result, err := svc.Upload(context.Background(), strings.NewReader("data"), meta)
	if err != nil {
		t.Fatalf("Upload ошибка: %v", err)
	}

	if !result.Deduplicated {
		t.Error("Deduplicated = false при проигрыше в гонке")
	}
	if deletedKey == "" {
		t.Fatal("лишний blob не удалён")
	}
	if deletedKey != savedKey {
		t.Errorf("удалён ключ %q, сохранялся %q", deletedKey, savedKey)
	}
}

// TestUploadService_Upload_HashError проверяет, что ошибка вычисления
// отпечатка прерывает загрузку до каких-либо побочных эффектов.
func TestUploadService_Upload_HashError(t *testing.T) {
	blobSaved := false
	blobs := &mockBlobStore{
		saveFn: func(_ context.Context, _ string, _ io.Reader) (int64, error) {
			blobSaved = true
			return 0, nil
		},
	}
	hashErr := errors.New("источник нечитаем")
	svc := NewUploadService(&mockHasher{err: hashErr}, &mockDedup{}, blobs, slog.Default())

	_, err := svc.Upload(context.Background(), strings.NewReader("data"), FileMeta{OriginalName: "a"})
	if !errors.Is(err, hashErr) {
		t.Errorf("ошибка = %v, ожидалась ошибка вычисления отпечатка", err)
	}
	if blobSaved {
		t.Error("blob сохранён при ошибке вычисления отпечатка")
	}
}

// TestUploadService_Upload_RegisterError проверяет удаление blob
// при ошибке регистрации оригинала.
func TestUploadService_Upload_RegisterError(t *testing.T) {
	deleted := false
	blobs := &mockBlobStore{
		deleteFn: func(_ context.Context, _ string) error {
			deleted = true
			return nil
		},
	}
	dedup := &mockDedup{
		registerOriginalFn: func(_ context.Context, _ FileMeta, _, _ string) (*RegisterResult, error) {
			return nil, errors.New("ошибка записи")
		},
	}
	svc := NewUploadService(&mockHasher{fingerprint: testFingerprint}, dedup, blobs, slog.Default())

	_, err := svc.Upload(context.Background(), strings.NewReader("data"), FileMeta{OriginalName: "a", SizeBytes: 1})
	if err == nil {
		t.Fatal("ожидалась ошибка регистрации")
	}
	if !deleted {
		t.Error("blob не удалён после ошибки регистрации")
	}
}
