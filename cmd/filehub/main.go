// Точка входа File Hub — сервиса хранения файлов с дедупликацией
// по содержимому.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/shiddhantbehera/abnormal-file-hub/internal/api/handlers"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/api/middleware"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/config"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/database"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/repository"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/server"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/service"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/storage"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/storage/filestore"
	"github.com/shiddhantbehera/abnormal-file-hub/internal/storage/s3store"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("File Hub запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Миграции схемы PostgreSQL
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Пул подключений PostgreSQL
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 3. Blob-хранилище по выбранному бэкенду
	var blobs storage.BlobStore
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		blobs = s3store.New(s3store.Options{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		logger.Info("Blob-хранилище: S3", slog.String("bucket", cfg.S3Bucket))
	default:
		fs, err := filestore.New(cfg.StoragePath)
		if err != nil {
			logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
			os.Exit(1)
		}
		blobs = fs
		logger.Info("Blob-хранилище: локальный диск", slog.String("path", cfg.StoragePath))
	}

	// 4. Репозитории и транзакции
	fileRepo := repository.NewFileRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 5. Сервисы
	hashSvc := service.NewHashService(logger)
	dedupSvc := service.NewDedupService(fileRepo, txRunner, blobs, logger)
	uploadSvc := service.NewUploadService(hashSvc, dedupSvc, blobs, logger)
	cacheSvc := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	searchSvc := service.NewSearchService(fileRepo, cacheSvc, logger)

	// 6. topologymetrics — мониторинг зависимостей
	sqlDB := stdlib.OpenDBFromPool(pool)
	dephealthSvc, err := service.NewDephealthService(
		"filehub",
		cfg.DephealthGroup,
		sqlDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if err != nil {
		// Мониторинг зависимостей не критичен для работы сервиса
		logger.Warn("Мониторинг зависимостей не запущен", slog.String("error", err.Error()))
	} else {
		if err := dephealthSvc.Start(ctx); err != nil {
			logger.Warn("Мониторинг зависимостей не запущен", slog.String("error", err.Error()))
		} else {
			defer dephealthSvc.Stop()
		}
	}

	// 7. Обработчики API
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool))
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		uploadSvc,
		searchSvc,
		dedupSvc,
		blobs,
		cacheSvc,
		cfg.MaxFileSize,
		logger,
	)

	// 8. HTTP-сервер с middleware (метрики, логирование)
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 9. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("File Hub остановлен")
}
