package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv задаёт минимальный набор обязательных переменных.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FH_DB_HOST", "localhost")
	t.Setenv("FH_DB_NAME", "filehub")
	t.Setenv("FH_DB_USER", "filehub")
	t.Setenv("FH_DB_PASSWORD", "secret")
}

// clearOptionalEnv сбрасывает необязательные переменные, чтобы тесты
// не зависели от окружения запуска.
func clearOptionalEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"FH_PORT", "FH_LOG_LEVEL", "FH_LOG_FORMAT",
		"FH_HTTP_READ_TIMEOUT", "FH_HTTP_WRITE_TIMEOUT", "FH_HTTP_IDLE_TIMEOUT",
		"FH_DB_PORT", "FH_DB_SSL_MODE",
		"FH_STORAGE_BACKEND", "FH_STORAGE_PATH", "FH_MAX_FILE_SIZE",
		"FH_S3_ENDPOINT", "FH_S3_REGION", "FH_S3_BUCKET",
		"FH_S3_ACCESS_KEY", "FH_S3_SECRET_KEY", "FH_S3_USE_PATH_STYLE",
		"FH_CACHE_SIZE", "FH_CACHE_TTL",
		"FH_DEPHEALTH_CHECK_INTERVAL", "FH_DEPHEALTH_GROUP", "FH_DEPHEALTH_ISENTRY",
		"FH_SHUTDOWN_TIMEOUT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

// TestLoad_Defaults проверяет значения по умолчанию.
func TestLoad_Defaults(t *testing.T) {
	clearOptionalEnv(t)
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load ошибка: %v", err)
	}

	if cfg.Port != 8085 {
		t.Errorf("Port = %d, ожидался 8085", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидался info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидался json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидался 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидался disable", cfg.DBSSLMode)
	}
	if cfg.StorageBackend != StorageBackendLocal {
		t.Errorf("StorageBackend = %q, ожидался local", cfg.StorageBackend)
	}
	if cfg.MaxFileSize != 1073741824 {
		t.Errorf("MaxFileSize = %d, ожидался 1 GB", cfg.MaxFileSize)
	}
	if cfg.CacheSize != 1000 {
		t.Errorf("CacheSize = %d, ожидался 1000", cfg.CacheSize)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, ожидался 5m", cfg.CacheTTL)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидался 15s", cfg.DephealthCheckInterval)
	}
	if cfg.DephealthGroup != "filehub" {
		t.Errorf("DephealthGroup = %q, ожидался filehub", cfg.DephealthGroup)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидался 5s", cfg.ShutdownTimeout)
	}
}

// TestLoad_MissingRequired проверяет ошибку при незаданных обязательных
// переменных.
func TestLoad_MissingRequired(t *testing.T) {
	clearOptionalEnv(t)
	setRequiredEnv(t)
	t.Setenv("FH_DB_HOST", "")

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при отсутствии FH_DB_HOST")
	} else if !strings.Contains(err.Error(), "FH_DB_HOST") {
		t.Errorf("ошибка = %v, ожидалось упоминание FH_DB_HOST", err)
	}
}

// TestLoad_InvalidValues проверяет отклонение некорректных значений.
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"порт вне диапазона", "FH_PORT", "70000"},
		{"порт не число", "FH_PORT", "abc"},
		{"недопустимый уровень логов", "FH_LOG_LEVEL", "verbose"},
		{"недопустимый формат логов", "FH_LOG_FORMAT", "xml"},
		{"недопустимый SSL-режим", "FH_DB_SSL_MODE", "maybe"},
		{"недопустимый бэкенд", "FH_STORAGE_BACKEND", "ftp"},
		{"отрицательный лимит файла", "FH_MAX_FILE_SIZE", "-1"},
		{"некорректная длительность", "FH_CACHE_TTL", "5 minutes"},
		{"нулевой размер кэша", "FH_CACHE_SIZE", "0"},
		{"некорректное булево", "FH_DEPHEALTH_ISENTRY", "да"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOptionalEnv(t)
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("%s=%q: ожидалась ошибка", tt.key, tt.value)
			}
		})
	}
}

// TestLoad_S3BackendRequirements проверяет обязательность S3-переменных
// для бэкенда s3.
func TestLoad_S3BackendRequirements(t *testing.T) {
	clearOptionalEnv(t)
	setRequiredEnv(t)
	t.Setenv("FH_STORAGE_BACKEND", "s3")

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка: FH_S3_BUCKET не задан")
	}

	t.Setenv("FH_S3_BUCKET", "filehub-data")
	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка: ключи доступа не заданы")
	}

	t.Setenv("FH_S3_ACCESS_KEY", "key")
	t.Setenv("FH_S3_SECRET_KEY", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load ошибка: %v", err)
	}
	if cfg.S3Bucket != "filehub-data" {
		t.Errorf("S3Bucket = %q", cfg.S3Bucket)
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q, ожидался us-east-1", cfg.S3Region)
	}
}

// TestDatabaseDSN проверяет формирование строки подключения.
func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db.local", DBPort: 5433, DBName: "filehub",
		DBUser: "app", DBPassword: "pw", DBSSLMode: "require",
	}

	dsn := cfg.DatabaseDSN()
	want := "host=db.local port=5433 dbname=filehub user=app password=pw sslmode=require"
	if dsn != want {
		t.Errorf("DSN = %q, ожидался %q", dsn, want)
	}
}

// TestDatabaseURL проверяет URL-форму и экранирование учётных данных.
func TestDatabaseURL(t *testing.T) {
	cfg := &Config{
		DBHost: "db.local", DBPort: 5432, DBName: "filehub",
		DBUser: "app", DBPassword: "p@ss", DBSSLMode: "disable",
	}

	u := cfg.DatabaseURL()
	if !strings.HasPrefix(u, "postgres://") {
		t.Errorf("URL = %q, ожидался префикс postgres://", u)
	}
	if strings.Contains(u, "p@ss") {
		t.Errorf("URL = %q, пароль не экранирован", u)
	}
	if !strings.Contains(u, "sslmode=disable") {
		t.Errorf("URL = %q, нет sslmode", u)
	}
}

// TestParseLogLevel проверяет разбор уровней логирования.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLogLevel(%q): ожидалась ошибка", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLogLevel(%q) ошибка: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидался %v", tt.input, got, tt.want)
		}
	}
}
