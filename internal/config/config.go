// Пакет config — загрузка и валидация конфигурации RefStore
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации RefStore.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// URI подключения к MongoDB
	MongoDBURI string
	// Имя первичной базы данных
	DBName string
	// Максимальный размер страницы выборки (clamp для take)
	MaxQueryLimit int64
	// Корень локального хранилища файлов
	LocalStoragePath string
	// Корень временного хранилища (промежуточная площадка двухфазной загрузки)
	TempStoragePath string
	// Число воркеров репликации
	ReplicationWorkers int
	// Ёмкость очереди репликации
	ReplicationQueueSize int
	// Максимум попыток одной задачи репликации
	ReplicationMaxAttempts int
	// Базовая задержка между попытками (растёт с номером попытки)
	ReplicationRetryBackoff time.Duration
	// Интервал перескана pending-записей
	ReplicationRescanInterval time.Duration
	// Продолжать ли каскадное удаление при отказе удаления части
	CascadeContinueOnError bool
	// Путь к TLS сертификату (опционально, вместе с ключом)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (RS_DEPHEALTH_GROUP)
	DephealthGroup string
	// URL health-endpoint S3-хранилища для мониторинга (опционально)
	DephealthS3URL string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// RS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("RS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("RS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// RS_MONGODB_URI — обязательный
	cfg.MongoDBURI, err = getEnvRequired("RS_MONGODB_URI")
	if err != nil {
		return nil, err
	}

	// RS_DB_NAME — имя первичной базы (по умолчанию "refstore")
	cfg.DBName = getEnvDefault("RS_DB_NAME", "refstore")

	// RS_MAX_QUERY_LIMIT — максимальный размер страницы (по умолчанию 50)
	cfg.MaxQueryLimit, err = getEnvInt64("RS_MAX_QUERY_LIMIT", 50)
	if err != nil {
		return nil, fmt.Errorf("RS_MAX_QUERY_LIMIT: %w", err)
	}
	if cfg.MaxQueryLimit <= 0 {
		return nil, fmt.Errorf("RS_MAX_QUERY_LIMIT: значение должно быть положительным")
	}

	// RS_LOCAL_STORAGE_PATH — обязательный
	cfg.LocalStoragePath, err = getEnvRequired("RS_LOCAL_STORAGE_PATH")
	if err != nil {
		return nil, err
	}

	// RS_TEMP_STORAGE_PATH — корень временного хранилища (по умолчанию "temp_storage")
	cfg.TempStoragePath = getEnvDefault("RS_TEMP_STORAGE_PATH", "temp_storage")

	// RS_REPLICATION_WORKERS — число воркеров репликации (по умолчанию 4)
	cfg.ReplicationWorkers, err = getEnvInt("RS_REPLICATION_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("RS_REPLICATION_WORKERS: %w", err)
	}
	if cfg.ReplicationWorkers < 1 {
		return nil, fmt.Errorf("RS_REPLICATION_WORKERS: значение должно быть положительным")
	}

	// RS_REPLICATION_QUEUE_SIZE — ёмкость очереди репликации (по умолчанию 64)
	cfg.ReplicationQueueSize, err = getEnvInt("RS_REPLICATION_QUEUE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("RS_REPLICATION_QUEUE_SIZE: %w", err)
	}
	if cfg.ReplicationQueueSize < 1 {
		return nil, fmt.Errorf("RS_REPLICATION_QUEUE_SIZE: значение должно быть положительным")
	}

	// RS_REPLICATION_MAX_ATTEMPTS — максимум попыток задачи (по умолчанию 5)
	cfg.ReplicationMaxAttempts, err = getEnvInt("RS_REPLICATION_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("RS_REPLICATION_MAX_ATTEMPTS: %w", err)
	}
	if cfg.ReplicationMaxAttempts < 1 {
		return nil, fmt.Errorf("RS_REPLICATION_MAX_ATTEMPTS: значение должно быть положительным")
	}

	// RS_REPLICATION_RETRY_BACKOFF — базовая задержка повторов (по умолчанию 5s)
	cfg.ReplicationRetryBackoff, err = getEnvDuration("RS_REPLICATION_RETRY_BACKOFF", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RS_REPLICATION_RETRY_BACKOFF: %w", err)
	}

	// RS_REPLICATION_RESCAN_INTERVAL — интервал перескана pending (по умолчанию 5m)
	cfg.ReplicationRescanInterval, err = getEnvDuration("RS_REPLICATION_RESCAN_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RS_REPLICATION_RESCAN_INTERVAL: %w", err)
	}

	// RS_CASCADE_CONTINUE_ON_ERROR — поведение каскада при отказе части (по умолчанию true)
	cfg.CascadeContinueOnError, err = getEnvBool("RS_CASCADE_CONTINUE_ON_ERROR", true)
	if err != nil {
		return nil, fmt.Errorf("RS_CASCADE_CONTINUE_ON_ERROR: %w", err)
	}

	// RS_TLS_CERT / RS_TLS_KEY — опциональная пара для HTTPS
	cfg.TLSCert = getEnvDefault("RS_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("RS_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("RS_TLS_CERT и RS_TLS_KEY задаются только парой")
	}

	// RS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RS_LOG_LEVEL: %w", err)
	}

	// RS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("RS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// RS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("RS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// RS_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("RS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// RS_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "refstore")
	cfg.DephealthGroup = getEnvDefault("RS_DEPHEALTH_GROUP", "refstore")

	// RS_DEPHEALTH_S3_URL — URL health-endpoint S3 (опционально; пусто — мониторинг выключен)
	cfg.DephealthS3URL = getEnvDefault("RS_DEPHEALTH_S3_URL", "")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics (без префикса модуля)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (используйте true/false)", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 5m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
