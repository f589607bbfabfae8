// Точка входа RefStore — мультиарендного хранилища документов
// с подключаемым файловым движком.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/gorefstore/internal/api/handlers"
	"github.com/bigkaa/gorefstore/internal/config"
	"github.com/bigkaa/gorefstore/internal/database"
	"github.com/bigkaa/gorefstore/internal/server"
	"github.com/bigkaa/gorefstore/internal/service"
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
	logger.Info("RefStore запускается",
		slog.String("version", config.Version),
		slog.String("db_name", cfg.DBName),
		slog.Int("port", cfg.Port),
	)

	// --- Инициализация компонентов ---

	ctx := context.Background()

	// 1. Соединение с MongoDB
	client, err := database.Connect(ctx, cfg.MongoDBURI, logger)
	if err != nil {
		logger.Error("Ошибка подключения к MongoDB", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	// 2. Корневой адаптер и bootstrap первичной базы
	root := database.NewAdapter(client, cfg.DBName, cfg.MaxQueryLimit, logger)
	if err := database.EnsureBootstrap(ctx, root, logger); err != nil {
		logger.Error("Ошибка bootstrap первичной базы", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Сервисы файлового движка
	storages := service.NewStorageService(cfg, logger)
	replicator := service.NewReplicator(cfg, logger)
	files := service.NewFilesService(cfg, root, storages, replicator, logger)

	// 4. Фоновая репликация (стартовый перескан подберёт pending-записи,
	// оставшиеся после рестарта)
	replicator.Start(ctx)

	// 5. topologymetrics — мониторинг зависимостей (опционально)
	var dephealthSvc *service.DephealthService
	if cfg.DephealthS3URL != "" {
		dephealthSvc, err = service.NewDephealthService(
			cfg.DephealthName,
			cfg.DephealthGroup,
			cfg.DephealthS3URL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("s3_url", cfg.DephealthS3URL),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 6. Handlers
	filesHandler := handlers.NewFilesHandler(files, logger)
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(client), cfg.LocalStoragePath)

	// 7. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, filesHandler, healthHandler)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	replicator.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("RefStore остановлен")
}
