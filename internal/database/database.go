// Пакет database — слой доступа к MongoDB: подключение, трансляция фильтров,
// адаптеры баз-арендаторов, реестра таблиц и документов.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Таймаут первичной проверки соединения.
const connectPingTimeout = 10 * time.Second

// Connect устанавливает соединение с MongoDB и проверяет его ping-ом.
func Connect(ctx context.Context, uri string, logger *slog.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("подключение к MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("проверка соединения с MongoDB: %w", err)
	}

	logger.Info("Соединение с MongoDB установлено")
	return client, nil
}

// ReadinessChecker проверяет готовность MongoDB для /health/ready.
type ReadinessChecker struct {
	client *mongo.Client
}

// NewReadinessChecker создаёт проверку готовности.
func NewReadinessChecker(client *mongo.Client) *ReadinessChecker {
	return &ReadinessChecker{client: client}
}

// CheckReady возвращает состояние соединения и диагностическое сообщение.
func (rc *ReadinessChecker) CheckReady(ctx context.Context) (bool, string) {
	if err := rc.client.Ping(ctx, readpref.Primary()); err != nil {
		return false, fmt.Sprintf("MongoDB недоступна: %v", err)
	}
	return true, "ok"
}
