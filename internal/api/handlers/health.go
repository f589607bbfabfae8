// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/gorefstore/internal/config"
	"github.com/bigkaa/gorefstore/internal/database"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// checker — проверка готовности MongoDB
	checker *database.ReadinessChecker
	// localStoragePath — корень локального хранилища (для проверки FS)
	localStoragePath string
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(checker *database.ReadinessChecker, localStoragePath string) *HealthHandler {
	return &HealthHandler{
		version:          config.Version,
		checker:          checker,
		localStoragePath: localStoragePath,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "refstore",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: соединение с MongoDB, запись в корень локального хранилища.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	// Проверка MongoDB
	mongoCheck := map[string]any{"status": "ok"}
	if h.checker != nil {
		if ok, msg := h.checker.CheckReady(r.Context()); !ok {
			mongoCheck = map[string]any{"status": statusFail, "message": msg}
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	// Проверка файловой системы
	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "refstore",
		"checks": map[string]any{
			"mongodb":    mongoCheck,
			"filesystem": fsCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkFilesystem проверяет доступность корня локального хранилища на запись.
func (h *HealthHandler) checkFilesystem() map[string]any {
	if h.localStoragePath == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.localStoragePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Корень хранилища недоступен для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
