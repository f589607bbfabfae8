package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRequestLogger_QueryIdentifiers проверяет, что в лог запроса попадают
// идентификаторы адресации из query-параметров и заголовок X-User-Uid,
// а отсутствующие параметры опускаются.
func TestRequestLogger_QueryIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/files/download?storage_id=st-1&bucket_id=bk-1&file_id=fl-1", nil)
	req.Header.Set("X-User-Uid", "ivanov")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("не удалось разобрать лог-запись: %v", err)
	}

	if entry["level"] != "WARN" {
		t.Errorf("ожидался уровень WARN для 404, получено %v", entry["level"])
	}
	if entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("ожидался статус 404, получено %v", entry["status"])
	}
	if entry["storage_id"] != "st-1" || entry["bucket_id"] != "bk-1" || entry["file_id"] != "fl-1" {
		t.Errorf("ожидались идентификаторы st-1/bk-1/fl-1, получено %v/%v/%v",
			entry["storage_id"], entry["bucket_id"], entry["file_id"])
	}
	if entry["user_uid"] != "ivanov" {
		t.Errorf("ожидался user_uid ivanov, получено %v", entry["user_uid"])
	}
	if _, ok := entry["database_id"]; ok {
		t.Errorf("отсутствующий query-параметр database_id не должен попадать в лог")
	}
}

// TestRequestLogger_LevelByStatus проверяет выбор уровня логирования
// по статус-коду ответа.
func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("статус %d: не удалось разобрать лог-запись: %v", tt.status, err)
		}
		if entry["level"] != tt.level {
			t.Errorf("статус %d: ожидался уровень %s, получено %v", tt.status, tt.level, entry["level"])
		}
	}
}
