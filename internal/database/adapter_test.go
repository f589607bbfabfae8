package database

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// setupTestAdapter запускает MongoDB в Docker-контейнере через testcontainers
// и возвращает корневой адаптер, привязанный к чистой первичной базе.
func setupTestAdapter(t *testing.T) *DatabaseAdapter {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := mongodb.Run(ctx, "docker.io/mongo:7")
	if err != nil {
		t.Fatalf("Не удалось запустить MongoDB контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить строку подключения: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, err := Connect(connectCtx, uri, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})

	return NewAdapter(client, "refstore_test", 50, logger)
}

// TestReadinessChecker проверяет ReadinessChecker на живом соединении.
func TestReadinessChecker(t *testing.T) {
	a := setupTestAdapter(t)
	ctx := context.Background()

	checker := NewReadinessChecker(a.Client())
	ok, msg := checker.CheckReady(ctx)
	if !ok {
		t.Errorf("CheckReady() = false, message = %q; ожидали готовность", msg)
	}
}

// TestEnsureBootstrap проверяет инициализацию первичной базы и её
// идемпотентность.
func TestEnsureBootstrap(t *testing.T) {
	a := setupTestAdapter(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := EnsureBootstrap(ctx, a, logger); err != nil {
		t.Fatalf("EnsureBootstrap() вернул ошибку: %v", err)
	}
	// Повторный вызов — без ошибок и без дублей
	if err := EnsureBootstrap(ctx, a, logger); err != nil {
		t.Fatalf("Повторный EnsureBootstrap() вернул ошибку: %v", err)
	}

	for _, name := range []string{StorageTableName, BucketsTableName, FilesTableName} {
		rec, err := a.Tables.GetByName(ctx, name)
		if err != nil {
			t.Fatalf("Системная таблица %s не найдена: %v", name, err)
		}
		if rec.Name() != name {
			t.Errorf("data.name = %q, ожидали %q", rec.Name(), name)
		}
		n, err := a.Tables.Count(ctx, Filter{"data.name": name})
		if err != nil {
			t.Fatalf("Count() вернул ошибку: %v", err)
		}
		if n != 1 {
			t.Errorf("Таблица %s зарегистрирована %d раз, ожидали 1", name, n)
		}
	}
}

// TestTenantLifecycle проверяет жизненный цикл базы арендатора:
// создание, уникальность имени, физическую базу, изоляцию и удаление.
func TestTenantLifecycle(t *testing.T) {
	a := setupTestAdapter(t)
	ctx := context.Background()

	// Имя обязательно
	_, err := a.Create(ctx, CreateRecordRequest{Data: map[string]any{}})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("создание без имени: ожидали ErrValidation, получено %v", err)
	}

	tenant, err := a.Create(ctx, CreateRecordRequest{
		Data:      map[string]any{"name": "tenant-a"},
		CreatedBy: "tester",
	})
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	if tenant.UID == "" {
		t.Fatal("uid не сгенерирован")
	}
	if tenant.CreatedAt == 0 {
		t.Error("createdAt не проштампован")
	}
	if tenant.CreatedBy != "tester" {
		t.Errorf("createdBy = %q, ожидали 'tester'", tenant.CreatedBy)
	}

	// Дубль имени среди неудалённых — конфликт
	_, err = a.Create(ctx, CreateRecordRequest{Data: map[string]any{"name": "tenant-a"}})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("дубль имени: ожидали ErrConflict, получено %v", err)
	}

	// Физическая база создана вместе со служебными коллекциями
	exists, err := a.Exists(ctx, tenant.UID)
	if err != nil {
		t.Fatalf("Exists() вернул ошибку: %v", err)
	}
	if !exists {
		t.Error("физическая база арендатора не создана")
	}

	// Изоляция: таблица арендатора не видна из первичной базы
	tctx := a.TemporaryContext(tenant.UID)
	if tctx.DatabaseID() != tenant.UID {
		t.Errorf("DatabaseID() = %q, ожидали %q", tctx.DatabaseID(), tenant.UID)
	}
	if a.DatabaseID() != "" {
		t.Error("TemporaryContext изменил исходный адаптер")
	}
	if _, err := tctx.Tables.Create(ctx, CreateRecordRequest{
		Data: map[string]any{"name": "docs"},
	}); err != nil {
		t.Fatalf("создание таблицы арендатора: %v", err)
	}
	if _, err := a.Tables.GetByName(ctx, "docs"); !errors.Is(err, ErrNotFound) {
		t.Errorf("таблица арендатора видна из первичной базы: %v", err)
	}
	if _, err := tctx.Tables.GetByName(ctx, "docs"); err != nil {
		t.Errorf("таблица не видна из контекста арендатора: %v", err)
	}

	// Мягкое удаление: запись помечена, физическая база на месте
	res, err := a.Delete(ctx, Filter{"uid": tenant.UID},
		DeleteOptions{WithSoftDelete: true, DeletedBy: "tester"})
	if err != nil {
		t.Fatalf("мягкое удаление: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("затронуто %d записей, ожидали 1", res.Total)
	}
	rec, err := a.Get(ctx, GetOptions{Filter: Filter{"uid": tenant.UID}})
	if err != nil {
		t.Fatalf("чтение после мягкого удаления: %v", err)
	}
	if !rec.IsDeleted || rec.DeletedBy != "tester" {
		t.Errorf("запись не помечена удалённой: isDeleted=%v deletedBy=%q",
			rec.IsDeleted, rec.DeletedBy)
	}
	if exists, _ := a.Exists(ctx, tenant.UID); !exists {
		t.Error("мягкое удаление сбросило физическую базу")
	}

	// Имя освободилось для нового арендатора
	if _, err := a.Create(ctx, CreateRecordRequest{
		Data: map[string]any{"name": "tenant-a"},
	}); err != nil {
		t.Errorf("имя не освободилось после мягкого удаления: %v", err)
	}

	// Жёсткое удаление сбрасывает физическую базу
	if _, err := a.Delete(ctx, Filter{"uid": tenant.UID}, DeleteOptions{}); err != nil {
		t.Fatalf("жёсткое удаление: %v", err)
	}
	if _, err := a.Get(ctx, GetOptions{Filter: Filter{"uid": tenant.UID}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("запись осталась после жёсткого удаления: %v", err)
	}
	if exists, _ := a.Exists(ctx, tenant.UID); exists {
		t.Error("физическая база осталась после жёсткого удаления")
	}
}

// TestTableLifecycle проверяет реестр таблиц: физические коллекции,
// переименование с проверкой уникальности, жёсткое удаление.
func TestTableLifecycle(t *testing.T) {
	a := setupTestAdapter(t)
	ctx := context.Background()

	table, err := a.Tables.Create(ctx, CreateRecordRequest{
		Data: map[string]any{"name": "invoices", "description": "счета"},
	})
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	exists, err := a.Tables.Exists(ctx, table.UID)
	if err != nil {
		t.Fatalf("Exists() вернул ошибку: %v", err)
	}
	if !exists {
		t.Error("физическая коллекция таблицы не создана")
	}

	other, err := a.Tables.Create(ctx, CreateRecordRequest{
		Data: map[string]any{"name": "orders"},
	})
	if err != nil {
		t.Fatalf("создание второй таблицы: %v", err)
	}

	// Переименование в занятое имя — конфликт
	_, err = a.Tables.Patch(ctx, Filter{"uid": other.UID}, UpdateRecordRequest{
		Data: map[string]any{"name": "invoices"},
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("переименование в занятое имя: ожидали ErrConflict, получено %v", err)
	}

	// Переименование в собственное имя допустимо
	if _, err := a.Tables.Patch(ctx, Filter{"uid": other.UID}, UpdateRecordRequest{
		Data: map[string]any{"name": "orders"},
	}); err != nil {
		t.Errorf("переименование в собственное имя: %v", err)
	}

	// Жёсткое удаление сбрасывает физическую коллекцию
	if _, err := a.Tables.Delete(ctx, Filter{"uid": table.UID}, DeleteOptions{}); err != nil {
		t.Fatalf("жёсткое удаление: %v", err)
	}
	if exists, _ := a.Tables.Exists(ctx, table.UID); exists {
		t.Error("физическая коллекция осталась после жёсткого удаления")
	}
}

// TestRefCRUD проверяет операции над документами: привязку через From,
// семантику put и patch, пагинацию и фильтры.
func TestRefCRUD(t *testing.T) {
	a := setupTestAdapter(t)
	ctx := context.Background()

	// Без привязки все операции возвращают ErrNotBound
	if _, err := a.Ref.Get(ctx, GetOptions{}); !errors.Is(err, ErrNotBound) {
		t.Errorf("операция без From: ожидали ErrNotBound, получено %v", err)
	}

	table, err := a.Tables.Create(ctx, CreateRecordRequest{
		Data: map[string]any{"name": "docs"},
	})
	if err != nil {
		t.Fatalf("создание таблицы: %v", err)
	}
	ref := a.Ref.From(table.UID)

	doc, err := ref.Create(ctx, CreateRecordRequest{
		Data:      map[string]any{"title": "отчёт", "pages": 10, "author": "ivanov"},
		CreatedBy: "ivanov",
	})
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	// Повторная вставка того же uid — конфликт
	_, err = ref.Create(ctx, CreateRecordRequest{UID: doc.UID})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("дубль uid: ожидали ErrConflict, получено %v", err)
	}

	// Patch — поверхностное слияние: нетронутые ключи сохраняются
	if _, err := ref.Patch(ctx, Filter{"uid": doc.UID}, UpdateRecordRequest{
		Data:      map[string]any{"pages": 12},
		UpdatedBy: "petrov",
	}); err != nil {
		t.Fatalf("Patch() вернул ошибку: %v", err)
	}
	rec, err := ref.Get(ctx, GetOptions{Filter: Filter{"uid": doc.UID}})
	if err != nil {
		t.Fatalf("Get() вернул ошибку: %v", err)
	}
	if rec.Data["title"] != "отчёт" {
		t.Errorf("patch потерял нетронутый ключ: %v", rec.Data)
	}
	if rec.UpdatedAt == 0 || rec.UpdatedBy != "petrov" {
		t.Errorf("конверт не проштампован: updatedAt=%d updatedBy=%q",
			rec.UpdatedAt, rec.UpdatedBy)
	}

	// Put — полная замена Data
	if _, err := ref.Put(ctx, Filter{"uid": doc.UID}, UpdateRecordRequest{
		Data: map[string]any{"title": "итоговый отчёт"},
	}); err != nil {
		t.Fatalf("Put() вернул ошибку: %v", err)
	}
	rec, err = ref.Get(ctx, GetOptions{Filter: Filter{"uid": doc.UID}})
	if err != nil {
		t.Fatalf("Get() вернул ошибку: %v", err)
	}
	if _, ok := rec.Data["pages"]; ok {
		t.Errorf("put сохранил старый ключ: %v", rec.Data)
	}

	// Пагинация и фильтр $like
	for i := 0; i < 5; i++ {
		if _, err := ref.Create(ctx, CreateRecordRequest{
			Data: map[string]any{"title": "черновик", "author": "ivanov"},
		}); err != nil {
			t.Fatalf("вставка документа: %v", err)
		}
	}
	page, err := ref.Query(ctx, QueryOptions{
		Filter: Filter{"data.title": map[string]any{"$like": "черн*"}},
		Take:   3,
	})
	if err != nil {
		t.Fatalf("Query() вернул ошибку: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("страница из %d записей, ожидали 3", page.Total)
	}
	n, err := ref.Count(ctx, Filter{"data.author": "ivanov"})
	if err != nil {
		t.Fatalf("Count() вернул ошибку: %v", err)
	}
	if n != 6 {
		t.Errorf("Count() = %d, ожидали 6", n)
	}

	// Удаление возвращает затронутые uid до мутации
	res, err := ref.Delete(ctx, Filter{"data.title": "черновик"}, DeleteOptions{})
	if err != nil {
		t.Fatalf("Delete() вернул ошибку: %v", err)
	}
	if res.Total != 5 {
		t.Errorf("затронуто %d записей, ожидали 5", res.Total)
	}
	if n, _ := ref.Count(ctx, nil); n != 1 {
		t.Errorf("после удаления осталось %d записей, ожидали 1", n)
	}
}

// TestPatchOne_FilterRecheck проверяет, что фильтр Patch действует и внутри
// read-modify-write: документ, переставший удовлетворять фильтру (например,
// уже перешедший в терминальный статус), не перезаписывается.
func TestPatchOne_FilterRecheck(t *testing.T) {
	a := setupTestAdapter(t)
	ctx := context.Background()

	table, err := a.Tables.Create(ctx, CreateRecordRequest{
		Data: map[string]any{"name": "docs"},
	})
	if err != nil {
		t.Fatalf("создание таблицы: %v", err)
	}
	ref := a.Ref.From(table.UID)

	doc, err := ref.Create(ctx, CreateRecordRequest{
		Data: map[string]any{"status": "pending", "note": "x"},
	})
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	// Конкурирующий переход в терминальный статус
	if _, err := ref.Patch(ctx, Filter{"uid": doc.UID}, UpdateRecordRequest{
		Data: map[string]any{"status": "fail"},
	}); err != nil {
		t.Fatalf("Patch() вернул ошибку: %v", err)
	}

	// patchOne с фильтром по pending не должен трогать документ
	store, err := ref.records()
	if err != nil {
		t.Fatalf("records() вернул ошибку: %v", err)
	}
	if err := store.patchOne(ctx, doc.UID,
		Filter{"data.status": "pending"},
		UpdateRecordRequest{Data: map[string]any{"status": "done"}},
	); err != nil {
		t.Fatalf("patchOne() вернул ошибку: %v", err)
	}

	rec, err := ref.Get(ctx, GetOptions{Filter: Filter{"uid": doc.UID}})
	if err != nil {
		t.Fatalf("Get() вернул ошибку: %v", err)
	}
	if rec.Data["status"] != "fail" {
		t.Errorf("терминальный статус перезаписан: %v, ожидали fail", rec.Data["status"])
	}
	if rec.Data["note"] != "x" {
		t.Errorf("данные изменены: %v", rec.Data)
	}
}
