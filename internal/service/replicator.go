// replicator.go — фоновая репликация файлов из временного локального
// хранилища в удалённые бэкенды. Ограниченный пул воркеров с повторами
// и нарастающей задержкой; долговечная очередь — сами файловые
// записи в статусе pending: периодический перескан (и перескан при
// старте) доставляет задачи, потерянные при рестарте или переполнении
// очереди.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/gorefstore/internal/config"
)

// ReplicationTask — одна задача репликации. Run выполняет перенос,
// OnExhausted вызывается после исчерпания попыток.
type ReplicationTask struct {
	FileUID     string
	Run         func(ctx context.Context) error
	OnExhausted func(ctx context.Context)
}

// Replicator — пул воркеров репликации.
type Replicator struct {
	queue       chan ReplicationTask
	workers     int
	maxAttempts int
	backoff     time.Duration
	rescanEvery time.Duration
	logger      *slog.Logger

	// rescan перечитывает pending-записи и ставит их в очередь.
	rescan func(ctx context.Context)

	mu       sync.Mutex
	inflight map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReplicator создаёт пул по настройкам конфигурации.
func NewReplicator(cfg *config.Config, logger *slog.Logger) *Replicator {
	return &Replicator{
		queue:       make(chan ReplicationTask, cfg.ReplicationQueueSize),
		workers:     cfg.ReplicationWorkers,
		maxAttempts: cfg.ReplicationMaxAttempts,
		backoff:     cfg.ReplicationRetryBackoff,
		rescanEvery: cfg.ReplicationRescanInterval,
		inflight:    map[string]bool{},
		logger:      logger.With(slog.String("component", "replicator")),
	}
}

// SetRescan задаёт функцию пересканирования pending-записей.
// Вызывается до Start.
func (r *Replicator) SetRescan(fn func(ctx context.Context)) {
	r.rescan = fn
}

// Start запускает воркеры и периодический перескан.
func (r *Replicator) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	if r.rescan != nil {
		r.wg.Add(1)
		go r.rescanLoop(ctx)
	}
	r.logger.Info("Репликация запущена", slog.Int("workers", r.workers))
}

// Stop останавливает пул и дожидается завершения воркеров.
func (r *Replicator) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("Репликация остановлена")
}

// Enqueue ставит задачу в очередь. Уже выполняемая или стоящая в очереди
// задача того же файла пропускается; переполнение очереди — не фатально,
// запись в статусе pending будет подобрана пересканом.
func (r *Replicator) Enqueue(t ReplicationTask) error {
	r.mu.Lock()
	if r.inflight[t.FileUID] {
		r.mu.Unlock()
		return nil
	}
	r.inflight[t.FileUID] = true
	r.mu.Unlock()

	select {
	case r.queue <- t:
		replicationQueueDepth.Inc()
		return nil
	default:
		r.release(t.FileUID)
		return fmt.Errorf("файл %s: %w", t.FileUID, ErrQueueFull)
	}
}

func (r *Replicator) release(fileUID string) {
	r.mu.Lock()
	delete(r.inflight, fileUID)
	r.mu.Unlock()
}

func (r *Replicator) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	logger := r.logger.With(slog.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			replicationQueueDepth.Dec()
			r.process(ctx, t, logger)
			r.release(t.FileUID)
		}
	}
}

// process выполняет задачу с повторами. Задержка растёт линейно
// с номером попытки.
func (r *Replicator) process(ctx context.Context, t ReplicationTask, logger *slog.Logger) {
	start := time.Now()
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := t.Run(ctx)
		if err == nil {
			replicationTasksTotal.WithLabelValues("done").Inc()
			replicationDuration.Observe(time.Since(start).Seconds())
			logger.Info("Файл реплицирован",
				slog.String("file_id", t.FileUID), slog.Int("attempts", attempt))
			return
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			// Остановка сервиса: запись остаётся pending, пересканируется
			// при следующем старте.
			return
		}
		logger.Warn("Попытка репликации не удалась",
			slog.String("file_id", t.FileUID),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		if attempt < r.maxAttempts {
			replicationTasksTotal.WithLabelValues("retry").Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
	}
	replicationTasksTotal.WithLabelValues("fail").Inc()
	replicationDuration.Observe(time.Since(start).Seconds())
	logger.Error("Репликация файла не удалась, попытки исчерпаны",
		slog.String("file_id", t.FileUID), slog.Int("attempts", r.maxAttempts))
	if t.OnExhausted != nil {
		t.OnExhausted(ctx)
	}
}

func (r *Replicator) rescanLoop(ctx context.Context) {
	defer r.wg.Done()
	// Первый перескан сразу после старта: подбор записей, оставшихся
	// pending после рестарта.
	r.rescan(ctx)
	ticker := time.NewTicker(r.rescanEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.rescan(ctx)
		}
	}
}
