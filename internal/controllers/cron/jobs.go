package cron

import (
	"context"
	"time"

	"emailer/internal/application/repo"
	use_cases "emailer/internal/application/use-cases"

	"go.uber.org/zap"
)

// LockedOutboxJob - тик outbox-задачи под именованной блокировкой: на кластер
// одновременно работает не больше одного экземпляра задачи с этим именем.
// Блокировка истекает сама по maxHold, если тик завис.
type LockedOutboxJob struct {
	name    string
	minHold time.Duration
	maxHold time.Duration
	tick    func(ctx context.Context) error
	lock    repo.LockProvider
	logger  *zap.SugaredLogger
}

func NewLockedOutboxJob(
	name string,
	minHold, maxHold time.Duration,
	tick func(ctx context.Context) error,
	lock repo.LockProvider,
	logger *zap.SugaredLogger,
) *LockedOutboxJob {
	return &LockedOutboxJob{
		name:    name,
		minHold: minHold,
		maxHold: maxHold,
		tick:    tick,
		lock:    lock,
		logger:  logger,
	}
}

func (j *LockedOutboxJob) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Errorf("Паника при выполнении задачи %s: %v", j.name, r)
		}
	}()

	held, err := j.lock.TryAcquire(ctx, j.name, j.maxHold)
	if err != nil {
		j.logger.Errorf("[job: %s] не удалось захватить блокировку: %v", j.name, err)
		return
	}
	if !held {
		j.logger.Debugf("[job: %s] блокировка занята другим инстансом, пропуск тика", j.name)
		return
	}
	defer func() {
		if err := j.lock.Release(ctx, j.name, j.minHold); err != nil {
			j.logger.Errorf("[job: %s] не удалось освободить блокировку: %v", j.name, err)
		}
	}()

	if err := j.tick(ctx); err != nil {
		// частично обработанная пачка остаётся как есть, хвост подберёт следующий тик
		j.logger.Errorw("outbox job failed", "job", j.name, "err", err)
	}
}

// MetricsJob собирает гейджи состава outbox. Задача только читает, поэтому
// блокировка ей не нужна.
type MetricsJob struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
}

func NewMetricsJob(usecase use_cases.UseCaser, logger *zap.SugaredLogger) *MetricsJob {
	return &MetricsJob{usecase: usecase, logger: logger}
}

func (j *MetricsJob) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Errorf("Паника при сборе метрик outbox: %v", r)
		}
	}()

	j.usecase.CollectEmailCounts(ctx)
}
