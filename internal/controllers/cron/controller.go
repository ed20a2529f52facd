package cron

import (
	"context"
	"fmt"

	"emailer/internal/application/repo"
	"emailer/internal/application/service"
	use_cases "emailer/internal/application/use-cases"
	"emailer/pkg/config"

	"go.uber.org/zap"
)

type Controller struct {
	scheduler *Scheduler
	logger    *zap.SugaredLogger
}

func NewController(ctx context.Context, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		scheduler: NewScheduler(ctx),
		logger:    logger,
	}
}

// RegisterOutboxJobs регистрирует четыре периодические задачи: отправка
// PENDING, повтор FAILED, удаление старых SENT и сбор метрик. Расписания
// переопределяются конфигом, дефолты подобраны под часовую квоту.
func (c *Controller) RegisterOutboxJobs(usecase use_cases.UseCaser, lock repo.LockProvider, conf config.Cron) error {
	jobs := []struct {
		spec string
		job  Job
	}{
		{
			spec: orDefault(conf.PendingSchedule, service.PendingEmailCron),
			job: NewLockedOutboxJob(service.PendingJobName,
				service.PendingEmailLockAtLeastFor, service.PendingEmailLockAtMostFor,
				usecase.SendPendingEmails, lock, c.logger),
		},
		{
			spec: orDefault(conf.RetrySchedule, service.RetryEmailCron),
			job: NewLockedOutboxJob(service.RetryJobName,
				service.RetryEmailLockAtLeastFor, service.RetryEmailLockAtMostFor,
				usecase.RetryFailedEmails, lock, c.logger),
		},
		{
			spec: orDefault(conf.RetentionSchedule, service.RetentionCron),
			job: NewLockedOutboxJob(service.RetentionJobName,
				service.RetentionLockAtLeastFor, service.RetentionLockAtMostFor,
				usecase.DeleteSentEmails, lock, c.logger),
		},
		{
			spec: orDefault(conf.MetricsSchedule, service.MetricsCron),
			job:  NewMetricsJob(usecase, c.logger),
		},
	}

	for _, j := range jobs {
		entryID, err := c.scheduler.Add(j.spec, j.job)
		if err != nil {
			return fmt.Errorf("не удалось зарегистрировать задачу (%s): %w", j.spec, err)
		}
		c.logger.Infof("Задача зарегистрирована с ID: %d, расписание: %s", entryID, j.spec)
	}

	return nil
}

func orDefault(spec, def string) string {
	if spec != "" {
		return spec
	}
	return def
}

// Start запускает планировщик задач
func (c *Controller) Start() {
	c.logger.Info("Запуск планировщика cron задач")
	c.scheduler.Start()
}

// Stop останавливает планировщик задач
func (c *Controller) Stop() {
	c.logger.Info("Остановка планировщика cron задач")
	c.scheduler.Stop()
	c.logger.Info("Планировщик cron задач остановлен")
}
