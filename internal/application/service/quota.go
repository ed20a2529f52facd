package service

import (
	"context"
	"time"

	"emailer/internal/application/entity"
	"emailer/internal/application/repo"
)

// Квота — единый часовой бюджет отправок, который делят немедленные отправки
// и обе периодические задачи. Последние HighPriorityEmailBuffer слотов часа
// доступны только HIGH-письмам, чтобы всплеск обычной почты не задушил
// срочную у потолка.
const (
	MaxEmailsPerHour        = 2850 // лимит провайдера 3000, держим запас 5%
	HighPriorityEmailBuffer = 200

	// 10 каждые 10 секунд = не больше 3600 в час
	PendingEmailBatchSize      = 10
	PendingEmailCron           = "*/10 * * * * *"
	PendingEmailLockAtLeastFor = 8 * time.Second
	PendingEmailLockAtMostFor  = 5 * time.Minute

	// 100 каждые 5 минут = не больше 1200 в час
	RetryEmailBatchSize      = 100
	RetryEmailCron           = "0 */5 * * * *"
	RetryEmailLockAtLeastFor = 4 * time.Minute
	RetryEmailLockAtMostFor  = 20 * time.Minute

	RetentionCron           = "0 0 * * * *"
	RetentionLockAtLeastFor = 10 * time.Second
	RetentionLockAtMostFor  = 5 * time.Minute

	MetricsCron = "@every 1m"
)

// Имена задач — ключи блокировок в scheduler_lock.
const (
	PendingJobName   = "sendPendingEmails"
	RetryJobName     = "retryFailedEmails"
	RetentionJobName = "deleteSentEmails"
)

// BatchSize — «сколько можно выбрать и с каким ограничением приоритета».
// HighPriorityOnly — указание селектору, а не повторный фильтр: его обязан
// учесть сам запрос выборки, иначе допуск и выборка разойдутся.
type BatchSize struct {
	NumberOfEmails   int
	HighPriorityOnly bool
}

// EmailQuota пересчитывает «отправлено за последний час» из хранилища на
// каждое решение. Кэширующего счётчика нет намеренно: цена — один count на
// решение, выгода — отсутствие дрейфа.
type EmailQuota struct {
	emailRepository repo.Repo
}

func NewEmailQuota(emailRepository repo.Repo) *EmailQuota {
	return &EmailQuota{emailRepository: emailRepository}
}

func (q *EmailQuota) CanSendEmailNow(ctx context.Context, priority entity.Priority) (bool, error) {
	emailsSentInLastHour, err := q.emailRepository.CountEmailsSentInLastHour(ctx)
	if err != nil {
		return false, err
	}

	if priority == entity.PriorityHigh {
		return emailsSentInLastHour < MaxEmailsPerHour, nil
	}
	return emailsSentInLastHour < MaxEmailsPerHour-HighPriorityEmailBuffer, nil
}

func (q *EmailQuota) PendingEmailsMaxBatchSize(ctx context.Context) (BatchSize, error) {
	return q.maxBatchSize(ctx, PendingEmailBatchSize)
}

func (q *EmailQuota) RetryFailedEmailsMaxBatchSize(ctx context.Context) (BatchSize, error) {
	return q.maxBatchSize(ctx, RetryEmailBatchSize)
}

func (q *EmailQuota) maxBatchSize(ctx context.Context, batchSize int) (BatchSize, error) {
	emailsSentInLastHour, err := q.emailRepository.CountEmailsSentInLastHour(ctx)
	if err != nil {
		return BatchSize{}, err
	}

	emailsLeftToSendThisHour := MaxEmailsPerHour - emailsSentInLastHour
	if emailsLeftToSendThisHour <= 0 {
		return BatchSize{}, nil
	}

	if emailsLeftToSendThisHour < batchSize {
		batchSize = emailsLeftToSendThisHour
	}

	return BatchSize{
		NumberOfEmails:   batchSize,
		HighPriorityOnly: emailsLeftToSendThisHour <= HighPriorityEmailBuffer,
	}, nil
}
