package service

import (
	"context"
	"encoding/json"
	"fmt"

	"emailer/internal/application/entity"
	"emailer/internal/application/repo"
	"emailer/internal/transport/mailer"
	"emailer/pkg/metrics"

	"go.uber.org/zap"
)

type KafkaHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Service interface {
	SendNewEmail(ctx context.Context, email *entity.Email, emailID string, priority entity.Priority) error
	SendExistingEmail(ctx context.Context, outboxEmail *entity.OutboxEmail) error
	SendPendingEmails(ctx context.Context) error
	RetryFailedEmails(ctx context.Context) error
	DeleteSentEmails(ctx context.Context) error
	CollectEmailCounts(ctx context.Context)

	HealthCheck(ctx context.Context) (dbHealthy bool, kafkaHealthy bool, err error)
}

type EmailService struct {
	repo   repo.Repo
	mailer mailer.Sender
	quota  *EmailQuota
	kafka  KafkaHealthChecker
	logger *zap.SugaredLogger
	m      *metrics.Metrics
}

func NewEmailService(repo repo.Repo, mailer mailer.Sender, quota *EmailQuota, kafka KafkaHealthChecker, logger *zap.SugaredLogger, m *metrics.Metrics) *EmailService {
	return &EmailService{
		repo:   repo,
		mailer: mailer,
		quota:  quota,
		kafka:  kafka,
		logger: logger,
		m:      m,
	}
}

// HealthCheck проверяет доступность БД и Kafka
func (s *EmailService) HealthCheck(ctx context.Context) (dbHealthy bool, kafkaHealthy bool, err error) {
	dbErr := s.repo.HealthCheck(ctx)
	dbHealthy = dbErr == nil

	kafkaErr := s.kafka.HealthCheck(ctx)
	kafkaHealthy = kafkaErr == nil

	// Возвращаем ошибку только если обе проверки провалились
	if !dbHealthy && !kafkaHealthy {
		return dbHealthy, kafkaHealthy, fmt.Errorf("database: %v, kafka: %v", dbErr, kafkaErr)
	}

	return dbHealthy, kafkaHealthy, nil
}

// SendNewEmail принимает новое письмо: если квота позволяет, пытается
// отправить сразу; в хранилище в любом случае попадает ровно одна строка,
// отражающая исход немедленной попытки (SENT/FAILED) либо PENDING, если
// квоты не было.
func (s *EmailService) SendNewEmail(ctx context.Context, email *entity.Email, emailID string, priority entity.Priority) error {
	payload, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	outboxEmail, err := entity.NewOutboxEmail(emailID, priority, string(payload))
	if err != nil {
		return fmt.Errorf("new outbox email: %w", err)
	}

	canSendNow, err := s.quota.CanSendEmailNow(ctx, priority)
	if err != nil {
		return fmt.Errorf("check send quota: %w", err)
	}

	if canSendNow {
		s.logger.Infof("[email: %s] sending immediately", emailID)

		if sendErr := s.mailer.SendMail(ctx, email, emailID); sendErr != nil {
			outboxEmail.FailedToSendImmediately()
			s.countSend("failure")
			s.logger.Warnf("[email: %s] failed to send immediately: %v", emailID, sendErr)
		} else {
			outboxEmail.SuccessfullySent()
			s.countSend("success")
			s.logger.Infof("[email: %s] successfully sent immediately", emailID)
		}
	} else {
		s.logger.Infof("[email: %s] no quota left for sending immediately", emailID)
	}

	return s.repo.Create(ctx, outboxEmail)
}

// SendExistingEmail — одна попытка доставки строки, выбранной периодической
// задачей. Ошибки хранилища и битый payload пробрасываются наверх, не меняя
// строку; неудача провайдера двигает машину состояний.
func (s *EmailService) SendExistingEmail(ctx context.Context, outboxEmail *entity.OutboxEmail) error {
	s.logger.Infof("[email: %s] sending outbox row %s, status: %s, try number: %d",
		outboxEmail.EmailID, outboxEmail.ID, outboxEmail.Status, outboxEmail.TryNumber())

	var email entity.Email
	if err := json.Unmarshal([]byte(outboxEmail.Payload), &email); err != nil {
		// дефект данных: строку не трогаем, она остаётся видимой в outbox
		s.logger.Errorf("[email: %s] corrupt payload in outbox row %s: %v", outboxEmail.EmailID, outboxEmail.ID, err)
		return fmt.Errorf("unmarshal payload of outbox email %s: %w", outboxEmail.ID, err)
	}

	if sendErr := s.mailer.SendMail(ctx, &email, outboxEmail.EmailID); sendErr != nil {
		return s.failedToSend(ctx, outboxEmail, sendErr)
	}

	outboxEmail.SuccessfullySent()
	s.countSend("success")
	s.logger.Infof("[email: %s] successfully sent outbox row %s", outboxEmail.EmailID, outboxEmail.ID)

	return s.repo.Update(ctx, outboxEmail)
}

func (s *EmailService) failedToSend(ctx context.Context, outboxEmail *entity.OutboxEmail, sendErr error) error {
	outboxEmail.FailedToSend()
	s.countSend("failure")
	s.logger.Warnf("[email: %s] failed to send outbox row %s: %v", outboxEmail.EmailID, outboxEmail.ID, sendErr)

	if outboxEmail.Retries >= entity.MaxRetriesFor(outboxEmail.Priority) {
		if outboxEmail.Priority == entity.PriorityNormal {
			s.logger.Errorf("[email: %s] giving up after %d retries, deleting outbox row %s",
				outboxEmail.EmailID, outboxEmail.Retries, outboxEmail.ID)
			return s.repo.Delete(ctx, outboxEmail)
		}

		// HIGH-строка остаётся FAILED за потолком: выборка повторов её больше
		// не увидит, но запись доступна для ручного разбора
		s.logger.Errorf("[email: %s] exhausted %d retries for high priority email, keeping outbox row %s",
			outboxEmail.EmailID, outboxEmail.Retries, outboxEmail.ID)
	}

	return s.repo.Update(ctx, outboxEmail)
}

// SendPendingEmails — тик быстрой задачи: допуск от квоты, выборка PENDING
// и последовательная отправка. Ошибка хранилища обрывает остаток пачки.
func (s *EmailService) SendPendingEmails(ctx context.Context) error {
	batchSize, err := s.quota.PendingEmailsMaxBatchSize(ctx)
	if err != nil {
		return fmt.Errorf("pending batch allowance: %w", err)
	}
	if batchSize.NumberOfEmails == 0 {
		s.logger.Debug("no quota left for sending pending emails")
		return nil
	}

	emails, err := s.repo.FindPendingBatch(ctx, batchSize.NumberOfEmails, batchSize.HighPriorityOnly)
	if err != nil {
		return fmt.Errorf("find pending batch: %w", err)
	}
	if len(emails) == 0 {
		return nil
	}

	s.logger.Infof("sending %d pending emails (max batch size was %d)", len(emails), batchSize.NumberOfEmails)

	return s.processBatch(ctx, emails)
}

// RetryFailedEmails — тик повторов: та же форма, что и у SendPendingEmails,
// но с выборкой FAILED по давности последней попытки.
func (s *EmailService) RetryFailedEmails(ctx context.Context) error {
	batchSize, err := s.quota.RetryFailedEmailsMaxBatchSize(ctx)
	if err != nil {
		return fmt.Errorf("retry batch allowance: %w", err)
	}
	if batchSize.NumberOfEmails == 0 {
		s.logger.Debug("no quota left for retrying failed emails")
		return nil
	}

	emails, err := s.repo.FindFailedBatch(ctx, batchSize.NumberOfEmails, batchSize.HighPriorityOnly)
	if err != nil {
		return fmt.Errorf("find failed batch: %w", err)
	}
	if len(emails) == 0 {
		return nil
	}

	s.logger.Infof("retrying %d failed emails (max batch size was %d)", len(emails), batchSize.NumberOfEmails)

	return s.processBatch(ctx, emails)
}

func (s *EmailService) processBatch(ctx context.Context, emails []*entity.OutboxEmail) error {
	for _, email := range emails {
		if err := s.SendExistingEmail(ctx, email); err != nil {
			// уже обработанные строки остаются обновлёнными, остальные
			// подберёт следующий тик
			return err
		}
	}
	return nil
}

// DeleteSentEmails — retention: отправленные письма старше часа больше не
// участвуют в подсчёте квоты и содержимого не хранят.
func (s *EmailService) DeleteSentEmails(ctx context.Context) error {
	deleted, err := s.repo.DeleteSentEmailsOlderThanAnHour(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Infof("deleted %d sent emails older than an hour", deleted)
	}
	return nil
}

// CollectEmailCounts обновляет гейджи состава outbox.
func (s *EmailService) CollectEmailCounts(ctx context.Context) {
	counts, err := s.repo.GetEmailCounts(ctx)
	if err != nil {
		s.logger.Errorw("collect email counts failed", "err", err)
		return
	}

	if s.m != nil {
		s.m.Outbox.CurrentEmailCounts.WithLabelValues("sent_last_hour").Set(float64(counts.SentLastHour))
		s.m.Outbox.CurrentEmailCounts.WithLabelValues("pending").Set(float64(counts.Pending))
		s.m.Outbox.CurrentEmailCounts.WithLabelValues("failed").Set(float64(counts.Failed))
	}
}

func (s *EmailService) countSend(result string) {
	if s.m != nil {
		s.m.Outbox.EmailsSentTotal.WithLabelValues(result).Inc()
	}
}
