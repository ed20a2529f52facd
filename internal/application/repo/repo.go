package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emailer/internal/application/entity"
	"emailer/pkg/db"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// EmailCounts — срез состава outbox для метрик.
type EmailCounts struct {
	SentLastHour int
	Pending      int
	Failed       int
}

type Repo interface {
	Create(ctx context.Context, email *entity.OutboxEmail) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.OutboxEmail, error)
	FindPendingBatch(ctx context.Context, limit int, highPriorityOnly bool) ([]*entity.OutboxEmail, error)
	FindFailedBatch(ctx context.Context, limit int, highPriorityOnly bool) ([]*entity.OutboxEmail, error)
	Update(ctx context.Context, email *entity.OutboxEmail) error
	Delete(ctx context.Context, email *entity.OutboxEmail) error
	CountEmailsSentInLastHour(ctx context.Context) (int, error)
	DeleteSentEmailsOlderThanAnHour(ctx context.Context) (int64, error)
	GetEmailCounts(ctx context.Context) (EmailCounts, error)

	HealthCheck(ctx context.Context) error
}

type RepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
}

func NewRepo(db db.DB, logger *zap.SugaredLogger) *RepoImpl {
	return &RepoImpl{db: db, logger: logger}
}

func (r *RepoImpl) HealthCheck(ctx context.Context) error {
	// Проверяем доступность БД через простой запрос
	var result int
	err := r.db.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (r *RepoImpl) GetEmailCounts(ctx context.Context) (EmailCounts, error) {
	var counts EmailCounts
	oneHourAgo := time.Now().UTC().Add(-time.Hour)

	err := r.db.QueryRow(ctx, selectEmailCounts,
		entity.StatusSent, entity.StatusPending, entity.StatusFailed, oneHourAgo).
		Scan(&counts.SentLastHour, &counts.Pending, &counts.Failed)
	if err != nil {
		return EmailCounts{}, fmt.Errorf("select email counts: %w", err)
	}
	return counts, nil
}

// isDuplicateKeyError проверяет, является ли ошибка ошибкой дубликата ключа (SQLSTATE 23505)
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanOutboxEmail(row pgx.Row) (*entity.OutboxEmail, error) {
	var e entity.OutboxEmail
	var status string
	var priority int
	if err := row.Scan(&e.ID, &e.EmailID, &status, &priority,
		&e.CreatedAt, &e.UpdatedAt, &e.Retries, &e.Payload); err != nil {
		return nil, err
	}
	e.Status = entity.Status(status)
	e.Priority = entity.Priority(priority)
	return &e, nil
}
