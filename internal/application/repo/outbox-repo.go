package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emailer/internal/appers"
	"emailer/internal/application/entity"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *RepoImpl) Create(ctx context.Context, email *entity.OutboxEmail) error {
	r.logger.Debugf("[email: %s] start inserting into outbox", email.EmailID)

	_, err := r.db.Exec(ctx, insertOutboxEmail,
		email.ID, email.EmailID, string(email.Status), int(email.Priority),
		email.CreatedAt, email.UpdatedAt, email.Retries, email.Payload)

	switch {
	case err == nil:
		r.logger.Debugf("[email: %s] inserted into outbox successfully", email.EmailID)
		return nil
	case isDuplicateKeyError(err):
		// id генерируется как uuid v4, конфликт говорит о дефекте выше по стеку
		r.logger.Errorf("[email: %s] duplicate outbox id %s", email.EmailID, email.ID)
		return appers.ErrDuplicateOutboxID
	default:
		r.logger.Errorf("[email: %s] error inserting into outbox: %v", email.EmailID, err)
		return fmt.Errorf("insert outbox_email: %w", err)
	}
}

// FindByID возвращает (nil, nil), если строки нет: отсутствие записи не ошибка.
func (r *RepoImpl) FindByID(ctx context.Context, id uuid.UUID) (*entity.OutboxEmail, error) {
	email, err := scanOutboxEmail(r.db.QueryRow(ctx, findOutboxEmailByID, id))
	switch {
	case err == nil:
		return email, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	default:
		return nil, fmt.Errorf("find outbox_email by id: %w", err)
	}
}

func (r *RepoImpl) FindPendingBatch(ctx context.Context, limit int, highPriorityOnly bool) ([]*entity.OutboxEmail, error) {
	r.logger.Debugf("[limit: %d, highPriorityOnly: %t] FindPendingBatch started", limit, highPriorityOnly)

	rows, err := r.db.Query(ctx, findPendingBatch,
		string(entity.StatusPending), limit, highPriorityOnly, int(entity.PriorityHigh))
	if err != nil {
		return nil, fmt.Errorf("find pending batch: %w", err)
	}

	return collectOutboxEmails(rows)
}

func (r *RepoImpl) FindFailedBatch(ctx context.Context, limit int, highPriorityOnly bool) ([]*entity.OutboxEmail, error) {
	r.logger.Debugf("[limit: %d, highPriorityOnly: %t] FindFailedBatch started", limit, highPriorityOnly)

	rows, err := r.db.Query(ctx, findFailedBatch,
		string(entity.StatusFailed), limit, highPriorityOnly, int(entity.PriorityHigh),
		entity.MaxRetriesHighPriority, entity.MaxRetriesNormalPriority)
	if err != nil {
		return nil, fmt.Errorf("find failed batch: %w", err)
	}

	return collectOutboxEmails(rows)
}

func (r *RepoImpl) Update(ctx context.Context, email *entity.OutboxEmail) error {
	result, err := r.db.Exec(ctx, updateOutboxEmail,
		email.ID, email.EmailID, string(email.Status), int(email.Priority),
		email.CreatedAt, email.UpdatedAt, email.Retries, email.Payload)
	if err != nil {
		r.logger.Errorf("[email: %s] error updating outbox row %s: %v", email.EmailID, email.ID, err)
		return fmt.Errorf("update outbox_email: %w", err)
	}
	if result.RowsAffected() == 0 {
		r.logger.Warnf("[email: %s] outbox row %s not found for update", email.EmailID, email.ID)
		return appers.ErrOutboxNotFound
	}
	return nil
}

func (r *RepoImpl) Delete(ctx context.Context, email *entity.OutboxEmail) error {
	result, err := r.db.Exec(ctx, deleteOutboxEmail, email.ID)
	if err != nil {
		r.logger.Errorf("[email: %s] error deleting outbox row %s: %v", email.EmailID, email.ID, err)
		return fmt.Errorf("delete outbox_email: %w", err)
	}
	if result.RowsAffected() == 0 {
		r.logger.Warnf("[email: %s] outbox row %s not found for delete", email.EmailID, email.ID)
	}
	return nil
}

func (r *RepoImpl) CountEmailsSentInLastHour(ctx context.Context) (int, error) {
	oneHourAgo := time.Now().UTC().Add(-time.Hour)

	var count int
	err := r.db.QueryRow(ctx, countSentInLastHour, string(entity.StatusSent), oneHourAgo).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sent emails in last hour: %w", err)
	}
	return count, nil
}

func (r *RepoImpl) DeleteSentEmailsOlderThanAnHour(ctx context.Context) (int64, error) {
	oneHourAgo := time.Now().UTC().Add(-time.Hour)

	result, err := r.db.Exec(ctx, deleteSentOlderThanAnHour, string(entity.StatusSent), oneHourAgo)
	if err != nil {
		return 0, fmt.Errorf("delete sent emails older than an hour: %w", err)
	}
	return result.RowsAffected(), nil
}

func collectOutboxEmails(rows pgx.Rows) ([]*entity.OutboxEmail, error) {
	defer rows.Close()

	emails := make([]*entity.OutboxEmail, 0)
	for rows.Next() {
		email, err := scanOutboxEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox_email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox rows err: %w", err)
	}
	return emails, nil
}
