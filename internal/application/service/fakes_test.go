package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"emailer/internal/appers"
	"emailer/internal/application/entity"
	"emailer/internal/application/repo"

	"github.com/gofrs/uuid"
)

// memRepo — хранилище в памяти с той же семантикой выборок, что и у
// SQL-запросов: сортировка по приоритету и времени, фильтр потолка повторов.
type memRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entity.OutboxEmail

	sentLastHour int   // подменяет счётчик квоты
	countErr     error // ошибка CountEmailsSentInLastHour
	findErr      error // ошибка выборок
	updateErr    error

	deleted []uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[uuid.UUID]*entity.OutboxEmail{}}
}

func (m *memRepo) Create(ctx context.Context, email *entity.OutboxEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[email.ID]; ok {
		return appers.ErrDuplicateOutboxID
	}
	copied := *email
	m.rows[email.ID] = &copied
	return nil
}

func (m *memRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.OutboxEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (m *memRepo) FindPendingBatch(ctx context.Context, limit int, highPriorityOnly bool) ([]*entity.OutboxEmail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.find(entity.StatusPending, limit, highPriorityOnly, false), nil
}

func (m *memRepo) FindFailedBatch(ctx context.Context, limit int, highPriorityOnly bool) ([]*entity.OutboxEmail, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.find(entity.StatusFailed, limit, highPriorityOnly, true), nil
}

func (m *memRepo) find(status entity.Status, limit int, highPriorityOnly, applyRetryCeiling bool) []*entity.OutboxEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*entity.OutboxEmail
	for _, row := range m.rows {
		if row.Status != status {
			continue
		}
		if highPriorityOnly && row.Priority != entity.PriorityHigh {
			continue
		}
		if applyRetryCeiling && row.Retries >= entity.MaxRetriesFor(row.Priority) {
			continue
		}
		copied := *row
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		if applyRetryCeiling {
			return result[i].UpdatedAt.Before(result[j].UpdatedAt)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (m *memRepo) Update(ctx context.Context, email *entity.OutboxEmail) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[email.ID]; !ok {
		return appers.ErrOutboxNotFound
	}
	copied := *email
	m.rows[email.ID] = &copied
	return nil
}

func (m *memRepo) Delete(ctx context.Context, email *entity.OutboxEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, email.ID)
	m.deleted = append(m.deleted, email.ID)
	return nil
}

func (m *memRepo) CountEmailsSentInLastHour(ctx context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.sentLastHour, nil
}

func (m *memRepo) DeleteSentEmailsOlderThanAnHour(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oneHourAgo := time.Now().UTC().Add(-time.Hour)
	var n int64
	for id, row := range m.rows {
		if row.Status == entity.StatusSent && row.UpdatedAt.Before(oneHourAgo) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) GetEmailCounts(ctx context.Context) (repo.EmailCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := repo.EmailCounts{SentLastHour: m.sentLastHour}
	for _, row := range m.rows {
		switch row.Status {
		case entity.StatusPending:
			counts.Pending++
		case entity.StatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (m *memRepo) HealthCheck(ctx context.Context) error { return nil }

func (m *memRepo) single() *entity.OutboxEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) != 1 {
		return nil
	}
	for _, row := range m.rows {
		copied := *row
		return &copied
	}
	return nil
}

// fakeSender отвечает на отправки по сценарию: i-й вызов получает errs[i],
// вызовы за пределами сценария успешны.
type fakeSender struct {
	mu    sync.Mutex
	errs  []error
	calls []string
}

func (f *fakeSender) SendMail(ctx context.Context, email *entity.Email, emailID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.calls)
	f.calls = append(f.calls, emailID)
	if idx < len(f.errs) {
		return f.errs[idx]
	}
	return nil
}

type fakeKafka struct {
	err error
}

func (f *fakeKafka) HealthCheck(ctx context.Context) error { return f.err }

var errSendFailed = errors.New("provider unavailable")
