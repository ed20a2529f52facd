package entity

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Priority хранится как число, чтобы ORDER BY priority DESC в выборках
// отдавал срочные письма первыми.
type Priority int

const (
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "HIGH"
	}
	return "NORMAL"
}

// PriorityFromName парсит приоритет из запроса; пустая строка считается NORMAL.
func PriorityFromName(name string) (Priority, bool) {
	switch name {
	case "", "NORMAL", "normal":
		return PriorityNormal, true
	case "HIGH", "high":
		return PriorityHigh, true
	default:
		return PriorityNormal, false
	}
}

// Потолки повторов. HIGH-письма пробуют заметно дольше; дошедшая до потолка
// NORMAL-строка удаляется, HIGH-строка остаётся FAILED для ручного разбора.
const (
	MaxRetriesNormalPriority = 1
	MaxRetriesHighPriority   = 50
)

// MaxRetriesFor возвращает потолок повторов для приоритета письма.
func MaxRetriesFor(p Priority) int {
	if p == PriorityHigh {
		return MaxRetriesHighPriority
	}
	return MaxRetriesNormalPriority
}

// OutboxEmail — строка таблицы outbox_email, единица доставки.
type OutboxEmail struct {
	ID        uuid.UUID `db:"id"`
	EmailID   string    `db:"email_id"` // идентификатор клиента, только для корреляции в логах
	Status    Status    `db:"status"`
	Priority  Priority  `db:"priority"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	Retries   int       `db:"retries"`
	Payload   string    `db:"payload"` // сериализованный entity.Email, пустой после отправки
}

func NewOutboxEmail(emailID string, priority Priority, payload string) (*OutboxEmail, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &OutboxEmail{
		ID:        id,
		EmailID:   emailID,
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
		Retries:   0,
		Payload:   payload,
	}, nil
}

// SuccessfullySent переводит письмо в SENT и очищает payload, чтобы не
// хранить содержимое дольше необходимого.
func (o *OutboxEmail) SuccessfullySent() {
	o.Status = StatusSent
	o.Payload = ""
	o.UpdatedAt = time.Now().UTC()
}

// FailedToSend — неудача отправки по расписанию. Счётчик retries растёт
// только начиная со второй неудачи: первая просто переводит PENDING в FAILED.
func (o *OutboxEmail) FailedToSend() {
	if o.Status == StatusFailed {
		o.Retries++
	}
	o.Status = StatusFailed
	o.UpdatedAt = time.Now().UTC()
}

// FailedToSendImmediately — неудача немедленной отправки при создании письма.
// В этом пути retries сразу становится 1.
func (o *OutboxEmail) FailedToSendImmediately() {
	o.Status = StatusFailed
	o.Retries = 1
	o.UpdatedAt = time.Now().UTC()
}

// TryNumber — номер текущей попытки для логов: первая попытка, плюс одна
// неудача, не увеличившая retries, плюс сами retries.
func (o *OutboxEmail) TryNumber() int {
	if o.Status == StatusFailed {
		return o.Retries + 2
	}
	return 1
}
