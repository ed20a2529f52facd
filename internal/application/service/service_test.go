package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"emailer/internal/application/entity"
	"emailer/internal/application/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(store *memRepo, sender *fakeSender, kafka *fakeKafka) *service.EmailService {
	if kafka == nil {
		kafka = &fakeKafka{}
	}
	quota := service.NewEmailQuota(store)
	return service.NewEmailService(store, sender, quota, kafka, zap.NewNop().Sugar(), nil)
}

func testEmail() *entity.Email {
	return &entity.Email{
		Recipient: "user@example.com",
		Subject:   "welcome",
		Content:   "<p>hello</p>",
		Type:      entity.ContentHTML,
	}
}

func pendingRow(t *testing.T, emailID string, priority entity.Priority) *entity.OutboxEmail {
	t.Helper()
	payload, err := json.Marshal(testEmail())
	require.NoError(t, err)
	row, err := entity.NewOutboxEmail(emailID, priority, string(payload))
	require.NoError(t, err)
	return row
}

func TestSendNewEmailImmediateSuccess(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	err := svc.SendNewEmail(context.Background(), testEmail(), "mail-1", entity.PriorityNormal)
	require.NoError(t, err)

	require.Equal(t, []string{"mail-1"}, sender.calls)

	row := store.single()
	require.NotNil(t, row)
	assert.Equal(t, entity.StatusSent, row.Status)
	assert.Empty(t, row.Payload)
	assert.Equal(t, 0, row.Retries)
}

func TestSendNewEmailImmediateFailure(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{errs: []error{errSendFailed}}
	svc := newService(store, sender, nil)

	err := svc.SendNewEmail(context.Background(), testEmail(), "mail-1", entity.PriorityNormal)
	require.NoError(t, err)

	// неудача немедленной попытки не является ошибкой приёма: строка надёжно
	// сохранена как FAILED со счётчиком 1
	row := store.single()
	require.NotNil(t, row)
	assert.Equal(t, entity.StatusFailed, row.Status)
	assert.Equal(t, 1, row.Retries)
	assert.NotEmpty(t, row.Payload)
}

func TestSendNewEmailWithoutQuotaStaysPending(t *testing.T) {
	store := newMemRepo()
	store.sentLastHour = service.MaxEmailsPerHour - service.HighPriorityEmailBuffer
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	err := svc.SendNewEmail(context.Background(), testEmail(), "mail-1", entity.PriorityNormal)
	require.NoError(t, err)

	assert.Empty(t, sender.calls)

	row := store.single()
	require.NotNil(t, row)
	assert.Equal(t, entity.StatusPending, row.Status)
	assert.Equal(t, 0, row.Retries)
}

// Последние слоты часа зарезервированы под HIGH: NORMAL уходит в PENDING,
// HIGH с тем же счётчиком отправляется сразу.
func TestSendNewEmailHighPriorityUsesBuffer(t *testing.T) {
	store := newMemRepo()
	store.sentLastHour = service.MaxEmailsPerHour - 50
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	require.NoError(t, svc.SendNewEmail(context.Background(), testEmail(), "normal-1", entity.PriorityNormal))
	assert.Empty(t, sender.calls)

	require.NoError(t, svc.SendNewEmail(context.Background(), testEmail(), "high-1", entity.PriorityHigh))
	assert.Equal(t, []string{"high-1"}, sender.calls)
}

func TestSendExistingEmailSuccess(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	row := pendingRow(t, "mail-1", entity.PriorityNormal)
	require.NoError(t, store.Create(context.Background(), row))

	require.NoError(t, svc.SendExistingEmail(context.Background(), row))

	stored := store.single()
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusSent, stored.Status)
	assert.Empty(t, stored.Payload)
}

func TestSendExistingEmailFirstFailureKeepsRetriesAtZero(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{errs: []error{errSendFailed}}
	svc := newService(store, sender, nil)

	row := pendingRow(t, "mail-1", entity.PriorityNormal)
	require.NoError(t, store.Create(context.Background(), row))

	require.NoError(t, svc.SendExistingEmail(context.Background(), row))

	stored := store.single()
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusFailed, stored.Status)
	assert.Equal(t, 0, stored.Retries)
}

func TestSendExistingEmailNormalGivesUpAndDeletes(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{errs: []error{errSendFailed}}
	svc := newService(store, sender, nil)

	row := pendingRow(t, "mail-1", entity.PriorityNormal)
	row.FailedToSend() // FAILED, retries 0
	require.NoError(t, store.Create(context.Background(), row))

	require.NoError(t, svc.SendExistingEmail(context.Background(), row))

	// вторая неудача довела retries до потолка NORMAL, строка удалена
	assert.Nil(t, store.single())
	assert.Len(t, store.deleted, 1)
}

func TestSendExistingEmailHighIsKeptAtCeiling(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{errs: []error{errSendFailed}}
	svc := newService(store, sender, nil)

	row := pendingRow(t, "mail-1", entity.PriorityHigh)
	row.FailedToSend()
	row.Retries = entity.MaxRetriesHighPriority - 1
	require.NoError(t, store.Create(context.Background(), row))

	require.NoError(t, svc.SendExistingEmail(context.Background(), row))

	stored := store.single()
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusFailed, stored.Status)
	assert.Equal(t, entity.MaxRetriesHighPriority, stored.Retries)
	assert.Empty(t, store.deleted)

	// дошедшая до потолка HIGH-строка больше не попадает в выборку повторов
	batch, err := store.FindFailedBatch(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestSendExistingEmailCorruptPayload(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	row, err := entity.NewOutboxEmail("mail-1", entity.PriorityNormal, "{not json")
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), row))

	err = svc.SendExistingEmail(context.Background(), row)
	require.Error(t, err)

	// строка не тронута, отправки не было
	assert.Empty(t, sender.calls)
	stored := store.single()
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusPending, stored.Status)
	assert.Equal(t, 0, stored.Retries)
}

func TestSendPendingEmailsRespectsBatchAndOrder(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	base := time.Now().UTC()
	for i, rowSpec := range []struct {
		id       string
		priority entity.Priority
	}{
		{"normal-old", entity.PriorityNormal},
		{"high-new", entity.PriorityHigh},
		{"normal-new", entity.PriorityNormal},
	} {
		row := pendingRow(t, rowSpec.id, rowSpec.priority)
		row.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Create(context.Background(), row))
	}

	require.NoError(t, svc.SendPendingEmails(context.Background()))

	// свежее HIGH уходит раньше старых NORMAL
	require.Len(t, sender.calls, 3)
	assert.Equal(t, "high-new", sender.calls[0])
	assert.Equal(t, "normal-old", sender.calls[1])
	assert.Equal(t, "normal-new", sender.calls[2])
}

func TestSendPendingEmailsNoQuota(t *testing.T) {
	store := newMemRepo()
	store.sentLastHour = service.MaxEmailsPerHour
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	row := pendingRow(t, "mail-1", entity.PriorityHigh)
	require.NoError(t, store.Create(context.Background(), row))

	require.NoError(t, svc.SendPendingEmails(context.Background()))
	assert.Empty(t, sender.calls)
}

func TestSendPendingEmailsHighOnlyNearCeiling(t *testing.T) {
	store := newMemRepo()
	store.sentLastHour = service.MaxEmailsPerHour - 50
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	require.NoError(t, store.Create(context.Background(), pendingRow(t, "normal-1", entity.PriorityNormal)))
	require.NoError(t, store.Create(context.Background(), pendingRow(t, "high-1", entity.PriorityHigh)))

	require.NoError(t, svc.SendPendingEmails(context.Background()))

	// в хвосте часа отправляются только HIGH
	assert.Equal(t, []string{"high-1"}, sender.calls)
}

func TestSendPendingEmailsStorageErrorAbortsBatch(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{errs: []error{nil, nil}}
	svc := newService(store, sender, nil)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(context.Background(), pendingRow(t, id, entity.PriorityNormal)))
	}
	store.updateErr = errors.New("db down")

	err := svc.SendPendingEmails(context.Background())
	require.Error(t, err)

	// пачка оборвалась на первой же ошибке хранилища
	assert.Len(t, sender.calls, 1)
}

func TestRetryFailedEmailsSendsFailedRows(t *testing.T) {
	store := newMemRepo()
	sender := &fakeSender{}
	svc := newService(store, sender, nil)

	row := pendingRow(t, "mail-1", entity.PriorityNormal)
	row.FailedToSend()
	require.NoError(t, store.Create(context.Background(), row))

	require.NoError(t, svc.RetryFailedEmails(context.Background()))

	require.Equal(t, []string{"mail-1"}, sender.calls)
	stored := store.single()
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusSent, stored.Status)
}

func TestDeleteSentEmailsRemovesRowsOlderThanAnHour(t *testing.T) {
	store := newMemRepo()
	svc := newService(store, &fakeSender{}, nil)

	row := pendingRow(t, "mail-1", entity.PriorityNormal)
	row.SuccessfullySent()
	row.UpdatedAt = time.Now().UTC().Add(-61 * time.Minute)
	require.NoError(t, store.Create(context.Background(), row))

	require.NoError(t, svc.DeleteSentEmails(context.Background()))
	assert.Nil(t, store.single())
}

// Часовое окно ретеншена совпадает с окном подсчёта квоты: SENT-строка
// моложе часа ещё участвует в подсчёте и удалению не подлежит.
func TestDeleteSentEmailsKeepsRowsYoungerThanAnHour(t *testing.T) {
	store := newMemRepo()
	svc := newService(store, &fakeSender{}, nil)

	row := pendingRow(t, "mail-1", entity.PriorityNormal)
	row.SuccessfullySent()
	row.UpdatedAt = time.Now().UTC().Add(-59 * time.Minute)
	require.NoError(t, store.Create(context.Background(), row))

	require.NoError(t, svc.DeleteSentEmails(context.Background()))

	stored := store.single()
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusSent, stored.Status)
}

// Создание и точечное чтение воспроизводят строку поле в поле.
func TestCreateThenFindByIDRoundTrip(t *testing.T) {
	store := newMemRepo()

	row := pendingRow(t, "mail-1", entity.PriorityHigh)
	row.FailedToSend()
	row.Retries = 3
	require.NoError(t, store.Create(context.Background(), row))

	found, err := store.FindByID(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, row, found)

	require.NoError(t, store.Delete(context.Background(), row))
	gone, err := store.FindByID(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestHealthCheck(t *testing.T) {
	store := newMemRepo()

	svc := newService(store, &fakeSender{}, &fakeKafka{})
	dbOK, kafkaOK, err := svc.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, dbOK)
	assert.True(t, kafkaOK)

	svc = newService(store, &fakeSender{}, &fakeKafka{err: errors.New("kafka down")})
	dbOK, kafkaOK, err = svc.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, dbOK)
	assert.False(t, kafkaOK)
}
