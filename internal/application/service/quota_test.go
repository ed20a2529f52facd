package service_test

import (
	"context"
	"errors"
	"testing"

	"emailer/internal/application/entity"
	"emailer/internal/application/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanSendEmailNow(t *testing.T) {
	tests := []struct {
		name     string
		sent     int
		priority entity.Priority
		want     bool
	}{
		{"normal under threshold", 2649, entity.PriorityNormal, true},
		{"normal at threshold", 2650, entity.PriorityNormal, false},
		{"normal inside buffer", 2700, entity.PriorityNormal, false},
		{"high inside buffer", 2700, entity.PriorityHigh, true},
		{"high under ceiling", 2849, entity.PriorityHigh, true},
		{"high at ceiling", 2850, entity.PriorityHigh, false},
		{"empty hour", 0, entity.PriorityNormal, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemRepo()
			store.sentLastHour = tc.sent

			quota := service.NewEmailQuota(store)
			got, err := quota.CanSendEmailNow(context.Background(), tc.priority)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanSendEmailNowStorageError(t *testing.T) {
	store := newMemRepo()
	store.countErr = errors.New("db down")

	quota := service.NewEmailQuota(store)
	_, err := quota.CanSendEmailNow(context.Background(), entity.PriorityNormal)
	assert.Error(t, err)
}

func TestPendingEmailsMaxBatchSize(t *testing.T) {
	tests := []struct {
		name string
		sent int
		want service.BatchSize
	}{
		{"quota untouched", 0, service.BatchSize{NumberOfEmails: 10, HighPriorityOnly: false}},
		{"well under ceiling", 2600, service.BatchSize{NumberOfEmails: 10, HighPriorityOnly: false}},
		{"inside high buffer", 2680, service.BatchSize{NumberOfEmails: 10, HighPriorityOnly: true}},
		{"tail of the hour", 2845, service.BatchSize{NumberOfEmails: 5, HighPriorityOnly: true}},
		{"ceiling reached", 2850, service.BatchSize{}},
		{"over ceiling", 3000, service.BatchSize{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemRepo()
			store.sentLastHour = tc.sent

			quota := service.NewEmailQuota(store)
			got, err := quota.PendingEmailsMaxBatchSize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRetryFailedEmailsMaxBatchSize(t *testing.T) {
	tests := []struct {
		name string
		sent int
		want service.BatchSize
	}{
		{"quota untouched", 0, service.BatchSize{NumberOfEmails: 100, HighPriorityOnly: false}},
		{"remaining smaller than batch", 2800, service.BatchSize{NumberOfEmails: 50, HighPriorityOnly: true}},
		{"remaining just above buffer", 2649, service.BatchSize{NumberOfEmails: 100, HighPriorityOnly: false}},
		{"remaining equals buffer", 2650, service.BatchSize{NumberOfEmails: 100, HighPriorityOnly: true}},
		{"ceiling reached", 2850, service.BatchSize{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemRepo()
			store.sentLastHour = tc.sent

			quota := service.NewEmailQuota(store)
			got, err := quota.RetryFailedEmailsMaxBatchSize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMaxBatchSizeStorageError(t *testing.T) {
	store := newMemRepo()
	store.countErr = errors.New("db down")

	quota := service.NewEmailQuota(store)
	_, err := quota.PendingEmailsMaxBatchSize(context.Background())
	assert.Error(t, err)
}
