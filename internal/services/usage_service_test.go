package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageService_Stats(t *testing.T) {
	gdb, mock := newMockDB(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	service := NewUsageServiceWithDB(gdb, func() time.Time { return now })

	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "credit_transactions" WHERE user_id = \$1 AND kind = \$2 AND create_time >= \$3`).
		WithArgs("user-1", "deduct", periodStart).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "user_id", "credit_type", "amount", "kind", "tokens_used"}).
			AddRow(1, "user-1", "chat", -1, "deduct", 120).
			AddRow(2, "user-1", "chat", -1, "deduct", 80).
			AddRow(3, "user-1", "genai", -2, "deduct", 0))

	stats, err := service.Stats("user-1")
	require.NoError(t, err)

	assert.Equal(t, periodStart, stats.PeriodStart)
	assert.Equal(t, 2, stats.ChatCreditsUsed)
	assert.Equal(t, 2, stats.GenAICreditsUsed)
	assert.Equal(t, 200, stats.TotalTokens)
	assert.Equal(t, 3, stats.Interactions)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageService_Stats_EmptyMonth(t *testing.T) {
	gdb, mock := newMockDB(t)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	service := NewUsageServiceWithDB(gdb, func() time.Time { return now })

	mock.ExpectQuery(`SELECT \* FROM "credit_transactions" WHERE user_id = \$1 AND kind = \$2 AND create_time >= \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}))

	stats, err := service.Stats("user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Interactions)
	assert.Equal(t, 0, stats.ChatCreditsUsed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
