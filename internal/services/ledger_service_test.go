package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_List(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewLedgerServiceWithDB(gdb)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "credit_transactions" WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	mock.ExpectQuery(`SELECT \* FROM "credit_transactions" WHERE user_id = \$1 ORDER BY create_time DESC`).
		WithArgs("user-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id", "user_id", "credit_type", "amount", "kind"}).
			AddRow(2, "user-1", "chat", -1, "deduct").
			AddRow(1, "user-1", "chat", 25, "add"))

	records, total, err := service.List("user-1", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	assert.Equal(t, -1, records[0].Amount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_SumSince(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewLedgerServiceWithDB(gdb)
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT SUM\(amount\) FROM "credit_transactions"`).
		WithArgs("user-1", "chat", since).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(-7))

	sum, err := service.SumSince("user-1", "chat", since)
	require.NoError(t, err)
	assert.Equal(t, -7, sum)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_SumSince_NoRows(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewLedgerServiceWithDB(gdb)
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// 无流水时SUM为NULL，按0处理
	mock.ExpectQuery(`SELECT SUM\(amount\) FROM "credit_transactions"`).
		WithArgs("ghost", "genai", since).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

	sum, err := service.SumSince("ghost", "genai", since)
	require.NoError(t, err)
	assert.Equal(t, 0, sum)

	assert.NoError(t, mock.ExpectationsWereMet())
}
