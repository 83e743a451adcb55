package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aihub/ai-gateway/internal/config"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testCreditsConfig() *config.CreditsConfig {
	return &config.CreditsConfig{
		ChatCost:            1,
		ImageCost:           1,
		MusicCost:           2,
		FreeChatMonthly:     25,
		FreeGenAIMonthly:    25,
		ProChatMonthly:      500,
		ProGenAIMonthly:     200,
		PremiumChatMonthly:  100,
		PremiumGenAIMonthly: 50,
		ResetIntervalDays:   30,
	}
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return gdb, mock
}

func TestCreditStore_TryDeduct_Success(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	// 条件UPDATE命中，返回扣减后余额
	mock.ExpectQuery(`UPDATE user_accounts SET chat_credits = chat_credits - \$1, update_time = \$2 WHERE user_id = \$3 AND chat_credits >= \$4 RETURNING chat_credits`).
		WithArgs(1, sqlmock.AnyArg(), "user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"chat_credits"}).AddRow(24))

	// 扣减流水
	mock.ExpectQuery(`INSERT INTO "credit_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}).AddRow(1))

	ok, remaining, err := store.TryDeduct("user-1", "chat", 1, "chat with agent a-1", "req-1", 42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 24, remaining)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditStore_TryDeduct_Insufficient(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	// 条件UPDATE未命中（余额不足）
	mock.ExpectQuery(`UPDATE user_accounts SET genai_credits = genai_credits - \$1`).
		WithArgs(2, sqlmock.AnyArg(), "user-1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"genai_credits"}))

	// 回读区分余额不足与账户不存在
	mock.ExpectQuery(`SELECT \* FROM "user_accounts" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "tier", "chat_credits", "genai_credits"}).
			AddRow("user-1", "free", 5, 1))

	ok, remaining, err := store.TryDeduct("user-1", "genai", 2, "generate music", "req-2", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, remaining)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditStore_TryDeduct_MissingUser(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	mock.ExpectQuery(`UPDATE user_accounts SET chat_credits = chat_credits - \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"chat_credits"}))

	mock.ExpectQuery(`SELECT \* FROM "user_accounts" WHERE user_id = \$1`).
		WillReturnError(gorm.ErrRecordNotFound)

	_, _, err := store.TryDeduct("ghost", "chat", 1, "chat", "req-3", 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditStore_TryDeduct_RejectsBadInput(t *testing.T) {
	gdb, _ := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	_, _, err := store.TryDeduct("user-1", "bogus", 1, "", "", 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	_, _, err = store.TryDeduct("user-1", "chat", 0, "", "", 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	_, _, err = store.TryDeduct("user-1", "chat", -5, "", "", 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
}

func TestCreditStore_AddCredits(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	mock.ExpectQuery(`UPDATE user_accounts SET genai_credits = genai_credits \+ \$1, update_time = \$2 WHERE user_id = \$3 RETURNING genai_credits`).
		WithArgs(10, sqlmock.AnyArg(), "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"genai_credits"}).AddRow(35))

	mock.ExpectQuery(`INSERT INTO "credit_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}).AddRow(7))

	remaining, err := store.AddCredits("user-1", "genai", 10, "purchase")
	require.NoError(t, err)
	assert.Equal(t, 35, remaining)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditStore_AddCredits_MissingUser(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	mock.ExpectQuery(`UPDATE user_accounts SET chat_credits = chat_credits \+ \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"chat_credits"}))

	_, err := store.AddCredits("ghost", "chat", 10, "purchase")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditStore_Initialize_CreatesWithTierDefaults(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	mock.ExpectExec(`INSERT INTO "user_accounts" .* ON CONFLICT \("user_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT \* FROM "user_accounts" WHERE user_id = \$1`).
		WithArgs("user-9", 1).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "tier", "chat_credits", "genai_credits"}).
			AddRow("user-9", "pro", 500, 200))

	// 初始发放的两条流水
	mock.ExpectQuery(`INSERT INTO "credit_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "credit_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}).AddRow(2))

	account, created, err := store.Initialize("user-9", "pro")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 500, account.ChatCredits)
	assert.Equal(t, 200, account.GenAICredits)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditStore_Initialize_Idempotent(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	// 冲突未插入：不重复发放初始额度
	mock.ExpectExec(`INSERT INTO "user_accounts" .* ON CONFLICT \("user_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(`SELECT \* FROM "user_accounts" WHERE user_id = \$1`).
		WithArgs("user-9", 1).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "tier", "chat_credits", "genai_credits"}).
			AddRow("user-9", "free", 3, 7))

	account, created, err := store.Initialize("user-9", "free")
	require.NoError(t, err)
	assert.False(t, created)
	// 已消费的余额不被重置
	assert.Equal(t, 3, account.ChatCredits)
	assert.Equal(t, 7, account.GenAICredits)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditStore_TierDefaults(t *testing.T) {
	gdb, _ := newMockDB(t)
	store := NewCreditStoreWithDB(gdb, testCreditsConfig())

	chat, genai := store.TierDefaults("free")
	assert.Equal(t, 25, chat)
	assert.Equal(t, 25, genai)

	chat, genai = store.TierDefaults("pro")
	assert.Equal(t, 500, chat)
	assert.Equal(t, 200, genai)

	chat, genai = store.TierDefaults("premium")
	assert.Equal(t, 100, chat)
	assert.Equal(t, 50, genai)

	// 未知档位按免费档处理
	chat, genai = store.TierDefaults("enterprise")
	assert.Equal(t, 25, chat)
	assert.Equal(t, 25, genai)
}
