package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Basic(t *testing.T) {
	// 创建mock数据库
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	// 设置mock期望ping成功
	mock.ExpectPing()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	checker := NewHealthChecker(db, logger)
	assert.NotNil(t, checker)

	// 测试健康检查
	ctx := context.Background()
	err = checker.Check(ctx)
	assert.NoError(t, err)
	assert.True(t, checker.IsHealthy())

	// 验证mock期望
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_FailureAndRecovery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	checker := NewHealthChecker(db, logger)

	// 设置ping失败
	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)

	ctx := context.Background()
	err = checker.Check(ctx)
	assert.Error(t, err)
	assert.False(t, checker.IsHealthy())

	// 设置ping成功
	mock.ExpectPing()

	// 测试恢复
	err = checker.Check(ctx)
	assert.NoError(t, err)
	assert.True(t, checker.IsHealthy())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_Result(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	checker := NewHealthChecker(db, logger)

	// 测试初始状态
	result := checker.GetHealthResult()
	assert.False(t, result.Healthy)
	assert.Empty(t, result.LastError)

	// 设置ping失败
	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)

	ctx := context.Background()
	err = checker.Check(ctx)
	require.Error(t, err)

	result = checker.GetHealthResult()
	assert.False(t, result.Healthy)
	assert.NotEmpty(t, result.LastError)
	assert.NotZero(t, result.LastCheck)

	// 设置ping成功
	mock.ExpectPing()

	err = checker.Check(ctx)
	require.NoError(t, err)

	result = checker.GetHealthResult()
	assert.True(t, result.Healthy)
	assert.Empty(t, result.LastError)

	assert.NoError(t, mock.ExpectationsWereMet())
}
