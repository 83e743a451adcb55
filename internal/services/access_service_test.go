package services

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/aihub/ai-gateway/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func agentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"agent_id", "name", "personality", "owner_id", "is_public"})
}

func TestAccessService_GetAgent_NotFound(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewAccessServiceWithDB(gdb)

	mock.ExpectQuery(`SELECT \* FROM "ai_agents" WHERE agent_id = \$1`).
		WithArgs("ghost-agent", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := service.GetAgent("ghost-agent")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessService_PublicViewOmitsPersonality(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewAccessServiceWithDB(gdb)

	mock.ExpectQuery(`SELECT \* FROM "ai_agents" WHERE agent_id = \$1`).
		WithArgs("agent-1", 1).
		WillReturnRows(agentRows().AddRow("agent-1", "Helper", "secret persona rules", "owner-9", true))

	agent, err := service.GetAgent("agent-1")
	require.NoError(t, err)

	// 对外视图不携带personality与owner_id
	data, err := json.Marshal(agent.PublicView())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "personality")
	assert.NotContains(t, string(data), "owner_id")
	assert.Contains(t, string(data), `"agent_id":"agent-1"`)
	assert.Contains(t, string(data), `"name":"Helper"`)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessService_HasAccess_PublicAgent(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewAccessServiceWithDB(gdb)

	mock.ExpectQuery(`SELECT \* FROM "ai_agents" WHERE agent_id = \$1`).
		WithArgs("agent-1", 1).
		WillReturnRows(agentRows().AddRow("agent-1", "Helper", "friendly", "someone-else", true))

	allowed, err := service.HasAccess("user-1", "agent-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	// 公开助手无需查询账户
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessService_HasAccess_Owner(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewAccessServiceWithDB(gdb)

	mock.ExpectQuery(`SELECT \* FROM "ai_agents" WHERE agent_id = \$1`).
		WithArgs("agent-1", 1).
		WillReturnRows(agentRows().AddRow("agent-1", "Helper", "friendly", "user-1", false))

	allowed, err := service.HasAccess("user-1", "agent-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessService_HasAccess_TeamMember(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewAccessServiceWithDB(gdb)

	mock.ExpectQuery(`SELECT \* FROM "ai_agents" WHERE agent_id = \$1`).
		WithArgs("agent-1", 1).
		WillReturnRows(agentRows().AddRow("agent-1", "Helper", "friendly", "someone-else", false))

	mock.ExpectQuery(`SELECT \* FROM "user_accounts" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "tier", "agent_team"}).
			AddRow("user-1", "free", `["agent-7","agent-1"]`))

	allowed, err := service.HasAccess("user-1", "agent-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessService_HasAccess_Stranger(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewAccessServiceWithDB(gdb)

	mock.ExpectQuery(`SELECT \* FROM "ai_agents" WHERE agent_id = \$1`).
		WithArgs("agent-1", 1).
		WillReturnRows(agentRows().AddRow("agent-1", "Helper", "friendly", "someone-else", false))

	mock.ExpectQuery(`SELECT \* FROM "user_accounts" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "tier", "agent_team"}).
			AddRow("user-1", "free", `["agent-7"]`))

	allowed, err := service.HasAccess("user-1", "agent-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessService_HasAccess_MissingAccountDenied(t *testing.T) {
	gdb, mock := newMockDB(t)
	service := NewAccessServiceWithDB(gdb)

	mock.ExpectQuery(`SELECT \* FROM "ai_agents" WHERE agent_id = \$1`).
		WithArgs("agent-1", 1).
		WillReturnRows(agentRows().AddRow("agent-1", "Helper", "friendly", "someone-else", false))

	mock.ExpectQuery(`SELECT \* FROM "user_accounts" WHERE user_id = \$1`).
		WithArgs("user-1", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	// 账户不存在：拒绝但不报错
	allowed, err := service.HasAccess("user-1", "agent-1")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
