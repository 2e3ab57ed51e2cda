package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/tests/helpers"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	log := New(helpers.NewTestStore(t))
	sessionID, err := log.EnsureSession(context.Background(), "")
	require.NoError(t, err)
	return log, sessionID
}

func TestEnsureSession(t *testing.T) {
	ctx := context.Background()
	log, sessionID := newTestLog(t)
	require.NotEmpty(t, sessionID)

	same, err := log.EnsureSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, same)

	fresh, err := log.EnsureSession(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", fresh)
	assert.NotEqual(t, sessionID, fresh)

	ok, err := log.Exists(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCurrentTurn(t *testing.T) {
	ctx := context.Background()
	log, sessionID := newTestLog(t)

	turn, err := log.CurrentTurn(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, turn)

	_, err = log.Append(ctx, sessionID, domain.UserEntry("first"))
	require.NoError(t, err)

	turn, err = log.CurrentTurn(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, turn, 1, "no boundary yet, whole history is the turn")

	_, err = log.Append(ctx, sessionID, domain.TurnBoundaryEntry(""))
	require.NoError(t, err)
	_, err = log.Append(ctx, sessionID, domain.UserEntry("second"))
	require.NoError(t, err)
	_, err = log.Append(ctx, sessionID, domain.AssistantEntry("reply"))
	require.NoError(t, err)

	turn, err = log.CurrentTurn(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, turn, 2)
	assert.Equal(t, "second", turn[0].Content)

	user, err := LastUserMessage(turn)
	require.NoError(t, err)
	assert.Equal(t, "second", user)

	_, err = log.Append(ctx, sessionID, domain.TurnBoundaryEntry("--- 트렌드 분석 시작 ---"))
	require.NoError(t, err)
	turn, err = log.CurrentTurn(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, turn)

	_, err = LastUserMessage(turn)
	assert.Error(t, err)
}

func TestFindLastMarker(t *testing.T) {
	ctx := context.Background()
	log, sessionID := newTestLog(t)

	var marker domain.AgentMarker
	found, err := log.FindLastMarker(ctx, sessionID, domain.MarkerAgent, &marker)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, log.AppendMarker(ctx, sessionID, domain.MarkerAgent, domain.AgentMarker{Task: domain.TaskTrend}))
	require.NoError(t, log.AppendMarker(ctx, sessionID, domain.MarkerAgent, domain.AgentMarker{Task: domain.TaskReview}))
	_, err = log.Append(ctx, sessionID, domain.Entry{
		Kind:      domain.EntryStateMarker,
		Role:      domain.RoleSystem,
		MarkerKey: domain.MarkerAgent,
		Content:   "{not json",
	})
	require.NoError(t, err)

	found, err = log.FindLastMarker(ctx, sessionID, domain.MarkerAgent, &marker)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.TaskReview, marker.Task)

	var brief map[string]interface{}
	found, err = log.FindLastMarker(ctx, sessionID, domain.MarkerAdBrief, &brief)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindLastMarkerSkipsUnknownTask(t *testing.T) {
	ctx := context.Background()
	log, sessionID := newTestLog(t)

	require.NoError(t, log.AppendMarker(ctx, sessionID, domain.MarkerAgent, domain.AgentMarker{Task: domain.TaskCompetitor}))
	require.NoError(t, log.AppendMarker(ctx, sessionID, domain.MarkerAgent, map[string]string{"task": "weather"}))

	var marker domain.AgentMarker
	found, err := log.FindLastMarker(ctx, sessionID, domain.MarkerAgent, &marker)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.TaskCompetitor, marker.Task)
}

func TestFindLastMarkerBefore(t *testing.T) {
	ctx := context.Background()
	log, sessionID := newTestLog(t)

	require.NoError(t, log.AppendMarker(ctx, sessionID, domain.MarkerAdBrief, map[string]string{"product_name": "old"}))
	_, err := log.Append(ctx, sessionID, domain.TurnBoundaryEntry(""))
	require.NoError(t, err)
	require.NoError(t, log.AppendMarker(ctx, sessionID, domain.MarkerAdBrief, map[string]string{"product_name": "new"}))

	var brief map[string]string
	found, err := log.FindLastMarkerBefore(ctx, sessionID, domain.MarkerAdBrief, &brief)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "old", brief["product_name"])
}

func TestConversationHidesMarkers(t *testing.T) {
	ctx := context.Background()
	log, sessionID := newTestLog(t)

	_, err := log.Append(ctx, sessionID, domain.TurnBoundaryEntry(""))
	require.NoError(t, err)
	_, err = log.Append(ctx, sessionID, domain.UserEntry("hi"))
	require.NoError(t, err)
	require.NoError(t, log.AppendMarker(ctx, sessionID, domain.MarkerAgent, domain.AgentMarker{Task: domain.TaskTrend}))
	_, err = log.Append(ctx, sessionID, domain.AssistantEntry("hello"))
	require.NoError(t, err)

	history, err := log.History(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	conv, err := log.Conversation(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, domain.RoleUser, conv[0].Role)
	assert.Equal(t, domain.RoleAssistant, conv[1].Role)
}

func TestAppendUnknownSessionIsPersistenceError(t *testing.T) {
	log, _ := newTestLog(t)
	_, err := log.Append(context.Background(), "ghost", domain.UserEntry("hi"))
	require.Error(t, err)
	var perr *domain.PersistenceError
	assert.ErrorAs(t, err, &perr)
}
