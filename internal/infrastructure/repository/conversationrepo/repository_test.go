package conversationrepo_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/infrastructure/database/entities"
	"zapdesk/services/routing-api/internal/infrastructure/repository/conversationrepo"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entities.Conversation{},
		&entities.Message{},
		&entities.AssignmentEvent{},
	))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedConversation(t *testing.T, repo *conversationrepo.Repository, publicID, phone string) *conversation.Conversation {
	t.Helper()
	conv := conversation.NewConversation(publicID, "tenant-1", phone, "Customer")
	require.NoError(t, repo.Create(context.Background(), conv))
	return conv
}

func seedRoutedConversation(t *testing.T, repo *conversationrepo.Repository, publicID, phone string) *conversation.Conversation {
	t.Helper()
	conv := seedConversation(t, repo, publicID, phone)
	require.NoError(t, repo.RouteToDepartment(context.Background(), conv.ID, "dept-reception"))
	return conv
}

func TestClaimOwnerIsCompareAndSet(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedRoutedConversation(t, repo, "conv_cas_1", "5511911110001")

	won, err := repo.ClaimOwner(ctx, conv.ID, "agent-ana")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.ClaimOwner(ctx, conv.ID, "agent-bruno")
	require.NoError(t, err)
	assert.False(t, won, "second claim must lose the compare-and-set")

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AgentID)
	assert.Equal(t, "agent-ana", *stored.AgentID)
	assert.Equal(t, conversation.ServiceActive, stored.ServiceStatus)
}

func TestClaimOwnerRejectsUnroutedConversation(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedConversation(t, repo, "conv_cas_3", "5511911110014")

	won, err := repo.ClaimOwner(ctx, conv.ID, "agent-ana")
	require.NoError(t, err)
	assert.False(t, won, "a conversation with no department must not become ACTIVE")

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AgentID)
	assert.Nil(t, stored.DepartmentID)
	assert.Equal(t, conversation.ServiceWaiting, stored.ServiceStatus)

	require.NoError(t, repo.RouteToDepartment(ctx, conv.ID, "dept-reception"))
	won, err = repo.ClaimOwner(ctx, conv.ID, "agent-ana")
	require.NoError(t, err)
	assert.True(t, won)
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedRoutedConversation(t, repo, "conv_cas_2", "5511911110002")

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for _, agent := range []string{"agent-a", "agent-b", "agent-c", "agent-d"} {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			won, err := repo.ClaimOwner(ctx, conv.ID, agent)
			if err == nil && won {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(agent)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestSwapOwnerRequiresExpectedAgent(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedRoutedConversation(t, repo, "conv_swap_1", "5511911110003")

	won, err := repo.ClaimOwner(ctx, conv.ID, "agent-ana")
	require.NoError(t, err)
	require.True(t, won)

	// Stale expectation: the caller saw no owner.
	bruno := "agent-bruno"
	swapped, err := repo.SwapOwner(ctx, conv.ID, nil, "dept-billing", &bruno)
	require.NoError(t, err)
	assert.False(t, swapped)

	// Correct expectation succeeds and moves both department and agent.
	ana := "agent-ana"
	swapped, err = repo.SwapOwner(ctx, conv.ID, &ana, "dept-billing", &bruno)
	require.NoError(t, err)
	assert.True(t, swapped)

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "dept-billing", *stored.DepartmentID)
	assert.Equal(t, "agent-bruno", *stored.AgentID)
	assert.Equal(t, conversation.ServiceActive, stored.ServiceStatus)
}

func TestSwapOwnerToQueueRestoresWaiting(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedRoutedConversation(t, repo, "conv_swap_2", "5511911110004")

	won, err := repo.ClaimOwner(ctx, conv.ID, "agent-ana")
	require.NoError(t, err)
	require.True(t, won)

	ana := "agent-ana"
	swapped, err := repo.SwapOwner(ctx, conv.ID, &ana, "dept-billing", nil)
	require.NoError(t, err)
	require.True(t, swapped)

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AgentID)
	assert.Equal(t, conversation.ServiceWaiting, stored.ServiceStatus)
}

func TestUpsertMessageAbsorbsDuplicateGatewayID(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedConversation(t, repo, "conv_msg_1", "5511911110005")

	msg := &conversation.Message{
		ConversationID: conv.ID,
		GatewayID:      "wamid-1",
		Body:           "hello",
		Type:           conversation.MessageTypeText,
		Timestamp:      time.Now(),
	}
	created, err := repo.UpsertMessage(ctx, msg)
	require.NoError(t, err)
	assert.True(t, created)

	replay := &conversation.Message{
		ConversationID: conv.ID,
		GatewayID:      "wamid-1",
		Body:           "hello again",
		Type:           conversation.MessageTypeText,
		Timestamp:      time.Now(),
	}
	created, err = repo.UpsertMessage(ctx, replay)
	require.NoError(t, err)
	assert.False(t, created)

	msgs, err := repo.ListMessages(ctx, conv.ID, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Body, "replay must not overwrite the stored row")
}

func TestUpdateAckNeverRegresses(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedConversation(t, repo, "conv_ack_1", "5511911110006")

	_, err := repo.UpsertMessage(ctx, &conversation.Message{
		ConversationID: conv.ID,
		GatewayID:      "wamid-out-1",
		FromMe:         true,
		Body:           "hi",
		Type:           conversation.MessageTypeText,
		Ack:            conversation.AckSent,
		Timestamp:      time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateAck(ctx, conv.ID, "wamid-out-1", conversation.AckRead))
	require.NoError(t, repo.UpdateAck(ctx, conv.ID, "wamid-out-1", conversation.AckDelivered))

	msgs, err := repo.ListMessages(ctx, conv.ID, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.AckRead, msgs[0].Ack)
}

func TestCloseOwnershipIsIdempotent(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedConversation(t, repo, "conv_close_1", "5511911110007")

	closed, err := repo.CloseOwnership(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.CloseOwnership(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, closed, "second close must report nothing changed")

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.ServiceClosed, stored.ServiceStatus)
	assert.Equal(t, conversation.StatusResolved, stored.Status)
}

func TestReopenReleasesAgentOnlyWhenClosed(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()

	// Closed conversation: reopen releases the owner back to the queue.
	closedConv := seedRoutedConversation(t, repo, "conv_reopen_1", "5511911110008")
	won, err := repo.ClaimOwner(ctx, closedConv.ID, "agent-ana")
	require.NoError(t, err)
	require.True(t, won)
	_, err = repo.CloseOwnership(ctx, closedConv.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Reopen(ctx, closedConv.ID))
	stored, err := repo.FindByID(ctx, closedConv.ID)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusOpen, stored.Status)
	assert.Equal(t, conversation.ServiceWaiting, stored.ServiceStatus)
	assert.Nil(t, stored.AgentID)

	// Active conversation: reopen keeps the current owner untouched.
	activeConv := seedRoutedConversation(t, repo, "conv_reopen_2", "5511911110009")
	won, err = repo.ClaimOwner(ctx, activeConv.ID, "agent-bruno")
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, repo.Reopen(ctx, activeConv.ID))
	stored, err = repo.FindByID(ctx, activeConv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AgentID)
	assert.Equal(t, "agent-bruno", *stored.AgentID)
	assert.Equal(t, conversation.ServiceActive, stored.ServiceStatus)
}

func TestRouteToDepartmentOnlySetsUnrouted(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedConversation(t, repo, "conv_route_1", "5511911110010")

	require.NoError(t, repo.RouteToDepartment(ctx, conv.ID, "dept-reception"))
	require.NoError(t, repo.RouteToDepartment(ctx, conv.ID, "dept-billing"))

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DepartmentID)
	assert.Equal(t, "dept-reception", *stored.DepartmentID)
}

func TestBumpSnapshotIncrementsUnreadForInboundOnly(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedConversation(t, repo, "conv_bump_1", "5511911110011")
	now := time.Now()

	require.NoError(t, repo.BumpSnapshot(ctx, conv.ID, "inbound", now, true))
	require.NoError(t, repo.BumpSnapshot(ctx, conv.ID, "outbound", now, false))

	stored, err := repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UnreadCount)
	assert.Equal(t, "outbound", stored.LastMessageBody)

	require.NoError(t, repo.ResetUnread(ctx, conv.ID))
	stored, err = repo.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UnreadCount)
}

func TestFindByPublicIDScopedToTenant(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedConversation(t, repo, "conv_tenant_1", "5511911110012")

	found, err := repo.FindByPublicID(ctx, "tenant-1", conv.PublicID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	_, err = repo.FindByPublicID(ctx, "tenant-2", conv.PublicID)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}

func TestAppendEventTrailOrdered(t *testing.T) {
	repo := conversationrepo.NewRepository(openTestDB(t))
	ctx := context.Background()
	conv := seedConversation(t, repo, "conv_trail_1", "5511911110013")

	dept := "dept-reception"
	ana := "agent-ana"
	require.NoError(t, repo.AppendEvent(ctx, &conversation.AssignmentEvent{
		ConversationID: conv.ID,
		ToDepartmentID: &dept,
		ToAgentID:      &ana,
		ActorID:        "agent-ana",
	}))
	require.NoError(t, repo.AppendEvent(ctx, &conversation.AssignmentEvent{
		ConversationID:   conv.ID,
		FromDepartmentID: &dept,
		FromAgentID:      &ana,
		ActorID:          "agent-ana",
		Notes:            "resolved",
	}))

	events, err := repo.ListEvents(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "agent-ana", *events[0].ToAgentID)
	assert.Nil(t, events[1].ToAgentID)
	assert.Equal(t, "resolved", events[1].Notes)
}
