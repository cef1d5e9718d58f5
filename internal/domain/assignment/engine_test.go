package assignment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/services/routing-api/internal/domain/assignment"
	"zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/domain/directory"
	"zapdesk/services/routing-api/internal/realtime"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// memoryStore is an in-memory conversation.Store whose ownership mutations
// are serialized by a mutex, matching the row-level atomicity of the SQL
// implementation.
type memoryStore struct {
	mu     sync.Mutex
	convs  map[uint]*conversation.Conversation
	events map[uint][]*conversation.AssignmentEvent
	nextID uint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		convs:  make(map[uint]*conversation.Conversation),
		events: make(map[uint][]*conversation.AssignmentEvent),
	}
}

func (m *memoryStore) Create(ctx context.Context, conv *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	conv.ID = m.nextID
	copied := *conv
	m.convs[conv.ID] = &copied
	return nil
}

func (m *memoryStore) FindByID(ctx context.Context, id uint) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok {
		copied := *conv
		return &copied, nil
	}
	return nil, m.notFound(ctx)
}

func (m *memoryStore) FindByPublicID(ctx context.Context, tenantID, publicID string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.convs {
		if conv.TenantID == tenantID && conv.PublicID == publicID {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, m.notFound(ctx)
}

func (m *memoryStore) FindByPhone(ctx context.Context, tenantID, phone string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.convs {
		if conv.TenantID == tenantID && conv.Phone == phone {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, m.notFound(ctx)
}

func (m *memoryStore) List(ctx context.Context, filter conversation.Filter, pagination *conversation.Pagination) ([]*conversation.Conversation, error) {
	return nil, nil
}

func (m *memoryStore) Update(ctx context.Context, conv *conversation.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *conv
	m.convs[conv.ID] = &copied
	return nil
}

func (m *memoryStore) BumpSnapshot(ctx context.Context, id uint, body string, at time.Time, incrementUnread bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok {
		conv.LastMessageBody = body
		conv.LastMessageAt = &at
		if incrementUnread {
			conv.UnreadCount++
		}
	}
	return nil
}

func (m *memoryStore) ResetUnread(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok {
		conv.UnreadCount = 0
	}
	return nil
}

func (m *memoryStore) ClaimOwner(ctx context.Context, id uint, agentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok || conv.AgentID != nil || conv.DepartmentID == nil || conv.ServiceStatus != conversation.ServiceWaiting {
		return false, nil
	}
	conv.AgentID = &agentID
	conv.ServiceStatus = conversation.ServiceActive
	return true, nil
}

func (m *memoryStore) SwapOwner(ctx context.Context, id uint, expectedAgent *string, departmentID string, agentID *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok {
		return false, nil
	}
	switch {
	case expectedAgent == nil && conv.AgentID != nil:
		return false, nil
	case expectedAgent != nil && (conv.AgentID == nil || *conv.AgentID != *expectedAgent):
		return false, nil
	}
	conv.DepartmentID = &departmentID
	conv.AgentID = agentID
	if agentID != nil {
		conv.ServiceStatus = conversation.ServiceActive
	} else {
		conv.ServiceStatus = conversation.ServiceWaiting
	}
	return true, nil
}

func (m *memoryStore) RouteToDepartment(ctx context.Context, id uint, departmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok && conv.DepartmentID == nil {
		conv.DepartmentID = &departmentID
	}
	return nil
}

func (m *memoryStore) CloseOwnership(ctx context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[id]
	if !ok || conv.ServiceStatus == conversation.ServiceClosed {
		return false, nil
	}
	conv.ServiceStatus = conversation.ServiceClosed
	conv.Status = conversation.StatusResolved
	return true, nil
}

func (m *memoryStore) Reopen(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.convs[id]; ok {
		conv.Status = conversation.StatusOpen
		if conv.ServiceStatus == conversation.ServiceClosed {
			conv.ServiceStatus = conversation.ServiceWaiting
			conv.AgentID = nil
		}
	}
	return nil
}

func (m *memoryStore) UpsertMessage(ctx context.Context, msg *conversation.Message) (bool, error) {
	return true, nil
}

func (m *memoryStore) UpdateAck(ctx context.Context, conversationID uint, gatewayID string, ack conversation.AckLevel) error {
	return nil
}

func (m *memoryStore) ListMessages(ctx context.Context, conversationID uint, pagination *conversation.Pagination) ([]*conversation.Message, error) {
	return nil, nil
}

func (m *memoryStore) AppendEvent(ctx context.Context, event *conversation.AssignmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events[event.ConversationID] = append(m.events[event.ConversationID], &copied)
	return nil
}

func (m *memoryStore) ListEvents(ctx context.Context, conversationID uint) ([]*conversation.AssignmentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*conversation.AssignmentEvent(nil), m.events[conversationID]...), nil
}

func (m *memoryStore) notFound(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "00000000-0000-0000-0000-000000000010")
}

// mockDirectory resolves departments from fixed maps.
type mockDirectory struct {
	defaults map[string]*directory.Department
	members  map[string]map[string]bool // departmentID -> agentID
}

func (m *mockDirectory) GetDefaultDepartment(ctx context.Context, tenantID string) (*directory.Department, error) {
	return m.defaults[tenantID], nil
}

func (m *mockDirectory) IsMemberOf(ctx context.Context, agentID, departmentID string) (bool, error) {
	return m.members[departmentID][agentID], nil
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *capturePublisher) Publish(tenantID string, event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) kinds() []realtime.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func newFixture(t *testing.T) (*assignment.Engine, *memoryStore, *capturePublisher, *conversation.Conversation) {
	t.Helper()
	store := newMemoryStore()
	dir := &mockDirectory{
		defaults: map[string]*directory.Department{
			"tenant-1": {ID: "dept-reception", TenantID: "tenant-1", Name: "Reception", IsDefault: true},
		},
		members: map[string]map[string]bool{
			"dept-reception": {
				"agent-ana": true, "agent-bruno": true,
				"agent-a": true, "agent-b": true, "agent-c": true, "agent-d": true, "agent-e": true,
			},
			"dept-billing": {"agent-carla": true},
		},
	}
	publisher := &capturePublisher{}
	engine := assignment.NewEngine(store, dir, publisher, zerolog.Nop())

	conv := conversation.NewConversation("conv_test0001", "tenant-1", "5511988887777", "Customer")
	require.NoError(t, store.Create(context.Background(), conv))
	return engine, store, publisher, conv
}

func TestRouteNewConversationStaysWaiting(t *testing.T) {
	engine, store, _, conv := newFixture(t)
	ctx := context.Background()

	require.NoError(t, engine.RouteNewConversation(ctx, conv))

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DepartmentID)
	assert.Equal(t, "dept-reception", *stored.DepartmentID)
	assert.Equal(t, conversation.ServiceWaiting, stored.ServiceStatus)
	assert.Nil(t, stored.AgentID)
}

func TestRouteWithoutDefaultDepartmentLeavesUnrouted(t *testing.T) {
	store := newMemoryStore()
	dir := &mockDirectory{defaults: map[string]*directory.Department{}}
	engine := assignment.NewEngine(store, dir, &capturePublisher{}, zerolog.Nop())
	ctx := context.Background()

	conv := conversation.NewConversation("conv_test0002", "tenant-2", "5511977776666", "")
	require.NoError(t, store.Create(ctx, conv))

	require.NoError(t, engine.RouteNewConversation(ctx, conv))

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.DepartmentID)
	assert.Equal(t, conversation.ServiceWaiting, stored.ServiceStatus)
}

func TestClaimActivatesConversation(t *testing.T) {
	engine, _, publisher, conv := newFixture(t)
	ctx := context.Background()
	require.NoError(t, engine.RouteNewConversation(ctx, conv))

	claimed, err := engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)
	assert.Equal(t, conversation.ServiceActive, claimed.ServiceStatus)
	require.NotNil(t, claimed.AgentID)
	assert.Equal(t, "agent-ana", *claimed.AgentID)
	assert.Contains(t, publisher.kinds(), realtime.EventOwnershipChanged)
}

func TestClaimRoutesUnroutedConversation(t *testing.T) {
	engine, store, _, conv := newFixture(t)
	ctx := context.Background()

	// Not routed beforehand: the claim itself must resolve the department
	// so the conversation never ends up ACTIVE without one.
	claimed, err := engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)
	require.NotNil(t, claimed.DepartmentID)
	assert.Equal(t, "dept-reception", *claimed.DepartmentID)
	assert.Equal(t, conversation.ServiceActive, claimed.ServiceStatus)

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DepartmentID)
}

func TestClaimUnroutedWithoutDefaultDepartmentRejected(t *testing.T) {
	store := newMemoryStore()
	dir := &mockDirectory{defaults: map[string]*directory.Department{}}
	engine := assignment.NewEngine(store, dir, &capturePublisher{}, zerolog.Nop())
	ctx := context.Background()

	conv := conversation.NewConversation("conv_test0003", "tenant-2", "5511966665555", "")
	require.NoError(t, store.Create(ctx, conv))

	_, err := engine.Claim(ctx, "tenant-2", conv.PublicID, "agent-ana")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeInvalidTransition))

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AgentID)
	assert.Nil(t, stored.DepartmentID)
	assert.Equal(t, conversation.ServiceWaiting, stored.ServiceStatus)
}

func TestClaimRejectsNonMemberAgent(t *testing.T) {
	engine, store, _, conv := newFixture(t)
	ctx := context.Background()
	require.NoError(t, engine.RouteNewConversation(ctx, conv))

	// agent-carla belongs to billing, not to the routed reception queue.
	_, err := engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-carla")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AgentID)
	assert.Equal(t, conversation.ServiceWaiting, stored.ServiceStatus)
}

func TestSecondClaimConflicts(t *testing.T) {
	engine, _, _, conv := newFixture(t)
	ctx := context.Background()

	_, err := engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)

	_, err = engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-bruno")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict))
}

func TestConcurrentClaimsExactlyOneWinner(t *testing.T) {
	engine, store, _, conv := newFixture(t)
	ctx := context.Background()

	agents := []string{"agent-a", "agent-b", "agent-c", "agent-d", "agent-e"}
	var wg sync.WaitGroup
	var winners int32
	var winnersMu sync.Mutex
	var winnerAgent string

	for _, agent := range agents {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			if _, err := engine.Claim(ctx, "tenant-1", conv.PublicID, agent); err == nil {
				winnersMu.Lock()
				winners++
				winnerAgent = agent
				winnersMu.Unlock()
			}
		}(agent)
	}
	wg.Wait()

	assert.EqualValues(t, 1, winners)

	stored, err := store.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AgentID)
	assert.Equal(t, winnerAgent, *stored.AgentID)
}

func TestTransferRejectsNonMember(t *testing.T) {
	engine, _, _, conv := newFixture(t)
	ctx := context.Background()

	outsider := "agent-ana" // not in dept-billing
	_, err := engine.Transfer(ctx, "tenant-1", conv.PublicID, assignment.TransferInput{
		DepartmentID: "dept-billing",
		AgentID:      &outsider,
		ActorID:      "agent-ana",
	})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}

func TestTransferRecordsTrail(t *testing.T) {
	engine, store, _, conv := newFixture(t)
	ctx := context.Background()

	_, err := engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)

	target := "agent-carla"
	transferred, err := engine.Transfer(ctx, "tenant-1", conv.PublicID, assignment.TransferInput{
		DepartmentID: "dept-billing",
		AgentID:      &target,
		ActorID:      "agent-ana",
		Notes:        "billing question",
	})
	require.NoError(t, err)
	require.NotNil(t, transferred.AgentID)
	assert.Equal(t, "agent-carla", *transferred.AgentID)

	events, err := store.ListEvents(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "agent-ana", *events[0].FromAgentID)
	assert.Equal(t, "agent-carla", *events[0].ToAgentID)
	assert.Equal(t, "billing question", events[0].Notes)
}

func TestTransferConflictsWhenOwnerChanged(t *testing.T) {
	engine, store, _, conv := newFixture(t)
	ctx := context.Background()

	_, err := engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)

	// Another agent takes over between the caller's read and the swap.
	other := "agent-bruno"
	ana := "agent-ana"
	swapped, err := store.SwapOwner(ctx, conv.ID, &ana, "dept-reception", &other)
	require.NoError(t, err)
	require.True(t, swapped)

	// Engine loads fresh state inside Transfer, so simulate a stale caller
	// by swapping away right before: the CAS on the freshly loaded owner
	// still succeeds. Swap the row again underneath mid-flight is not
	// reproducible without hooks, so assert the store-level behavior.
	swapped, err = store.SwapOwner(ctx, conv.ID, &ana, "dept-billing", nil)
	require.NoError(t, err)
	assert.False(t, swapped, "swap must fail when the expected owner no longer holds the conversation")
}

func TestCloseIsIdempotent(t *testing.T) {
	engine, store, publisher, conv := newFixture(t)
	ctx := context.Background()

	_, err := engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)

	closed, err := engine.Close(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)
	assert.Equal(t, conversation.ServiceClosed, closed.ServiceStatus)
	assert.Equal(t, conversation.StatusResolved, closed.Status)

	// Second close changes nothing and appends no second trail entry.
	_, err = engine.Close(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Contains(t, publisher.kinds(), realtime.EventStatusChanged)
}

func TestClaimClosedConversationRejected(t *testing.T) {
	engine, _, _, conv := newFixture(t)
	ctx := context.Background()

	_, err := engine.Close(ctx, "tenant-1", conv.PublicID, "agent-ana")
	require.NoError(t, err)

	_, err = engine.Claim(ctx, "tenant-1", conv.PublicID, "agent-bruno")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeInvalidTransition))
}
