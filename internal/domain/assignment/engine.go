package assignment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/domain/directory"
	"zapdesk/services/routing-api/internal/infrastructure/metrics"
	"zapdesk/services/routing-api/internal/realtime"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// Engine owns every ownership mutation of a conversation. All writes go
// through the store's compare-and-set operations so concurrent agents can
// never both win the same conversation.
type Engine struct {
	store     conversation.Store
	directory directory.Directory
	publisher realtime.Publisher
	log       zerolog.Logger
}

func NewEngine(store conversation.Store, dir directory.Directory, publisher realtime.Publisher, log zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		directory: dir,
		publisher: publisher,
		log:       log.With().Str("component", "assignment_engine").Logger(),
	}
}

// RouteNewConversation places a freshly created conversation into the
// tenant's default department. The conversation stays WAITING and unowned;
// claiming is what makes it ACTIVE. When the tenant has no default
// department configured the conversation is left unrouted and surfaced
// through metrics rather than failing the inbound path.
func (e *Engine) RouteNewConversation(ctx context.Context, conv *conversation.Conversation) error {
	dept, err := e.directory.GetDefaultDepartment(ctx, conv.TenantID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve default department")
	}
	if dept == nil {
		metrics.RoutedWithoutDepartment.Inc()
		e.log.Warn().
			Str("tenant_id", conv.TenantID).
			Str("conversation_id", conv.PublicID).
			Msg("tenant has no default department, conversation left unrouted")
		return nil
	}

	if err := e.store.RouteToDepartment(ctx, conv.ID, dept.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to route conversation")
	}
	conv.DepartmentID = &dept.ID
	return nil
}

// Claim assigns the conversation to the calling agent if nobody owns it.
// Exactly one of any set of concurrent claimers wins; the rest get a
// conflict error and must reload.
func (e *Engine) Claim(ctx context.Context, tenantID, publicID, agentID string) (*conversation.Conversation, error) {
	conv, err := e.store.FindByPublicID(ctx, tenantID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	if conv.ServiceStatus == conversation.ServiceClosed {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInvalidTransition,
			"conversation is closed", nil, "b7d23f91-5e0a-4c68-8f14-a92d6b0e7c35")
	}

	// An active conversation always has an owning department, so an
	// unrouted one picks up the tenant default before the claim lands.
	if conv.DepartmentID == nil {
		if err := e.RouteNewConversation(ctx, conv); err != nil {
			return nil, err
		}
		if conv.DepartmentID == nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInvalidTransition,
				"conversation has no department to claim into", nil, "7d4a9c26-0e8f-4b51-a3d7-6c92e5b8f140")
		}
	}

	member, err := e.directory.IsMemberOf(ctx, agentID, *conv.DepartmentID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to check department membership")
	}
	if !member {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"agent is not a member of the conversation's department", nil, "5b8e2f07-9a4d-4c63-b1e8-3f7a0d6c9e25")
	}

	won, err := e.store.ClaimOwner(ctx, conv.ID, agentID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to claim conversation")
	}
	if !won {
		metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"conversation already claimed by another agent", nil, "e19c4a70-2b8d-4f53-9e67-0c3a8d5f1b42")
	}
	metrics.ClaimsTotal.WithLabelValues("won").Inc()

	conv, err = e.store.FindByID(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reload conversation")
	}

	e.publishOwnership(conv)
	e.log.Info().
		Str("conversation_id", conv.PublicID).
		Str("agent_id", agentID).
		Msg("conversation claimed")
	return conv, nil
}

// TransferInput names the new owner of a conversation.
type TransferInput struct {
	DepartmentID string
	AgentID      *string
	ActorID      string
	Notes        string
}

// Transfer hands the conversation to another department and optionally a
// specific agent within it. The caller's view of the current owner must
// still hold when the swap lands, otherwise the transfer is rejected with a
// conflict.
func (e *Engine) Transfer(ctx context.Context, tenantID, publicID string, in TransferInput) (*conversation.Conversation, error) {
	if in.DepartmentID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"target department is required", nil, "0f6e8b24-7a1c-4d95-b3e0-58c2f9a6d713")
	}
	if in.AgentID != nil {
		member, err := e.directory.IsMemberOf(ctx, *in.AgentID, in.DepartmentID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to check department membership")
		}
		if !member {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				"target agent is not a member of the target department", nil, "92a4d7e0-1c6b-4f38-8d25-e70b3c9f5a18")
		}
	}

	conv, err := e.store.FindByPublicID(ctx, tenantID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	if conv.ServiceStatus == conversation.ServiceClosed {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInvalidTransition,
			"conversation is closed", nil, "c58f2d17-9b4e-4a60-8c93-1f7a6e0d2b84")
	}

	event := &conversation.AssignmentEvent{
		ConversationID:   conv.ID,
		FromDepartmentID: conv.DepartmentID,
		FromAgentID:      conv.AgentID,
		ToDepartmentID:   &in.DepartmentID,
		ToAgentID:        in.AgentID,
		ActorID:          in.ActorID,
		Notes:            in.Notes,
		CreatedAt:        time.Now(),
	}

	swapped, err := e.store.SwapOwner(ctx, conv.ID, conv.AgentID, in.DepartmentID, in.AgentID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to transfer conversation")
	}
	if !swapped {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"conversation ownership changed since it was loaded", nil, "4e9b1f63-8d0a-4c27-b5f8-72c6a3e9d051")
	}

	if err := e.store.AppendEvent(ctx, event); err != nil {
		// Ownership already moved; the trail gap is logged, not unwound.
		e.log.Error().Err(err).
			Str("conversation_id", conv.PublicID).
			Msg("failed to record transfer event")
	}

	conv, err = e.store.FindByID(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reload conversation")
	}

	e.publishOwnership(conv)
	e.log.Info().
		Str("conversation_id", conv.PublicID).
		Str("department_id", in.DepartmentID).
		Str("actor_id", in.ActorID).
		Msg("conversation transferred")
	return conv, nil
}

// Close resolves the conversation and releases ownership. Closing an
// already-closed conversation is a no-op.
func (e *Engine) Close(ctx context.Context, tenantID, publicID, actorID string) (*conversation.Conversation, error) {
	conv, err := e.store.FindByPublicID(ctx, tenantID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}

	closed, err := e.store.CloseOwnership(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to close conversation")
	}
	if !closed {
		return conv, nil
	}

	event := &conversation.AssignmentEvent{
		ConversationID:   conv.ID,
		FromDepartmentID: conv.DepartmentID,
		FromAgentID:      conv.AgentID,
		ActorID:          actorID,
		CreatedAt:        time.Now(),
	}
	if err := e.store.AppendEvent(ctx, event); err != nil {
		e.log.Error().Err(err).
			Str("conversation_id", conv.PublicID).
			Msg("failed to record closure event")
	}

	conv, err = e.store.FindByID(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reload conversation")
	}

	e.publisher.Publish(conv.TenantID, realtime.Event{
		Kind:           realtime.EventStatusChanged,
		ConversationID: conv.PublicID,
		Payload:        conv,
	})
	e.log.Info().
		Str("conversation_id", conv.PublicID).
		Str("actor_id", actorID).
		Msg("conversation closed")
	return conv, nil
}

// History returns the conversation's append-only transfer trail.
func (e *Engine) History(ctx context.Context, tenantID, publicID string) ([]*conversation.AssignmentEvent, error) {
	conv, err := e.store.FindByPublicID(ctx, tenantID, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation not found")
	}
	events, err := e.store.ListEvents(ctx, conv.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list transfer history")
	}
	return events, nil
}

func (e *Engine) publishOwnership(conv *conversation.Conversation) {
	e.publisher.Publish(conv.TenantID, realtime.Event{
		Kind:           realtime.EventOwnershipChanged,
		ConversationID: conv.PublicID,
		Payload:        conv,
	})
}
