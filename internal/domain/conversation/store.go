package conversation

import (
	"context"
	"time"
)

// Store defines the persistence interface for conversations, messages and
// the transfer trail. Ownership fields are mutated only through the CAS
// operations; no other component writes them directly.
type Store interface {
	// Create inserts a new conversation.
	Create(ctx context.Context, conv *Conversation) error

	// FindByID retrieves a conversation by row id.
	FindByID(ctx context.Context, id uint) (*Conversation, error)

	// FindByPublicID retrieves a conversation by public id.
	FindByPublicID(ctx context.Context, tenantID, publicID string) (*Conversation, error)

	// FindByPhone retrieves the conversation for a tenant + counterparty
	// phone pair, if it exists.
	FindByPhone(ctx context.Context, tenantID, phone string) (*Conversation, error)

	// List retrieves conversations matching the filter.
	List(ctx context.Context, filter Filter, pagination *Pagination) ([]*Conversation, error)

	// Update persists the non-ownership conversation fields.
	Update(ctx context.Context, conv *Conversation) error

	// BumpSnapshot updates the last-message snapshot, optionally
	// incrementing the unread counter, in a single write.
	BumpSnapshot(ctx context.Context, id uint, body string, at time.Time, incrementUnread bool) error

	// ResetUnread zeroes the unread counter.
	ResetUnread(ctx context.Context, id uint) error

	// ClaimOwner atomically sets the owning agent if and only if no agent
	// owns the conversation. Returns false when the compare-and-set loses.
	ClaimOwner(ctx context.Context, id uint, agentID string) (bool, error)

	// SwapOwner atomically replaces the owner (department + optional agent)
	// if and only if the current owning agent equals expectedAgent.
	// Returns false when the compare-and-set loses.
	SwapOwner(ctx context.Context, id uint, expectedAgent *string, departmentID string, agentID *string) (bool, error)

	// RouteToDepartment sets the owning department on an unrouted
	// conversation, leaving the owning agent unset.
	RouteToDepartment(ctx context.Context, id uint, departmentID string) error

	// CloseOwnership sets service status CLOSED and lifecycle status
	// RESOLVED. Returns false when the conversation was already closed.
	CloseOwnership(ctx context.Context, id uint) (bool, error)

	// Reopen returns a resolved/archived conversation to OPEN on new
	// inbound activity, restoring WAITING when unowned.
	Reopen(ctx context.Context, id uint) error

	// UpsertMessage inserts a message keyed by (conversation, gateway id).
	// A duplicate gateway id is absorbed: the stored row is untouched and
	// created is false.
	UpsertMessage(ctx context.Context, msg *Message) (created bool, err error)

	// UpdateAck raises the acknowledgment level of a message. Lower or
	// equal levels are ignored; the level never regresses.
	UpdateAck(ctx context.Context, conversationID uint, gatewayID string, ack AckLevel) error

	// ListMessages retrieves messages of a conversation.
	ListMessages(ctx context.Context, conversationID uint, pagination *Pagination) ([]*Message, error)

	// AppendEvent appends to the transfer trail. Events are never mutated
	// or deleted.
	AppendEvent(ctx context.Context, event *AssignmentEvent) error

	// ListEvents retrieves the transfer trail in insertion order.
	ListEvents(ctx context.Context, conversationID uint) ([]*AssignmentEvent, error)
}
