package conversationrepo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "zapdesk/services/routing-api/internal/domain/conversation"
	"zapdesk/services/routing-api/internal/infrastructure/database/entities"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// Repository handles conversation, message and transfer-trail persistence.
// Ownership columns are written only through the compare-and-set methods;
// the WHERE clauses there are what keeps concurrent claims linearized.
type Repository struct {
	db *gorm.DB
}

var _ domain.Store = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := toEntity(conv)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation",
			err,
			"b61f8d24-0a7e-4c93-85b2-3d9c6f0e4a71",
		)
	}
	conv.ID = entity.ID
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		return nil, r.wrapLookup(ctx, err)
	}
	return fromEntity(&entity), nil
}

func (r *Repository) FindByPublicID(ctx context.Context, tenantID, publicID string) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND public_id = ?", tenantID, publicID).
		First(&entity).Error
	if err != nil {
		return nil, r.wrapLookup(ctx, err)
	}
	return fromEntity(&entity), nil
}

func (r *Repository) FindByPhone(ctx context.Context, tenantID, phone string) (*domain.Conversation, error) {
	var entity entities.Conversation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND phone = ?", tenantID, phone).
		First(&entity).Error
	if err != nil {
		return nil, r.wrapLookup(ctx, err)
	}
	return fromEntity(&entity), nil
}

func (r *Repository) List(ctx context.Context, filter domain.Filter, pagination *domain.Pagination) ([]*domain.Conversation, error) {
	query := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("tenant_id = ?", filter.TenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.ServiceStatus != nil {
		query = query.Where("service_status = ?", string(*filter.ServiceStatus))
	}
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.AgentID != nil {
		query = query.Where("agent_id = ?", *filter.AgentID)
	}
	query = applyPagination(query, pagination, "last_message_at DESC NULLS LAST, id DESC")

	var rows []entities.Conversation
	if err := query.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations",
			err,
			"29e5c7d0-4b8f-4a16-93c5-e70d2b8f4a63",
		)
	}
	convs := make([]*domain.Conversation, 0, len(rows))
	for i := range rows {
		convs = append(convs, fromEntity(&rows[i]))
	}
	return convs, nil
}

func (r *Repository) Update(ctx context.Context, conv *domain.Conversation) error {
	err := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]any{
			"display_name": conv.DisplayName,
			"status":       string(conv.Status),
			"syncing":      conv.Syncing,
		}).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update conversation",
			err,
			"6fd03a58-1e7b-4c24-b9a6-05f8d3c7e219",
		)
	}
	return nil
}

func (r *Repository) BumpSnapshot(ctx context.Context, id uint, body string, at time.Time, incrementUnread bool) error {
	updates := map[string]any{
		"last_message_body": body,
		"last_message_at":   at,
	}
	if incrementUnread {
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	}
	err := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update conversation snapshot",
			err,
			"84b2f6e0-3d9c-4a58-b17f-c20e6a4d8f95",
		)
	}
	return nil
}

func (r *Repository) ResetUnread(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ?", id).
		Update("unread_count", 0).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to reset unread counter",
			err,
			"d07c4b91-8f2e-4653-a0d8-b96e1f3c5a72",
		)
	}
	return nil
}

// ClaimOwner wins only when no agent holds the conversation and it has been
// routed to a department; ACTIVE rows never carry a NULL department. The row
// count tells the caller whether this claim was the one that landed.
func (r *Repository) ClaimOwner(ctx context.Context, id uint, agentID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ? AND agent_id IS NULL AND department_id IS NOT NULL AND service_status = ?", id, string(domain.ServiceWaiting)).
		Updates(map[string]any{
			"agent_id":       agentID,
			"service_status": string(domain.ServiceActive),
		})
	if res.Error != nil {
		return false, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to claim conversation",
			res.Error,
			"15a8d3f6-7c0b-4e92-85a4-f63b0d9c2e17",
		)
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) SwapOwner(ctx context.Context, id uint, expectedAgent *string, departmentID string, agentID *string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ?", id)
	if expectedAgent == nil {
		query = query.Where("agent_id IS NULL")
	} else {
		query = query.Where("agent_id = ?", *expectedAgent)
	}

	serviceStatus := domain.ServiceWaiting
	if agentID != nil {
		serviceStatus = domain.ServiceActive
	}
	res := query.Updates(map[string]any{
		"department_id":  departmentID,
		"agent_id":       agentID,
		"service_status": string(serviceStatus),
	})
	if res.Error != nil {
		return false, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to transfer conversation",
			res.Error,
			"3c6e9f20-5a8d-4b71-92c6-e04f7b1d8a53",
		)
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) RouteToDepartment(ctx context.Context, id uint, departmentID string) error {
	err := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ? AND department_id IS NULL", id).
		Update("department_id", departmentID).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to route conversation",
			err,
			"97d2b5e8-0c4a-4f63-81b9-d58a3e6f0c24",
		)
	}
	return nil
}

func (r *Repository) CloseOwnership(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ? AND service_status <> ?", id, string(domain.ServiceClosed)).
		Updates(map[string]any{
			"service_status": string(domain.ServiceClosed),
			"status":         string(domain.StatusResolved),
		})
	if res.Error != nil {
		return false, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to close conversation",
			res.Error,
			"a30f7c15-9e6b-4d82-b5a0-48c1f6d9e327",
		)
	}
	return res.RowsAffected > 0, nil
}

// Reopen restores a resolved thread to OPEN. A closed conversation returns
// to WAITING with its agent released; routing history is kept.
func (r *Repository) Reopen(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&entities.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": string(domain.StatusOpen),
			"service_status": gorm.Expr(
				"CASE WHEN service_status = ? THEN ? ELSE service_status END",
				string(domain.ServiceClosed), string(domain.ServiceWaiting)),
			"agent_id": gorm.Expr(
				"CASE WHEN service_status = ? THEN NULL ELSE agent_id END",
				string(domain.ServiceClosed)),
		}).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to reopen conversation",
			err,
			"e58b0d72-3f9a-4c16-80e5-b27d4a9f6c03",
		)
	}
	return nil
}

func (r *Repository) UpsertMessage(ctx context.Context, msg *domain.Message) (bool, error) {
	entity := &entities.Message{
		ConversationID: msg.ConversationID,
		GatewayID:      msg.GatewayID,
		FromMe:         msg.FromMe,
		Body:           msg.Body,
		Type:           string(msg.Type),
		MediaRef:       msg.MediaRef,
		Ack:            int(msg.Ack),
		Timestamp:      msg.Timestamp,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "gateway_id"}},
		DoNothing: true,
	}).Create(entity)
	if res.Error != nil {
		return false, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to store message",
			res.Error,
			"40c8e2f7-6b1d-4a95-83c0-f59a2d7e0b41",
		)
	}
	msg.ID = entity.ID
	return res.RowsAffected > 0, nil
}

// UpdateAck only ever raises the level; late receipts cannot regress it.
func (r *Repository) UpdateAck(ctx context.Context, conversationID uint, gatewayID string, ack domain.AckLevel) error {
	err := r.db.WithContext(ctx).Model(&entities.Message{}).
		Where("conversation_id = ? AND gateway_id = ? AND ack < ?", conversationID, gatewayID, int(ack)).
		Update("ack", int(ack)).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update ack level",
			err,
			"7b3d0f64-2e9c-4a18-b6d7-50e8c4f1a926",
		)
	}
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, conversationID uint, pagination *domain.Pagination) ([]*domain.Message, error) {
	query := r.db.WithContext(ctx).Model(&entities.Message{}).
		Where("conversation_id = ?", conversationID)
	query = applyPagination(query, pagination, "id ASC")

	var rows []entities.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list messages",
			err,
			"c92a6e40-8d5f-4b03-a7e9-16f3b8d0c254",
		)
	}
	msgs := make([]*domain.Message, 0, len(rows))
	for i := range rows {
		msgs = append(msgs, &domain.Message{
			ID:             rows[i].ID,
			ConversationID: rows[i].ConversationID,
			GatewayID:      rows[i].GatewayID,
			FromMe:         rows[i].FromMe,
			Body:           rows[i].Body,
			Type:           domain.MessageType(rows[i].Type),
			MediaRef:       rows[i].MediaRef,
			Ack:            domain.AckLevel(rows[i].Ack),
			Timestamp:      rows[i].Timestamp,
			CreatedAt:      rows[i].CreatedAt,
		})
	}
	return msgs, nil
}

func (r *Repository) AppendEvent(ctx context.Context, event *domain.AssignmentEvent) error {
	entity := &entities.AssignmentEvent{
		ConversationID:   event.ConversationID,
		FromDepartmentID: event.FromDepartmentID,
		FromAgentID:      event.FromAgentID,
		ToDepartmentID:   event.ToDepartmentID,
		ToAgentID:        event.ToAgentID,
		ActorID:          event.ActorID,
		Notes:            event.Notes,
		CreatedAt:        event.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to append assignment event",
			err,
			"f04c7a29-1d8e-4b56-93f0-a62e8c5d1b73",
		)
	}
	event.ID = entity.ID
	return nil
}

func (r *Repository) ListEvents(ctx context.Context, conversationID uint) ([]*domain.AssignmentEvent, error) {
	var rows []entities.AssignmentEvent
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list assignment events",
			err,
			"58e1b9d4-7a0c-4f62-84b1-c37f9e2a5d08",
		)
	}
	events := make([]*domain.AssignmentEvent, 0, len(rows))
	for i := range rows {
		events = append(events, &domain.AssignmentEvent{
			ID:               rows[i].ID,
			ConversationID:   rows[i].ConversationID,
			FromDepartmentID: rows[i].FromDepartmentID,
			FromAgentID:      rows[i].FromAgentID,
			ToDepartmentID:   rows[i].ToDepartmentID,
			ToAgentID:        rows[i].ToAgentID,
			ActorID:          rows[i].ActorID,
			Notes:            rows[i].Notes,
			CreatedAt:        rows[i].CreatedAt,
		})
	}
	return events, nil
}

func (r *Repository) wrapLookup(ctx context.Context, err error) error {
	if err == gorm.ErrRecordNotFound {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"conversation not found",
			err,
			"2b9f6d03-4e7a-4c85-90b3-d16a8f5c2e70",
		)
	}
	return platformerrors.NewError(
		ctx,
		platformerrors.LayerRepository,
		platformerrors.ErrorTypeDatabaseError,
		"failed to query conversation",
		err,
		"68d4a0f2-9c3e-4b17-85d6-e29b0c7f4a38",
	)
}

func applyPagination(query *gorm.DB, pagination *domain.Pagination, defaultOrder string) *gorm.DB {
	limit := 50
	if pagination != nil {
		if pagination.Limit != nil && *pagination.Limit > 0 && *pagination.Limit <= 200 {
			limit = *pagination.Limit
		}
		if pagination.After != nil {
			if pagination.Order == "desc" {
				query = query.Where("id < ?", *pagination.After)
			} else {
				query = query.Where("id > ?", *pagination.After)
			}
		}
		if pagination.Order == "desc" {
			defaultOrder = "id DESC"
		} else if pagination.Order == "asc" {
			defaultOrder = "id ASC"
		}
	}
	return query.Order(defaultOrder).Limit(limit)
}

func toEntity(conv *domain.Conversation) *entities.Conversation {
	return &entities.Conversation{
		ID:              conv.ID,
		PublicID:        conv.PublicID,
		TenantID:        conv.TenantID,
		Phone:           conv.Phone,
		DisplayName:     conv.DisplayName,
		LastMessageBody: conv.LastMessageBody,
		LastMessageAt:   conv.LastMessageAt,
		UnreadCount:     conv.UnreadCount,
		Status:          string(conv.Status),
		ServiceStatus:   string(conv.ServiceStatus),
		DepartmentID:    conv.DepartmentID,
		AgentID:         conv.AgentID,
		Syncing:         conv.Syncing,
	}
}

func fromEntity(entity *entities.Conversation) *domain.Conversation {
	return &domain.Conversation{
		ID:              entity.ID,
		PublicID:        entity.PublicID,
		TenantID:        entity.TenantID,
		Phone:           entity.Phone,
		DisplayName:     entity.DisplayName,
		LastMessageBody: entity.LastMessageBody,
		LastMessageAt:   entity.LastMessageAt,
		UnreadCount:     entity.UnreadCount,
		Status:          domain.Status(entity.Status),
		ServiceStatus:   domain.ServiceStatus(entity.ServiceStatus),
		DepartmentID:    entity.DepartmentID,
		AgentID:         entity.AgentID,
		Syncing:         entity.Syncing,
		CreatedAt:       entity.CreatedAt,
		UpdatedAt:       entity.UpdatedAt,
	}
}
