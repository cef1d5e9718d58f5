package sessionrepo

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	domain "zapdesk/services/routing-api/internal/domain/session"
	"zapdesk/services/routing-api/internal/infrastructure/database/entities"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// Repository handles session persistence.
type Repository struct {
	db *gorm.DB
}

var _ domain.Store = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, sess *domain.Session) error {
	entity, err := toEntity(sess)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to encode session",
			err,
			"5b8e2f41-7c0d-4a96-b3e8-19d6f0a4c752",
		)
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create session",
			err,
			"8d41c6a3-2f9e-4b70-a5c1-e38b7d0f6924",
		)
	}
	sess.ID = entity.ID
	return nil
}

func (r *Repository) FindByName(ctx context.Context, tenantID, name string) (*domain.Session, error) {
	var entity entities.Session
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ? AND enabled = ?", tenantID, name, true).
		First(&entity).Error
	if err != nil {
		return nil, r.wrapLookup(ctx, err)
	}
	return fromEntity(&entity)
}

func (r *Repository) FindByNameAny(ctx context.Context, name string) (*domain.Session, error) {
	var entity entities.Session
	err := r.db.WithContext(ctx).
		Where("name = ? AND enabled = ?", name, true).
		First(&entity).Error
	if err != nil {
		return nil, r.wrapLookup(ctx, err)
	}
	return fromEntity(&entity)
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Session, error) {
	var rows []entities.Session
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND enabled = ?", tenantID, true).
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list sessions",
			err,
			"3e7a9d52-0b4f-4c18-86d3-f21c5e8a0b47",
		)
	}
	sessions := make([]*domain.Session, 0, len(rows))
	for i := range rows {
		sess, err := fromEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (r *Repository) Update(ctx context.Context, sess *domain.Session) error {
	entity, err := toEntity(sess)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeInternal,
			"failed to encode session",
			err,
			"a94f2c80-6e3b-4d57-91a2-c08e5b7d3f16",
		)
	}
	// Save with explicit column selection so cleared QR/identity fields are
	// written back as empty.
	err = r.db.WithContext(ctx).Model(&entities.Session{}).
		Where("id = ?", sess.ID).
		Select("status", "delivery_mode", "webhook", "qr_code", "qr_expires_at", "external_id", "display_name", "enabled").
		Updates(entity).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update session",
			err,
			"c50d8b17-3a6e-4f92-b74d-08e1a9c5f263",
		)
	}
	return nil
}

func (r *Repository) ListExpiredAwaitingScan(ctx context.Context, now time.Time) ([]*domain.Session, error) {
	var rows []entities.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND qr_expires_at IS NOT NULL AND qr_expires_at < ? AND enabled = ?",
			string(domain.StatusAwaitingScan), now, true).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list expired sessions",
			err,
			"f16b3e84-9c2d-4a05-b8f7-52d0e4a7c931",
		)
	}
	sessions := make([]*domain.Session, 0, len(rows))
	for i := range rows {
		sess, err := fromEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (r *Repository) Disable(ctx context.Context, tenantID, name string) error {
	err := r.db.WithContext(ctx).Model(&entities.Session{}).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		Update("enabled", false).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to disable session",
			err,
			"72c4e9a0-5d8b-4f36-a1c9-b60f3d8e5a27",
		)
	}
	return nil
}

func (r *Repository) wrapLookup(ctx context.Context, err error) error {
	if err == gorm.ErrRecordNotFound {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			"session not found",
			err,
			"0d9f4b26-8e1a-4c73-95b0-3f6c2a8d7e14",
		)
	}
	return platformerrors.NewError(
		ctx,
		platformerrors.LayerRepository,
		platformerrors.ErrorTypeDatabaseError,
		"failed to query session",
		err,
		"4a7c0e93-1b5d-4f28-8a6e-d92b4f7c0e35",
	)
}

func toEntity(sess *domain.Session) (*entities.Session, error) {
	entity := &entities.Session{
		ID:           sess.ID,
		TenantID:     sess.TenantID,
		Name:         sess.Name,
		Status:       string(sess.Status),
		DeliveryMode: string(sess.DeliveryMode),
		QRCode:       sess.QRCode,
		QRExpiresAt:  sess.QRExpiresAt,
		Enabled:      sess.Enabled,
	}
	if sess.Identity != nil {
		entity.ExternalID = sess.Identity.ExternalID
		entity.DisplayName = sess.Identity.DisplayName
	}
	if sess.Webhook != nil {
		raw, err := json.Marshal(sess.Webhook)
		if err != nil {
			return nil, err
		}
		entity.Webhook = datatypes.JSON(raw)
	}
	return entity, nil
}

func fromEntity(entity *entities.Session) (*domain.Session, error) {
	sess := &domain.Session{
		ID:           entity.ID,
		TenantID:     entity.TenantID,
		Name:         entity.Name,
		Status:       domain.Status(entity.Status),
		DeliveryMode: domain.DeliveryMode(entity.DeliveryMode),
		QRCode:       entity.QRCode,
		QRExpiresAt:  entity.QRExpiresAt,
		Enabled:      entity.Enabled,
		CreatedAt:    entity.CreatedAt,
		UpdatedAt:    entity.UpdatedAt,
	}
	if entity.ExternalID != "" {
		sess.Identity = &domain.Identity{
			ExternalID:  entity.ExternalID,
			DisplayName: entity.DisplayName,
		}
	}
	if len(entity.Webhook) > 0 {
		var cfg domain.WebhookConfig
		if err := json.Unmarshal(entity.Webhook, &cfg); err != nil {
			return nil, platformerrors.NewError(
				context.Background(),
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeInternal,
				"failed to decode webhook config",
				err,
				"e83a5f07-2c6d-4b91-a480-7f1e9d3b6c52",
			)
		}
		sess.Webhook = &cfg
	}
	return sess, nil
}
