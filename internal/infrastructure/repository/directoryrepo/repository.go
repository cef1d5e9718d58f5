package directoryrepo

import (
	"context"

	"gorm.io/gorm"

	domain "zapdesk/services/routing-api/internal/domain/directory"
	"zapdesk/services/routing-api/internal/infrastructure/database/entities"
	"zapdesk/services/routing-api/internal/utils/platformerrors"
)

// Repository reads department and membership rows.
type Repository struct {
	db *gorm.DB
}

var _ domain.Directory = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetDefaultDepartment(ctx context.Context, tenantID string) (*domain.Department, error) {
	var entity entities.Department
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_default = ?", tenantID, true).
		First(&entity).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find default department",
			err,
			"1f7e4c90-6d2b-4a58-b3f1-08c5e9a7d246",
		)
	}
	return &domain.Department{
		ID:        entity.ID,
		TenantID:  entity.TenantID,
		Name:      entity.Name,
		IsDefault: entity.IsDefault,
	}, nil
}

func (r *Repository) IsMemberOf(ctx context.Context, agentID, departmentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.DepartmentMember{}).
		Where("agent_id = ? AND department_id = ?", agentID, departmentID).
		Count(&count).Error
	if err != nil {
		return false, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to check department membership",
			err,
			"ac52d8e0-3b7f-4916-8d04-f61b9c3e7a50",
		)
	}
	return count > 0, nil
}
