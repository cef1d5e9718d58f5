package entities

import (
	"time"

	"gorm.io/datatypes"
)

// Session represents a persisted WhatsApp session.
type Session struct {
	ID           uint   `gorm:"primaryKey"`
	TenantID     string `gorm:"type:varchar(64);not null;uniqueIndex:idx_session_tenant_name"`
	Name         string `gorm:"type:varchar(128);not null;uniqueIndex:idx_session_tenant_name"`
	Status       string `gorm:"type:varchar(20);not null;index"`
	DeliveryMode string `gorm:"type:varchar(20);not null"`
	Webhook      datatypes.JSON
	QRCode       string `gorm:"type:text"`
	QRExpiresAt  *time.Time
	ExternalID   string    `gorm:"type:varchar(64)"`
	DisplayName  string    `gorm:"type:varchar(128)"`
	Enabled      bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Session) TableName() string {
	return "sessions"
}
