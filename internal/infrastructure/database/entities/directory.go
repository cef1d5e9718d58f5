package entities

import "time"

// Department represents a routing group of agents.
type Department struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	TenantID  string    `gorm:"type:varchar(64);not null;index"`
	Name      string    `gorm:"type:varchar(128);not null"`
	IsDefault bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Department) TableName() string {
	return "departments"
}

// DepartmentMember links an agent to a department.
type DepartmentMember struct {
	ID           uint      `gorm:"primaryKey"`
	DepartmentID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_member_department_agent"`
	AgentID      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_member_department_agent;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (DepartmentMember) TableName() string {
	return "department_members"
}
