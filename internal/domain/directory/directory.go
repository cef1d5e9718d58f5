package directory

import "context"

// Department is a routing group of agents within a tenant.
type Department struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// Directory resolves departments and membership. The backing CRM tables are
// owned by the surrounding application; this service only reads them.
type Directory interface {
	// GetDefaultDepartment returns the tenant's default routing department,
	// or nil when none is configured.
	GetDefaultDepartment(ctx context.Context, tenantID string) (*Department, error)

	// IsMemberOf reports whether the agent belongs to the department.
	IsMemberOf(ctx context.Context, agentID, departmentID string) (bool, error)
}
