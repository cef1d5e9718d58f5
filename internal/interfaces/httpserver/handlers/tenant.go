package handlers

import "github.com/gin-gonic/gin"

const tenantHeader = "X-Tenant-Id"

// tenantID reads the tenant from the request. The surrounding CRM
// authenticates callers and injects this header; an empty value simply
// matches nothing downstream.
func tenantID(c *gin.Context) string {
	return c.GetHeader(tenantHeader)
}
