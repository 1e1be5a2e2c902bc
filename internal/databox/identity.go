package databox

// TenantID identifies the authenticated owner of a project graph.
type TenantID string

// IdentityProvider resolves the currently authenticated tenant.
// The core never creates or deletes tenants.
type IdentityProvider interface {
	CurrentTenant() (TenantID, bool)
}
