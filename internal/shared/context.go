package shared

import "context"

// OrgHeader carries the tenant identifier resolved by the upstream gateway.
const OrgHeader = "X-Org-ID"

type orgContextKey struct{}

// ContextWithOrg stores the organization id in context.
func ContextWithOrg(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgContextKey{}, orgID)
}

// OrgFromContext extracts the organization id from context.
func OrgFromContext(ctx context.Context) string {
	orgID, _ := ctx.Value(orgContextKey{}).(string)
	return orgID
}
