package interceptors

import "context"

type contextKey struct{ name string }

var (
	staffIDKey = contextKey{"staff_id"}
	siteIDKey  = contextKey{"site_id"}
)

// WithStaff returns a context carrying the authenticated staff member and the site
// their token is scoped to. Handlers read them via GetStaffID and GetSiteID.
func WithStaff(ctx context.Context, staffID, siteID string) context.Context {
	ctx = context.WithValue(ctx, staffIDKey, staffID)
	ctx = context.WithValue(ctx, siteIDKey, siteID)
	return ctx
}

// GetStaffID returns the staff_id from context and true if set; otherwise "", false.
func GetStaffID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(staffIDKey).(string)
	return v, ok
}

// GetSiteID returns the site_id from context and true if set; otherwise "", false.
func GetSiteID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(siteIDKey).(string)
	return v, ok
}
