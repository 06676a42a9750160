package middleware

import (
	"context"

	"github.com/angelmondragon/tableside-backend/pkg/auth"
)

type staffKey struct{}

// WithStaff stores the authenticated caller on ctx.
func WithStaff(ctx context.Context, staff auth.Staff) context.Context {
	return context.WithValue(ctx, staffKey{}, staff)
}

// StaffFromContext returns the caller set by Auth, if any.
func StaffFromContext(ctx context.Context) (auth.Staff, bool) {
	if ctx == nil {
		return auth.Staff{}, false
	}
	staff, ok := ctx.Value(staffKey{}).(auth.Staff)
	return staff, ok
}

// BranchCodeFromContext returns the branch every query is scoped to, or ""
// for unauthenticated requests.
func BranchCodeFromContext(ctx context.Context) string {
	staff, _ := StaffFromContext(ctx)
	return staff.BranchCode
}
