package contentmanager

import (
	"context"
	"net/url"
)

// PermissionChecker scopes read access. SanitizeQuery may rewrite or reject the raw
// query; its errors reach the client unchanged.
type PermissionChecker interface {
	CannotRead(ctx context.Context, uid string) bool
	SanitizeQuery(ctx context.Context, uid string, query url.Values) (url.Values, error)
}

// AllowAll grants every read and passes queries through.
type AllowAll struct{}

func (AllowAll) CannotRead(context.Context, string) bool { return false }

func (AllowAll) SanitizeQuery(_ context.Context, _ string, query url.Values) (url.Values, error) {
	return query, nil
}
