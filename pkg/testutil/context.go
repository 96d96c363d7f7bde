package testutil

import (
	"context"
	"net/http"

	id "regassist/pkg/domain"
	"regassist/pkg/requestcontext"
)

// WithAuthorization installs an authorization context on the request.
// This simulates what the auth middleware would do for authenticated requests.
func WithAuthorization(req *http.Request, actor string, role id.Role) *http.Request {
	return req.WithContext(AuthorizedContext(req.Context(), actor, role))
}

// AuthorizedContext returns ctx carrying the given actor and role.
func AuthorizedContext(ctx context.Context, actor string, role id.Role) context.Context {
	return requestcontext.WithAuthorization(ctx, requestcontext.Auth{Actor: actor, Role: role})
}
