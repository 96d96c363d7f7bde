// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// The authorization context (actor and role) is set once at the edge, by the
// HTTP auth middleware or the CLI root command, and read by every collaborator
// that records who did what. Services never branch on these values.
//
// Usage in services (read values):
//
//	auth := requestcontext.Authorization(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware or commands (set values):
//
//	ctx = requestcontext.WithAuthorization(ctx, requestcontext.Auth{Actor: "jane", Role: id.RoleAnalyst})
//	ctx = requestcontext.WithRequestID(ctx, requestID)
package requestcontext

import (
	"context"
	"time"

	id "regassist/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	authKey        struct{}
	clientKey      struct{}
	clientIPKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyAuth        = authKey{}
	ContextKeyClient      = clientKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// SystemActor attributes work that no authenticated caller initiated.
const SystemActor = "system"

// Auth is the explicit authorization context passed into every collaborator call.
type Auth struct {
	Actor string
	Role  id.Role
}

// -----------------------------------------------------------------------------
// Authorization context
// -----------------------------------------------------------------------------

// Authorization retrieves the caller's authorization context.
// Returns the system actor when none is set (workers, tests).
func Authorization(ctx context.Context) Auth {
	if a, ok := ctx.Value(ContextKeyAuth).(Auth); ok && a.Actor != "" {
		return a
	}
	return Auth{Actor: SystemActor, Role: id.RoleSystem}
}

// WithAuthorization injects the authorization context.
func WithAuthorization(ctx context.Context, a Auth) context.Context {
	return context.WithValue(ctx, ContextKeyAuth, a)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

// Client retrieves the client descriptor (e.g. "Firefox 128 / Linux") from the context.
func Client(ctx context.Context) string {
	if c, ok := ctx.Value(ContextKeyClient).(string); ok {
		return c
	}
	return ""
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientMetadata injects the client IP and descriptor into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, client string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyClient, client)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
