// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets the values; services read them. Keeping this package
// free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	caller := requestcontext.CallerID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCaller(ctx, identity, roles)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "subsidyledger/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	callerIDKey    struct{}
	callerRolesKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyCallerID    = callerIDKey{}
	ContextKeyCallerRoles = callerRolesKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// CallerID retrieves the authenticated caller identity from the context.
// Returns the zero value if not set.
func CallerID(ctx context.Context) id.Identity {
	if caller, ok := ctx.Value(ContextKeyCallerID).(id.Identity); ok {
		return caller
	}
	return ""
}

// CallerRoles retrieves the roles asserted for the caller by the auth
// layer. The access service treats its own registry as authoritative and
// merges these in, so a freshly admitted producer can act before a new
// token is minted.
func CallerRoles(ctx context.Context) []id.Role {
	if roles, ok := ctx.Value(ContextKeyCallerRoles).([]id.Role); ok {
		return roles
	}
	return nil
}

// WithCaller injects the caller identity and asserted roles.
func WithCaller(ctx context.Context, caller id.Identity, roles []id.Role) context.Context {
	ctx = context.WithValue(ctx, ContextKeyCallerID, caller)
	return context.WithValue(ctx, ContextKeyCallerRoles, roles)
}

// RequestID retrieves the request correlation ID from the context.
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

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests
// that don't care). Deadline checks and verification timestamps must go
// through this so a whole operation observes one instant.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the request
// time middleware and by tests that need deterministic clocks.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
