package user

import (
	"context"

	"github.com/benchtrack/benchtrack/internal/apperr"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const CallerKey contextKey = "caller"

// CurrentCaller returns the caller stored in ctx, or an AccessDenied error when the
// request was not resolved to anyone.
func CurrentCaller(ctx context.Context) (Caller, error) {
	caller, ok := ctx.Value(CallerKey).(Caller)
	if !ok || caller.Id == 0 {
		log.Trace("caller not found in context")
		return Caller{}, apperr.AccessDenied("no authenticated caller")
	}
	return caller, nil
}

func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// RequireAdmin resolves the caller and fails unless they are an administrator.
func RequireAdmin(ctx context.Context) (Caller, error) {
	caller, err := CurrentCaller(ctx)
	if err != nil {
		return Caller{}, err
	}
	if !caller.IsAdmin {
		return Caller{}, apperr.AccessDenied("admin access required")
	}
	return caller, nil
}
