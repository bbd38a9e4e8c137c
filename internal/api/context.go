package api

import (
	"context"

	"agency/pkg/supabase"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

func WithIdentity(ctx context.Context, id *supabase.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) *supabase.Identity {
	v := ctx.Value(ctxKeyIdentity)
	if v == nil {
		return nil
	}
	id, _ := v.(*supabase.Identity)
	return id
}

// Actor names the caller in audit and event rows.
func Actor(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		if id.Email != "" {
			return id.Email
		}
		return id.UserID
	}
	return "system"
}
