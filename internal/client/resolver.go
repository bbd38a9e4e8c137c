package client

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/singleflight"

	"agency/pkg/logger"
)

// Profiles is the data access the resolver needs. *Repository implements it.
type Profiles interface {
	FindByUserID(ctx context.Context, userID string) (*Profile, error)
	InsertIfAbsent(ctx context.Context, userID, email, fullName string) (*Profile, bool, error)
}

// Resolver returns the client profile for an authenticated user, creating it
// on first visit.
type Resolver struct {
	profiles Profiles
	group    singleflight.Group
}

func NewResolver(p Profiles) *Resolver {
	return &Resolver{profiles: p}
}

// GetOrCreate never fabricates a profile: any data access failure is returned.
// Concurrent calls for one user share a lookup that outlives any single
// caller's cancellation; a cancelled caller stops waiting on its own.
func (r *Resolver) GetOrCreate(ctx context.Context, userID, email, fullNameHint string) (*Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNoIdentity
	}

	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(userID, func() (any, error) {
		ctx := shared
		p, err := r.profiles.FindByUserID(ctx, userID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		p, created, err := r.profiles.InsertIfAbsent(ctx, userID, strings.TrimSpace(email), strings.TrimSpace(fullNameHint))
		if err != nil {
			return nil, err
		}
		if created {
			logger.Info(ctx, "client profile created", "client_id", p.ID)
		}
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		p := *res.Val.(*Profile)
		return &p, nil
	}
}
