// Package portal serves the client-facing dashboard: the caller's profile,
// their service requests with derived status, and new submissions.
package portal

import (
	"context"
	"sort"
	"strings"

	"agency/internal/catalog"
	"agency/internal/client"
	"agency/internal/request"
	"agency/pkg/supabase"
)

type ProfileResolver interface {
	GetOrCreate(ctx context.Context, userID, email, fullNameHint string) (*client.Profile, error)
}

type Service struct {
	Profiles ProfileResolver
	Requests *request.Store
	// IsService reports whether a key names a catalog service.
	IsService    func(key string) bool
	SupportEmail string
}

func NewService(profiles ProfileResolver, requests *request.Store, supportEmail string) *Service {
	return &Service{Profiles: profiles, Requests: requests, IsService: catalog.IsService, SupportEmail: supportEmail}
}

type Dashboard struct {
	Profile      *client.Profile   `json:"profile"`
	Requests     []request.View    `json:"requests"`
	Services     []catalog.Service `json:"services"`
	SupportEmail string            `json:"supportEmail,omitempty"`
}

func (s *Service) Profile(ctx context.Context, id *supabase.Identity) (*client.Profile, error) {
	if id == nil {
		return nil, client.ErrNoIdentity
	}
	return s.Profiles.GetOrCreate(ctx, id.UserID, id.Email, id.DisplayNameHint)
}

// Dashboard lists the caller's requests newest first, each with its client
// status and progress.
func (s *Service) Dashboard(ctx context.Context, id *supabase.Identity) (*Dashboard, error) {
	p, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.Requests.ListForClient(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	views := make([]request.View, 0, len(items))
	for _, sr := range items {
		views = append(views, request.NewView(request.Joined{ServiceRequest: sr, ClientName: p.FullName, ClientEmail: p.Email}))
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].RequestedAt.After(views[j].RequestedAt) })

	return &Dashboard{Profile: p, Requests: views, Services: catalog.Services, SupportEmail: s.SupportEmail}, nil
}

// Submission is the portal request form. One request is created per
// selected service.
type Submission struct {
	ServiceKeys  []string             `json:"serviceKeys"`
	ProjectTitle string               `json:"projectTitle"`
	Brief        string               `json:"brief"`
	Attachments  []request.Attachment `json:"attachments"`
}

func (s *Service) Submit(ctx context.Context, id *supabase.Identity, sub Submission) ([]request.ServiceRequest, error) {
	keys := uniqueKeys(sub.ServiceKeys)
	if len(keys) == 0 {
		return nil, &request.ValidationError{Fields: map[string]string{"serviceKeys": "select at least one service"}}
	}
	for _, k := range keys {
		if !s.IsService(k) {
			return nil, &request.ValidationError{Fields: map[string]string{"serviceKeys": "unknown service: " + k}}
		}
	}

	p, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]request.ServiceRequest, 0, len(keys))
	for _, k := range keys {
		sr, err := s.Requests.Create(ctx, request.NewInput{
			ClientID:     p.ID,
			ServiceKey:   k,
			ProjectTitle: sub.ProjectTitle,
			Brief:        sub.Brief,
			Attachments:  sub.Attachments,
		}, actorFor(id))
		if err != nil {
			return out, err
		}
		out = append(out, *sr)
	}
	return out, nil
}

func uniqueKeys(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func actorFor(id *supabase.Identity) string {
	if id.Email != "" {
		return id.Email
	}
	return id.UserID
}
