// Package request is the service request store shared by the admin console
// and the client portal.
package request

import (
	"fmt"
	"strings"
	"time"

	"agency/internal/status"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityNormal: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := priorityRank[p]; !ok {
		return "", fmt.Errorf("unknown priority: %s", s)
	}
	return p, nil
}

// Rank orders priorities; unknown values rank with normal.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[PriorityNormal]
}

type Attachment struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

type ServiceRequest struct {
	ID           string       `json:"id"`
	ClientID     string       `json:"clientId"`
	ServiceKey   string       `json:"serviceKey"`
	ProjectTitle string       `json:"projectTitle"`
	Brief        string       `json:"brief"`
	Attachments  []Attachment `json:"attachments"`
	Status       status.Admin `json:"status"`
	Priority     Priority     `json:"priority"`
	RequestedAt  time.Time    `json:"requestedAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// NewInput is a client submission. Status is accepted from callers but always
// replaced with requested.
type NewInput struct {
	ClientID     string       `json:"clientId"`
	ServiceKey   string       `json:"serviceKey"`
	ProjectTitle string       `json:"projectTitle"`
	Brief        string       `json:"brief"`
	Attachments  []Attachment `json:"attachments"`
	Priority     Priority     `json:"priority,omitempty"`
	Status       status.Admin `json:"status,omitempty"`
}

func (in *NewInput) normalize() {
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.ServiceKey = strings.TrimSpace(in.ServiceKey)
	in.ProjectTitle = strings.TrimSpace(in.ProjectTitle)
	in.Brief = strings.TrimSpace(in.Brief)
	in.Status = status.Requested
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}

	atts := make([]Attachment, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		a.URL = strings.TrimSpace(a.URL)
		a.Label = strings.TrimSpace(a.Label)
		if a.URL != "" {
			atts = append(atts, a)
		}
	}
	in.Attachments = atts
}

func (in NewInput) validate() error {
	ve := &ValidationError{}
	if in.ClientID == "" {
		ve.add("clientId", "client is required")
	}
	if in.ServiceKey == "" {
		ve.add("serviceKey", "select at least one service")
	}
	if in.ProjectTitle == "" {
		ve.add("projectTitle", "project title is required")
	}
	if in.Brief == "" {
		ve.add("brief", "brief is required")
	}
	if _, ok := priorityRank[in.Priority]; !ok {
		ve.add("priority", "unknown priority")
	}
	return ve.orNil()
}

// Joined is a request with the owning client's display fields, as listed in
// the admin console.
type Joined struct {
	ServiceRequest
	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
}

// View augments a request with its derived client-facing state. The client
// status is computed here and never persisted.
type View struct {
	Joined
	ClientStatus status.Client `json:"clientStatus"`
	Progress     int           `json:"progress"`
}

func NewView(j Joined) View {
	return View{
		Joined:       j,
		ClientStatus: status.ToClient(j.Status),
		Progress:     status.Progress(j.Status),
	}
}

func NewViews(items []Joined) []View {
	out := make([]View, 0, len(items))
	for _, j := range items {
		out = append(out, NewView(j))
	}
	return out
}
