// Package catalog is the rental equipment catalog and the list of creative
// services clients can request.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type GearStatus string

const (
	GearAvailable   GearStatus = "available"
	GearRented      GearStatus = "rented"
	GearMaintenance GearStatus = "maintenance"
)

var ErrNotFound = errors.New("equipment not found")

// Equipment is a rentable item. Price is per rental day.
type Equipment struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Subtitle string          `json:"subtitle"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Images   []string        `json:"images"`
	Features []string        `json:"features"`
	VideoURL string          `json:"videoUrl,omitempty"`
	Status   GearStatus      `json:"status"`
}

func (e Equipment) Available() bool { return e.Status == GearAvailable }

// Validate checks an equipment record before it is written.
func (e *Equipment) Validate() error {
	e.ID = strings.TrimSpace(e.ID)
	e.Title = strings.TrimSpace(e.Title)
	if e.Status == "" {
		e.Status = GearAvailable
	}
	if e.Images == nil {
		e.Images = []string{}
	}
	if e.Features == nil {
		e.Features = []string{}
	}

	switch {
	case e.ID == "":
		return fmt.Errorf("equipment id is required")
	case e.Title == "":
		return fmt.Errorf("equipment %s: title is required", e.ID)
	case e.Price.IsNegative():
		return fmt.Errorf("equipment %s: price must not be negative", e.ID)
	}
	switch e.Status {
	case GearAvailable, GearRented, GearMaintenance:
	default:
		return fmt.Errorf("equipment %s: unknown status %q", e.ID, e.Status)
	}
	return nil
}

type Service struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Services is the fixed list of creative services offered in the portal.
var Services = []Service{
	{Key: "photography", Name: "Photography", Description: "Product, portrait and event shoots."},
	{Key: "videography", Name: "Videography", Description: "Brand films, commercials and event coverage."},
	{Key: "post-production", Name: "Post-production", Description: "Editing, color grading and sound design."},
	{Key: "motion-graphics", Name: "Motion graphics", Description: "Animated titles, explainers and social loops."},
	{Key: "branding", Name: "Branding", Description: "Identity systems, logos and guidelines."},
	{Key: "web-design", Name: "Web design", Description: "Marketing sites and landing pages."},
	{Key: "social-media", Name: "Social media", Description: "Content calendars and channel management."},
}

func IsService(key string) bool {
	for _, s := range Services {
		if s.Key == key {
			return true
		}
	}
	return false
}
