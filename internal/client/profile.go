package client

import (
	"errors"
	"fmt"
	"time"
)

type Tier string

const (
	TierRegular    Tier = "Regular"
	TierVIP        Tier = "VIP"
	TierEnterprise Tier = "Enterprise"
)

func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierRegular, TierVIP, TierEnterprise:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier: %s", s)
	}
}

type Profile struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Company   string    `json:"company"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileUpdate carries an explicit profile edit. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone"`
	Company  *string `json:"company"`
}

var (
	ErrNotFound   = errors.New("client profile not found")
	ErrNoIdentity = errors.New("no authenticated identity")
)
