package supabase

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims are the parts of a Supabase auth access token we rely on.
type AccessTokenClaims struct {
	jwt.RegisteredClaims

	Email        string         `json:"email,omitempty"`
	Role         string         `json:"role,omitempty"` // postgres role, usually "authenticated"
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
}

// Identity is the authenticated caller as seen by the portal and admin console.
type Identity struct {
	UserID          string
	Email           string
	DisplayNameHint string
	// Role comes from app_metadata.role, which only the service key can set.
	Role string
}

// VerifyAccessToken verifies a Supabase access token (JWT, HS256) signed with the project JWT secret.
func VerifyAccessToken(tokenString, secret, audience string, now time.Time) (*Identity, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}
	if secret == "" {
		return nil, fmt.Errorf("missing jwt secret")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &AccessTokenClaims{}
	tok, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("missing subject")
	}

	return &Identity{
		UserID:          claims.Subject,
		Email:           strings.TrimSpace(claims.Email),
		DisplayNameHint: displayName(claims.UserMetadata),
		Role:            stringClaim(claims.AppMetadata, "role"),
	}, nil
}

func displayName(meta map[string]any) string {
	for _, k := range []string{"full_name", "name"} {
		if s := stringClaim(meta, k); s != "" {
			return s
		}
	}
	return ""
}

func stringClaim(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
