package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
)

var (
	contextTokenKey   = "userToken"
	contextProfileKey = "profile"
)

// newJWTConfig returns the JWT auth middleware config for tokens signed with secret.
func newJWTConfig(secret string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secret),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims issued by the auth provider.
// The subject is the profile ID.
type Claims struct {
	jwt.StandardClaims
	Email        string       `json:"email,omitempty"`
	Role         string       `json:"role,omitempty"` // auth provider role, eg. "authenticated"
	UserMetadata UserMetadata `json:"user_metadata,omitempty"`
}

// UserMetadata is what users filled in when signing up.
type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"` // requested marketplace role
}

// NewProfile returns the profile to create when the subject has none yet.
func (c Claims) NewProfile() profile.NewProfile {
	return profile.NewProfile{
		ID:       c.Subject,
		Email:    c.Email,
		FullName: c.UserMetadata.FullName,
		Role:     c.UserMetadata.Role,
	}
}

// NewClaims returns claims for p valid for ttl, as the auth provider would issue them.
func NewClaims(p profile.Profile, audience string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   p.ID,
			Audience:  audience,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:        p.Email,
		Role:         "authenticated",
		UserMetadata: UserMetadata{FullName: p.FullName, Role: p.Role},
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(secret string, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextProfile returns the acting profile set by profileMiddleware.
func getContextProfile(ctx echo.Context) (profile.Profile, error) {
	if p, ok := ctx.Get(contextProfileKey).(profile.Profile); ok {
		return p, nil
	}
	return profile.Profile{}, errUnauthorized
}
