package httpapi

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cotizador/backend/internal/domain"
)

// Verifier checks bearer tokens minted by the identity provider that fronts
// this API. It never issues credentials; it only extracts the already
// authenticated actor from a signed token.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type actorClaims struct {
	jwt.RegisteredClaims
	Name      string `json:"name"`
	Role      string `json:"role"`
	ManagerID string `json:"manager_id,omitempty"`
}

func (v *Verifier) ParseToken(token string) (domain.Actor, error) {
	claims := &actorClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return domain.Actor{}, fmt.Errorf("invalid token")
	}

	switch claims.Role {
	case domain.RoleSuperadmin, domain.RoleAdmin, domain.RoleUser:
	default:
		return domain.Actor{}, fmt.Errorf("unknown role %q", claims.Role)
	}

	return domain.Actor{
		ID:        claims.Subject,
		Name:      claims.Name,
		Role:      claims.Role,
		ManagerID: claims.ManagerID,
	}, nil
}

// sign is used by in-package tests to mint tokens the way the identity
// provider does.
func (v *Verifier) sign(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:      actor.Name,
		Role:      actor.Role,
		ManagerID: actor.ManagerID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
