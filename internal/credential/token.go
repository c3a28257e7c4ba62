package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken is returned by InspectToken for tokens that are not JWTs.
var ErrOpaqueToken = errors.New("token is not a JWT")

// TokenClaims is the unverified content of a session token. The signature
// is never checked: the admin client does not hold the signing key and
// uses the claims for diagnostics only.
type TokenClaims struct {
	Subject   string     `json:"sub,omitempty"`
	Issuer    string     `json:"iss,omitempty"`
	IssuedAt  *time.Time `json:"iat,omitempty"`
	ExpiresAt *time.Time `json:"exp,omitempty"`
	Expired   bool       `json:"expired"`
}

// InspectToken decodes the claims of token without verifying it.
func InspectToken(token string, now time.Time) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrOpaqueToken
		}
		return nil, fmt.Errorf("inspect token: %w", err)
	}

	out := &TokenClaims{}
	out.Subject, _ = claims.GetSubject()
	out.Issuer, _ = claims.GetIssuer()
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		out.IssuedAt = &t
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.ExpiresAt = &t
		out.Expired = !now.Before(t)
	}
	return out, nil
}
