package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginClaims is the payload of a login token: a signed assertion that the
// holder owns the provider account identified by UID.
type LoginClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// MintLoginToken signs a RS256 login token for a provider account. The kid
// header lets verifiers pick the matching JWKS entry across key rotations.
func MintLoginToken(km *KeyManager, uid, email string, ttl time.Duration) (string, error) {
	c := LoginClaims{
		UID:   uid,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			Subject:   uid,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	token.Header["kid"] = km.Active.Kid
	return token.SignedString(km.Active.Private)
}

// ParseLoginToken verifies a login token against the manager's keys.
func ParseLoginToken(km *KeyManager, raw string) (*LoginClaims, error) {
	keyfunc := func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if pk, ok := km.PublicByKid(kid); ok {
			return pk, nil
		}
		return nil, errors.New("no key for kid")
	}
	t, err := jwt.ParseWithClaims(raw, &LoginClaims{}, keyfunc, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*LoginClaims)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}
