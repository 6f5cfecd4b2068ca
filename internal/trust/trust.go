// Package trust issues and verifies short-lived HS256 tokens asserting
// a peer's originator id, extending the plain trusted_peers/banned_peers
// string matching of §4.6 so a registry carrier can authenticate who is
// actually announcing an endpoint rather than trusting whatever address
// shows up on the wire. Grounded on the teacher's internal/auth/jwt.go
// HS256 login-token path (golang-jwt/jwt), scaled down to the one claim
// this domain needs.
package trust

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUntrusted is returned by Verify when a token fails signature
// verification, is expired, or is otherwise malformed.
var ErrUntrusted = errors.New("trust: token rejected")

// originatorClaims carries the one fact a peer trust token asserts:
// who issued it, with a standard expiry.
type originatorClaims struct {
	Originator string `json:"originator"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies originator trust tokens with a single
// shared HS256 key, the symmetric equivalent of the teacher's
// loginTokenKey.
type Issuer struct {
	key []byte
}

// NewIssuer returns an Issuer signing with key. An empty key is
// rejected: an HS256 token signed with no secret verifies nothing.
func NewIssuer(key []byte) (*Issuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("trust: issuer key must not be empty")
	}
	return &Issuer{key: key}, nil
}

// Issue returns a signed token asserting originator, valid for ttl.
func (iss *Issuer) Issue(originator string, ttl time.Duration) (string, error) {
	claims := originatorClaims{
		Originator: originator,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(iss.key)
}

// Verify checks tokenString's signature and expiry and returns the
// originator id it asserts.
func (iss *Issuer) Verify(tokenString string) (string, error) {
	var claims originatorClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("trust: unexpected signing method %v", t.Header["alg"])
		}
		return iss.key, nil
	})
	if err != nil || claims.Originator == "" {
		return "", ErrUntrusted
	}
	return claims.Originator, nil
}
