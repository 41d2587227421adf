// Package jwttoken mints and parses the HS256 bearer tokens the HTTP
// layer uses to assert caller identity and roles. The role registry
// stays authoritative: token roles are merged with granted roles at
// authorization time, never trusted alone for registry-managed grants.
package jwttoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "subsidyledger/pkg/domain"
	dErrors "subsidyledger/pkg/domain-errors"
)

// Claims carries the caller identity and asserted roles.
type Claims struct {
	Identity string   `json:"identity"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewManager(secret []byte, issuer string, ttl time.Duration) *Manager {
	return &Manager{secret: secret, issuer: issuer, ttl: ttl}
}

// Mint issues a signed token for the identity.
func (m *Manager) Mint(identity id.Identity, roles []id.Role, now time.Time) (string, error) {
	if identity.IsNil() {
		return "", dErrors.New(dErrors.CodeValidation, "identity is required")
	}

	strRoles := make([]string, 0, len(roles))
	for _, r := range roles {
		strRoles = append(strRoles, r.String())
	}
	claims := Claims{
		Identity: identity.String(),
		Roles:    strRoles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   identity.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return token, nil
}

// Parse validates the signature and expiry and returns the caller.
func (m *Manager) Parse(raw string) (id.Identity, []id.Role, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.Newf(dErrors.CodeUnauthorized, "unexpected signing method %s", t.Method.Alg())
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if claims.Identity == "" {
		return "", nil, dErrors.New(dErrors.CodeUnauthorized, "token missing identity")
	}

	roles := make([]id.Role, 0, len(claims.Roles))
	for _, r := range claims.Roles {
		role, err := id.ParseRole(r)
		if err != nil {
			return "", nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token carries unknown role")
		}
		roles = append(roles, role)
	}
	return id.Identity(claims.Identity), roles, nil
}
