package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"

	"github.com/avstrong/tours/internal/domain"
)

var ErrEmptySecret = errors.New("token signing secret is empty")

type claims struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token asserting id for the configured TTL.
func (m *Manager) IssueToken(id domain.Identity) (string, error) {
	issuedAt := m.now()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		ID:       id.ID,
		Username: id.Username,
		Role:     id.Role,
		//nolint:exhaustruct
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(id.ID),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
		},
	}).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// Authenticate verifies a session token and returns the identity it carries.
func (m *Manager) Authenticate(token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.NewAuthError("authorization required")
	}

	var c claims

	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		m.l.LogDebug("Token rejected: %v", err)

		return nil, domain.NewAuthError("invalid or expired token")
	}

	if c.ExpiresAt == nil || c.ID <= 0 || (c.Role != domain.RoleUser && c.Role != domain.RoleAdmin) {
		return nil, domain.NewAuthError("invalid or expired token")
	}

	return &domain.Identity{ID: c.ID, Username: c.Username, Role: c.Role}, nil
}

// RequireRole is the single authorization check used by every admin route.
func RequireRole(id *domain.Identity, role domain.Role) error {
	if id == nil {
		return domain.NewAuthError("authorization required")
	}

	if id.Role != role {
		return &domain.ForbiddenError{Required: role}
	}

	return nil
}
