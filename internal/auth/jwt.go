package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/haasonsaas/newton/pkg/models"
)

// Claims are the Newton access token claims the client relies on.
type Claims struct {
	TenantID string `json:"tenant_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Decoder turns access tokens into sessions. The signature is only checked
// when Secret is set; the server remains the authority on every socket.
type Decoder struct {
	Secret []byte
	Now    func() time.Time
}

// Decode parses token into a Session. Tenant overrides the tenant_id claim
// when non-empty, for legacy tokens that do not carry one.
func (d Decoder) Decode(token, tenant string) (*models.Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, ErrInvalidToken
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	claims := &Claims{}
	if len(d.Secret) > 0 {
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return d.Secret, nil
		}, jwt.WithTimeFunc(now))
		if err != nil {
			if strings.Contains(err.Error(), jwt.ErrTokenExpired.Error()) {
				return nil, ErrTokenExpired
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if !parsed.Valid {
			return nil, ErrInvalidToken
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if claims.ExpiresAt != nil && !now().Before(claims.ExpiresAt.Time) {
			return nil, ErrTokenExpired
		}
	}

	if tenant = strings.TrimSpace(tenant); tenant == "" {
		tenant = strings.TrimSpace(claims.TenantID)
	}
	if tenant == "" {
		return nil, ErrNoTenant
	}

	session := &models.Session{
		Token:    token,
		TenantID: tenant,
		User: models.User{
			ID:    claims.Subject,
			Email: strings.TrimSpace(claims.Email),
			Name:  strings.TrimSpace(claims.Name),
			Role:  claims.Role,
		},
		CreatedAt: now(),
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// ParseToken decodes token without verifying its signature.
func ParseToken(token, tenant string) (*models.Session, error) {
	return Decoder{}.Decode(token, tenant)
}
