// Package auth supplies the bearer token and tenant the realtime channels
// authenticate with.
package auth

import (
	"errors"
	"sync"

	"github.com/haasonsaas/newton/pkg/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoTenant     = errors.New("token has no tenant")
)

// Credentials returns the current bearer token and tenant synchronously.
type Credentials interface {
	Token() string
	TenantID() string
}

// Static is a fixed token and tenant.
type Static struct {
	BearerToken string
	Tenant      string
}

func (s Static) Token() string    { return s.BearerToken }
func (s Static) TenantID() string { return s.Tenant }

// SessionProvider serves credentials from the current session and can be
// swapped when the user logs in again or selects another tenant.
type SessionProvider struct {
	mu      sync.RWMutex
	session *models.Session
}

// NewSessionProvider returns a provider for s, which may be nil.
func NewSessionProvider(s *models.Session) *SessionProvider {
	return &SessionProvider{session: s}
}

// Set replaces the session.
func (p *SessionProvider) Set(s *models.Session) {
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
}

// Session returns the current session, or nil.
func (p *SessionProvider) Session() *models.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *SessionProvider) Token() string {
	if s := p.Session(); s != nil {
		return s.Token
	}
	return ""
}

func (p *SessionProvider) TenantID() string {
	if s := p.Session(); s != nil {
		return s.TenantID
	}
	return ""
}
