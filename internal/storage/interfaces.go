// Package storage persists the authenticated session between CLI runs.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/haasonsaas/newton/pkg/models"
)

var ErrNotFound = errors.New("not found")

// DefaultProfile is used when no profile name is configured.
const DefaultProfile = "default"

// SessionStore persists one session per profile.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Load(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error
	Close() error
}

func profileOrDefault(profile string) string {
	if profile = strings.TrimSpace(profile); profile == "" {
		return DefaultProfile
	}
	return profile
}
