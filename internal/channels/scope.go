package channels

import (
	"fmt"
	"net/url"
)

// DefaultBaseURL is the production realtime host.
const DefaultBaseURL = "wss://crm.inewton.ai"

// Channel kinds.
const (
	KindConversation  = "conversation"
	KindNotifications = "notifications"
)

// Scope identifies what a connection is bound to. A LeadID marks a
// conversation scope; tenant-wide scopes leave it empty.
type Scope struct {
	TenantID string
	LeadID   string
}

func (s Scope) String() string {
	if s.LeadID == "" {
		return s.TenantID
	}
	return s.TenantID + "/" + s.LeadID
}

// EndpointFunc builds the socket URL for a scope and bearer token.
type EndpointFunc func(scope Scope, token string) (string, error)

// BuildURL joins escaped path segments onto base and sets the token query
// parameter. Base may be ws, wss, http or https; http schemes are mapped to
// their websocket equivalents.
func BuildURL(base, token string, segments ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", base)
	}

	escaped := make([]string, 0, len(segments))
	for _, seg := range segments {
		escaped = append(escaped, url.PathEscape(seg))
	}
	u = u.JoinPath(escaped...)

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
