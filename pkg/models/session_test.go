package models

import (
	"testing"
	"time"
)

func TestSession_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session *Session
		want    bool
	}{
		{"nil session", nil, true},
		{"no expiry", &Session{Token: "t"}, false},
		{"future expiry", &Session{ExpiresAt: now.Add(time.Hour)}, false},
		{"past expiry", &Session{ExpiresAt: now.Add(-time.Hour)}, true},
		{"exact expiry", &Session{ExpiresAt: now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
