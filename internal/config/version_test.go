package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		name    string
		version int
		reason  string
	}{
		{name: "current", version: CurrentVersion},
		{name: "zero", version: 0, reason: reasonOutdated},
		{name: "negative", version: -1, reason: reasonInvalid},
		{name: "newer", version: CurrentVersion + 1, reason: reasonNewer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVersion(tt.version)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("ValidateVersion(%d) error = %v", tt.version, err)
				}
				return
			}
			var ve *VersionError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *VersionError, got %T", err)
			}
			if ve.Reason != tt.reason {
				t.Fatalf("Reason = %q, want %q", ve.Reason, tt.reason)
			}
		})
	}
}

func TestVersionError_Messages(t *testing.T) {
	var nilErr *VersionError
	if nilErr.Error() != "" {
		t.Fatal("expected empty string from nil VersionError")
	}
	if msg := (&VersionError{Version: 2, Current: 1, Reason: reasonNewer}).Error(); !strings.Contains(msg, "upgrade") {
		t.Errorf("newer message = %q", msg)
	}
	if msg := (&VersionError{Version: 9, Current: 1}).Error(); !strings.Contains(msg, "unsupported") {
		t.Errorf("empty reason message = %q", msg)
	}
}
