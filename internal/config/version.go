package config

import "fmt"

// CurrentVersion is the config file version this build reads. A file
// without a version is treated as current.
const CurrentVersion = 1

const (
	reasonOutdated = "outdated"
	reasonNewer    = "newer than this build"
	reasonInvalid  = "invalid"
)

// VersionError is returned by Load for a config written for another build.
type VersionError struct {
	Version int
	Current int
	Reason  string
}

func (e *VersionError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Reason {
	case reasonNewer:
		return fmt.Sprintf("config version %d is newer than this build (current: %d); upgrade newton", e.Version, e.Current)
	case "":
		return fmt.Sprintf("config version %d is unsupported (current: %d)", e.Version, e.Current)
	default:
		return fmt.Sprintf("config version %d is %s (current: %d); set version: %d", e.Version, e.Reason, e.Current, e.Current)
	}
}

// ValidateVersion checks a config version after defaults are applied.
func ValidateVersion(version int) error {
	switch {
	case version < 0:
		return &VersionError{Version: version, Current: CurrentVersion, Reason: reasonInvalid}
	case version == 0, version < CurrentVersion:
		return &VersionError{Version: version, Current: CurrentVersion, Reason: reasonOutdated}
	case version > CurrentVersion:
		return &VersionError{Version: version, Current: CurrentVersion, Reason: reasonNewer}
	}
	return nil
}
