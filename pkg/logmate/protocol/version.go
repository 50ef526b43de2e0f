package protocol

import (
	"fmt"

	"golang.org/x/mod/semver"
)

const LogmateVersion = "v0.3.0"

// IsCompatibleVersion checks if a task producer's version is compatible with
// the worker's version.
// Compatibility rules:
// - Major version must match exactly.
// - Minor and patch versions can differ.
// - An empty producer version is accepted for tasks queued by older servers.
func IsCompatibleVersion(producerVersion, workerVersion string) (bool, error) {
	if producerVersion == "" {
		return true, nil
	}
	if !semver.IsValid(producerVersion) {
		return false, fmt.Errorf("invalid producer version: %s", producerVersion)
	}
	if !semver.IsValid(workerVersion) {
		return false, fmt.Errorf("invalid worker version: %s", workerVersion)
	}

	return semver.Major(producerVersion) == semver.Major(workerVersion), nil
}

// CompatibilityError returns a user-friendly message for incompatible versions.
func CompatibilityError(producerVersion, workerVersion string) string {
	return fmt.Sprintf(
		"task version %s is incompatible with worker version %s. Required version: %s.x.x",
		producerVersion, workerVersion, semver.Major(workerVersion),
	)
}
