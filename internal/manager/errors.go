// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"errors"
	"fmt"

	"github.com/modhub/modhub/internal/registry"
	"github.com/modhub/modhub/pkg/semver"
)

// ErrInvalidRequest is returned when an install request does not name
// exactly one source.
var ErrInvalidRequest = errors.New("install request must name exactly one source")

// NotFoundError reports that the registry has no module matching the
// requested name (or name and version). Candidates carries whatever versions
// the registry does know for the name, so the caller can render a diagnostic
// table without a second round trip.
type NotFoundError struct {
	Name       string
	Version    string
	Source     string
	Candidates registry.CandidateTable
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("module %s has no version matching %q", e.Name, e.Version)
	}
	return fmt.Sprintf("module %s not found in the registry", e.Name)
}

// EnvironmentMismatchError reports that versions of the module exist but
// none is compatible with this host's engine and manager versions.
// Candidates holds the versions that matched the request; FailedConstraints
// explains, per candidate, which expressions the host fails.
type EnvironmentMismatchError struct {
	Name           string
	Version        string
	Candidates     registry.CandidateTable
	EngineVersion  string
	ManagerVersion string
}

func (e *EnvironmentMismatchError) Error() string {
	return fmt.Sprintf("no version of module %s is compatible with this environment", e.Name)
}

// FailedConstraints returns the constraint expressions of the given
// candidate version that this host does not satisfy.
func (e *EnvironmentMismatchError) FailedConstraints(version string) []string {
	info, ok := e.Candidates[version]
	if !ok {
		return nil
	}

	var failed []string
	for _, expr := range info.Engine {
		if ok, err := semver.Match(e.EngineVersion, expr); err != nil || !ok {
			failed = append(failed, "engine "+expr)
		}
	}
	for _, expr := range info.Manager {
		if ok, err := semver.Match(e.ManagerVersion, expr); err != nil || !ok {
			failed = append(failed, "manager "+expr)
		}
	}
	return failed
}
