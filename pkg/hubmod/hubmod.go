// SPDX-License-Identifier: MPL-2.0

// Package hubmod defines hub module identity and loading. A hub module is a
// directory carrying a module.cue manifest; loading the directory yields an
// immutable Module handle.
package hubmod

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modhub/modhub/pkg/cueutil"
	"github.com/modhub/modhub/pkg/semver"
)

// ManifestName is the manifest file every hub module must carry at its root.
const ManifestName = "module.cue"

// Module kinds. A local module carries its own code next to the manifest; an
// external module is a reference to a class inside an external repository
// checkout, resolved by the host engine at load time.
const (
	KindLocal    Kind = "local"
	KindExternal Kind = "external"
)

var (
	//go:embed module_schema.cue
	moduleSchema []byte

	// ErrManifestNotFound is returned when module.cue is missing from a
	// directory. Callers can check with errors.Is.
	ErrManifestNotFound = errors.New("module.cue not found")
)

type (
	// Kind distinguishes local modules from external references.
	Kind string

	// Source points at a class inside an external repository checkout.
	// It is the payload of an external-reference module.
	Source struct {
		// Name is the module name the reference installs as.
		Name string `json:"name" toml:"name"`
		// Class is the class identifier exported by the checkout.
		Class string `json:"class" toml:"class"`
		// Path is the absolute path of the checkout on this host.
		Path string `json:"path" toml:"path"`
	}

	// Manifest is the parsed content of module.cue.
	Manifest struct {
		// Name identifies the module. It must start with a letter; dots,
		// dashes and underscores are allowed.
		Name string `json:"name"`
		// Version is the module's semantic version (no "v" prefix).
		Version string `json:"version"`
		// Description summarizes the module (optional).
		Description string `json:"description,omitempty"`
		// Kind is "local" (default) or "external".
		Kind Kind `json:"kind"`
		// Engine lists version-range constraint expressions the host engine
		// must satisfy (conjunction per expression, e.g. ">=2.0,<3.0").
		Engine []string `json:"engine,omitempty"`
		// Manager lists constraint expressions against modhub itself.
		Manager []string `json:"manager,omitempty"`
		// Packages lists dependent package requirement specs installed
		// best-effort after the module itself.
		Packages []string `json:"packages,omitempty"`
		// Source is required iff Kind is "external".
		Source *Source `json:"source,omitempty"`
	}

	// Module is the handle for a loaded hub module. It is produced only by
	// Load and must not be mutated or hand-constructed.
	Module struct {
		// Name is the module identifier from the manifest.
		Name string
		// Version is the parsed semantic version.
		Version *semver.Version
		// Kind is the module kind from the manifest.
		Kind Kind
		// Engine and Manager are the host-compatibility constraint
		// expressions, in manifest order.
		Engine  []string
		Manager []string
		// Packages are the dependent package requirement specs.
		Packages []string
		// Source is set for external-reference modules.
		Source *Source
		// Description summarizes the module.
		Description string
		// Path is the absolute directory the handle was loaded from.
		Path string
	}
)

// NormalizeName replaces characters that are illegal in a directory or
// import identifier with '_'. Module names may contain '-' (for example
// roberta_L-3_H-1024), but the on-disk directory may not.
func NormalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// Load parses the manifest in dir and returns the Module handle. The handle
// path is always absolute. Fails with ErrManifestNotFound when the manifest
// is missing, or a parse/validation error when it is malformed.
func Load(dir string) (*Module, error) {
	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	version, err := semver.Parse(manifest.Version)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", manifest.Name, err)
	}

	// Constraint expressions must parse now, not at match time.
	if _, err := semver.ParseConstraintSets(manifest.Engine); err != nil {
		return nil, fmt.Errorf("module %s: engine constraints: %w", manifest.Name, err)
	}
	if _, err := semver.ParseConstraintSets(manifest.Manager); err != nil {
		return nil, fmt.Errorf("module %s: manager constraints: %w", manifest.Name, err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module directory %s: %w", dir, err)
	}

	return &Module{
		Name:        manifest.Name,
		Version:     version,
		Kind:        manifest.Kind,
		Engine:      manifest.Engine,
		Manager:     manifest.Manager,
		Packages:    manifest.Packages,
		Source:      manifest.Source,
		Description: manifest.Description,
		Path:        absDir,
	}, nil
}

// Info performs the lightweight info-only load: it parses the manifest for
// identity (name, version, kind) without producing a full handle. Used when
// only the declared name is needed before the module is materialized.
func Info(dir string) (*Manifest, error) {
	return ParseManifest(dir)
}

// ParseManifest reads and validates module.cue from dir.
func ParseManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", dir, ErrManifestNotFound)
		}
		return nil, fmt.Errorf("failed to read manifest at %s: %w", path, err)
	}

	return ParseManifestBytes(data, path)
}

// ParseManifestBytes parses manifest content. path is used in errors only.
func ParseManifestBytes(data []byte, path string) (*Manifest, error) {
	manifest, err := cueutil.Decode[Manifest](moduleSchema, data, "#Module", path)
	if err != nil {
		return nil, err
	}

	// The kind/source pairing is cross-field validation that the closed
	// schema cannot express without duplicating the definition.
	if manifest.Kind == KindExternal && manifest.Source == nil {
		return nil, fmt.Errorf("%s: external module declares no source", path)
	}
	if manifest.Kind != KindExternal && manifest.Source != nil {
		return nil, fmt.Errorf("%s: source is only valid on external modules", path)
	}

	return manifest, nil
}

// NormalizedName returns the module's on-disk directory name.
func (m *Module) NormalizedName() string {
	return NormalizeName(m.Name)
}

// ManifestPath returns the absolute path to this module's manifest.
func (m *Module) ManifestPath() string {
	return filepath.Join(m.Path, ManifestName)
}
