// SPDX-License-Identifier: MPL-2.0

// Package manager implements the local module manager: install from a
// registry name, a local directory, a local archive or a remote URL, plus
// uninstall, search and list over a single module home directory.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/modhub/modhub/internal/config"
	"github.com/modhub/modhub/internal/fetch"
	"github.com/modhub/modhub/internal/installer"
	"github.com/modhub/modhub/internal/namelock"
	"github.com/modhub/modhub/internal/registry"
	"github.com/modhub/modhub/internal/xarchive"
	"github.com/modhub/modhub/pkg/hubmod"
	"github.com/modhub/modhub/pkg/semver"
)

type (
	// Options configures a Manager. Zero values fall back to the defaults
	// noted per field.
	Options struct {
		// TmpDir holds locks, downloads and extractions (config.TmpHome()).
		TmpDir string
		// EngineVersion is the host engine version; empty skips engine
		// compatibility diagnostics.
		EngineVersion string
		// ManagerVersion is this binary's version ("0.0.0").
		ManagerVersion string
		// RegistryEndpoint is the registry API base URL
		// (config.DefaultRegistryEndpoint).
		RegistryEndpoint string
		// InstallerCommand runs dependent-package installs; empty disables
		// them.
		InstallerCommand string
		// Logger receives install/uninstall info and probe warnings
		// (discard).
		Logger *log.Logger
		// Progress receives download and extraction progress (none).
		Progress fetch.Progress
	}

	// InstallRequest names exactly one install source. Version and Source
	// narrow registry lookups and are only meaningful with Name.
	InstallRequest struct {
		// Name installs from the registry.
		Name string
		// Directory installs from a local module directory, leaving it
		// untouched.
		Directory string
		// Archive installs from a local archive file.
		Archive string
		// URL installs from a remote archive.
		URL string

		// Version is a version constraint expression, e.g. ">=1.0,<2.0".
		Version string
		// Source restricts the registry lookup to one source.
		Source string
	}

	// InstallResult reports a completed install. Warnings carry best-effort
	// failures (dependent packages, receipt) that did not fail the install.
	InstallResult struct {
		Module           *hubmod.Module
		Warnings         []string
		AlreadyInstalled bool
	}

	// Manager owns one module home directory. All operations on it are
	// serialized by an internal mutex; cross-process exclusion per module
	// name is provided by advisory file locks in TmpDir.
	Manager struct {
		home           string
		tmp            string
		engineVersion  string
		managerVersion string

		registry  *registry.Client
		resolver  *sourceResolver
		installer *installer.Installer
		logger    *log.Logger
		progress  fetch.Progress

		mu      sync.Mutex
		modules map[string]*hubmod.Module // keyed by normalized name
	}
)

var (
	instancesMu sync.Mutex
	instances   = map[string]*Manager{}
)

// For returns the Manager for the given module home, creating it on first
// use. Homes are keyed by canonical absolute path, so every caller naming
// the same directory shares one instance and one mutex. Options are applied
// only when the instance is created.
func For(home string, opts Options) (*Manager, error) {
	abs, err := filepath.Abs(home)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module home %s: %w", home, err)
	}
	key := filepath.Clean(abs)

	instancesMu.Lock()
	defer instancesMu.Unlock()

	if m, ok := instances[key]; ok {
		return m, nil
	}

	m, err := New(key, opts)
	if err != nil {
		return nil, err
	}
	instances[key] = m
	return m, nil
}

// New creates a Manager over the given module home directory.
func New(home string, opts Options) (*Manager, error) {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create module home %s: %w", home, err)
	}

	tmp := opts.TmpDir
	if tmp == "" {
		var err error
		if tmp, err = config.TmpHome(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory %s: %w", tmp, err)
	}

	endpoint := opts.RegistryEndpoint
	if endpoint == "" {
		endpoint = config.DefaultRegistryEndpoint
	}
	managerVersion := opts.ManagerVersion
	if managerVersion == "" {
		managerVersion = "0.0.0"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Manager{
		home:           home,
		tmp:            tmp,
		engineVersion:  opts.EngineVersion,
		managerVersion: managerVersion,
		registry:       registry.NewClient(endpoint, opts.EngineVersion, managerVersion),
		resolver:       newSourceResolver(tmp),
		installer:      installer.New(opts.InstallerCommand),
		logger:         logger,
		progress:       opts.Progress,
		modules:        map[string]*hubmod.Module{},
	}, nil
}

// Home returns the module home directory this manager owns.
func (m *Manager) Home() string {
	return m.home
}

// Install installs a module from the single source named by req. Installing
// a name that is already present at a satisfying version returns the
// existing module without touching the network or the disk.
func (m *Manager) Install(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	set := 0
	for _, s := range []string{req.Name, req.Directory, req.Archive, req.URL} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: got %d of name/directory/archive/url", ErrInvalidRequest, set)
	}

	if req.Name != "" {
		return m.installByName(ctx, req)
	}

	var (
		res *resolved
		err error
		src string
	)
	switch {
	case req.Directory != "":
		res, err = m.resolver.FromDirectory(req.Directory)
		src = req.Directory
	case req.Archive != "":
		res, err = m.resolver.FromArchive(req.Archive, xarchive.Progress(m.progress))
		src = req.Archive
	default:
		res, err = m.resolver.FromURL(ctx, req.URL, m.progress)
		src = req.URL
	}
	if err != nil {
		return nil, err
	}
	defer res.cleanup()

	// The module's declared name is only known after staging; lock it now,
	// before the home directory is touched.
	manifest, err := hubmod.Info(res.dir)
	if err != nil {
		return nil, err
	}
	lock, err := namelock.Acquire(m.tmp, manifest.Name)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installStaged(ctx, res.dir, src)
}

func (m *Manager) installByName(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	lock, err := namelock.Acquire(m.tmp, req.Name)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	// Already satisfied: no registry call, no disk mutation.
	if existing := m.Search(req.Name); existing != nil {
		satisfied := req.Version == ""
		if !satisfied {
			satisfied, err = semver.Match(existing.Version.String(), req.Version)
			if err != nil {
				return nil, fmt.Errorf("invalid version constraint %q: %w", req.Version, err)
			}
		}
		if satisfied {
			m.logger.Info("module already installed", "name", existing.Name, "version", existing.Version)
			return &InstallResult{Module: existing, AlreadyInstalled: true}, nil
		}
	}

	loc, err := m.registry.SearchModule(ctx, req.Name, req.Version, req.Source)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, m.classifyMiss(ctx, req)
	}

	var res *resolved
	switch {
	case loc.URL != "":
		if res, err = m.resolver.FromURL(ctx, loc.URL, m.progress); err != nil {
			return nil, err
		}
	case loc.Source != nil:
		if res, err = m.stageExternal(req.Name, loc.Version, *loc.Source); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("registry returned an empty location for %s", req.Name)
	}
	defer res.cleanup()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installStaged(ctx, res.dir, "registry:"+req.Name)
}

// classifyMiss turns an empty search result into a structured diagnostic:
// NotFoundError when the name (or the requested version of it) does not
// exist, EnvironmentMismatchError when matching versions exist but none is
// compatible with this host.
func (m *Manager) classifyMiss(ctx context.Context, req InstallRequest) error {
	table, err := m.registry.GetModuleInfo(ctx, req.Name, req.Source)
	if err != nil {
		return err
	}

	matching := registry.CandidateTable{}
	for version, info := range table {
		if req.Version != "" {
			ok, matchErr := semver.Match(version, req.Version)
			if matchErr != nil || !ok {
				continue
			}
		}
		matching[version] = info
	}

	if len(matching) == 0 {
		return &NotFoundError{
			Name:       req.Name,
			Version:    req.Version,
			Source:     req.Source,
			Candidates: table,
		}
	}
	return &EnvironmentMismatchError{
		Name:           req.Name,
		Version:        req.Version,
		Candidates:     matching,
		EngineVersion:  m.engineVersion,
		ManagerVersion: m.managerVersion,
	}
}

// stageExternal synthesizes an external-reference module in scratch space:
// a single manifest of kind "external". No code is fetched or generated;
// the host engine resolves the reference at load time.
func (m *Manager) stageExternal(name, version string, src hubmod.Source) (*resolved, error) {
	if version == "" {
		version = "0.0.0"
	}

	dir, err := os.MkdirTemp(m.tmp, "external-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := hubmod.WriteExternalManifest(dir, name, version, src); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &resolved{dir: dir, cleanup: func() { _ = os.RemoveAll(dir) }}, nil
}

// installStaged materializes a staged module tree into the home directory:
// any prior install of the same name is removed, the tree is copied under
// the normalized name, and the handle is reloaded from its final location.
// Callers hold m.mu and the per-name lock.
func (m *Manager) installStaged(ctx context.Context, stagedDir, installSource string) (*InstallResult, error) {
	manifest, err := hubmod.Info(stagedDir)
	if err != nil {
		return nil, err
	}

	normalized := hubmod.NormalizeName(manifest.Name)
	dest := filepath.Join(m.home, normalized)

	// Reinstall semantics: the prior version goes away first.
	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return nil, fmt.Errorf("failed to remove previous install of %s: %w", manifest.Name, err)
		}
		delete(m.modules, normalized)
		m.logger.Info("removed previous install", "name", manifest.Name)
	}

	if err := copyDir(stagedDir, dest); err != nil {
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("failed to install %s: %w", manifest.Name, err)
	}

	// The handle must describe the final location, not the staging one.
	mod, err := hubmod.Load(dest)
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, fmt.Errorf("installed tree failed to load: %w", err)
	}

	result := &InstallResult{Module: mod}

	receipt := hubmod.Receipt{
		Name:           mod.Name,
		Version:        mod.Version.String(),
		Kind:           string(mod.Kind),
		InstallSource:  installSource,
		InstalledAt:    time.Now().UTC(),
		ManagerVersion: m.managerVersion,
	}
	if err := hubmod.WriteReceipt(dest, receipt); err != nil {
		m.logger.Warn("failed to write install receipt", "name", mod.Name, "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("receipt: %v", err))
	}

	// Dependent packages are best effort: failures become warnings.
	for _, w := range m.installer.InstallPackages(ctx, dest, mod.Packages) {
		m.logger.Warn("dependent package install failed", "name", mod.Name, "warning", w)
		result.Warnings = append(result.Warnings, w)
	}

	m.modules[normalized] = mod
	m.logger.Info("installed module", "name", mod.Name, "version", mod.Version, "path", dest)
	return result, nil
}

// Uninstall removes the named module from the home directory. It reports
// whether anything was removed; uninstalling an absent name is not an
// error. The name may be given in original or normalized spelling.
func (m *Manager) Uninstall(name string) (bool, error) {
	lock, err := namelock.Acquire(m.tmp, name)
	if err != nil {
		return false, err
	}
	defer lock.Release()

	m.mu.Lock()
	defer m.mu.Unlock()

	normalized := hubmod.NormalizeName(name)
	dir := filepath.Join(m.home, normalized)

	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			delete(m.modules, normalized)
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	delete(m.modules, normalized)
	m.logger.Info("uninstalled module", "name", name)
	return true, nil
}

// Search returns the installed module for name, or nil when it is not
// installed. Lookups are cached; a directory that exists but fails to load
// is logged and treated as absent.
func (m *Manager) Search(name string) *hubmod.Module {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized := hubmod.NormalizeName(name)
	if mod, ok := m.modules[normalized]; ok {
		return mod
	}

	dir := filepath.Join(m.home, normalized)
	mod, err := hubmod.Load(dir)
	if err != nil {
		if !os.IsNotExist(err) && !errors.Is(err, hubmod.ErrManifestNotFound) {
			m.logger.Warn("installed module failed to load", "name", name, "path", dir, "error", err)
		}
		return nil
	}

	m.modules[normalized] = mod
	return mod
}

// List rescans the home directory and returns every loadable installed
// module, sorted by name. Directories that fail to load are logged and
// skipped. The cache is rebuilt from what the scan finds.
func (m *Manager) List() ([]*hubmod.Module, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.home)
	if err != nil {
		return nil, fmt.Errorf("failed to read module home %s: %w", m.home, err)
	}

	m.modules = map[string]*hubmod.Module{}
	mods := make([]*hubmod.Module, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.home, entry.Name())
		mod, err := hubmod.Load(dir)
		if err != nil {
			m.logger.Warn("skipping unloadable module directory", "path", dir, "error", err)
			continue
		}
		m.modules[entry.Name()] = mod
		mods = append(mods, mod)
	}

	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })
	return mods, nil
}
