// SPDX-License-Identifier: MPL-2.0

// Package config loads modhub configuration: the module home directory, the
// registry endpoint, the host engine version, and the dependent-package
// installer command. Configuration comes from a CUE file validated against
// an embedded schema, with environment variables taking precedence.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/modhub/modhub/pkg/cueutil"
)

const (
	// AppName is the application name, used for config and home directories.
	AppName = "modhub"

	// ConfigFileName is the config file name (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"

	// EnvHome overrides the module home directory.
	EnvHome = "MODHUB_HOME"
	// EnvRegistry overrides the registry endpoint.
	EnvRegistry = "MODHUB_REGISTRY"

	// DefaultRegistryEndpoint is the public module registry.
	DefaultRegistryEndpoint = "https://registry.modhub.io/api/v1"

	// DefaultInstallerCommand is the dependent-package installer template.
	// The requirement spec is appended as the final argument.
	DefaultInstallerCommand = "pkgadd install"
)

//go:embed config_schema.cue
var configSchema []byte

type (
	// Config is the resolved modhub configuration.
	Config struct {
		// Home is the directory modules are installed under.
		Home string `json:"home" mapstructure:"home"`
		// EngineVersion is the host engine version used for module
		// compatibility checks.
		EngineVersion string `json:"engine_version" mapstructure:"engine_version"`
		// Registry configures the remote registry service.
		Registry Registry `json:"registry" mapstructure:"registry"`
		// Installer configures the dependent-package installer.
		Installer Installer `json:"installer" mapstructure:"installer"`
		// Verbose enables verbose output by default.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// Registry configures the remote registry service client.
	Registry struct {
		// Endpoint is the registry API base URL.
		Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	}

	// Installer configures the dependent-package installer.
	Installer struct {
		// Command is the shell command the requirement spec is appended to.
		Command string `json:"command" mapstructure:"command"`
	}
)

// DefaultHome returns the default module home directory (~/.modhub/modules).
func DefaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName, "modules"), nil
}

// TmpHome returns the scratch directory for locks and in-flight downloads
// (~/.modhub/tmp). It is created on first use.
func TmpHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, "."+AppName, "tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create tmp directory: %w", err)
	}
	return dir, nil
}

// ConfigDir returns the modhub configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load resolves configuration from defaults, the config file (if present),
// and environment variables, in increasing precedence. A missing config
// file is not an error.
func Load() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(dir, ConfigFileName+"."+ConfigFileExt))
}

// LoadFrom loads configuration with an explicit config file path.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	defaultHome, err := DefaultHome()
	if err != nil {
		return nil, err
	}
	v.SetDefault("home", defaultHome)
	v.SetDefault("engine_version", "")
	v.SetDefault("registry.endpoint", DefaultRegistryEndpoint)
	v.SetDefault("installer.command", DefaultInstallerCommand)
	v.SetDefault("verbose", false)

	if fileExists(path) {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, fmt.Errorf("failed to load config at %s: %w", path, err)
		}
	}

	// Environment overrides beat file values.
	if home := os.Getenv(EnvHome); home != "" {
		v.Set("home", home)
	}
	if endpoint := os.Getenv(EnvRegistry); endpoint != "" {
		v.Set("registry.endpoint", endpoint)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// loadCUEIntoViper parses a CUE config file, validates it against the
// #Config schema, and merges its contents into viper. Decoding goes through
// map[string]any (not a struct) because viper owns the final unmarshal, and
// Concrete is false because every config field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > cueutil.MaxFileBytes {
		return fmt.Errorf("%s: file too large (%d bytes, max %d)", path, len(data), cueutil.MaxFileBytes)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	return v.MergeConfigMap(configMap)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
