// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.cue"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Registry.Endpoint != DefaultRegistryEndpoint {
		t.Errorf("Registry.Endpoint = %q, want default", cfg.Registry.Endpoint)
	}
	if cfg.Installer.Command != DefaultInstallerCommand {
		t.Errorf("Installer.Command = %q, want default", cfg.Installer.Command)
	}
	if cfg.Home == "" {
		t.Error("Home is empty, want default module home")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.cue")
	content := `
home:           "/srv/modhub/modules"
engine_version: "2.4.0"
registry: endpoint: "http://registry.internal:8080/api"
installer: command: "pip install"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Home != "/srv/modhub/modules" {
		t.Errorf("Home = %q", cfg.Home)
	}
	if cfg.EngineVersion != "2.4.0" {
		t.Errorf("EngineVersion = %q", cfg.EngineVersion)
	}
	if cfg.Registry.Endpoint != "http://registry.internal:8080/api" {
		t.Errorf("Registry.Endpoint = %q", cfg.Registry.Endpoint)
	}
	if cfg.Installer.Command != "pip install" {
		t.Errorf("Installer.Command = %q", cfg.Installer.Command)
	}
}

func TestLoadFromRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.cue")
	if err := os.WriteFile(path, []byte(`engine_version: "not a version"`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil || !strings.Contains(err.Error(), "engine_version") {
		t.Errorf("LoadFrom() error = %v, want schema violation on engine_version", err)
	}
}

func TestEnvOverridesBeatFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.cue")
	if err := os.WriteFile(path, []byte(`home: "/from/file"`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvHome, "/from/env")
	t.Setenv(EnvRegistry, "http://env.registry/api")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Home != "/from/env" {
		t.Errorf("Home = %q, want env override", cfg.Home)
	}
	if cfg.Registry.Endpoint != "http://env.registry/api" {
		t.Errorf("Registry.Endpoint = %q, want env override", cfg.Registry.Endpoint)
	}
}
