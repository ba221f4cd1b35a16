// SPDX-License-Identifier: MPL-2.0

// Package installer runs the configured package-install command for the
// requirement specs a module declares. Installs are best effort: a failing
// requirement never fails the surrounding module install, it is reported
// back as a warning.
package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Installer executes "<command> <requirement spec>" lines through an
// embedded POSIX shell, so the configured command may carry flags, env
// assignments or pipes.
type Installer struct {
	command string
}

// New creates an Installer around the configured install command, e.g.
// "pkgadd install". An empty command disables package installation.
func New(command string) *Installer {
	return &Installer{command: strings.TrimSpace(command)}
}

// Enabled reports whether an install command is configured.
func (i *Installer) Enabled() bool {
	return i.command != ""
}

// InstallPackages runs the install command once per requirement spec from
// dir, collecting a warning per failed spec. The returned error is non-nil
// only for setup problems; per-spec failures end up in warnings.
func (i *Installer) InstallPackages(ctx context.Context, dir string, specs []string) (warnings []string) {
	if !i.Enabled() || len(specs) == 0 {
		return nil
	}

	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if err := i.run(ctx, dir, spec); err != nil {
			warnings = append(warnings, fmt.Sprintf("package %q: %v", spec, err))
		}
	}
	return warnings
}

func (i *Installer) run(ctx context.Context, dir, spec string) error {
	quoted, err := syntax.Quote(spec, syntax.LangPOSIX)
	if err != nil {
		return fmt.Errorf("requirement spec is not shell-safe: %w", err)
	}
	line := i.command + " " + quoted

	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(line), "install")
	if err != nil {
		return fmt.Errorf("failed to parse install command: %w", err)
	}

	var stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.StdIO(nil, os.Stdout, &stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return fmt.Errorf("install command exited with status %d: %s", int(exitStatus), msg)
			}
			return fmt.Errorf("install command exited with status %d", int(exitStatus))
		}
		return fmt.Errorf("install command failed: %w", err)
	}
	return nil
}
