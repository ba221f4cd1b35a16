// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modhub/modhub/internal/config"
	"github.com/modhub/modhub/internal/manager"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output.
	verbose bool
	// cfgFile allows specifying a custom config file.
	cfgFile string

	// cfg is the resolved configuration, loaded before any command runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "modhub",
		Short: "A local package manager for hub modules",
		Long: TitleStyle.Render("modhub") + SubtitleStyle.Render(" - a local package manager for hub modules") + `

Hub modules are named, semantically versioned directories of code with a
module.cue manifest. modhub installs them into a single module home from
the registry, a local directory, a local archive, or a URL, and keeps the
home consistent: one installed version per name, normalized directory
names, per-name locking across processes.

` + SubtitleStyle.Render("Examples:") + `
  modhub install sentiment-analysis           Install the latest compatible version
  modhub install sentiment-analysis --version ">=2.0,<3.0"
  modhub install --dir ./my-module            Install from a local directory
  modhub install --url https://example.com/m.tar.gz
  modhub uninstall sentiment-analysis
  modhub list                                 Show installed modules
  modhub search sentiment-analysis            Check whether a module is installed`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <config dir>/modhub/config.cue)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(infoCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// initRootConfig loads configuration before any command runs.
func initRootConfig() {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
		cfg = &config.Config{}
	}
	if cfg.Verbose {
		verbose = true
	}
}

// newManager builds the Manager for the configured module home.
func newManager() (*manager.Manager, error) {
	home := cfg.Home
	if home == "" {
		var err error
		if home, err = config.DefaultHome(); err != nil {
			return nil, err
		}
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	return manager.For(home, manager.Options{
		EngineVersion:    cfg.EngineVersion,
		ManagerVersion:   managerVersion(),
		RegistryEndpoint: cfg.Registry.Endpoint,
		InstallerCommand: cfg.Installer.Command,
		Logger:           logger,
		Progress:         progressRenderer(),
	})
}

// managerVersion maps the build version onto a comparable semver string.
func managerVersion() string {
	if Version == "dev" || Version == "" {
		return "0.0.0"
	}
	return Version
}

// progressRenderer writes a carriage-return percentage line to stderr while
// a download or extraction is running.
func progressRenderer() func(done, total int64) {
	if !verbose {
		return nil
	}
	return func(done, total int64) {
		if total <= 0 {
			fmt.Fprintf(os.Stderr, "\r%d bytes", done)
			return
		}
		fmt.Fprintf(os.Stderr, "\r%3d%%", done*100/total)
		if done >= total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
