// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/modhub/modhub/internal/manager"
	"github.com/modhub/modhub/internal/registry"
	"github.com/modhub/modhub/pkg/semver"
)

var (
	installVersion string
	installSource  string
	installDir     string
	installArchive string
	installURL     string

	installCmd = &cobra.Command{
		Use:   "install [name]",
		Short: "Install a hub module",
		Long: `Install a hub module from the registry by name, or from a local
directory, a local archive, or a remote URL. Exactly one source must be
given. Installing a name that is already present at a satisfying version is
a no-op.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := manager.InstallRequest{
				Directory: installDir,
				Archive:   installArchive,
				URL:       installURL,
				Version:   installVersion,
				Source:    installSource,
			}
			if len(args) == 1 {
				req.Name = args[0]
			}

			m, err := newManager()
			if err != nil {
				return err
			}

			res, err := m.Install(cmd.Context(), req)
			if err != nil {
				renderCandidates(err)
				return err
			}

			if res.AlreadyInstalled {
				fmt.Printf("%s %s is already installed (version %s)\n",
					SuccessStyle.Render("✓"), ModuleStyle.Render(res.Module.Name), res.Module.Version)
			} else {
				fmt.Printf("%s installed %s %s\n",
					SuccessStyle.Render("✓"), ModuleStyle.Render(res.Module.Name), res.Module.Version)
			}
			for _, w := range res.Warnings {
				fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+w)
			}
			return nil
		},
	}
)

func init() {
	installCmd.Flags().StringVar(&installVersion, "version", "", `version constraint, e.g. ">=2.0,<3.0"`)
	installCmd.Flags().StringVar(&installSource, "source", "", "restrict the registry lookup to one source")
	installCmd.Flags().StringVar(&installDir, "dir", "", "install from a local module directory")
	installCmd.Flags().StringVar(&installArchive, "archive", "", "install from a local archive file")
	installCmd.Flags().StringVar(&installURL, "url", "", "install from a remote archive URL")
}

// renderCandidates prints the diagnostic candidate table carried by
// not-found and environment-mismatch errors. Other errors print nothing
// here; fang renders the message.
func renderCandidates(err error) {
	var notFound *manager.NotFoundError
	if errors.As(err, &notFound) && len(notFound.Candidates) > 0 {
		fmt.Fprintln(os.Stderr, SubtitleStyle.Render("Known versions of ")+ModuleStyle.Render(notFound.Name)+SubtitleStyle.Render(":"))
		fmt.Fprintln(os.Stderr, candidateTable(notFound.Candidates, nil))
		return
	}

	var mismatch *manager.EnvironmentMismatchError
	if errors.As(err, &mismatch) && len(mismatch.Candidates) > 0 {
		fmt.Fprintln(os.Stderr, SubtitleStyle.Render("Incompatible versions of ")+ModuleStyle.Render(mismatch.Name)+SubtitleStyle.Render(":"))
		fmt.Fprintln(os.Stderr, candidateTable(mismatch.Candidates, mismatch.FailedConstraints))
	}
}

// candidateTable renders a version/requirements table. When failed is
// non-nil a column marks the constraints this host does not satisfy.
func candidateTable(candidates registry.CandidateTable, failed func(version string) []string) string {
	versions := make([]string, 0, len(candidates))
	for v := range candidates {
		versions = append(versions, v)
	}
	versions = semver.SortVersions(versions)

	headers := []string{"VERSION", "ENGINE", "MANAGER"}
	if failed != nil {
		headers = append(headers, "UNSATISFIED")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TitleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	for _, v := range versions {
		info := candidates[v]
		row := []string{v, joinOrAny(info.Engine), joinOrAny(info.Manager)}
		if failed != nil {
			row = append(row, strings.Join(failed(v), ", "))
		}
		t.Row(row...)
	}
	return t.Render()
}

func joinOrAny(exprs []string) string {
	if len(exprs) == 0 {
		return "any"
	}
	return strings.Join(exprs, ", ")
}
