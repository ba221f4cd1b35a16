// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/modhub/modhub/pkg/hubmod"
)

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show details of an installed hub module",
	Long: `Show the manifest details, install receipt, and README (rendered as
markdown, when the module ships one) of an installed hub module.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		mod := m.Search(args[0])
		if mod == nil {
			return fmt.Errorf("module %s is not installed", args[0])
		}

		fmt.Println(TitleStyle.Render(mod.Name) + SubtitleStyle.Render(" "+mod.Version.String()))
		if mod.Description != "" {
			fmt.Println(mod.Description)
		}
		fmt.Println(SubtitleStyle.Render("kind:    ") + string(mod.Kind))
		fmt.Println(SubtitleStyle.Render("path:    ") + mod.Path)
		if len(mod.Engine) > 0 {
			fmt.Println(SubtitleStyle.Render("engine:  ") + strings.Join(mod.Engine, ", "))
		}
		if len(mod.Manager) > 0 {
			fmt.Println(SubtitleStyle.Render("manager: ") + strings.Join(mod.Manager, ", "))
		}
		if mod.Source != nil {
			fmt.Println(SubtitleStyle.Render("source:  ") + mod.Source.Class + " @ " + mod.Source.Path)
		}

		if receipt, err := hubmod.ReadReceipt(mod.Path); err == nil {
			fmt.Println(SubtitleStyle.Render("installed: ") + receipt.InstalledAt.Local().Format("2006-01-02 15:04") +
				SubtitleStyle.Render(" from ") + receipt.InstallSource)
		}

		if readme := readREADME(mod.Path); readme != "" {
			rendered, err := renderMarkdown(readme)
			if err != nil {
				// Fall back to the raw text rather than failing the command.
				rendered = readme
			}
			fmt.Println(rendered)
		}
		return nil
	},
}

func readREADME(dir string) string {
	for _, name := range []string{"README.md", "readme.md", "README"} {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			return string(data)
		}
	}
	return ""
}

func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return r.Render(content)
}
