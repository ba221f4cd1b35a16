// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed hub modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		mods, err := m.List()
		if err != nil {
			return err
		}
		if len(mods) == 0 {
			fmt.Println(SubtitleStyle.Render("No modules installed."))
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(SubtitleStyle).
			Headers("NAME", "VERSION", "KIND", "DESCRIPTION").
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return TitleStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		for _, mod := range mods {
			t.Row(mod.Name, mod.Version.String(), string(mod.Kind), mod.Description)
		}
		fmt.Println(t.Render())
		return nil
	},
}
