// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove an installed hub module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		removed, err := m.Uninstall(args[0])
		if err != nil {
			return err
		}
		if removed {
			fmt.Printf("%s uninstalled %s\n", SuccessStyle.Render("✓"), ModuleStyle.Render(args[0]))
		} else {
			fmt.Printf("%s is not installed\n", ModuleStyle.Render(args[0]))
		}
		return nil
	},
}
