// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Check whether a hub module is installed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		mod := m.Search(args[0])
		if mod == nil {
			fmt.Printf("%s is not installed\n", ModuleStyle.Render(args[0]))
			return nil
		}
		fmt.Printf("%s %s (%s)\n", ModuleStyle.Render(mod.Name), mod.Version, mod.Path)
		return nil
	},
}
