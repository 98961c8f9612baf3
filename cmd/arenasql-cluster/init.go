package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arenasql/arenasql/pkg/manifest"
)

// initCmd writes a starter cluster manifest (spec.md §6.4), refusing to
// overwrite one that already exists — the one piece of §6.5's CLI surface
// that is not the listener itself.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a new cluster manifest",
	Long: `Writes a starter cluster manifest TOML file with a single root
superuser and the given catalogs directory, creating the directory if it
does not already exist. Refuses to overwrite an existing manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		catalogsDir, _ := cmd.Flags().GetString("catalogs-dir")

		if err := manifest.Init(configPath, catalogsDir); err != nil {
			return fmt.Errorf("init: %w", err)
		}

		fmt.Printf("Wrote cluster manifest to %s\n", configPath)
		fmt.Printf("  Catalogs directory: %s\n", catalogsDir)
		fmt.Println("  Default user: root / root (SUPER_USER)")
		return nil
	},
}
