package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lex1olnk/mang2/internal/metadata"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the schema and policy and list the models",
	Example: `  # Check the files named in app.yaml
  mang2 check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := metadata.LoadFiles(cfg.Schema.Document, cfg.Schema.Policy)
		if err != nil {
			return fmt.Errorf("load models: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, m := range reg.Models() {
			slug := ""
			if m.Plural != "" {
				slug = " /api/" + m.Plural
			}
			fmt.Fprintf(out, "%s (table %s, %d properties)%s\n", m.Name, m.Table, len(m.Properties), slug)

			names := make([]string, 0, len(m.Relations))
			for name := range m.Relations {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				rel := m.Relations[name]
				fmt.Fprintf(out, "  %s: %s %s\n", name, rel.Kind, rel.Target)
			}
		}
		return nil
	},
}
