package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"garment-configurator/internal/scene"
)

func newCatalogCmd(g *globalFlags) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the garments in the catalog and their texture targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Catalog.Path
			}
			c, err := scene.LoadCatalog(path)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPARTS\tTARGETS")
			for _, gm := range c.Garments {
				var targets []string
				for _, part := range gm.Parts {
					if name := scene.PartName(part); scene.IsTextureTarget(name, cfg.Texture.TargetTags) {
						targets = append(targets, name)
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", gm.ID, gm.Name, len(gm.Parts), strings.Join(targets, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "", "catalog YAML (default from config)")
	return cmd
}
