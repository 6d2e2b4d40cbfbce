package main

import (
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"garment-configurator/internal/render"
)

func newRenderCmd(g *globalFlags) *cobra.Command {
	var (
		p       projectFlags
		out     string
		preview string
		view    string
		size    int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a project's composite texture and optional 3D preview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := openSession(cmd, g, &p)
			if err != nil {
				return err
			}
			defer s.Close()

			res := s.Flush()
			if res == nil {
				res = s.Latest()
			}
			if res == nil {
				return errors.New("nothing was rendered")
			}
			if err := imaging.Save(res.Image, out); err != nil {
				return fmt.Errorf("failed to write composite: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "composite: %s (%d layers painted)\n", out, res.Painted)

			if preview == "" {
				return nil
			}
			opts := render.DefaultOptions()
			opts.Width, opts.Height = size, size
			switch view {
			case "front":
			case "back":
				opts.Camera = render.BackCamera()
			default:
				return fmt.Errorf("unknown view %q (want front or back)", view)
			}
			img, err := s.Preview(opts)
			if err != nil {
				return err
			}
			if err := imaging.Save(img, preview); err != nil {
				return fmt.Errorf("failed to write preview: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "preview: %s\n", preview)
			return nil
		},
	}
	p.register(cmd)
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "composite.png", "composite output image")
	f.StringVar(&preview, "preview", "", "also render the dressed model to this image")
	f.StringVar(&view, "view", "front", "preview camera: front or back")
	f.IntVar(&size, "size", 512, "preview size in pixels")
	return cmd
}
