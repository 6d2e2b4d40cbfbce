package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"garment-configurator/internal/app"
	"garment-configurator/internal/assets"
	"garment-configurator/internal/live"
	"garment-configurator/internal/logging"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		p      projectFlags
		addr   string
		reload bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live composites over websocket, re-rendering on source changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			s, cfg, err := openSession(cmd, g, &p)
			if err != nil {
				return err
			}
			defer s.Close()
			if addr == "" {
				addr = cfg.Live.Addr
			}

			hub := live.NewHub()
			defer hub.Close()
			s.SetHub(hub)
			srv := &http.Server{Addr: addr, Handler: hub.Handler(), ReadHeaderTimeout: 5 * time.Second}

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error { return s.Run(ctx) })
			eg.Go(func() error {
				logging.Logger().Info("live preview listening", "addr", addr)
				fmt.Fprintf(cmd.OutOrStdout(), "serving ws://%s/ws and http://%s/composite.png\n", addr, addr)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdown)
			})
			if dir, ok := s.Loader.Source().(assets.DirSource); ok && reload {
				r, err := app.NewReloader(s.Store, dir, s.Loader)
				if err != nil {
					return err
				}
				r.Watch()
				eg.Go(func() error { return r.Run(ctx) })
			}
			return eg.Wait()
		},
	}
	p.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&reload, "reload", true, "reload layer images when their files change")
	return cmd
}
