// Command texcomp renders and serves garment texture projects without the
// GUI.
//
// Usage:
//
//	texcomp render --project design.json --out composite.png
//	texcomp serve --project design.json
//	texcomp catalog
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"garment-configurator/internal/app"
	"garment-configurator/internal/assets"
	"garment-configurator/internal/config"
	"garment-configurator/internal/logging"
	"garment-configurator/internal/scene"
	"garment-configurator/internal/version"
)

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
	assetDir   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "texcomp",
		Short:         "Composite layered garment textures",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "TOML config file")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file with GARMENT_* overrides")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	pf.StringVar(&g.assetDir, "assets", "", "directory layer sources are resolved against")

	root.AddCommand(
		newRenderCmd(g),
		newServeCmd(g),
		newCatalogCmd(g),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and installs the logger.
func (g *globalFlags) load() (config.Config, error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.assetDir != "" {
		cfg.Assets.Dir = g.assetDir
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, err
	}
	logging.SetLogger(logging.NewText(os.Stderr, level))
	return cfg, nil
}

// projectFlags are shared by the commands that open a project.
type projectFlags struct {
	project string
	models  string
}

func (p *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.project, "project", "p", "", "project JSON file")
	cmd.Flags().StringVar(&p.models, "models", "", "garment model directory (default: catalog directory)")
	_ = cmd.MarkFlagRequired("project")
}

// openSession builds a session and loads the project into it. Without an
// explicit asset directory, sources resolve relative to the project file.
func openSession(cmd *cobra.Command, g *globalFlags, p *projectFlags) (*app.Session, config.Config, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, cfg, err
	}
	if g.assetDir == "" && cfg.Assets.S3Bucket == "" && cfg.Assets.Dir == config.Default().Assets.Dir {
		cfg.Assets.Dir = filepath.Dir(p.project)
	}
	src, err := cfg.Source()
	if err != nil {
		return nil, cfg, err
	}
	s, err := app.NewSession(cfg, assets.NewLoader(src, cfg.Assets.MaxBytes))
	if err != nil {
		return nil, cfg, err
	}
	s.On(app.EventLoadFailed, func(data interface{}) {
		if le, ok := data.(app.LoadError); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", le)
		}
	})

	var catalog *scene.Catalog
	if c, err := scene.LoadCatalog(cfg.Catalog.Path); err == nil {
		catalog = c
	} else {
		logging.Logger().Debug("no garment catalog", "path", cfg.Catalog.Path, "err", err)
	}
	models := p.models
	if models == "" {
		models = filepath.Dir(cfg.Catalog.Path)
	}
	if err := s.LoadProject(cmd.Context(), p.project, catalog, models); err != nil {
		s.Close()
		return nil, cfg, err
	}
	if !s.Scene.HasModel() {
		s.UsePanelModel()
	}
	return s, cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "texcomp", version.String())
		},
	}
}
