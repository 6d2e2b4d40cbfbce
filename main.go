// Package main provides the entry point for the garment configurator.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"fyne.io/fyne/v2/app"

	sessionpkg "garment-configurator/internal/app"
	"garment-configurator/internal/assets"
	"garment-configurator/internal/config"
	"garment-configurator/internal/logging"
	"garment-configurator/internal/scene"
	"garment-configurator/internal/version"
	"garment-configurator/ui/mainwindow"
	"garment-configurator/ui/prefs"
)

const appID = "io.github.garment-configurator"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting garment configurator %s", version.String())

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("Failed to read .env: %v", err)
	}
	cfg, err := config.Load(os.Getenv("GARMENT_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.SetLogger(logging.NewText(os.Stderr, cfg.LogLevel()))

	// File dialogs hand back absolute paths, so local assets resolve from
	// the filesystem root unless a bucket is configured.
	var src assets.Source = assets.DirSource{Root: "/"}
	if cfg.Assets.S3Bucket != "" {
		if src, err = cfg.Source(); err != nil {
			log.Fatalf("Failed to open asset bucket: %v", err)
		}
	}
	loader := assets.NewLoader(src, cfg.Assets.MaxBytes)

	session, err := sessionpkg.NewSession(cfg, loader)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := session.Run(ctx); err != nil {
			log.Printf("Compositor stopped: %v", err)
		}
	}()

	if dir, ok := src.(assets.DirSource); ok {
		startReloader(ctx, session, dir, loader)
	}

	var catalog *scene.Catalog
	if c, err := scene.LoadCatalog(cfg.Catalog.Path); err == nil {
		catalog = c
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load catalog %s: %v", cfg.Catalog.Path, err)
	}
	modelRoot := filepath.Dir(cfg.Catalog.Path)

	appPrefs := prefs.Load()
	fyneApp := app.NewWithID(appID)
	win := mainwindow.New(fyneApp, session, appPrefs, catalog, modelRoot)
	go win.RunPreview(ctx)

	if len(os.Args) > 1 {
		go win.OpenProject(os.Args[1])
	} else {
		win.RestoreGarment()
		session.Store.AddLayer()
		session.SetModified(false)
	}

	win.ShowAndRun()

	cancel()
	if err := appPrefs.SaveIfChanged(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}

// startReloader refreshes layers whose source files change on disk.
func startReloader(ctx context.Context, session *sessionpkg.Session, dir assets.DirSource, loader *assets.Loader) {
	reloader, err := sessionpkg.NewReloader(session.Store, dir, loader)
	if err != nil {
		log.Printf("File watching disabled: %v", err)
		return
	}
	reloader.Watch()
	go func() {
		if err := reloader.Run(ctx); err != nil {
			log.Printf("File watcher stopped: %v", err)
		}
	}()
}
