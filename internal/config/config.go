// Package config loads engine settings from a TOML file, an optional .env
// file and GARMENT_* environment variables, in that order of precedence
// from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"garment-configurator/internal/assets"
	"garment-configurator/internal/composite"
	"garment-configurator/internal/editor"
	"garment-configurator/internal/logging"
	"garment-configurator/internal/publish"
	"garment-configurator/internal/raster"
	"garment-configurator/internal/scene"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GARMENT_"

type Canvas struct {
	Size    int    `toml:"size"`
	Backend string `toml:"backend"`
}

type Texture struct {
	Wrap        string   `toml:"wrap"`
	FlipY       bool     `toml:"flip_y"`
	AlphaTest   float64  `toml:"alpha_test"`
	RenderOrder int      `toml:"render_order"`
	TargetTags  []string `toml:"target_tags"`
	Transparent bool     `toml:"transparent"`
	DepthTest   bool     `toml:"depth_test"`
	DepthWrite  bool     `toml:"depth_write"`
	// LayerMaterial applies the active layer's material type to the decal.
	LayerMaterial bool `toml:"layer_material"`
}

type Editor struct {
	Mode string `toml:"mode"`
}

type Assets struct {
	Dir        string `toml:"dir"`
	S3Bucket   string `toml:"s3_bucket"`
	S3Region   string `toml:"s3_region"`
	S3Endpoint string `toml:"s3_endpoint"`
	S3Prefix   string `toml:"s3_prefix"`
	MaxLoads   int    `toml:"max_loads"`
	MaxBytes   int64  `toml:"max_bytes"`
}

type Catalog struct {
	Path string `toml:"path"`
}

type Live struct {
	Addr string `toml:"addr"`
}

type Log struct {
	Level string `toml:"level"`
}

// Config is the full engine configuration.
type Config struct {
	Canvas  Canvas  `toml:"canvas"`
	Texture Texture `toml:"texture"`
	Editor  Editor  `toml:"editor"`
	Assets  Assets  `toml:"assets"`
	Catalog Catalog `toml:"catalog"`
	Live    Live    `toml:"live"`
	Log     Log     `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Canvas: Canvas{Size: composite.DefaultSize, Backend: "software"},
		Texture: Texture{
			Wrap:          "repeat",
			AlphaTest:     0.1,
			RenderOrder:   1,
			TargetTags:    append([]string(nil), scene.DefaultTargetTags...),
			Transparent:   true,
			DepthTest:     true,
			DepthWrite:    true,
			LayerMaterial: true,
		},
		Editor:  Editor{Mode: editor.ModeMove.String()},
		Assets:  Assets{Dir: ".", MaxLoads: 4, MaxBytes: assets.DefaultMaxBytes},
		Catalog: Catalog{Path: "garments.yaml"},
		Live:    Live{Addr: "127.0.0.1:8686"},
		Log:     Log{Level: "info"},
	}
}

// Load reads path over the defaults, then applies the environment. An
// empty path skips the file. Unknown keys in the file are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return cfg, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadDotEnv loads KEY=value pairs from files into the process environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from GARMENT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		return lookup(EnvPrefix + key)
	}
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	num("CANVAS_SIZE", &c.Canvas.Size)
	str("BACKEND", &c.Canvas.Backend)
	str("TEXTURE_WRAP", &c.Texture.Wrap)
	flag("TEXTURE_FLIP_Y", &c.Texture.FlipY)
	flt("ALPHA_TEST", &c.Texture.AlphaTest)
	num("RENDER_ORDER", &c.Texture.RenderOrder)
	if v, ok := get("TARGET_TAGS"); ok {
		c.Texture.TargetTags = splitList(v)
	}
	str("EDITOR_MODE", &c.Editor.Mode)
	str("ASSET_DIR", &c.Assets.Dir)
	str("S3_BUCKET", &c.Assets.S3Bucket)
	str("S3_REGION", &c.Assets.S3Region)
	str("S3_ENDPOINT", &c.Assets.S3Endpoint)
	str("S3_PREFIX", &c.Assets.S3Prefix)
	num("MAX_LOADS", &c.Assets.MaxLoads)
	str("CATALOG", &c.Catalog.Path)
	str("LIVE_ADDR", &c.Live.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	var errs []error
	if c.Canvas.Size <= 0 {
		errs = append(errs, fmt.Errorf("canvas.size must be positive, got %d", c.Canvas.Size))
	}
	if _, err := raster.New(c.Canvas.Backend); err != nil {
		errs = append(errs, err)
	}
	if c.Texture.AlphaTest < 0 || c.Texture.AlphaTest > 1 {
		errs = append(errs, fmt.Errorf("texture.alpha_test must be in [0,1], got %g", c.Texture.AlphaTest))
	}
	if len(c.Texture.TargetTags) == 0 {
		errs = append(errs, errors.New("texture.target_tags must not be empty"))
	}
	if _, err := editor.ParseMode(c.Editor.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Backend returns the configured raster backend.
func (c Config) Backend() (raster.Backend, error) {
	return raster.New(c.Canvas.Backend)
}

// Publish converts the texture section into publisher settings.
func (c Config) Publish() publish.Settings {
	s := publish.DefaultSettings()
	wrap := scene.ParseWrap(c.Texture.Wrap)
	s.WrapS, s.WrapT = wrap, wrap
	s.FlipY = c.Texture.FlipY
	s.AlphaTest = c.Texture.AlphaTest
	s.RenderOrder = c.Texture.RenderOrder
	s.Transparent = c.Texture.Transparent
	s.DepthTest = c.Texture.DepthTest
	s.DepthWrite = c.Texture.DepthWrite
	s.UseLayerMaterial = c.Texture.LayerMaterial
	return s
}

// LogLevel returns the parsed log level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	lvl, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Source builds the image source: S3 when a bucket is set, else the asset
// directory.
func (c Config) Source() (assets.Source, error) {
	if c.Assets.S3Bucket != "" {
		return assets.NewS3Source(assets.S3Config{
			Bucket:   c.Assets.S3Bucket,
			Prefix:   c.Assets.S3Prefix,
			Region:   c.Assets.S3Region,
			Endpoint: c.Assets.S3Endpoint,
		})
	}
	return assets.DirSource{Root: c.Assets.Dir}, nil
}
