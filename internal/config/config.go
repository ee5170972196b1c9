// Package config loads platepatch settings.
//
// Precedence, lowest first: defaults, YAML file, environment (optionally
// seeded from a .env file), command line flags. Flags are applied by the
// caller after Load and ApplyEnv.
package config

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sebnyberg/platepatch"
	"github.com/sebnyberg/platepatch/plate"
)

// Environment variable names.
const (
	EnvFormat         = "PLATEPATCH_FORMAT"
	EnvPrefix         = "PLATEPATCH_PREFIX"
	EnvRows           = "PLATEPATCH_ROWS"
	EnvCols           = "PLATEPATCH_COLS"
	EnvBackend        = "PLATEPATCH_BACKEND"
	EnvCompress       = "PLATEPATCH_COMPRESS"
	EnvPatchesDir     = "PLATEPATCH_PATCHES_DIR"
	EnvAutoOrient     = "PLATEPATCH_AUTO_ORIENT"
	EnvPNGCompression = "PLATEPATCH_PNG_COMPRESSION"
	EnvJPEGQuality    = "PLATEPATCH_JPEG_QUALITY"
	EnvLogFile        = "PLATEPATCH_LOG_FILE"
)

type Config struct {
	Prefix     string `yaml:"prefix"`
	Format     string `yaml:"format"`
	Rows       int    `yaml:"rows"`
	Cols       int    `yaml:"cols"`
	Backend    string `yaml:"backend"`
	Compress   string `yaml:"compress"`
	PatchesDir string `yaml:"patches_dir"`
	AutoOrient bool   `yaml:"auto_orient"`

	// PNGCompression is one of default, none, fast, best.
	PNGCompression string `yaml:"png_compression"`
	JPEGQuality    int    `yaml:"jpeg_quality"`

	LogFile string `yaml:"log_file"`
}

// Error is a configuration value that failed validation.
type Error struct {
	Field  string
	Value  any
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s=%v: %s", e.Field, e.Value, e.Reason)
}

func Default() Config {
	return Config{
		Prefix:         plate.DefaultPrefix,
		Format:         platepatch.DefaultFormat,
		Rows:           platepatch.DefaultRows,
		Cols:           platepatch.DefaultCols,
		Backend:        "auto",
		Compress:       "none",
		PatchesDir:     plate.DefaultPatchesDir,
		PNGCompression: "default",
		JPEGQuality:    95,
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q err, %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q err, %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFile adds the variables of a .env file to the process environment
// without overriding variables that are already set. A missing default
// ".env" is not an error; a missing explicitly named file is.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env err, %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %q err, %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields with any PLATEPATCH_* environment variables.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: key, Value: v, Reason: "not an integer"}
		}
		*dst = n
		return nil
	}

	str(EnvFormat, &c.Format)
	str(EnvPrefix, &c.Prefix)
	str(EnvBackend, &c.Backend)
	str(EnvCompress, &c.Compress)
	str(EnvPatchesDir, &c.PatchesDir)
	str(EnvPNGCompression, &c.PNGCompression)
	str(EnvLogFile, &c.LogFile)
	for key, dst := range map[string]*int{
		EnvRows:        &c.Rows,
		EnvCols:        &c.Cols,
		EnvJPEGQuality: &c.JPEGQuality,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if v, ok := os.LookupEnv(EnvAutoOrient); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: EnvAutoOrient, Value: v, Reason: "not a boolean"}
		}
		c.AutoOrient = b
	}
	return nil
}

func (c Config) Validate() error {
	if c.Rows <= 0 {
		return &Error{Field: "rows", Value: c.Rows, Reason: "must be positive"}
	}
	if c.Cols <= 0 {
		return &Error{Field: "cols", Value: c.Cols, Reason: "must be positive"}
	}
	if strings.ContainsAny(c.Prefix, `/\`) {
		return &Error{Field: "prefix", Value: c.Prefix, Reason: "must not contain a path separator"}
	}
	if c.PatchesDir == "" || strings.ContainsAny(c.PatchesDir, `/\`) {
		return &Error{Field: "patches_dir", Value: c.PatchesDir, Reason: "must be a single directory name"}
	}
	format := strings.ToLower(strings.TrimPrefix(c.Format, "."))
	if _, err := imaging.FormatFromExtension(format); err != nil {
		return &Error{Field: "format", Value: c.Format, Reason: err.Error()}
	}
	backend, err := platepatch.ParseBackend(c.Backend)
	if err != nil {
		return &Error{Field: "backend", Value: c.Backend, Reason: err.Error()}
	}
	if backend == platepatch.BMPBackend && format != "bmp" {
		return &Error{Field: "backend", Value: c.Backend, Reason: "requires format bmp"}
	}
	if _, err := platepatch.ParseCompression(c.Compress); err != nil {
		return &Error{Field: "compress", Value: c.Compress, Reason: err.Error()}
	}
	if _, err := parsePNGCompression(c.PNGCompression); err != nil {
		return &Error{Field: "png_compression", Value: c.PNGCompression, Reason: err.Error()}
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return &Error{Field: "jpeg_quality", Value: c.JPEGQuality, Reason: "must be within 1-100"}
	}
	return nil
}

// Options converts c into slicing options. c must be valid.
func (c Config) Options(logger *zap.Logger) []platepatch.Option {
	backend, _ := platepatch.ParseBackend(c.Backend)
	compression, _ := platepatch.ParseCompression(c.Compress)
	level, _ := parsePNGCompression(c.PNGCompression)
	return []platepatch.Option{
		platepatch.WithGrid(c.Rows, c.Cols),
		platepatch.WithFormat(c.Format),
		platepatch.WithBackend(backend),
		platepatch.WithCompression(compression),
		platepatch.WithAutoOrient(c.AutoOrient),
		platepatch.WithPNGCompression(level),
		platepatch.WithJPEGQuality(c.JPEGQuality),
		platepatch.WithLogger(logger),
	}
}

func parsePNGCompression(s string) (png.CompressionLevel, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "fast":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	}
	return png.DefaultCompression, fmt.Errorf("unknown png compression %q", s)
}
