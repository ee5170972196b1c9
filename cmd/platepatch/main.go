package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sebnyberg/platepatch/internal/config"
	"github.com/sebnyberg/platepatch/internal/logging"
)

var (
	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:               "platepatch",
	Short:             "Slice microscopy plate images into a grid of patch images",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("env-file", "", "Env file with PLATEPATCH_* variables (default .env if present)")
	pf.String("log-file", "", "Also write JSON logs to this file, with rotation")
	pf.Bool("debug", false, "Log at debug level")

	pf.String("prefix", "", "Patch file name prefix")
	pf.String("format", "", "Patch image format (png, jpg, bmp, tiff, gif)")
	pf.Int("rows", 0, "Grid rows")
	pf.Int("cols", 0, "Grid columns")
	pf.String("backend", "", "Cropping backend (auto, image, bmp, vips)")
	pf.String("compress", "", "Patch file compression (none, zstd, seekable-zstd)")
	pf.Bool("auto-orient", false, "Apply EXIF orientation before slicing")
	pf.String("png-compression", "", "PNG compression (default, none, fast, best)")
	pf.Int("jpeg-quality", 0, "JPEG quality (1-100)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	envFile, _ := flags.GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	configPath, _ := flags.GetString("config")
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	str("prefix", &cfg.Prefix)
	str("format", &cfg.Format)
	str("backend", &cfg.Backend)
	str("compress", &cfg.Compress)
	str("png-compression", &cfg.PNGCompression)
	str("log-file", &cfg.LogFile)
	num("rows", &cfg.Rows)
	num("cols", &cfg.Cols)
	num("jpeg-quality", &cfg.JPEGQuality)
	if flags.Changed("auto-orient") {
		cfg.AutoOrient, _ = flags.GetBool("auto-orient")
	}
	if flags.Lookup("patches-dir") != nil {
		str("patches-dir", &cfg.PatchesDir)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	debug, _ := flags.GetBool("debug")
	logger = logging.New(debug, cfg.LogFile)
	return nil
}
