package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/widgetkit/flatdeps/internal/bundle"
	"github.com/widgetkit/flatdeps/internal/config"
	"github.com/widgetkit/flatdeps/internal/lister"
	"github.com/widgetkit/flatdeps/internal/logging"
	"github.com/widgetkit/flatdeps/internal/manifest"
	"github.com/widgetkit/flatdeps/internal/resource"
	"github.com/widgetkit/flatdeps/internal/watch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var (
		cfgFile string
		format  string
		cfg     *config.Config
		logger  *zap.Logger
	)

	rootCmd := &cobra.Command{
		Use:   "flatdeps",
		Short: "Flatten bower dependencies into a flat asset folder with a manifest",
		Long: `flatdeps walks the installed bower package tree, copies every package's
js and css entry files into <output>/js and <output>/css, and writes
<output>/map.json describing which assets each package contributes.

Run without a subcommand to bundle once.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			logger, err = logging.New(cfg.Verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is <dir>/flatdeps.yaml)")
	flags.StringP("dir", "d", ".", "project directory containing bower.json")
	flags.StringP("listing", "l", "", "read a saved \"bower list --json\" output instead of running bower")
	flags.StringP("output", "o", config.DefaultOutputDir, "output directory, relative to --dir")
	flags.StringP("base", "b", config.DefaultBasePath, "path prefix recorded in map.json")
	flags.IntP("workers", "w", 8, "parallel file copies")
	flags.String("bower", "bower", "bower command")
	flags.Bool("offline", false, "run bower list with --offline")
	flags.String("components", config.DefaultComponentsDir, "bower components directory, relative to --dir")
	flags.BoolP("verbose", "v", false, "verbose output")
	for _, name := range []string{"dir", "listing", "output", "base", "workers", "bower", "offline", "components", "verbose"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	runBundle := func(cmd *cobra.Command, args []string) error {
		res, err := bundleOnce(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s with %d js and %d css files\n",
			res.ManifestPath, len(res.JS), len(res.CSS))
		return nil
	}
	rootCmd.RunE = runBundle

	bundleCmd := &cobra.Command{
		Use:   "bundle",
		Short: "Copy assets and write map.json",
		Args:  cobra.NoArgs,
		RunE:  runBundle,
	}

	resourcesCmd := &cobra.Command{
		Use:   "resources [widget...]",
		Short: "Print the js and css a page needs for the given widgets",
		Long: `Reads <output>/map.json and prints the js and css paths needed to render
the named widgets, dependencies first. With no widgets every top-level
package is included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := manifest.ReadFile(cfg.OutputDir)
			if err != nil {
				return err
			}
			return printResources(cmd.OutOrStdout(), resource.Collect(root, args...), format)
		},
	}
	resourcesCmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, yaml")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Bundle again whenever bower.json or the components directory changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := []string{filepath.Join(cfg.Dir, "bower.json"), cfg.ComponentsDir}
			if cfg.Listing != "" {
				targets = append(targets, cfg.Listing)
			}
			w := watch.New(targets, watch.DefaultDebounce, logger)
			return w.Run(cmd.Context(), func(ctx context.Context) error {
				_, err := bundleOnce(ctx, cfg, logger)
				return err
			})
		},
	}

	rootCmd.AddCommand(bundleCmd, resourcesCmd, watchCmd)
	return rootCmd
}

func newLister(cfg *config.Config) lister.Lister {
	if cfg.Listing != "" {
		return lister.NewFileLister(cfg.Listing)
	}
	return lister.NewBowerLister(cfg.Bower, cfg.Dir, cfg.Offline)
}

func bundleOnce(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*bundle.Result, error) {
	res, err := bundle.Run(ctx, newLister(cfg), bundle.Options{
		OutputDir: cfg.OutputDir,
		BasePath:  cfg.BasePath,
		Workers:   cfg.Workers,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("bundling failed", zap.Error(err))
		return nil, err
	}
	logger.Info("all went well", zap.String("manifest", res.ManifestPath))
	return res, nil
}

func printResources(w io.Writer, res resource.Resources, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		fmt.Fprintln(w, "js:")
		for _, p := range res.JS {
			fmt.Fprintf(w, "  %s\n", p)
		}
		fmt.Fprintln(w, "css:")
		for _, p := range res.CSS {
			fmt.Fprintf(w, "  %s\n", p)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
