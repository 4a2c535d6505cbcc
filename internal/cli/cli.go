package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/compkgs/pkg/buildinfo"
	"github.com/matzehuels/compkgs/pkg/cache"
	"github.com/matzehuels/compkgs/pkg/config"
	"github.com/matzehuels/compkgs/pkg/pipeline"
	"github.com/matzehuels/compkgs/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "compkgs"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath  string
	nixpkgsRoot string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "compkgs maps Home Assistant components to nixpkgs Python packages",
		Long: `compkgs resolves the Python requirements of every Home Assistant component,
including those of the components it depends on, against a nixpkgs Python
package set and writes component-packages.nix for the home-assistant
derivation.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/compkgs/config.toml)")
	root.PersistentFlags().StringVarP(&c.nixpkgsRoot, "nixpkgs", "C", "", "nixpkgs checkout (overrides nixpkgs_root)")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.closureCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the configuration file and applies global flags.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.nixpkgsRoot != "" {
		cfg.NixpkgsRoot = c.nixpkgsRoot
	}
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. The caller closes it.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache bool) (*pipeline.Runner, error) {
	ch, err := openCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return pipeline.NewRunner(ch, st, c.Logger), nil
}

func openCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	return cache.Open(ctx, cache.Config{
		Backend:  cfg.Cache.Backend,
		Dir:      cfg.Cache.Dir,
		RedisURL: cfg.Cache.RedisURL,
		Prefix:   cfg.Cache.Prefix,
	})
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	return store.Open(ctx, store.Config{
		Backend:       cfg.Store.Backend,
		Dir:           cfg.Store.Dir,
		MongoURI:      cfg.Store.MongoURI,
		MongoDatabase: cfg.Store.MongoDatabase,
	})
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the file cache directory: the configured one, or the XDG
// default (~/.cache/compkgs/).
func cacheDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cache.DefaultDir()
}
