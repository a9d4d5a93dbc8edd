// Package cli provides the command-line interface for lifetime
package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lifetime-go/lifetime/pkg/config"
	"github.com/lifetime-go/lifetime/pkg/logger"
)

// CLI encapsulates the command-line interface without global state
type CLI struct {
	config   *Config
	viper    *viper.Viper
	rootCmd  *cobra.Command
	console  *logger.Console
	output   io.Writer
	errorOut io.Writer
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	return NewCLIWithOutput(cfg, os.Stdout, os.Stderr)
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := &CLI{
		config:   cfg,
		viper:    viper.New(),
		output:   output,
		errorOut: errorOut,
		console:  logger.NewConsole(output, errorOut),
	}
	c.setupCommands()
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

// ExecuteWithVersion runs the CLI on the process arguments
func ExecuteWithVersion(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).Execute(os.Args[1:])
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "lifetime",
		Short: "Start and stop modules in dependency order",
		Long: `lifetime reads a manifest of modules and their dependencies, starts every
module after the modules it depends on, and stops them in reverse order on
shutdown. Independent modules start and stop concurrently.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initializeConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	c.rootCmd.SetOut(c.output)
	c.rootCmd.SetErr(c.errorOut)

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("lifetime v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newRunCmd())
	c.rootCmd.AddCommand(c.newPlanCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "manifest file (default: lifetime.yaml in the project root)")
	flags.StringVar(&c.config.ProjectRoot, "root", ".", "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "", "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.LogFile, "log-file", "", "also write logs to this file")
	flags.StringVar(&c.config.Walker, "walker", "", "walk strategy (memo, wave); overrides the manifest")
	flags.IntVar(&c.config.MaxConcurrency, "max-concurrency", -1, "bound concurrent module actions of the wave walker; overrides the manifest")

	for _, name := range []string{"config", "root", "verbosity", "log-file", "walker", "max-concurrency"} {
		_ = c.viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initializeConfig merges LIFETIME_* environment variables under the flags.
func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	c.viper.SetEnvPrefix("LIFETIME")
	c.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.viper.AutomaticEnv()

	c.config.ConfigFile = c.viper.GetString("config")
	c.config.ProjectRoot = c.viper.GetString("root")
	c.config.Verbosity = c.viper.GetString("verbosity")
	c.config.LogFile = c.viper.GetString("log-file")
	c.config.Walker = c.viper.GetString("walker")
	c.config.MaxConcurrency = c.viper.GetInt("max-concurrency")
	return nil
}

// newLogger builds the run logger. The verbosity flag wins over the
// manifest's logLevel.
func (c *CLI) newLogger(manifest *config.Config) logger.Logger {
	level := c.config.Verbosity
	if level == "" && manifest != nil {
		level = manifest.LogLevel
	}
	if level == "" {
		level = "info"
	}
	if f, ok := c.errorOut.(*os.File); ok && f == os.Stderr {
		return logger.CreateLogger(c.config.LogFile, level)
	}
	return logger.CreateLoggerWithOutput(level, c.errorOut)
}

func (c *CLI) loadManifest() (string, *config.Config, error) {
	path, err := c.config.ManifestPath()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return path, nil, err
	}
	return path, cfg, nil
}
