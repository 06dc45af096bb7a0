package server

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"sync"

	"github.com/mitchellh/cli"

	"github.com/projectcontour/contour-sub001/internal/common"
	"github.com/projectcontour/contour-sub001/internal/config"
	"github.com/projectcontour/contour-sub001/internal/graph"
)

type Command struct {
	UI     cli.Ui
	output io.Writer
	ctx    context.Context

	flagConfig         string // path to a YAML configuration file
	flagStoreDirectory string // directory holding routing document files
	flagMetricsAddress string // listen address for prometheus metrics
	flagDebugAddress   string // listen address for debug endpoints
	flagRouteSortMode  string // route ordering within a virtual host

	// Logging
	flagLogLevel string
	flagLogJSON  bool

	flagSet *flag.FlagSet
	once    sync.Once
}

// New returns a new server command
func New(ctx context.Context, ui cli.Ui, logOutput io.Writer) *Command {
	return &Command{UI: ui, output: logOutput, ctx: ctx}
}

func (c *Command) init() {
	c.flagSet = flag.NewFlagSet("", flag.ContinueOnError)
	c.flagSet.StringVar(&c.flagConfig, "config", "", "Path to a YAML configuration file.")
	c.flagSet.StringVar(&c.flagStoreDirectory, "store-directory", "", "Directory holding routing document files.")
	c.flagSet.StringVar(&c.flagMetricsAddress, "metrics-address", "", "Listen address for prometheus metrics. If not set, metrics are not served.")
	c.flagSet.StringVar(&c.flagDebugAddress, "debug-address", "", "Listen address for the debug and pprof endpoints. If not set, debugging is not served.")
	c.flagSet.StringVar(&c.flagRouteSortMode, "route-sort-mode", "",
		"Route ordering within a virtual host. Supported values are \"specificity\" and \"declaration\".")

	{
		// Logging
		c.flagSet.StringVar(&c.flagLogLevel, "log-level", "",
			"Log verbosity level. Supported values (in order of detail) are \"trace\", "+
				"\"debug\", \"info\", \"warn\", and \"error\".")
		c.flagSet.BoolVar(&c.flagLogJSON, "log-json", false,
			"Enable or disable JSON output format for logging.")
	}
}

func (c *Command) Run(args []string) int {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	output := c.output
	if output == nil {
		output = os.Stderr
	}
	return c.run(ctx, output, args)
}

func (c *Command) run(ctx context.Context, output io.Writer, args []string) int {
	c.once.Do(c.init)
	c.flagSet.SetOutput(output)

	if err := c.flagSet.Parse(args); err != nil {
		return 1
	}

	cfg, err := c.loadConfig()
	if err != nil {
		c.UI.Error("There was an error loading configuration:\n\t" + err.Error())
		return 1
	}

	logger := common.CreateLogger(output, cfg.LogLevel, cfg.LogJSON, "routegraph-server")

	return RunServer(ServerConfig{
		Context: ctx,
		Logger:  logger,
		Config:  cfg,
	})
}

// loadConfig merges the configuration file, when given, with the command
// line. Flags set explicitly win over the file.
func (c *Command) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if c.flagConfig != "" {
		loaded, err := config.Load(c.flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var err error
	c.flagSet.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "store-directory":
			cfg.StoreDirectory = c.flagStoreDirectory
		case "metrics-address":
			cfg.MetricsAddress = c.flagMetricsAddress
		case "debug-address":
			cfg.DebugAddress = c.flagDebugAddress
		case "route-sort-mode":
			cfg.RouteSortMode, err = graph.ParseSortMode(c.flagRouteSortMode)
		case "log-level":
			cfg.LogLevel = c.flagLogLevel
		case "log-json":
			cfg.LogJSON = c.flagLogJSON
		}
	})
	if err != nil {
		return nil, err
	}

	if cfg.StoreDirectory == "" {
		return nil, errors.New("a store directory is required; set -store-directory or store.directory in the configuration file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Command) Synopsis() string {
	return "Starts the routegraph control plane server"
}

func (c *Command) Help() string {
	c.once.Do(c.init)
	return common.FlagUsage(`
Usage: routegraph server [options]

  Starts the routing graph compiler. The server loads routing documents
  from the store directory, watches for edits, and continuously compiles
  them into a validated routing graph snapshot.
`, c.flagSet)
}
