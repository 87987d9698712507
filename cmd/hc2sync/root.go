package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/hc2-sync/internal/clock"
	"github.com/nerrad567/hc2-sync/internal/controller"
	"github.com/nerrad567/hc2-sync/internal/hc2"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/config"
	"github.com/nerrad567/hc2-sync/internal/infrastructure/logging"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv selects the configuration file when --config is not given.
const configEnv = "HC2SYNC_CONFIG"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	host       string
	port       int
	user       string
	password   string
	debug      bool
	jsonOut    bool
	noColor    bool
}

// app carries the flags and the seams tests replace.
type app struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer

	// transport and clock override the client's defaults when set.
	transport controller.Transport
	clock     clock.Clock
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}

// newRootCmd builds the command tree.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "hc2sync",
		Short:         "Fibaro HC2 directory, event stream and relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "config file (default $"+configEnv+" or "+defaultConfigPath+")")
	flags.StringVar(&a.opts.host, "host", "", "controller host")
	flags.IntVar(&a.opts.port, "port", 0, "controller port")
	flags.StringVar(&a.opts.user, "user", "", "controller user")
	flags.StringVar(&a.opts.password, "password", "", "controller password")
	flags.BoolVar(&a.opts.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&a.opts.jsonOut, "json", false, "print JSON instead of text")
	flags.BoolVar(&a.opts.noColor, "no-color", false, "disable colour output")

	root.AddGroup(
		&cobra.Group{ID: "inspect", Title: "Inspection Commands:"},
		&cobra.Group{ID: "daemon", Title: "Daemon Commands:"},
	)

	root.AddCommand(
		a.newRunCmd(),
		a.newRoomsCmd(),
		a.newDevicesCmd(),
		a.newIdentifiersCmd(),
		a.newActionsCmd(),
		a.newPoweredCmd(),
		a.newEventsCmd(),
		a.newCallCmd(),
		a.newVersionCmd(),
	)
	return root
}

// configPath returns --config, then $HC2SYNC_CONFIG, then the default.
func (a *app) configPath() string {
	if a.opts.configPath != "" {
		return a.opts.configPath
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads the configuration and applies flag overrides.
//
// Parameters:
//   - optional: Allow a missing file (one-shot commands)
//
// Returns:
//   - *config.Config: Validated configuration
//   - error: If loading or validation fails
func (a *app) loadConfig(optional bool) (*config.Config, error) {
	load := config.Load
	if optional {
		load = config.LoadOptional
	}
	cfg, err := load(a.configPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if a.opts.host != "" {
		cfg.Controller.Host = a.opts.host
	}
	if a.opts.port != 0 {
		cfg.Controller.Port = a.opts.port
	}
	if a.opts.user != "" {
		cfg.Controller.User = a.opts.user
	}
	if a.opts.password != "" {
		cfg.Controller.Password = a.opts.password
	}
	if a.opts.debug {
		cfg.Controller.Debug = true
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}
	return cfg, nil
}

// cliLogger logs to stderr so stdout stays parseable. Only warnings and
// errors are shown unless --debug is set.
func (a *app) cliLogger(cfg *config.Config) *logging.Logger {
	logCfg := config.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"}
	if cfg.Controller.Debug {
		logCfg.Level = "debug"
	}
	return logging.NewWithWriter(logCfg, version, a.stderr)
}

// newClient builds a controller client from cfg.
func (a *app) newClient(cfg *config.Config, log *logging.Logger) *hc2.Client {
	return hc2.New(hc2.Options{
		Host:            cfg.Controller.Host,
		Port:            cfg.Controller.Port,
		User:            cfg.Controller.User,
		Password:        cfg.Controller.Password,
		ConnectTimeout:  cfg.ConnectTimeout(),
		PollingInterval: cfg.PollingInterval(),
		PollingTimeout:  cfg.PollingTimeout(),
		Debug:           cfg.Controller.Debug,
		Logger:          log,
		Transport:       a.transport,
		Clock:           a.clock,
	})
}

// oneShot loads the optional config and returns a client and printer.
// The caller must Close the client.
func (a *app) oneShot() (*hc2.Client, *printer, error) {
	cfg, err := a.loadConfig(true)
	if err != nil {
		return nil, nil, err
	}
	client := a.newClient(cfg, a.cliLogger(cfg))
	return client, newPrinter(a.stdout, a.opts.jsonOut, a.opts.noColor), nil
}
