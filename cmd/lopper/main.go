package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/juju/loggo/v2"
	"github.com/spf13/cobra"

	"github.com/jward/lopper"
	"github.com/jward/lopper/internal/config"
	"github.com/jward/lopper/internal/journal"
	"github.com/jward/lopper/internal/provision"
	"github.com/jward/lopper/internal/scaffold"
)

const version = "0.1.0"

var (
	flagConfig string
	flagFormat string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "lopper",
	Short:         "Provision repository checkouts and cut feature modules out of them",
	Long:          "Lopper clones a repository into a working copy and excises named feature modules: the module directory plus every import, declaration entry and route that refers to it.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: $LOPPER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(modulesCmd)
	rootCmd.AddCommand(exciseCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

// loadConfig reads the configuration and applies its log level.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if err := configureLogging(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// configureLogging sets the level of the lopper logger hierarchy.
func configureLogging(level string) error {
	if level == "" {
		return nil
	}
	return loggo.ConfigureLoggers("lopper=" + strings.ToUpper(level))
}

// engineOptions maps the configuration onto engine options.
func engineOptions(cfg config.Config) []lopper.Option {
	return []lopper.Option{
		lopper.WithModuleRoot(cfg.ModuleRoot),
		lopper.WithExtensions(cfg.Extensions...),
		lopper.WithScanWorkers(cfg.ScanWorkers),
		lopper.WithRequestTimeout(time.Duration(cfg.RequestTimeout)),
	}
}

// newService builds the scaffold service from the configuration. The returned
// cleanup closes the journal and must be called once the service is done.
func newService(cfg config.Config) (*scaffold.Service, func(), error) {
	var j *journal.Journal
	if cfg.JournalPath != "" {
		var err error
		j, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening journal: %w", err)
		}
	}

	eng := lopper.New(engineOptions(cfg)...)
	prov := provision.New(cfg.CloneDir)
	cleanup := func() {
		if j != nil {
			_ = j.Close()
		}
	}
	return scaffold.New(prov, eng, j), cleanup, nil
}
