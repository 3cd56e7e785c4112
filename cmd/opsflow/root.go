package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/petrijr/opsflow"
	"github.com/petrijr/opsflow/internal/logging"
)

// flagKeys maps CLI flags onto configuration paths. Only flags the user set
// explicitly override the environment.
var flagKeys = map[string]string{
	"addr":       "http.addr",
	"store":      "store.driver",
	"store-dsn":  "store.dsn",
	"bus":        "bus.driver",
	"redis-addr": "bus.redis_addr",
	"log-level":  "log.level",
	"log-json":   "log.json",
	"log-source": "log.source",
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "opsflow",
		Short:         "Event-triggered workflow orchestrator for order and inventory operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "Write logs as JSON")
	pf.Bool("log-source", false, "Include source locations in logs")
	pf.String("store", "memory", "Workflow store driver (memory, redis, sqlite, postgres, mongo)")
	pf.String("store-dsn", "", "Workflow store connection string or file path")
	pf.String("bus", "memory", "Event bus driver (memory, redis)")
	pf.String("redis-addr", "", "Redis address for the event bus")

	root.AddCommand(newServeCmd(), newImportCmd(), newSimulateCmd())
	return root
}

// loadConfig builds the configuration from defaults, OPSFLOW_ variables and
// the flags set on cmd, and installs the configured logger.
func loadConfig(cmd *cobra.Command) (*opsflow.Config, *slog.Logger, error) {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		overrides[key] = f.Value.String()
	}

	cfg, err := opsflow.LoadConfig(overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		JSON:   cfg.Log.JSON,
		Source: cfg.Log.Source,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}
