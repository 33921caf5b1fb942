// devicelabel resolves which label template to print for each Meraki device
// of a tenant, and serves catalog authoring, inventory sync and export over
// HTTP.
//
// Usage:
//
//	devicelabel serve                 # default when no command is given
//	devicelabel migrate [--status | --down]
//	devicelabel seed
//	devicelabel resolve --tenant conn-acme --model MR32 --product-type wireless
//	devicelabel sync [--tenant conn-acme]
//	devicelabel connections add|list
//	devicelabel audit list|prune
//
// The config file is taken from --config, then DEVICELABEL_CONFIG, then
// configs/config.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/config"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/database"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/logging"
	_ "github.com/nerrad567/devicelabel-core/migrations"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the default config path.
const configEnvVar = "DEVICELABEL_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "devicelabel",
		Short: "Label template matching for Meraki device inventories",
		Long: `devicelabel picks a label template for every device of a Meraki
organization using model mappings, type mappings, product-type filters and
tenant or system defaults, and caches each result for a fixed TTL.

Without a command it runs the HTTP service (same as "devicelabel serve").`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newResolveCmd(opts),
		newSyncCmd(opts),
		newConnectionsCmd(opts),
		newAuditCmd(opts),
	)
	return root
}

// getConfigPath returns the flag value, then DEVICELABEL_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// app holds what every command needs after bootstrapping.
type app struct {
	cfg *config.Config
	log *logging.Logger
	db  *database.DB
}

// bootstrap loads config, builds the logger and opens and migrates the database.
// The caller closes app.db.
func bootstrap(ctx context.Context, opts *rootOptions) (*app, error) {
	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded", "path", configPath)

	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // error path; the migration error is returned
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &app{cfg: cfg, log: log, db: db}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}
