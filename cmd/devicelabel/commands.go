package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devicelabel-core/internal/audit"
	"github.com/nerrad567/devicelabel-core/internal/catalog"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/logging"
	"github.com/nerrad567/devicelabel-core/internal/inventory"
	"github.com/nerrad567/devicelabel-core/internal/matching"
	"github.com/nerrad567/devicelabel-core/internal/meraki"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var down, status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply pending database migrations. Every command migrates on start, so
this is mostly useful with --status, or with --down to roll back the
newest migration during development.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()
			out := cmd.OutOrStdout()

			if down {
				m, err := a.db.MigrateDown(cmd.Context())
				if err != nil {
					return err
				}
				if m == nil {
					fmt.Fprintln(out, "no migrations applied")
					return nil
				}
				fmt.Fprintf(out, "rolled back %s_%s\n", m.Version, m.Name)
				return nil
			}

			if status {
				migrations, err := a.db.Status(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, m := range migrations {
					applied := "pending"
					if m.AppliedAt != nil {
						applied = m.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", m.Version, m.Name, applied)
				}
				return w.Flush()
			}

			fmt.Fprintf(out, "database %s is up to date\n", a.db.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the newest applied migration")
	cmd.Flags().BoolVar(&status, "status", false, "list migrations and when they were applied")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the built-in system template on an empty catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			seeded, err := catalog.SeedSystem(cmd.Context(), catalog.NewSQLiteRepository(a.db.DB))
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "system template created")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "global templates already present, nothing to do")
			}
			return nil
		},
	}
}

// resolveOutput is printed by the resolve command.
type resolveOutput struct {
	Device     matching.Device      `json:"device"`
	Match      matching.MatchResult `json:"match"`
	Alternates []catalog.Template   `json:"alternates,omitempty"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		tenantID   string
		device     matching.Device
		alternates bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the label template for one device",
		Long: `Run the matching cascade for a device described by flags and print the
result as JSON. The cache is bypassed.`,
		Example: `  devicelabel resolve --tenant conn-acme --model MS225-48FP --product-type switch`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(device.Model) == "" && strings.TrimSpace(device.ProductType) == "" {
				return errors.New("--model or --product-type is required")
			}

			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			resolver := matching.NewResolver(catalog.NewSQLiteRepository(a.db.DB), nil)
			resolver.SetLogger(a.log)

			result, err := resolver.Resolve(cmd.Context(), device, tenantID)
			if err != nil {
				return err
			}

			out := resolveOutput{Device: device, Match: result}
			if alternates {
				excluded := result.Template.ID
				if out.Alternates, err = resolver.FindAlternates(cmd.Context(), device, tenantID, &excluded); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "connection ID to resolve for (empty sees global templates only)")
	cmd.Flags().StringVar(&device.Model, "model", "", "device model, e.g. MR32")
	cmd.Flags().StringVar(&device.ProductType, "product-type", "", "Meraki product type, e.g. wireless")
	cmd.Flags().StringVar(&device.Serial, "serial", "", "device serial")
	cmd.Flags().BoolVar(&alternates, "alternates", false, "also list the other visible templates")
	return cmd
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var (
		tenantID    string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh device inventories from the Meraki Dashboard API",
		Long: `Fetch the devices of one connection (--tenant) or of every connection and
replace the stored inventory. Each sync is recorded in the audit log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			client := meraki.NewClient(a.cfg.Meraki)
			client.SetLogger(a.log)

			syncer := inventory.NewSyncer(inventory.NewSQLiteRepository(a.db.DB), client)
			syncer.SetLogger(a.log)
			syncer.SetAudit(audit.NewSQLiteRepository(a.db.DB), audit.SourceCLI)

			out := cmd.OutOrStdout()
			if tenantID != "" {
				result, err := syncer.Sync(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				printSyncResult(out, result)
				return nil
			}

			results, err := syncer.SyncAll(cmd.Context(), concurrency)
			for _, result := range results {
				printSyncResult(out, result)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "connection ID to sync (default: all connections)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "connections synced in parallel")
	return cmd
}

func printSyncResult(w io.Writer, r inventory.SyncResult) {
	if r.Error != "" {
		fmt.Fprintf(w, "%s: failed: %s\n", r.ConnectionID, r.Error)
		return
	}
	fmt.Fprintf(w, "%s: %d devices, %d removed (%s)\n",
		r.ConnectionID, r.Devices, r.Removed, r.Duration.Round(time.Millisecond))
}

func newConnectionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Manage Meraki connections (tenants)",
	}

	var conn inventory.Connection
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a Meraki organization as a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := inventory.NewSQLiteRepository(a.db.DB).CreateConnection(cmd.Context(), &conn); err != nil {
				return err
			}
			if err := audit.NewSQLiteRepository(a.db.DB).Create(cmd.Context(), &audit.AuditLog{
				TenantID:   conn.ID,
				Action:     audit.ActionCreate,
				EntityType: audit.EntityConnection,
				EntityID:   conn.ID,
				Source:     audit.SourceCLI,
				Details:    map[string]any{"meraki_org_id": conn.OrganizationID},
			}); err != nil {
				a.log.Warn("audit log write failed", "error", err)
			}
			a.log.Tenant(conn.ID).Info("connection created",
				"meraki_org_id", conn.OrganizationID,
				"api_key", logging.RedactKey(conn.APIKey),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "connection %s created\n", conn.ID)
			return nil
		},
	}
	add.Flags().StringVar(&conn.ID, "id", "", "connection ID (lowercase, hyphenated)")
	add.Flags().StringVar(&conn.Name, "name", "", "display name")
	add.Flags().StringVar(&conn.OrganizationID, "org", "", "Meraki organization ID")
	add.Flags().StringVar(&conn.APIKey, "api-key", "", "Meraki Dashboard API key")
	for _, name := range []string{"id", "name", "org", "api-key"} {
		_ = add.MarkFlagRequired(name)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			conns, err := inventory.NewSQLiteRepository(a.db.DB).ListConnections(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tORG\tLAST SYNC")
			for _, c := range conns {
				lastSync := "never"
				if c.LastSyncedAt != nil {
					lastSync = c.LastSyncedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.OrganizationID, lastSync)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and prune the audit trail",
	}

	var (
		filter audit.Filter
		since  time.Duration
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "Print audit entries as JSON, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			result, err := audit.NewSQLiteRepository(a.db.DB).List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	list.Flags().StringVar(&filter.TenantID, "tenant", "", "only entries for this connection")
	list.Flags().StringVar(&filter.Action, "action", "", "only entries with this action")
	list.Flags().DurationVar(&since, "since", 0, "only entries newer than this, e.g. 24h")
	list.Flags().IntVar(&filter.Limit, "limit", audit.DefaultLimit, "maximum entries to print")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}

			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			repo := audit.NewSQLiteRepository(a.db.DB)
			n, err := repo.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if err := repo.Create(cmd.Context(), &audit.AuditLog{
				Action:     audit.ActionPrune,
				EntityType: audit.EntityAuditLog,
				Source:     audit.SourceCLI,
				Details:    map[string]any{"deleted": n, "older_than": olderThan.String()},
			}); err != nil {
				a.log.Warn("audit log write failed", "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d audit entries deleted\n", n)
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "age of the newest entry to delete")

	cmd.AddCommand(list, prune)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
