// Package cli implements the renoctl commands.
package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Simplici0/renoprice/internal/config"
	"github.com/Simplici0/renoprice/internal/db"
	"github.com/Simplici0/renoprice/internal/log"
)

// GlobalOptions are shared by every command. Empty flag values fall back to RENO_*
// configuration.
type GlobalOptions struct {
	DBPath      string
	CatalogPath string

	cfg config.Config
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.DBPath, "db", o.DBPath, "Path to the SQLite database (default $RENO_DB_PATH)")
	fs.StringVar(&o.CatalogPath, "catalog", o.CatalogPath, "Path to the price list JSON (default $RENO_CATALOG_PATH)")
}

// Complete loads configuration, installs the global logger and fills unset flags.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o.cfg = cfg

	logger, err := log.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	if o.DBPath == "" {
		o.DBPath = cfg.DBPath
	}
	if o.CatalogPath == "" {
		o.CatalogPath = cfg.CatalogPath
	}
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	return nil
}

func (o *GlobalOptions) openDB() (*sql.DB, error) {
	database, err := db.Open(o.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", o.DBPath, err)
	}
	return database, nil
}

type runner interface {
	Complete(cmd *cobra.Command, args []string) error
	Validate(args []string) error
	Run(ctx context.Context, cmd *cobra.Command, args []string) error
}

func runE(o runner) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := o.Complete(cmd, args); err != nil {
			return err
		}
		if err := o.Validate(args); err != nil {
			return err
		}
		return o.Run(cmd.Context(), cmd, args)
	}
}

// NewRootCommand builds the renoctl command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "renoctl",
		Short:        "renoctl prices renovation jobs and maintains the price list and quote database.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(NewCmdEstimate())
	cmd.AddCommand(NewCmdRefresh())
	cmd.AddCommand(NewCmdMigrate())
	cmd.AddCommand(NewCmdSeed())
	return cmd
}
