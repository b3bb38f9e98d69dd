package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Simplici0/renoprice/internal/catalog"
	"github.com/Simplici0/renoprice/internal/migrations"
	"github.com/Simplici0/renoprice/internal/seed"
)

type MigrateOptions struct {
	GlobalOptions
}

func NewCmdMigrate() *cobra.Command {
	o := &MigrateOptions{GlobalOptions: DefaultGlobalOptions()}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations.",
		Args:  cobra.NoArgs,
		RunE:  runE(o),
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *MigrateOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	database, err := o.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		return err
	}
	v, err := migrations.Version(database)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "database %s at schema version %d\n", o.DBPath, v)
	return nil
}

type SeedOptions struct {
	GlobalOptions
}

func NewCmdSeed() *cobra.Command {
	o := &SeedOptions{GlobalOptions: DefaultGlobalOptions()}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register RENO_API_KEYS and the price list baseline in the database.",
		Args:  cobra.NoArgs,
		RunE:  runE(o),
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *SeedOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	c, err := catalog.LoadFile(o.CatalogPath)
	if err != nil {
		return err
	}

	database, err := o.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := seed.Run(ctx, database, seed.Config{
		APIKeys:       seed.ParseAPIKeys(o.cfg.APIKeys),
		Catalog:       c,
		CatalogSource: o.CatalogPath,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seed complete: %d inserts, %d updates\n", stats.Inserts, stats.Updates)
	return nil
}
