package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Simplici0/renoprice/internal/catalog"
	"github.com/Simplici0/renoprice/internal/store"
)

type RefreshOptions struct {
	GlobalOptions

	Factor string
	Audit  bool
	DryRun bool

	factor decimal.Decimal
	now    func() time.Time
}

func DefaultRefreshOptions() *RefreshOptions {
	return &RefreshOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Factor:        catalog.AppreciationFactor.String(),
		Audit:         true,
		now:           time.Now,
	}
}

func NewCmdRefresh() *cobra.Command {
	o := DefaultRefreshOptions()
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Apply the periodic price appreciation to the price list file.",
		Long: `Multiply every unit price in the price list by the appreciation factor, round to
cents, stamp last_refreshed with today's date and write the file back. The refresh is
recorded in the quote database unless --audit=false.`,
		Args: cobra.NoArgs,
		RunE: runE(o),
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *RefreshOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Factor, "factor", o.Factor, "Multiplier applied to every unit price")
	fs.BoolVar(&o.Audit, "audit", o.Audit, "Record the refresh in the price_refreshes table")
	fs.BoolVar(&o.DryRun, "dry-run", o.DryRun, "Print the refreshed prices without writing the file or the audit record")
}

func (o *RefreshOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	f, err := decimal.NewFromString(o.Factor)
	if err != nil {
		return fmt.Errorf("invalid --factor %q: %w", o.Factor, err)
	}
	if !f.IsPositive() {
		return fmt.Errorf("--factor must be positive, got %s", o.Factor)
	}
	o.factor = f
	return nil
}

func (o *RefreshOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	if o.DryRun {
		return o.preview(cmd)
	}

	res, err := catalog.RefreshFile(o.CatalogPath, o.factor, o.now())
	if err != nil {
		return err
	}
	zap.S().Named("refresh").Infow("price list refreshed",
		"path", o.CatalogPath, "factor", res.Factor.String(), "job_types", res.JobTypes, "refreshed_on", res.RefreshedOn)

	if o.Audit {
		database, err := o.openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		if err := store.New(database).RecordRefresh(ctx, res, o.CatalogPath); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d job types in %s (x%s, %s)\n",
		res.JobTypes, o.CatalogPath, res.Factor.String(), res.RefreshedOn)
	return nil
}

func (o *RefreshOptions) preview(cmd *cobra.Command) error {
	c, err := catalog.LoadFile(o.CatalogPath)
	if err != nil {
		return err
	}
	refreshed := catalog.Appreciate(c, o.factor, o.now())

	jobTypes := make([]string, 0, len(c.BaseRates))
	for jobType := range c.BaseRates {
		jobTypes = append(jobTypes, jobType)
	}
	sort.Strings(jobTypes)

	w := cmd.OutOrStdout()
	for _, jobType := range jobTypes {
		before, after := c.BaseRates[jobType], refreshed.BaseRates[jobType]
		fmt.Fprintf(w, "%s\t%s\t%v -> %v\n", jobType, after.Unit, before.UnitPrice, after.UnitPrice)
	}
	fmt.Fprintf(w, "dry run: %d job types would be refreshed (x%s, %s)\n",
		len(jobTypes), o.factor.String(), refreshed.LastRefreshed)
	return nil
}
