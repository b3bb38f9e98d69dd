package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Simplici0/renoprice/internal/api"
	"github.com/Simplici0/renoprice/internal/catalog"
	"github.com/Simplici0/renoprice/internal/export"
	"github.com/Simplici0/renoprice/internal/pricing"
)

const (
	jsonFormat = "json"
	csvFormat  = "csv"
)

var legalOutputTypes = []string{jsonFormat, csvFormat}

type EstimateOptions struct {
	GlobalOptions

	File   string
	Format string
	Strict bool
	Policy string
}

func DefaultEstimateOptions() *EstimateOptions {
	return &EstimateOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Format:        jsonFormat,
	}
}

func NewCmdEstimate() *cobra.Command {
	o := DefaultEstimateOptions()
	cmd := &cobra.Command{
		Use:   "estimate --file jobs.json",
		Short: "Price a batch of jobs from a JSON file without storing it.",
		Long: `Price the jobs in a JSON file against the price list and print the batch result.
The file holds either {"jobs": [...]} or a bare array of jobs, each shaped like the
POST /estimate body.`,
		Args: cobra.NoArgs,
		RunE: runE(o),
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *EstimateOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.File, "file", "f", o.File, "JSON file with the jobs to price")
	fs.StringVarP(&o.Format, "format", "o", o.Format, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.BoolVar(&o.Strict, "strict", o.Strict, "Fail on job types missing from the price list instead of estimating them")
	fs.StringVar(&o.Policy, "duration-policy", o.Policy, "Batch duration policy: overlap or sequential (default $RENO_DURATION_POLICY)")
}

func (o *EstimateOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	if o.Policy == "" {
		o.Policy = o.cfg.DurationPolicy
	}
	if !cmd.Flags().Changed("strict") {
		o.Strict = o.cfg.StrictJobTypes
	}
	return nil
}

func (o *EstimateOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.File == "" {
		return fmt.Errorf("--file is required")
	}
	if !slices.Contains(legalOutputTypes, o.Format) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	if _, err := pricing.ParseDurationPolicy(o.Policy); err != nil {
		return err
	}
	return nil
}

func (o *EstimateOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	req, err := readBatchFile(o.File)
	if err != nil {
		return err
	}
	if err := api.NewValidator().Struct(req); err != nil {
		return fmt.Errorf("%s: %w", o.File, err)
	}

	c, err := catalog.LoadFile(o.CatalogPath)
	if err != nil {
		return err
	}
	policy, _ := pricing.ParseDurationPolicy(o.Policy)
	estimator := pricing.New(catalog.NewStore(c, nil),
		pricing.WithStrictJobTypes(o.Strict),
		pricing.WithDurationPolicy(policy),
	)

	res, err := estimator.EstimateBatch(req.JobRequests())
	if err != nil {
		return fmt.Errorf("estimate %s: %w", o.File, err)
	}

	out := cmd.OutOrStdout()
	if o.Format == csvFormat {
		return export.WriteBatchCSV(out, res)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode batch result: %w", err)
	}
	return nil
}

func readBatchFile(path string) (api.BatchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.BatchRequest{}, fmt.Errorf("read jobs file: %w", err)
	}

	var req api.BatchRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &req.Jobs)
	} else {
		err = json.Unmarshal(trimmed, &req)
	}
	if err != nil {
		return api.BatchRequest{}, fmt.Errorf("decode jobs file %s: %w", path, err)
	}
	return req, nil
}
