package main

import (
	"encoding/json"
	"fmt"
	"os"

	"alphaforge/internal/alpha"
	"alphaforge/internal/logging"
	"alphaforge/internal/submission"

	"github.com/spf13/cobra"
)

var (
	fetchOut string

	submitBatchSize  int
	submitMaxItems   int
	submitMinSharpe  float64
	submitMinFitness float64
)

// fetchCmd dumps the filtered candidate population
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "List unsubmitted alphas that pass the fetch thresholds",
	RunE:  runFetch,
}

// submitCmd promotes passing alphas to production
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit unsubmitted alphas that pass the submit thresholds",
	Long: `Pages through the unsubmitted alphas, newest first, and from every page
submits up to --batch-size alphas that meet the thresholds. Each submission is
monitored until the service answers and the answer is written to the outcome log.`,
	RunE: runSubmit,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "Output file (default: stdout)")

	submitCmd.Flags().IntVar(&submitBatchSize, "batch-size", 0, "Submissions per page (default: submit.batch_size)")
	submitCmd.Flags().IntVar(&submitMaxItems, "max-items", 0, "Alphas to page through (default: submit.max_items)")
	submitCmd.Flags().Float64Var(&submitMinSharpe, "min-sharpe", -1, "Sharpe threshold (default: submit.thresholds)")
	submitCmd.Flags().Float64Var(&submitMinFitness, "min-fitness", -1, "Fitness threshold (default: submit.thresholds)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	svc, err := connect(ctx)
	if err != nil {
		return err
	}

	fetcher := newFetcher(svc.client, cfg.Fetch.MaxItems, cfg.Fetch.PageSize, cfg.Fetch.MaxRetries, cfg.GetFetchRetryDelay())
	found, err := fetcher.Fetch(ctx, svc.session, cfg.Fetch.Thresholds.Allows)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(found, "", "  ")
	if err != nil {
		return err
	}
	if fetchOut == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(fetchOut, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", fetchOut, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d alphas to %s\n", len(found), fetchOut)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	svc, err := connect(ctx)
	if err != nil {
		return err
	}
	lg, err := openLedger()
	if err != nil {
		return err
	}
	defer lg.Close()

	th := submitThresholds()
	maxItems := cfg.Submit.MaxItems
	if submitMaxItems > 0 {
		maxItems = submitMaxItems
	}
	// Page fetch failures are retried until the service answers.
	pages := newFetcher(svc.client, maxItems, cfg.Submit.PageSize, 0, cfg.GetSubmitRetryDelay())

	opts := submission.Options{
		MonitorAttempts: cfg.Submit.MonitorAttempts,
		MonitorInterval: cfg.GetMonitorInterval(),
		BatchSize:       cfg.Submit.BatchSize,
		Logger:          logs.Get(logging.CategorySubmit),
	}
	if submitBatchSize > 0 {
		opts.BatchSize = submitBatchSize
	}

	report, err := submission.New(svc.client, lg, opts).SubmitFiltered(ctx, svc.session, pages, th)
	fmt.Fprint(cmd.OutOrStdout(), renderSubmissionReport(report))
	return err
}

// submitThresholds applies the flag overrides; the return threshold is not
// used when submitting.
func submitThresholds() alpha.Thresholds {
	th := cfg.Submit.Thresholds
	if submitMinSharpe >= 0 {
		th.MinSharpe = submitMinSharpe
	}
	if submitMinFitness >= 0 {
		th.MinFitness = submitMinFitness
	}
	th.MinReturn = 0
	return th
}
