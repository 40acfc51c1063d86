package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"alphaforge/internal/alpha"
	"alphaforge/internal/brain"
	"alphaforge/internal/candidates"
	"alphaforge/internal/ledger"
	"alphaforge/internal/logging"
	"alphaforge/internal/simulation"
	"alphaforge/internal/variation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runOut    string
	runDryRun bool

	seedDatasetA string
	seedSearchA  string
	seedDatasetB string
	seedSearchB  string
	seedType     string
	seedSkip     int
)

// simulateCmd runs the submission pipeline over a record file
var simulateCmd = &cobra.Command{
	Use:   "simulate <records.json>",
	Short: "Simulate records one by one with retry and re-authentication",
	Long: `Submits every structured record of the file to the evaluation service, polls
each to a terminal outcome and records it in the outcome log. Raw text entries
cannot be submitted and are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

// runCmd is the full fetch → vary → simulate loop
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch good alphas, expand them into variants and simulate the variants",
	RunE:  runLoop,
}

// seedCmd simulates ratio expressions built from data-field searches
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Simulate a/b ratios of two data-field searches",
	Long: `Searches two data-field sets in the template's region, universe and delay,
keeps the fields of the requested type and simulates every a/b ratio.

Example:
  alphaforge seed --dataset-a fundamental6 --search-a assets --dataset-b fundamental6 --search-b sales --skip 107`,
	RunE: runSeed,
}

func init() {
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Also write the generated variants to this file")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Generate variants without simulating them")

	seedCmd.Flags().StringVar(&seedDatasetA, "dataset-a", "", "Dataset of the numerators")
	seedCmd.Flags().StringVar(&seedSearchA, "search-a", "", "Search term for the numerators")
	seedCmd.Flags().StringVar(&seedDatasetB, "dataset-b", "", "Dataset of the denominators")
	seedCmd.Flags().StringVar(&seedSearchB, "search-b", "", "Search term for the denominators")
	seedCmd.Flags().StringVar(&seedType, "type", "MATRIX", "Field type to keep (empty keeps all)")
	seedCmd.Flags().IntVar(&seedSkip, "skip", 0, "Skip the first N ratios (resume an interrupted run)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read records: %w", err)
	}
	sources, err := alpha.DecodeSources(data)
	if err != nil {
		return err
	}
	records := alpha.Records(sources)
	if skipped := len(sources) - len(records); skipped > 0 {
		logger.Warn("raw text entries cannot be simulated", zap.Int("skipped", skipped))
	}

	ctx, cancel := commandContext()
	defer cancel()
	return simulateRecords(ctx, cmd, records)
}

func runLoop(cmd *cobra.Command, args []string) error {
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
	base := alpha.Render(alpha.NewRecord(cfg.Template, ""), alpha.Codes(found))
	logger.Info("candidates rendered", zap.Int("candidates", len(found)), zap.Int("records", len(base)))

	gen, err := newGenerator()
	if err != nil {
		return err
	}
	variants := generate(gen, alpha.Sources(base))
	if runOut != "" {
		if err := writeSources(cmd, variants, runOut); err != nil {
			return err
		}
	}
	if runDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d variants from %d candidates\n", len(variants), len(found))
		return nil
	}
	return simulateWith(ctx, cmd, svc, alpha.Records(variants))
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	svc, err := connect(ctx)
	if err != nil {
		return err
	}

	scope := brain.Scope{
		InstrumentType: cfg.Template.InstrumentType,
		Region:         cfg.Template.Region,
		Delay:          cfg.Template.Delay,
		Universe:       cfg.Template.Universe,
	}
	log := logs.Get(logging.CategorySeed)

	fieldsA, err := svc.client.SearchDataFields(ctx, svc.session, scope, seedDatasetA, seedSearchA)
	if err != nil {
		return fmt.Errorf("failed to search numerators: %w", err)
	}
	fieldsB, err := svc.client.SearchDataFields(ctx, svc.session, scope, seedDatasetB, seedSearchB)
	if err != nil {
		return fmt.Errorf("failed to search denominators: %w", err)
	}

	ratios := variation.Ratios(
		brain.FieldIDs(fieldsA, seedType),
		brain.FieldIDs(fieldsB, seedType),
		alpha.NewRecord(cfg.Template, ""),
	)
	log.Info("ratios built", zap.Int("ratios", len(ratios)), zap.Int("skip", seedSkip))
	if seedSkip > 0 {
		ratios = ratios[min(seedSkip, len(ratios)):]
	}
	return simulateWith(ctx, cmd, svc, ratios)
}

func newFetcher(lister candidates.Lister, maxItems, pageSize, maxRetries int, retryDelay time.Duration) *candidates.Fetcher {
	opts := candidates.DefaultOptions()
	opts.MaxItems = maxItems
	opts.PageSize = pageSize
	opts.MaxRetries = maxRetries
	opts.RetryDelay = retryDelay
	opts.Logger = logs.Get(logging.CategoryFetch)
	return candidates.New(lister, opts)
}

func simulateRecords(ctx context.Context, cmd *cobra.Command, records []alpha.Record) error {
	svc, err := connect(ctx)
	if err != nil {
		return err
	}
	return simulateWith(ctx, cmd, svc, records)
}

func simulateWith(ctx context.Context, cmd *cobra.Command, svc *service, records []alpha.Record) error {
	lg, err := openLedger()
	if err != nil {
		return err
	}
	defer lg.Close()

	report, err := newPipeline(svc, lg, cmd).SubmitAll(ctx, records)
	fmt.Fprint(cmd.OutOrStdout(), renderSimulationReport(report))
	return abortedErr(err)
}

func newPipeline(svc *service, lg ledger.Ledger, cmd *cobra.Command) *simulation.Pipeline {
	return simulation.New(svc.client, svc.auth, lg, svc.session, simulation.Options{
		Tolerance:   cfg.Simulation.Tolerance,
		RetryDelay:  cfg.GetRetryDelay(),
		PollTimeout: cfg.GetPollTimeout(),
		Logger:      logs.Get(logging.CategorySimulate),
		Observer: func(o simulation.Outcome) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d] %s %s\n", o.Index, colored(stateColor(o.State), o.State.String()), o.AlphaID)
		},
	})
}
