package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alphaforge/internal/brain"
	"alphaforge/internal/config"
	"alphaforge/internal/ledger"
	"alphaforge/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath      string
	verbose         bool
	credentialsPath string
	username        string
	password        string
	timeout         time.Duration

	// Set up by the root command before any subcommand runs
	cfg    *config.Config
	logger *zap.Logger
	logs   *logging.Registry
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "alphaforge",
	Short: "Expand scored alpha expressions into variants and simulate them",
	Long: `alphaforge automates the alpha research loop against the evaluation service:

  fetch     page through previously simulated alphas and keep the good ones
  vary      expand expressions into every token and numeric-literal variant
  simulate  submit records one by one, poll to completion, retry and re-authenticate
  run       fetch, vary and simulate in one go
  seed      build a/b ratio expressions from two data-field searches and simulate them
  submit    promote unsubmitted alphas that pass the thresholds to production
  ledger    print the outcome log`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		logs = logging.NewRegistry(logger, cfg.Logging)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "alphaforge.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", "", "Credentials JSON file (default: brain.credentials_file, then env)")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Username (or WQB_USERNAME)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Password (or WQB_PASSWORD)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Overall deadline for the command (0 means none)")

	rootCmd.AddCommand(varyCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext honours --timeout and cancels on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// resolveCredentials applies the precedence flags > config/env > credentials file.
func resolveCredentials() (brain.Credentials, error) {
	user, pass := username, password
	if user == "" || pass == "" {
		user, pass = cfg.Brain.Username, cfg.Brain.Password
	}

	path := credentialsPath
	if path == "" && (user == "" || pass == "") {
		if _, err := os.Stat(cfg.Brain.CredentialsFile); err == nil {
			path = cfg.Brain.CredentialsFile
		}
	}
	return brain.LoadCredentials(path, user, pass)
}

// service bundles what the networked commands need.
type service struct {
	client  *brain.Client
	auth    *brain.Authenticator
	session *brain.Session
}

func connect(ctx context.Context) (*service, error) {
	creds, err := resolveCredentials()
	if err != nil {
		return nil, err
	}

	client := brain.NewClient(brain.Config{
		BaseURL:           cfg.Brain.BaseURL,
		Timeout:           cfg.GetBrainTimeout(),
		RateLimitWait:     cfg.GetRateLimitWait(),
		DataFieldPageSize: cfg.Seed.PageSize,
		Concurrency:       cfg.Seed.Concurrency,
	}, logs.Get(logging.CategoryAuth))

	auth := client.Authenticator(creds)
	sess, err := auth.SignIn(ctx)
	if err != nil {
		return nil, err
	}
	return &service{client: client, auth: auth, session: sess}, nil
}

func openLedger() (ledger.Ledger, error) {
	lg, err := ledger.Open(cfg.Ledger.Backend, cfg.Ledger.Location(), logs.Get(logging.CategoryLedger))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return lg, nil
}

// abortedErr keeps a fatal pipeline error distinguishable after the report
// has been printed.
func abortedErr(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("batch aborted: %w", err)
}
