package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vvka-141/pgready/internal/breaker"
	"github.com/vvka-141/pgready/internal/config"
	"github.com/vvka-141/pgready/internal/db"
	"github.com/vvka-141/pgready/internal/envcheck"
	"github.com/vvka-141/pgready/internal/logging"
	"github.com/vvka-141/pgready/internal/metrics"
	"github.com/vvka-141/pgready/internal/retry"
	"github.com/vvka-141/pgready/internal/startup"
	"github.com/vvka-141/pgready/internal/tui"
	"github.com/vvka-141/pgready/pkg/pgready"
)

const (
	healthQuery     = "SELECT 1"
	defaultJob      = "pgready"
	pushgatewayEnv  = "PGREADY_PUSHGATEWAY_URL"
	pushTimeout     = 10 * time.Second
	databaseBreaker = "database"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the environment and probe the database before startup",
	Long: `Check runs the full startup sequence:

  1. Validates required environment variables, DATABASE_URL, secrets and base URLs
  2. Connects to PostgreSQL with exponential backoff (skipped if step 1 failed)
  3. Optionally runs a health query through a circuit breaker (--query)

Transient failures (refused connections, timeouts, resets) are retried.
Authentication and configuration failures stop immediately.

Retry, breaker, logging and probe settings come from pgready.yaml when present.

Authentication:
  The connection uses DATABASE_URL unless --connection is given. Cloud IAM
  authentication is selected with --auth-method or PGREADY_AUTH_METHOD:
    standard  Password from the connection string (default)
    aws       AWS RDS IAM token (--aws-region or AWS_REGION)
    google    Google Cloud SQL IAM (--google-instance or PGREADY_GOOGLE_INSTANCE)
    azure     Azure Entra ID (auto-detected from AZURE_TENANT_ID / AZURE_CLIENT_ID)

Output:
  A styled report is printed to stdout; --output json prints the report as JSON.
  --export writes the diagnostic log buffer as JSON or CSV.

Metrics:
  Retry, breaker and startup metrics are pushed to a Prometheus Pushgateway
  when --pushgateway or PGREADY_PUSHGATEWAY_URL is set.`,
	Example: `  # Check the current environment (.env is loaded when present)
  pgready check

  # Production rules against a deployment env file
  pgready check --production --env-file .env.production

  # Machine-readable report plus a CSV log export
  pgready check --output json --export csv --export-file startup.csv

  # Also run SELECT 1 through the circuit breaker
  pgready check --query --timeout 30s`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

// checkFlagValues holds all flag values for the check command.
type checkFlagValues struct {
	env environmentFlags

	connection     string
	authMethod     string
	awsRegion      string
	googleInstance string
	azureTenantID  string
	azureClientID  string

	output      string
	export      string
	exportFile  string
	query       bool
	timeout     time.Duration
	pushgateway string
}

var checkFlags checkFlagValues

func init() {
	rootCmd.AddCommand(checkCmd)

	registerEnvironmentFlags(checkCmd, &checkFlags.env)

	checkCmd.Flags().StringVar(&checkFlags.connection, "connection", "",
		"PostgreSQL connection string (overrides DATABASE_URL for the probe)")
	checkCmd.Flags().StringVar(&checkFlags.authMethod, "auth-method", "",
		"Authentication method: standard, aws, google, azure\n"+
			"Overrides PGREADY_AUTH_METHOD and auth_method in pgready.yaml.")
	checkCmd.Flags().StringVar(&checkFlags.awsRegion, "aws-region", "",
		"AWS region for RDS IAM authentication (or AWS_REGION)")
	checkCmd.Flags().StringVar(&checkFlags.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name project:region:instance (or PGREADY_GOOGLE_INSTANCE)")
	checkCmd.Flags().StringVar(&checkFlags.azureTenantID, "azure-tenant-id", "",
		"Azure AD tenant ID (or AZURE_TENANT_ID)")
	checkCmd.Flags().StringVar(&checkFlags.azureClientID, "azure-client-id", "",
		"Azure AD client ID (or AZURE_CLIENT_ID)\n"+
			"The client secret is only read from AZURE_CLIENT_SECRET.")

	checkCmd.Flags().StringVarP(&checkFlags.output, "output", "o", outputText,
		"Report format: text or json")
	checkCmd.Flags().StringVar(&checkFlags.export, "export", "",
		"Export the diagnostic log: json or csv")
	checkCmd.Flags().StringVar(&checkFlags.exportFile, "export-file", "",
		"Destination for --export (default: pgready-log.<format>)")
	checkCmd.Flags().BoolVar(&checkFlags.query, "query", false,
		"Run a SELECT 1 health query through the circuit breaker after connecting\n"+
			"Also enabled by probe.query in pgready.yaml.")
	checkCmd.Flags().DurationVar(&checkFlags.timeout, "timeout", 0,
		"Upper bound for the connectivity probe including retries (default: probe.timeout or 2m)")
	checkCmd.Flags().StringVar(&checkFlags.pushgateway, "pushgateway", "",
		"Prometheus Pushgateway URL (or PGREADY_PUSHGATEWAY_URL, or metrics.pushgateway_url)")

	_ = checkCmd.RegisterFlagCompletionFunc("auth-method", completeAuthMethods)
	_ = checkCmd.RegisterFlagCompletionFunc("output", completeOutputFormats)
	_ = checkCmd.RegisterFlagCompletionFunc("export", completeExportFormats)
}

// resetCheckFlags restores flag defaults between tests.
func resetCheckFlags() {
	checkFlags = checkFlagValues{output: outputText}
}

func runCheck(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)

	if err := validateOutputFormat(checkFlags.output); err != nil {
		return err
	}
	var exportFormat logging.ExportFormat
	if checkFlags.export != "" {
		format, err := logging.ParseExportFormat(checkFlags.export)
		if err != nil {
			return fmt.Errorf("invalid argument for --export: %w", err)
		}
		exportFormat = format
	}

	cfg, err := loadProjectConfig(checkFlags.env.configPath, verbose)
	if err != nil {
		return err
	}
	lookup, err := buildLookup(checkFlags.env.envFiles, verbose)
	if err != nil {
		return err
	}
	production := resolveProduction(checkFlags.env.production, cfg, lookup)
	if verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Production rules: %v\n", production)
	}

	logger, err := newDiagnosticLogger(cfg, production, verbose)
	if err != nil {
		return err
	}

	policy, err := cfg.ConnectionPolicy()
	if err != nil {
		return err
	}
	timeout := checkFlags.timeout
	if timeout <= 0 {
		if timeout, err = cfg.ProbeTimeout(); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	executor := retry.NewExecutor(logger).WithObserver(collector)

	probe, closeProbe, err := buildProbe(cfg, lookup, logger, executor, collector, verbose)
	if err != nil {
		return err
	}
	defer closeProbe()

	validator := envcheck.New(lookup, production, envcheck.WithRequired(cfg.Required...))
	checker := startup.NewChecker(validator, probe, logger,
		startup.WithPolicy(policy),
		startup.WithExecutor(executor),
		startup.WithProbeTimeout(timeout),
		startup.WithReportHook(collector.ObserveStartup))

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		report   startup.Report
		checkErr error
	)
	if _, err := tui.RunTask(ctx, "Checking startup readiness...", func(ctx context.Context) (string, error) {
		report, checkErr = checker.Require(ctx)
		if report.Ready() {
			return "Startup checks passed", nil
		}
		return "Startup checks finished with errors", nil
	}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkFlags.output == outputJSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, tui.RenderReport(report))
	}

	if verbose {
		fmt.Fprint(os.Stderr, tui.RenderStats(logger.Stats()))
	}

	if exportFormat != "" {
		if err := exportLog(logger, exportFormat, checkFlags.exportFile, verbose); err != nil {
			return err
		}
	}

	pushMetrics(ctx, cfg, lookup, registry, verbose)

	return checkErr
}

// buildProbe resolves the connection and returns the live probe plus a release
// function. A connection that cannot be resolved becomes a probe that fails
// with the resolution error, so the report still explains it.
func buildProbe(
	cfg *config.ProjectConfig,
	lookup envcheck.Lookup,
	logger *logging.Logger,
	executor *retry.Executor,
	collector *metrics.Collector,
	verbose bool,
) (startup.Probe, func(), error) {
	noop := func() {}

	authFlags := &db.AuthFlags{
		Method:         checkFlags.authMethod,
		AWSRegion:      checkFlags.awsRegion,
		GoogleInstance: checkFlags.googleInstance,
		AzureTenantID:  checkFlags.azureTenantID,
		AzureClientID:  checkFlags.azureClientID,
	}
	connConfig, err := db.ResolveConnectionConfig(checkFlags.connection, authFlags, db.LoadFromLookup(lookup), cfg.AuthMethod)
	if err != nil {
		return initFailureProbe(err), noop, nil
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Probing %s:%d/%s (auth: %s)\n",
			connConfig.Host, connConfig.Port, connConfig.Database, connConfig.AuthMethod)
	}

	// The checker owns the retry loop; connectors make a single attempt each.
	connector, err := db.NewConnector(connConfig,
		db.WithConnectorLogger(logger),
		db.WithRetryExecutor(executor),
		db.WithRetryPolicy(retry.NewPolicy(0)))
	if err != nil {
		return initFailureProbe(err), noop, nil
	}
	release := func() {
		if err := startup.CloseConnector(connector); err != nil && verbose {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Failed to close connector: %v\n", err)
		}
	}

	var checks []startup.PoolCheck
	if checkFlags.query || cfg.Probe.Query {
		check, err := healthCheck(cfg, logger, executor, collector)
		if err != nil {
			release()
			return nil, noop, err
		}
		checks = append(checks, check)
	}
	return startup.ConnectorProbe(connector, checks...), release, nil
}

// initFailureProbe always fails with err classified as a client
// initialization error, so a malformed connection string is not retried.
func initFailureProbe(err error) startup.Probe {
	classified := retry.NewClassifier().ClassifyInitError(err, nil)
	return func(context.Context) error { return classified }
}

// healthCheck runs healthQuery through a QueryGuard. The breaker is shared by
// every probe attempt of the run.
func healthCheck(
	cfg *config.ProjectConfig,
	logger *logging.Logger,
	executor *retry.Executor,
	collector *metrics.Collector,
) (startup.PoolCheck, error) {
	breakerCfg, err := cfg.BreakerSettings()
	if err != nil {
		return nil, err
	}
	queryPolicy, err := cfg.QueryPolicy()
	if err != nil {
		return nil, err
	}
	b, err := breaker.New(databaseBreaker, breakerCfg,
		breaker.WithLogger(logger),
		breaker.WithOnStateChange(collector.OnBreakerStateChange))
	if err != nil {
		return nil, err
	}
	collector.TrackBreaker(b)

	guardExecutor := executor.WithClassifier(retry.NewClassifier())

	return func(ctx context.Context, pool *pgxpool.Pool) error {
		guard := db.NewQueryGuard(db.NewPoolAdapter(pool), b,
			db.WithGuardPolicy(queryPolicy),
			db.WithGuardExecutor(guardExecutor))

		var one int
		start := time.Now()
		err := guard.QueryRowScan(ctx, []any{&one}, healthQuery)
		if err != nil {
			logger.LogQuery(pgready.LevelError, healthQuery, time.Since(start), pgready.WithError(err))
			return fmt.Errorf("health query failed: %w", err)
		}
		logger.LogQuery(pgready.LevelDebug, healthQuery, time.Since(start))
		if one != 1 {
			return fmt.Errorf("health query returned %d, expected 1", one)
		}
		return nil
	}, nil
}

func exportLog(logger *logging.Logger, format logging.ExportFormat, path string, verbose bool) error {
	data, err := logger.Export(format)
	if err != nil {
		return err
	}
	if path == "" {
		path = "pgready-log." + string(format)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write log export: %w", err)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Wrote %d log entries to %s\n", logger.Len(), path)
	}
	return nil
}

// pushMetrics is best effort: a failed push is reported but never changes the exit code.
func pushMetrics(ctx context.Context, cfg *config.ProjectConfig, lookup envcheck.Lookup, g prometheus.Gatherer, verbose bool) {
	envURL, _ := lookup(pushgatewayEnv)
	url := firstNonEmpty(checkFlags.pushgateway, envURL, cfg.Metrics.PushgatewayURL)
	if url == "" {
		return
	}
	job := firstNonEmpty(cfg.Metrics.Job, defaultJob)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := metrics.Push(ctx, url, job, g); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Pushed metrics to %s (job %s)\n", url, job)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
