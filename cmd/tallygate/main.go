package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/tallydash/tallygate/internal/adapter/mcp"
	"github.com/tallydash/tallygate/internal/adapter/odbc"
	"github.com/tallydash/tallygate/internal/audit"
	"github.com/tallydash/tallygate/internal/config"
	"github.com/tallydash/tallygate/internal/core/domain"
	"github.com/tallydash/tallygate/internal/core/port"
	"github.com/tallydash/tallygate/internal/core/service"
	"github.com/tallydash/tallygate/internal/policy"
	"github.com/tallydash/tallygate/internal/telemetry"
	"go.opentelemetry.io/otel"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (config.Overrides, error) {
	fs := flag.NewFlagSet("tallygate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	tallyDSN := fs.String("tally-dsn", "", "Tally ODBC DSN or connection string")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	maxRows := fs.Int("max-rows", 0, "maximum rows returned per query")
	queryTimeout := fs.Duration("query-timeout", 0, "per-query timeout")
	retryAttempts := fs.Int("retry-attempts", 0, "retry attempts for transient ODBC failures")
	strictMode := fs.Bool("strict", true, "enable the function allow-list and complexity limits")
	policyFile := fs.String("policy-file", "", "path to the policy YAML file")
	watchPolicy := fs.Bool("watch-policy", false, "reload the policy file when it changes")
	transport := fs.String("transport", "", `transport ("stdio" or "http")`)
	httpAddr := fs.String("http-addr", "", "HTTP listen address")
	httpBearerToken := fs.String("http-bearer-token", "", "bearer token required on the HTTP transport")
	maxOpenConns := fs.Int("max-open-conns", 0, "maximum open ODBC connections")
	connMaxLifetime := fs.Duration("conn-max-lifetime", 0, "maximum ODBC connection lifetime")
	otelEnabled := fs.Bool("otel", false, "enable OpenTelemetry traces and metrics")
	dryRun := fs.Bool("dry-run", false, "validate queries without executing them")
	auditLog := fs.String("audit-log", "", "path to the NDJSON audit log")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	o := config.Overrides{
		WatchPolicy: *watchPolicy,
		OTelEnabled: *otelEnabled,
		DryRun:      *dryRun,
		AuditLog:    *auditLog,
	}

	// Only flags the user actually set become overrides.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tally-dsn":
			o.TallyDSN = tallyDSN
		case "log-level":
			o.LogLevel = logLevel
		case "max-rows":
			o.MaxRows = maxRows
		case "query-timeout":
			o.QueryTimeout = queryTimeout
		case "retry-attempts":
			o.RetryAttempts = retryAttempts
		case "strict":
			o.StrictMode = strictMode
		case "policy-file":
			o.PolicyFile = policyFile
		case "transport":
			o.Transport = transport
		case "http-addr":
			o.HTTPAddr = httpAddr
		case "http-bearer-token":
			o.HTTPBearerToken = httpBearerToken
		case "max-open-conns":
			o.MaxOpenConns = maxOpenConns
		case "conn-max-lifetime":
			o.ConnMaxLifetime = connMaxLifetime
		}
	})

	return o, nil
}

// dryRunExecutor satisfies the executor port without touching Tally.
// Queries still pass through the full validation gate.
type dryRunExecutor struct{}

func (dryRunExecutor) Execute(context.Context, string, ...any) ([]map[string]any, error) {
	return []map[string]any{}, nil
}

var dsnSecretRe = regexp.MustCompile(`(?i)(PWD|PASSWORD)\s*=\s*[^;]*`)

// redactDSN hides credential attributes in ODBC connection strings before
// they reach the logs.
func redactDSN(dsn string) string {
	return dsnSecretRe.ReplaceAllString(dsn, "$1=***")
}

func run(args []string) error {
	overrides, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting tallygate",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.Bool("strict_mode", cfg.StrictMode),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.String("transport", cfg.Transport),
		slog.Bool("dry_run", cfg.DryRun),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Observability (optional).
	tracer := telemetry.NoopTracer()
	inst := telemetry.NoopInstruments()
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "tallygate", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = otel.Tracer("tallygate")
		inst = telemetry.NewInstruments()
		logger.Info("telemetry enabled")
	}

	// Executor: real ODBC connection, or a stub in dry-run mode.
	var executor port.QueryExecutor
	if cfg.DryRun {
		executor = dryRunExecutor{}
		logger.Info("dry-run mode: queries are validated but not executed")
	} else {
		db, err := odbc.Open(ctx, cfg.TallyDSN, cfg.MaxOpenConns, cfg.ConnMaxLifetime)
		if err != nil {
			return fmt.Errorf("connecting to tally: %w", err)
		}
		defer db.Close()

		ex := odbc.NewExecutor(db, cfg.MaxRows, cfg.QueryTimeout, cfg.RetryAttempts, logger)
		if err := ex.TestConnection(ctx); err != nil {
			return fmt.Errorf("testing tally connection: %w", err)
		}
		logger.Info("tally odbc connected", slog.String("dsn", redactDSN(cfg.TallyDSN)))
		executor = ex
	}

	// Policy (optional), with hot reload when requested.
	store := policy.NewStore(nil)
	if cfg.PolicyFile != "" {
		pol, err := policy.LoadFromFile(cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		store.Replace(pol)
		logger.Info("policy loaded", slog.String("file", cfg.PolicyFile))

		if cfg.WatchPolicy {
			watcher := policy.NewWatcher(cfg.PolicyFile, store, logger)
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					logger.Error("policy watcher stopped", slog.String("error", err.Error()))
				}
			}()
		}
	}

	// Audit trail (optional).
	var auditor port.QueryAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fileAuditor, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer fileAuditor.Close()
		auditor = fileAuditor
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	// Domain
	gate := domain.NewGate(cfg.StrictMode, logger)

	// Services
	querySvc := service.NewQueryService(gate, executor, auditor, logger, store.Get().Masks(), tracer, inst)
	reportSvc := service.NewReportService(querySvc)

	// MCP server with tool handlers.
	mcpServer := mcp.NewServer(version, querySvc, reportSvc, store, logger, tracer, inst)

	if cfg.Transport == "http" {
		return serveHTTP(ctx, mcpServer, cfg, logger)
	}

	// Run MCP over stdio (stdin/stdout).
	stdioServer := mcpserver.NewStdioServer(mcpServer)

	logger.Info("serving MCP over stdio")
	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
