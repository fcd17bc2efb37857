package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tallydash/tallygate/internal/core/domain"
	"github.com/tallydash/tallygate/internal/core/service"
	"github.com/tallydash/tallygate/internal/policy"
	"github.com/tallydash/tallygate/internal/query"
)

// Server metadata
const serverName = "tallygate"

// Tool descriptions
const (
	descListTables = "List the Tally ERP tables that queries may read, with business descriptions " +
		"and result columns where a policy file provides them. " +
		"Only these tables are queryable; anything else is rejected. " +
		"Call this first to learn the data landscape before writing queries."

	descDescribeTable = "Describe a single allow-listed Tally table: its business description and " +
		"result columns, where a policy file provides them. " +
		"Returns an error for tables outside the allow-list."

	descDescribeTableName = "Table name exactly as listed by list_tables (case-sensitive)"

	descListReports = "List the prebuilt report catalog: name, description, and the parameters each report takes. " +
		"Prefer run_report over ad hoc queries when a report covers the question; " +
		"reports are pretested against Tally's ODBC dialect."

	descRunReport = "Run a prebuilt report by name. Parameters are passed as an object of string values " +
		"and bound server-side; they never become query text. " +
		"Use list_reports to see available reports and their parameters."

	descRunReportName   = "Report name from list_reports"
	descRunReportParams = "Report parameters as string values, keyed by parameter name"

	descQuery = "Execute a read-only query against Tally ERP via ODBC and return rows as a JSON array of objects. " +
		"Tally's dialect prefixes fields with $ (for example SELECT $Name, $ClosingBalance FROM Ledger). " +
		"Only SELECT statements over the allow-listed tables from list_tables are accepted, " +
		"and a server-side row limit and timeout are enforced. " +
		"Alias fields with AS for readable result keys."

	descQueryParam = "Query to execute (SELECT with $-prefixed fields only)"

	descCheckQuery = "Validate a query against the safety rules without executing it. " +
		"Returns whether the query would be accepted. Use this to pretest generated queries cheaply."

	descCheckQueryParam = "Query to validate"
)

func RegisterTools(s *server.MCPServer, querySvc *service.QueryService, reports *service.ReportService, policies *policy.Store, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
		),
		listTablesHandler(policies),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithString("table",
				mcp.Required(),
				mcp.Description(descDescribeTableName),
			),
		),
		describeTableHandler(policies),
	)

	s.AddTool(
		mcp.NewTool("list_reports",
			mcp.WithDescription(descListReports),
		),
		listReportsHandler(reports),
	)

	s.AddTool(
		mcp.NewTool("run_report",
			mcp.WithDescription(descRunReport),
			mcp.WithString("report",
				mcp.Required(),
				mcp.Description(descRunReportName),
			),
			mcp.WithObject("params",
				mcp.Description(descRunReportParams),
			),
		),
		runReportHandler(reports, logger),
	)

	s.AddTool(
		mcp.NewTool("query",
			mcp.WithDescription(descQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descQueryParam),
			),
		),
		queryHandler(querySvc, logger),
	)

	s.AddTool(
		mcp.NewTool("check_query",
			mcp.WithDescription(descCheckQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descCheckQueryParam),
			),
		),
		checkQueryHandler(querySvc),
	)
}

// tableEntry is the list_tables result row: the allow-list merged with
// whatever context the policy file provides.
type tableEntry struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Columns     map[string]columnEntry `json:"columns,omitempty"`
}

type columnEntry struct {
	Description string `json:"description,omitempty"`
	Mask        string `json:"mask,omitempty"`
}

// makeTableEntry merges one allow-listed table with its policy context.
func makeTableEntry(pol *policy.Policy, name string) tableEntry {
	entry := tableEntry{Name: name}
	tc, ok := pol.Context.Tables[name]
	if !ok {
		return entry
	}
	entry.Description = tc.Description
	if len(tc.Columns) > 0 {
		entry.Columns = make(map[string]columnEntry, len(tc.Columns))
		for col, cc := range tc.Columns {
			entry.Columns[col] = columnEntry{
				Description: cc.Description,
				Mask:        string(cc.Mask),
			}
		}
	}
	return entry
}

func listTablesHandler(policies *policy.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pol := policies.Get()

		entries := make([]tableEntry, 0, len(domain.AllowedTables))
		for name := range domain.AllowedTables {
			entries = append(entries, makeTableEntry(pol, name))
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

		data, err := json.Marshal(entries)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func describeTableHandler(policies *policy.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["table"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("table is required"), nil
		}
		if !domain.AllowedTables[name] {
			return mcp.NewToolResultError(fmt.Sprintf("table %q is not queryable, see list_tables", name)), nil
		}

		data, err := json.Marshal(makeTableEntry(policies.Get(), name))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func listReportsHandler(reports *service.ReportService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(reports.List())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func runReportHandler(reports *service.ReportService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, ok := request.GetArguments()["report"].(string)
		if !ok || name == "" {
			return mcp.NewToolResultError("report is required"), nil
		}

		params := map[string]string{}
		if raw, ok := request.GetArguments()["params"].(map[string]any); ok {
			for k, v := range raw {
				s, ok := v.(string)
				if !ok {
					return mcp.NewToolResultError(fmt.Sprintf("parameter %q must be a string", k)), nil
				}
				params[k] = s
			}
		}

		ctx = service.WithToolName(ctx, "run_report")
		results, err := reports.Run(ctx, name, params)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "run_report")), nil
		}

		data, err := json.Marshal(results)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func queryHandler(querySvc *service.QueryService, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithToolName(ctx, "query")
		results, err := querySvc.Execute(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(sanitizeError(logger, err, "query")), nil
		}

		data, err := json.Marshal(results)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func checkQueryHandler(querySvc *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		allowed := querySvc.Check(ctx, sql)
		data, _ := json.Marshal(map[string]bool{"allowed": allowed})
		return mcp.NewToolResultText(string(data)), nil
	}
}

// sanitizeError maps an error to a message safe to return to the client.
// Validation rejections and parameter mistakes echo their generic message;
// everything else is logged in full and replaced with a pointer to the logs.
func sanitizeError(logger *slog.Logger, err error, op string) string {
	switch {
	case errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrBadParameter),
		errors.Is(err, query.ErrUnknownReport):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "query timed out"
	}

	logger.Error(op+" failed",
		slog.String("error", err.Error()),
	)
	return fmt.Sprintf("internal error during %s, check server logs", op)
}
