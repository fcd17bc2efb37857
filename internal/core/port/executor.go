package port

import "context"

// QueryExecutor runs an already-validated query against the Tally ODBC
// channel. args bind ? placeholders in order; their content is never
// interpolated into the query string.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}
