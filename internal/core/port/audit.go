package port

import "context"

// AuditEntry represents a single auditable query event. Violation is empty
// for queries that passed validation.
type AuditEntry struct {
	Tool         string
	Query        string
	Violation    string
	RowsReturned int
	DurationMS   int64
	Err          error
}

// QueryAuditor records query audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
