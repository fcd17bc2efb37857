package port

// QueryValidator decides whether a query string may reach the data source.
// A nil return means the query passed every rule.
type QueryValidator interface {
	Validate(query string) error
}
