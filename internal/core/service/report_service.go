package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tallydash/tallygate/internal/core/domain"
	"github.com/tallydash/tallygate/internal/query"
)

// ErrBadParameter marks report parameter errors that are safe to echo
// back to the caller. The offending value itself is never included.
var ErrBadParameter = errors.New("invalid report parameter")

// ReportService runs prebuilt catalog reports. Parameters are sanitized and
// shape-checked before binding; values reach the data source only as bound
// placeholders, never as query text.
type ReportService struct {
	queries *QueryService
}

func NewReportService(queries *QueryService) *ReportService {
	return &ReportService{queries: queries}
}

// List returns the catalog.
func (s *ReportService) List() []query.Report {
	return query.List()
}

// Run executes the named report with the given parameters. Parameters are
// matched by name against the report's spec and bound in declared order.
func (s *ReportService) Run(ctx context.Context, name string, params map[string]string) ([]map[string]any, error) {
	report, err := query.Lookup(name)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(report.Params))
	for _, spec := range report.Params {
		raw, ok := params[spec.Name]
		if !ok || raw == "" {
			if spec.Required {
				return nil, fmt.Errorf("%w: report %q requires parameter %q", ErrBadParameter, name, spec.Name)
			}
			continue
		}

		switch spec.Kind {
		case query.ParamDate:
			if !domain.ValidDateInput(raw) {
				return nil, fmt.Errorf("%w: %q is not a valid date", ErrBadParameter, spec.Name)
			}
			args = append(args, raw)
		case query.ParamAmount:
			if !domain.ValidAmountInput(raw) {
				return nil, fmt.Errorf("%w: %q is not a valid amount", ErrBadParameter, spec.Name)
			}
			args = append(args, raw)
		default:
			args = append(args, domain.Sanitize(raw, domain.DefaultMaxInputLength))
		}
	}

	return s.queries.Execute(ctx, report.SQL, args...)
}
