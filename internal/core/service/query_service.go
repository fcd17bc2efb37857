package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tallydash/tallygate/internal/core/domain"
	"github.com/tallydash/tallygate/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrValidationFailed is the only validation error surfaced to callers.
// The specific rule a query tripped goes to the warn log and the audit
// trail, never back to the client: echoing it would hand a probing caller
// the rule set one rejection at a time.
var ErrValidationFailed = errors.New("query validation failed")

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// QueryService orchestrates validation (domain), execution (infrastructure),
// auditing, and result masking. A query is validated exactly once, right
// before execution; a rejected query is never executed and never retried.
type QueryService struct {
	validator port.QueryValidator
	executor  port.QueryExecutor
	auditor   port.QueryAuditor
	logger    *slog.Logger
	masks     map[string]domain.MaskType // result column -> mask (nil = no masking)
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewQueryService(validator port.QueryValidator, executor port.QueryExecutor, auditor port.QueryAuditor, logger *slog.Logger, masks map[string]domain.MaskType, tracer trace.Tracer, inst port.Instrumentation) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &QueryService{
		validator: validator,
		executor:  executor,
		auditor:   auditor,
		logger:    logger,
		masks:     masks,
		tracer:    tracer,
		inst:      inst,
	}
}

// Execute validates the query and, if allowed, delegates to the executor.
// args bind ? placeholders in order.
func (s *QueryService) Execute(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "tally_odbc"),
			attribute.String("db.operation.name", "query"),
			attribute.String("db.statement", query),
		),
	)
	defer span.End()

	if err := s.validator.Validate(query); err != nil {
		kind := string(domain.KindOf(err))
		s.logger.WarnContext(ctx, "query validation rejected",
			slog.String("db.statement", query),
			slog.String("violation", kind),
			slog.String("detail", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		s.inst.IncrementQueryRejections(ctx, kind)
		s.auditor.Record(ctx, port.AuditEntry{
			Tool:      toolNameFromCtx(ctx),
			Query:     query,
			Violation: kind,
			Err:       ErrValidationFailed,
		})
		return nil, ErrValidationFailed
	}

	start := time.Now()
	results, err := s.executor.Execute(ctx, query, args...)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))

	s.auditor.Record(ctx, port.AuditEntry{
		Tool:         toolNameFromCtx(ctx),
		Query:        query,
		RowsReturned: len(results),
		DurationMS:   durationMS,
		Err:          err,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return results, err
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", len(results)))
	domain.MaskRows(results, s.masks)

	return results, nil
}

// Check validates the query without executing it. The boolean is safe to
// return to clients; the violation detail stays in the logs.
func (s *QueryService) Check(ctx context.Context, query string) bool {
	err := s.validator.Validate(query)
	if err != nil {
		s.logger.DebugContext(ctx, "check_query rejected",
			slog.String("violation", string(domain.KindOf(err))),
		)
	}
	return err == nil
}
