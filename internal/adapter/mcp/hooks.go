package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tallydash/tallygate/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// toolCall tracks a single in-flight tool invocation from the before hook
// to the after or error hook.
type toolCall struct {
	tool  string
	start time.Time
	span  trace.Span
}

// finish closes the span and emits the completion log line and duration metric.
func (c *toolCall) finish(ctx context.Context, logger *slog.Logger, inst port.Instrumentation, callErr error) {
	elapsed := time.Since(c.start)

	attrs := []slog.Attr{
		slog.String("rpc.method", "tools/call"),
		slog.String("mcp.tool", c.tool),
		slog.Duration("duration", elapsed),
		slog.Bool("error", callErr != nil),
	}
	level := slog.LevelInfo
	if callErr != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error.message", callErr.Error()))
	}
	logger.LogAttrs(ctx, level, "tool call", attrs...)

	if inst != nil {
		inst.RecordToolDuration(ctx, float64(elapsed.Milliseconds()))
	}

	if c.span != nil {
		if callErr != nil {
			c.span.RecordError(callErr)
			c.span.SetStatus(codes.Error, callErr.Error())
		}
		c.span.End()
	}
}

// ToolCallHooks wires logging, tracing and metrics around every tool call.
// Tracer and instrumentation may be nil when telemetry is disabled.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	var inflight sync.Map // request id -> *toolCall

	hooks := &server.Hooks{}

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		call := &toolCall{tool: req.Params.Name, start: time.Now()}
		if tracer != nil {
			_, call.span = tracer.Start(ctx, "mcp.tool.call",
				trace.WithAttributes(attribute.String("mcp.tool", call.tool)))
		}
		inflight.Store(id, call)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		v, ok := inflight.LoadAndDelete(id)
		if !ok {
			return
		}
		call := v.(*toolCall)

		var callErr error
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			callErr = fmt.Errorf("tool %s returned error", call.tool)
		}
		call.finish(ctx, logger, inst, callErr)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		v, ok := inflight.LoadAndDelete(id)
		if !ok {
			// Errors outside tools/call carry no state of ours.
			return
		}
		call := v.(*toolCall)
		call.finish(ctx, logger, inst, err)
	})

	return hooks
}
