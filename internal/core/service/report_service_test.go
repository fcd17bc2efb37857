package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallydash/tallygate/internal/audit"
	"github.com/tallydash/tallygate/internal/query"
)

func testReportService(exec *mockExecutor) *ReportService {
	svc := NewQueryService(testValidator(), exec, audit.NoopAuditor{}, testLogger(), nil, nil, nil)
	return NewReportService(svc)
}

func TestReportService_List(t *testing.T) {
	svc := testReportService(&mockExecutor{})
	reports := svc.List()
	assert.NotEmpty(t, reports)
}

func TestReportService_Run_NoParams(t *testing.T) {
	exec := &mockExecutor{result: []map[string]any{{"company_name": "Acme Traders"}}}
	svc := testReportService(exec)

	rows, err := svc.Run(context.Background(), "companies", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, exec.lastArgs)
}

func TestReportService_Run_BindsParamsInOrder(t *testing.T) {
	exec := &mockExecutor{}
	svc := testReportService(exec)

	_, err := svc.Run(context.Background(), "vouchers_by_date_range", map[string]string{
		"to":   "2024-03-31",
		"from": "2023-04-01",
	})
	require.NoError(t, err)
	// Declared order, not map order.
	assert.Equal(t, []any{"2023-04-01", "2024-03-31"}, exec.lastArgs)
}

func TestReportService_Run_UnknownReport(t *testing.T) {
	svc := testReportService(&mockExecutor{})

	_, err := svc.Run(context.Background(), "quarterly_magic", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrUnknownReport)
}

func TestReportService_Run_MissingRequiredParam(t *testing.T) {
	svc := testReportService(&mockExecutor{})

	_, err := svc.Run(context.Background(), "ledger_balance", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestReportService_Run_InvalidDate(t *testing.T) {
	exec := &mockExecutor{}
	svc := testReportService(exec)

	_, err := svc.Run(context.Background(), "vouchers_by_date_range", map[string]string{
		"from": "2024-13-01",
		"to":   "2024-03-31",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadParameter)
	assert.False(t, exec.executeCalled)
}

func TestReportService_Run_SanitizesTextParams(t *testing.T) {
	exec := &mockExecutor{}
	svc := testReportService(exec)

	_, err := svc.Run(context.Background(), "ledger_balance", map[string]string{
		"ledger": "Cash'; DROP TABLE Ledger",
	})
	require.NoError(t, err)
	require.Len(t, exec.lastArgs, 1)
	// Quotes and semicolons are stripped before binding. The value is a bound
	// parameter either way; sanitizing is belt and braces.
	assert.Equal(t, "Cash DROP TABLE Ledger", exec.lastArgs[0])
}

func TestReportService_Run_ReportSQLPassesGate(t *testing.T) {
	exec := &mockExecutor{}
	svc := testReportService(exec)

	_, err := svc.Run(context.Background(), "top_customers", nil)
	require.NoError(t, err)
	assert.True(t, exec.executeCalled, "catalog SQL must clear the validation gate")
}
