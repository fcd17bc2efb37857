// Package query holds the prebuilt Tally report catalog and the safe
// dynamic query builder. Every statement here goes through the same
// validation gate as ad hoc queries before execution.
package query

import (
	"errors"
	"fmt"
	"sort"
)

// ParamKind selects the input predicate applied to a report parameter
// before it is bound.
type ParamKind string

const (
	ParamText   ParamKind = "text"
	ParamDate   ParamKind = "date"
	ParamAmount ParamKind = "amount"
)

// ParamSpec describes one bound parameter of a report, in binding order.
type ParamSpec struct {
	Name     string    `json:"name"`
	Kind     ParamKind `json:"kind"`
	Required bool      `json:"required"`
}

// Report is a named, prebuilt read-only query. Values always bind through
// ? placeholders; only the fixed SQL text carries identifiers.
type Report struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	SQL         string      `json:"-"`
	Params      []ParamSpec `json:"params,omitempty"`
}

// reports is the catalog keyed by report name.
var reports = map[string]Report{
	"companies": {
		Name:        "companies",
		Description: "Companies in the current Tally instance with book period and currency",
		SQL: "SELECT $Name AS company_name, $StartOfBooks AS start_date, " +
			"$EndOfBooks AS end_date, $Currency AS currency FROM Company ORDER BY $Name",
	},
	"ledgers": {
		Name:        "ledgers",
		Description: "All ledgers with parent group and opening/closing balances",
		SQL: "SELECT $Name AS ledger_name, $Parent AS parent, $OpeningBalance AS opening_balance, " +
			"$ClosingBalance AS closing_balance, $IsRevenue AS is_revenue, $IsDebitBalance AS is_debit " +
			"FROM Ledger ORDER BY $Name",
	},
	"ledgers_by_group": {
		Name:        "ledgers_by_group",
		Description: "Ledgers under a given parent group",
		SQL: "SELECT $Name AS ledger_name, $Parent AS parent, $OpeningBalance AS opening_balance, " +
			"$ClosingBalance AS closing_balance FROM Ledger WHERE $Parent = ? ORDER BY $Name",
		Params: []ParamSpec{{Name: "group", Kind: ParamText, Required: true}},
	},
	"ledger_balance": {
		Name:        "ledger_balance",
		Description: "Closing balance of a single ledger",
		SQL:         "SELECT $Name AS ledger_name, $ClosingBalance AS closing_balance FROM Ledger WHERE $Name = ?",
		Params:      []ParamSpec{{Name: "ledger", Kind: ParamText, Required: true}},
	},
	"vouchers": {
		Name:        "vouchers",
		Description: "All vouchers, newest first",
		SQL: "SELECT $Date AS voucher_date, $VoucherNumber AS voucher_number, $VoucherType AS voucher_type, " +
			"$Amount AS amount, $Reference AS reference, $Narration AS narration " +
			"FROM Voucher ORDER BY $Date DESC, $VoucherNumber DESC",
	},
	"vouchers_by_type": {
		Name:        "vouchers_by_type",
		Description: "Vouchers of a given type, newest first",
		SQL: "SELECT $Date AS voucher_date, $VoucherNumber AS voucher_number, $VoucherType AS voucher_type, " +
			"$Amount AS amount, $Reference AS reference, $Narration AS narration " +
			"FROM Voucher WHERE $VoucherType = ? ORDER BY $Date DESC",
		Params: []ParamSpec{{Name: "voucher_type", Kind: ParamText, Required: true}},
	},
	"vouchers_by_date_range": {
		Name:        "vouchers_by_date_range",
		Description: "Vouchers between two dates inclusive",
		SQL: "SELECT $Date AS voucher_date, $VoucherNumber AS voucher_number, $VoucherType AS voucher_type, " +
			"$Amount AS amount, $Reference AS reference, $Narration AS narration " +
			"FROM Voucher WHERE $Date BETWEEN ? AND ? ORDER BY $Date DESC",
		Params: []ParamSpec{
			{Name: "from", Kind: ParamDate, Required: true},
			{Name: "to", Kind: ParamDate, Required: true},
		},
	},
	"sales_vouchers": {
		Name:        "sales_vouchers",
		Description: "Sales vouchers with party names, newest first",
		SQL: "SELECT $Date AS voucher_date, $VoucherNumber AS voucher_number, $Amount AS amount, " +
			"$Reference AS reference, $PartyName AS party_name " +
			"FROM Voucher WHERE $VoucherType = 'Sales' ORDER BY $Date DESC",
	},
	"purchase_vouchers": {
		Name:        "purchase_vouchers",
		Description: "Purchase vouchers with party names, newest first",
		SQL: "SELECT $Date AS voucher_date, $VoucherNumber AS voucher_number, $Amount AS amount, " +
			"$Reference AS reference, $PartyName AS party_name " +
			"FROM Voucher WHERE $VoucherType = 'Purchase' ORDER BY $Date DESC",
	},
	"profit_loss": {
		Name:        "profit_loss",
		Description: "Revenue and expense ledgers for profit and loss reporting",
		SQL: "SELECT $Name AS account_name, $Parent AS group_name, $ClosingBalance AS amount, " +
			"$IsRevenue AS is_revenue, $IsExpense AS is_expense " +
			"FROM Ledger WHERE $IsRevenue = 'Yes' OR $IsExpense = 'Yes' ORDER BY $Parent, $Name",
	},
	"balance_sheet": {
		Name:        "balance_sheet",
		Description: "Asset and liability ledgers for balance sheet reporting",
		SQL: "SELECT $Name AS account_name, $Parent AS group_name, $ClosingBalance AS amount, " +
			"$IsAsset AS is_asset, $IsLiability AS is_liability " +
			"FROM Ledger WHERE $IsAsset = 'Yes' OR $IsLiability = 'Yes' ORDER BY $Parent, $Name",
	},
	"cash_receipts": {
		Name:        "cash_receipts",
		Description: "Receipt vouchers, newest first",
		SQL: "SELECT $Date AS voucher_date, $Amount AS amount, $PartyName AS party_name, " +
			"$Narration AS narration FROM Voucher WHERE $VoucherType = 'Receipt' ORDER BY $Date DESC",
	},
	"cash_payments": {
		Name:        "cash_payments",
		Description: "Payment vouchers, newest first",
		SQL: "SELECT $Date AS voucher_date, $Amount AS amount, $PartyName AS party_name, " +
			"$Narration AS narration FROM Voucher WHERE $VoucherType = 'Payment' ORDER BY $Date DESC",
	},
	"stock_items": {
		Name:        "stock_items",
		Description: "Stock items with closing quantity and value",
		SQL: "SELECT $Name AS item_name, $StockGroup AS group_name, $ClosingStock AS closing_stock, " +
			"$ClosingValue AS closing_value, $Unit AS unit FROM StockItem ORDER BY $Name",
	},
	"stock_summary": {
		Name:        "stock_summary",
		Description: "Stock value and item count per stock group",
		SQL: "SELECT $StockGroup AS group_name, SUM($ClosingValue) AS total_value, COUNT($Name) AS item_count " +
			"FROM StockItem GROUP BY $StockGroup ORDER BY total_value DESC",
	},
	"sundry_debtors": {
		Name:        "sundry_debtors",
		Description: "Outstanding receivables by party",
		SQL: "SELECT $Name AS party_name, $ClosingBalance AS outstanding_amount, $Parent AS group_name " +
			"FROM Ledger WHERE $Parent = 'Sundry Debtors' ORDER BY $ClosingBalance DESC",
	},
	"sundry_creditors": {
		Name:        "sundry_creditors",
		Description: "Outstanding payables by party",
		SQL: "SELECT $Name AS party_name, $ClosingBalance AS outstanding_amount, $Parent AS group_name " +
			"FROM Ledger WHERE $Parent = 'Sundry Creditors' ORDER BY $ClosingBalance DESC",
	},
	"monthly_sales_summary": {
		Name:        "monthly_sales_summary",
		Description: "Sales totals and voucher counts per month",
		SQL: "SELECT YEAR($Date) AS year, MONTH($Date) AS month, SUM($Amount) AS total_sales, " +
			"COUNT($VoucherNumber) AS voucher_count FROM Voucher WHERE $VoucherType = 'Sales' " +
			"GROUP BY YEAR($Date), MONTH($Date) ORDER BY year DESC, month DESC",
	},
	"daily_cash_flow": {
		Name:        "daily_cash_flow",
		Description: "Cash in, cash out, and net flow per day",
		SQL: "SELECT $Date AS voucher_date, " +
			"SUM(CASE WHEN $VoucherType = 'Receipt' THEN $Amount ELSE 0 END) AS cash_in, " +
			"SUM(CASE WHEN $VoucherType = 'Payment' THEN $Amount ELSE 0 END) AS cash_out, " +
			"SUM(CASE WHEN $VoucherType = 'Receipt' THEN $Amount ELSE 0 END) - " +
			"SUM(CASE WHEN $VoucherType = 'Payment' THEN $Amount ELSE 0 END) AS net_cash_flow " +
			"FROM Voucher WHERE $VoucherType IN ('Receipt', 'Payment') GROUP BY $Date ORDER BY $Date DESC",
	},
	"top_customers": {
		Name:        "top_customers",
		Description: "Top 10 customers by sales value",
		SQL: "SELECT TOP 10 $PartyName AS customer_name, SUM($Amount) AS total_sales, " +
			"COUNT($VoucherNumber) AS transaction_count " +
			"FROM Voucher WHERE $VoucherType = 'Sales' AND $PartyName IS NOT NULL " +
			"GROUP BY $PartyName ORDER BY total_sales DESC",
	},
	"expense_analysis": {
		Name:        "expense_analysis",
		Description: "Expense ledgers grouped by category, largest first",
		SQL: "SELECT $Parent AS expense_category, $Name AS account_name, $ClosingBalance AS amount " +
			"FROM Ledger WHERE $IsExpense = 'Yes' AND $ClosingBalance <> 0 " +
			"ORDER BY $Parent, $ClosingBalance DESC",
	},
}

// Lookup returns the named report.
// ErrUnknownReport is returned by Lookup for names not in the catalog.
var ErrUnknownReport = errors.New("unknown report")

func Lookup(name string) (Report, error) {
	r, ok := reports[name]
	if !ok {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownReport, name)
	}
	return r, nil
}

// List returns all reports sorted by name.
func List() []Report {
	out := make([]Report, 0, len(reports))
	for _, r := range reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
