package odbc

import (
	"database/sql"
	"fmt"
)

// rowsToMaps converts sql.Rows into a slice of maps keyed by column name,
// scanning at most maxRows rows (0 means unbounded). ODBC drivers hand back
// []byte for most text columns; those are converted to string so results
// JSON-encode as text rather than base64.
func rowsToMaps(rows *sql.Rows, maxRows int) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading column names: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			break
		}

		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}
