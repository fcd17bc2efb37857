// Package odbc adapts database/sql over the ODBC bridge to Tally's
// read-only SQL interface. Tally exposes its books through an ODBC driver
// on the desktop machine running it; there is no native wire protocol.
package odbc

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/alexbrainman/odbc"
)

// Open dials the Tally ODBC source described by dsn
// ("DRIVER={Tally ODBC Driver};SERVER=localhost;PORT=9000;") and verifies
// the connection with a ping.
func Open(ctx context.Context, dsn string, maxConns int, connLifetime time.Duration) (*sql.DB, error) {
	db, err := sql.Open("odbc", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ODBC source: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(connLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging Tally ODBC (10s timeout): %w", err)
	}

	return db, nil
}
