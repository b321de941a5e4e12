// Package cursordb executes short-lived, timeout-bounded, parameterised
// queries against Cursor's IDE workspace-storage SQLite databases.
package cursordb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/wiggitywhitney/mcp-commit-story-sub001/internal/errs"
)

// BusyTimeout bounds how long a query waits on a locked database before
// giving up.
const BusyTimeout = 5 * time.Second

// Row is one returned tuple, column values in query order.
type Row []any

// Query opens dbPath read-only with a 5-second busy timeout, executes
// exactly one parameterised statement, fetches all rows, and closes the
// connection. Parameters are always bound, never concatenated into sql.
func Query(ctx context.Context, dbPath, query string, params ...any) ([]Row, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, &errs.DatabaseNotFound{Path: dbPath}
		}
		return nil, &errs.DatabaseAccess{Path: dbPath, Cause: err, Retriable: true}
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)", dbPath, BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &errs.DatabaseAccess{Path: dbPath, Cause: err, Retriable: false}
	}
	defer db.Close()

	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, classifyQueryErr(dbPath, query, params, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &errs.DatabaseQuery{SQL: query, Parameters: params, Cause: err}
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &errs.DatabaseQuery{SQL: query, Parameters: params, Cause: err}
		}
		out = append(out, Row(values))
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryErr(dbPath, query, params, err)
	}

	return out, nil
}

func classifyQueryErr(dbPath, query string, params []any, err error) error {
	if ctx := err; ctx == context.DeadlineExceeded || ctx == context.Canceled {
		return &errs.DatabaseAccess{Path: dbPath, Cause: err, Retriable: true}
	}
	return &errs.DatabaseQuery{SQL: query, Parameters: params, Cause: err}
}
