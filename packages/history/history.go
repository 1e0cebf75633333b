// Package history records finished exchanges in a SQLite database. A
// Recorder is attached to a session as a hook.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT    NOT NULL,
	method      TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	final_url   TEXT    NOT NULL DEFAULT '',
	status      INTEGER NOT NULL DEFAULT 0,
	elapsed_ms  REAL    NOT NULL,
	body_size   INTEGER NOT NULL DEFAULT 0,
	redirects   INTEGER NOT NULL DEFAULT 0,
	error_kind  TEXT    NOT NULL DEFAULT '',
	error       TEXT    NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS exchanges_created_at ON exchanges (created_at);
`

// Entry is one recorded exchange. Status is 0 when the send failed.
type Entry struct {
	ID        int64
	SessionID string
	Method    string
	URL       string
	FinalURL  string
	Status    int
	Elapsed   time.Duration
	BodySize  int
	Redirects int
	ErrorKind string
	Error     string
	CreatedAt time.Time
}

// QueryResult represents the result of an ad-hoc query
type QueryResult struct {
	Columns []string
	Rows    []map[string]interface{}
}

// Recorder writes exchanges to SQLite.
type Recorder struct {
	db           *sql.DB
	dataSource   string
	queryTimeout time.Duration
	log          *slog.Logger
	now          func() time.Time
}

// Open opens (creating if needed) the history database. connectionString
// is a file path, optionally prefixed with sqlite:// or sqlite:.
func Open(connectionString string, log *slog.Logger) (*Recorder, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Recorder{
		db:           db,
		dataSource:   dsn,
		queryTimeout: 30 * time.Second,
		log:          log,
		now:          time.Now,
	}, nil
}

// Close closes the database connection
func (r *Recorder) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AfterSend records ev. Failures are logged, never returned to the sender.
func (r *Recorder) AfterSend(ctx context.Context, ev http.Event) {
	if err := r.Record(ctx, ev); err != nil {
		r.log.Error("history record failed", "session", ev.SessionID, "error", err)
	}
}

// Record inserts one exchange.
func (r *Recorder) Record(ctx context.Context, ev http.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.queryTimeout)
	defer cancel()

	e := entryFromEvent(ev)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exchanges (session_id, method, url, final_url, status, elapsed_ms, body_size, redirects, error_kind, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Method, e.URL, e.FinalURL, e.Status,
		float64(e.Elapsed.Microseconds())/1000, e.BodySize, e.Redirects,
		e.ErrorKind, e.Error, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

func entryFromEvent(ev http.Event) Entry {
	e := Entry{SessionID: ev.SessionID, Elapsed: ev.Elapsed}
	if ev.Request != nil {
		e.Method = ev.Request.Method
		if e.Method == "" {
			e.Method = http.MethodGet
		}
		e.URL = ev.Request.URL
	}
	if ev.Response != nil {
		e.FinalURL = ev.Response.URL
		e.Status = ev.Response.StatusCode
		e.BodySize = len(ev.Response.Body)
		e.Redirects = len(ev.Response.History)
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
		if kind := http.KindOf(ev.Err); kind != nil {
			e.ErrorKind = kind.Error()
		}
	}
	return e
}

// Recent returns up to limit exchanges, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, method, url, final_url, status, elapsed_ms, body_size, redirects, error_kind, error, created_at
		 FROM exchanges ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var elapsedMS float64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Method, &e.URL, &e.FinalURL, &e.Status,
			&elapsedMS, &e.BodySize, &e.Redirects, &e.ErrorKind, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Elapsed = time.Duration(elapsedMS * float64(time.Millisecond))
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Query executes a read-only SQL query against the history and returns the
// result. The query runs with PRAGMA query_only set, so statements that
// write fail even when they start with SELECT or WITH.
func (r *Recorder) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	if !isReadOnly(query) {
		return nil, errors.New("only SELECT queries are allowed")
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	// the pragma is per connection
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("failed to enter read-only mode: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); err != nil {
			r.log.Warn("failed to leave read-only mode", "error", err)
		}
	}()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{
		Columns: columns,
		Rows:    make([]map[string]interface{}, 0),
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			// Convert []byte to string for better handling
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

func isReadOnly(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}

// parseConnectionString accepts:
// - sqlite://path/to/history.db
// - sqlite:./history.db
// - path/to/history.db
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	switch {
	case strings.HasPrefix(connStr, "sqlite://"):
		connStr = strings.TrimPrefix(connStr, "sqlite://")
	case strings.HasPrefix(connStr, "sqlite:"):
		connStr = strings.TrimPrefix(connStr, "sqlite:")
	case strings.Contains(connStr, "://"):
		return "", fmt.Errorf("unsupported database scheme in %q", connStr)
	}
	if connStr == "" {
		return "", errors.New("empty database path")
	}
	return connStr, nil
}
