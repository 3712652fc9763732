package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RequestLogEntry is a single audit row produced by the request pipeline
// and absorbed in batches by internal/requestlog.
type RequestLogEntry struct {
	ID               int64     `db:"id"`
	EndpointID       *string   `db:"endpoint_id"`
	Method           string    `db:"method"`
	URL              string    `db:"url"`
	Status           int       `db:"status"`
	DurationMs       int64     `db:"duration_ms"`
	RequestHeaders   string    `db:"request_headers"`
	RequestBody      string    `db:"request_body"`
	ResponseHeaders  string    `db:"response_headers"`
	ResponseBody     string    `db:"response_body"`
	Identifier       *string   `db:"identifier"`
	ErrorMessage     *string   `db:"error_message"`
	ErrorStack       *string   `db:"error_stack"`
	CreatedAt        time.Time `db:"created_at"`
}

// InsertRequestLogs performs a single batch insert and returns the rowids
// assigned, in the same order as entries, so the caller can best-effort
// backfill the identifier column afterward.
func (s *Store) InsertRequestLogs(ctx context.Context, entries []RequestLogEntry) ([]int64, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(entries))
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin request log batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO request_logs
			(endpoint_id, method, url, status, duration_ms, request_headers, request_body,
			 response_headers, response_body, identifier, error_message, error_stack, created_at)
		VALUES
			(:endpoint_id, :method, :url, :status, :duration_ms, :request_headers, :request_body,
			 :response_headers, :response_body, :identifier, :error_message, :error_stack, :created_at)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare request log insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		result, err := stmt.ExecContext(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("insert request log: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("resolve request log id: %w", err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit request log batch: %w", err)
	}
	return ids, nil
}

// UpdateRequestLogIdentifier backfills the identifier column for a
// previously inserted row.
func (s *Store) UpdateRequestLogIdentifier(ctx context.Context, id int64, identifier string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE request_logs SET identifier = ? WHERE id = ?`, identifier, id)
	if err != nil {
		return fmt.Errorf("update request log identifier: %w", err)
	}
	return nil
}

// RequestLogFilter is the query surface for GET /admin/activity and
// GET /admin/logs.
type RequestLogFilter struct {
	Method        string
	Status        int
	URLContains   string
	Since         *time.Time
	Until         *time.Time
	HasError      *bool
	Search        string
	IncludeAdmin  bool
	HideKeepalive bool
	StartIndex    int
	Count         int
}

// QueryRequestLogs applies RequestLogFilter, including the keepalive
// suppression predicate evaluated at the storage level so pagination
// counts stay accurate.
func (s *Store) QueryRequestLogs(ctx context.Context, f RequestLogFilter) ([]RequestLogEntry, int, error) {
	var where []string
	var args []any

	if f.Method != "" {
		where = append(where, "method = ?")
		args = append(args, strings.ToUpper(f.Method))
	}
	if f.Status != 0 {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.URLContains != "" {
		where = append(where, "url LIKE ?")
		args = append(args, "%"+f.URLContains+"%")
	}
	if f.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.Until.UTC())
	}
	if f.HasError != nil {
		if *f.HasError {
			where = append(where, "error_message IS NOT NULL")
		} else {
			where = append(where, "error_message IS NULL")
		}
	}
	if f.Search != "" {
		where = append(where, "(url LIKE ? OR request_body LIKE ? OR response_body LIKE ? OR request_headers LIKE ? OR error_message LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like, like, like, like)
	}
	if !f.IncludeAdmin {
		where = append(where, "url NOT LIKE '/admin%' AND url != '/'")
	}
	if f.HideKeepalive {
		where = append(where, "NOT (method = 'GET' AND url LIKE '%/Users%' AND url LIKE '%?filter=%' AND identifier IS NULL AND status < 400)")
	}

	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM request_logs %s", clause)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count request logs: %w", err)
	}

	startIndex := f.StartIndex
	if startIndex < 1 {
		startIndex = 1
	}
	count := f.Count
	if count <= 0 {
		count = 100
	}

	query := fmt.Sprintf("SELECT * FROM request_logs %s ORDER BY created_at DESC LIMIT ? OFFSET ?", clause)
	queryArgs := append(append([]any{}, args...), count, startIndex-1)

	var rows []RequestLogEntry
	if err := s.db.SelectContext(ctx, &rows, query, queryArgs...); err != nil {
		return nil, 0, fmt.Errorf("query request logs: %w", err)
	}

	return rows, total, nil
}

// PurgeRequestLogsBefore deletes rows older than cutoff.
func (s *Store) PurgeRequestLogsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM request_logs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return fmt.Errorf("purge request logs: %w", err)
	}
	return nil
}
