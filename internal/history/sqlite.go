package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS history (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	request_id  TEXT NOT NULL DEFAULT '',
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	status      INTEGER NOT NULL,
	status_text TEXT NOT NULL,
	duration    INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	response    TEXT
);
CREATE INDEX IF NOT EXISTS history_request ON history(request_id);
`

const sqliteColumns = `id, request_id, method, url, timestamp, status, status_text, duration, size, response`

// SQLiteStore keeps history in a SQLite database file.
type SQLiteStore struct {
	db    *sql.DB
	limit int
}

func OpenSQLite(ctx context.Context, path string, limit int) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errdef.Wrap(errdef.CodeFilesystem, err, "create history dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "open history db")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errdef.Wrap(errdef.CodeHistory, err, "ping history db")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errdef.Wrap(errdef.CodeHistory, err, "migrate history db")
	}
	return &SQLiteStore{db: db, limit: normalizeLimit(limit)}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(entry model.HistoryEntry) error {
	var response any
	if entry.Response != nil {
		data, err := json.Marshal(entry.Response)
		if err != nil {
			return errdef.Wrap(errdef.CodeHistory, err, "encode response")
		}
		response = string(data)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "begin")
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO history (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RequestID, entry.Method, entry.URL, entry.Timestamp,
		entry.Status, entry.StatusText, entry.Duration, entry.Size, response,
	)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "insert entry")
	}
	_, err = tx.Exec(
		`DELETE FROM history WHERE seq NOT IN (
			SELECT seq FROM history ORDER BY seq DESC LIMIT ?
		)`, s.limit)
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "evict entries")
	}
	if err := tx.Commit(); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "commit")
	}
	return nil
}

func (s *SQLiteStore) Entries() ([]model.HistoryEntry, error) {
	return s.query(`SELECT ` + sqliteColumns + ` FROM history ORDER BY seq DESC`)
}

func (s *SQLiteStore) ByRequest(requestID string) ([]model.HistoryEntry, error) {
	if requestID == "" {
		return s.Entries()
	}
	return s.query(`SELECT `+sqliteColumns+` FROM history WHERE request_id = ? ORDER BY seq DESC`, requestID)
}

func (s *SQLiteStore) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete entry")
	}
	return n > 0, nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM history`); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "clear history")
	}
	return nil
}

func (s *SQLiteStore) query(q string, args ...any) ([]model.HistoryEntry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "query history")
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var (
			entry    model.HistoryEntry
			response sql.NullString
		)
		if err := rows.Scan(
			&entry.ID, &entry.RequestID, &entry.Method, &entry.URL, &entry.Timestamp,
			&entry.Status, &entry.StatusText, &entry.Duration, &entry.Size, &response,
		); err != nil {
			return nil, errdef.Wrap(errdef.CodeHistory, err, "scan history")
		}
		if response.Valid && response.String != "" {
			var env model.ResponseEnvelope
			if err := json.Unmarshal([]byte(response.String), &env); err != nil {
				return nil, errdef.Wrap(errdef.CodeHistory, err, "decode response %s", entry.ID)
			}
			entry.Response = &env
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "read history")
	}
	return entries, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
