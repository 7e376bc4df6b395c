package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"dockman/internal/storage"
)

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open инициализирует соединение и выполняет миграции.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			action TEXT NOT NULL,
			success INTEGER NOT NULL,
			error_code TEXT,
			message TEXT,
			source TEXT,
			request_id TEXT,
			duration_ms INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_ts ON operations(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_action_ts ON operations(action, ts);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveOperation сохраняет запись об операции.
func (s *Store) SaveOperation(ctx context.Context, rec storage.OperationRecord) error {
	ts := rec.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO operations(action, success, error_code, message, source, request_id, duration_ms, ts) VALUES(?,?,?,?,?,?,?,?)`,
		rec.Action, rec.Success, rec.ErrorCode, rec.Message, rec.Source, rec.RequestID, rec.DurationMS, ts.UTC())
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// QueryOperations возвращает историю по фильтрам, новые записи первыми.
func (s *Store) QueryOperations(ctx context.Context, q storage.OperationQuery) ([]storage.OperationRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	from := q.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := q.To
	if to.IsZero() {
		to = time.Now().UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT action, success, error_code, message, source, request_id, duration_ms, ts
FROM operations
WHERE ts >= ? AND ts <= ? AND (? = '' OR action = ?)
ORDER BY ts DESC, id DESC
LIMIT ?`, from.UTC(), to.UTC(), q.Action, q.Action, limit)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	records := make([]storage.OperationRecord, 0, limit)
	for rows.Next() {
		var rec storage.OperationRecord
		var ts string
		if err := rows.Scan(&rec.Action, &rec.Success, &rec.ErrorCode, &rec.Message, &rec.Source, &rec.RequestID, &rec.DurationMS, &ts); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		parsedTS, err := parseSQLiteTS(ts)
		if err != nil {
			return nil, fmt.Errorf("parse operation timestamp: %w", err)
		}
		rec.TS = parsedTS
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return records, nil
}

// SaveSnapshot сохраняет снимок статуса.
func (s *Store) SaveSnapshot(ctx context.Context, rec storage.SnapshotRecord) error {
	ts := rec.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO snapshots(payload, ts) VALUES(?,?)`, rec.Payload, ts.UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot возвращает последний снимок статуса.
func (s *Store) LatestSnapshot(ctx context.Context) (storage.SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT payload, ts FROM snapshots ORDER BY ts DESC, id DESC LIMIT 1`)
	var rec storage.SnapshotRecord
	var ts string
	if err := row.Scan(&rec.Payload, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SnapshotRecord{}, fmt.Errorf("latest snapshot: %w", storage.ErrNotFound)
		}
		return storage.SnapshotRecord{}, fmt.Errorf("query latest snapshot: %w", err)
	}
	parsedTS, err := parseSQLiteTS(ts)
	if err != nil {
		return storage.SnapshotRecord{}, fmt.Errorf("parse snapshot timestamp: %w", err)
	}
	rec.TS = parsedTS
	return rec, nil
}

// Prune удаляет операции и снимки старше before.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"operations", "snapshots"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, before.UTC())
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarshalPayload упрощает сериализацию снимков.
func MarshalPayload(data interface{}) ([]byte, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return buf, nil
}
