package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"roadsense/go-hub-server/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an operation references an absent record id.
var ErrNotFound = errors.New("record not found")

// ErrUnavailable is returned when the underlying database handle is not
// usable. Callers may retry after the store comes back.
var ErrUnavailable = errors.New("store not initialized")

// Store wraps the SQLite database connection and schema lifecycle.
// All operations are atomic per call and safe for concurrent callers.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures baseline tables exist. AUTOINCREMENT keeps record
// identifiers monotonic; ids are never reused after deletion.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS processed_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			road_state TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			accel_x INTEGER NOT NULL,
			accel_y INTEGER NOT NULL,
			accel_z INTEGER NOT NULL,
			longitude REAL NOT NULL,
			latitude REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_processed_records_user_time ON processed_records(user_id, recorded_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// CreateBatch persists all records in one transaction, assigns ids and
// returns the stored records in input order with ids populated.
func (s *Store) CreateBatch(ctx context.Context, records []model.ProcessedRecord) (stored []model.ProcessedRecord, err error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO processed_records (road_state, user_id, accel_x, accel_y, accel_z, longitude, latitude, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
	)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	stored = make([]model.ProcessedRecord, len(records))
	for i, record := range records {
		result, execErr := stmt.ExecContext(
			ctx,
			string(record.RoadState),
			record.UserID,
			record.Accelerometer.X,
			record.Accelerometer.Y,
			record.Accelerometer.Z,
			record.Gps.Longitude,
			record.Gps.Latitude,
			record.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if execErr != nil {
			err = fmt.Errorf("insert record: %w", execErr)
			return nil, err
		}

		id, idErr := result.LastInsertId()
		if idErr != nil {
			err = fmt.Errorf("read insert id: %w", idErr)
			return nil, err
		}

		record.ID = id
		stored[i] = record
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	return stored, nil
}

const selectRecordSQL = `
SELECT id, road_state, user_id, accel_x, accel_y, accel_z, longitude, latitude, recorded_at
FROM processed_records`

// GetByID returns the record with the given id.
func (s *Store) GetByID(ctx context.Context, id int64) (model.ProcessedRecord, error) {
	if s.db == nil {
		return model.ProcessedRecord{}, ErrUnavailable
	}

	row := s.db.QueryRowContext(ctx, selectRecordSQL+` WHERE id = ?;`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProcessedRecord{}, ErrNotFound
	}
	if err != nil {
		return model.ProcessedRecord{}, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// ListAll returns every stored record ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]model.ProcessedRecord, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	rows, err := s.db.QueryContext(ctx, selectRecordSQL+` ORDER BY id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []model.ProcessedRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// UpdateByID replaces every field of the stored record with the supplied
// values. The road state is taken verbatim, never recomputed.
func (s *Store) UpdateByID(ctx context.Context, id int64, record model.ProcessedRecord) (model.ProcessedRecord, error) {
	if s.db == nil {
		return model.ProcessedRecord{}, ErrUnavailable
	}

	result, err := s.db.ExecContext(
		ctx,
		`UPDATE processed_records
		 SET road_state = ?, user_id = ?, accel_x = ?, accel_y = ?, accel_z = ?, longitude = ?, latitude = ?, recorded_at = ?
		 WHERE id = ?;`,
		string(record.RoadState),
		record.UserID,
		record.Accelerometer.X,
		record.Accelerometer.Y,
		record.Accelerometer.Z,
		record.Gps.Longitude,
		record.Gps.Latitude,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return model.ProcessedRecord{}, fmt.Errorf("update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return model.ProcessedRecord{}, fmt.Errorf("update result: %w", err)
	}
	if affected == 0 {
		return model.ProcessedRecord{}, ErrNotFound
	}

	record.ID = id
	return record, nil
}

// DeleteByID removes the record and returns its prior value.
func (s *Store) DeleteByID(ctx context.Context, id int64) (prior model.ProcessedRecord, err error) {
	if s.db == nil {
		return model.ProcessedRecord{}, ErrUnavailable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ProcessedRecord{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, selectRecordSQL+` WHERE id = ?;`, id)
	prior, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return model.ProcessedRecord{}, err
	}
	if err != nil {
		err = fmt.Errorf("get record: %w", err)
		return model.ProcessedRecord{}, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM processed_records WHERE id = ?;`, id); err != nil {
		err = fmt.Errorf("delete record: %w", err)
		return model.ProcessedRecord{}, err
	}

	if err = tx.Commit(); err != nil {
		return model.ProcessedRecord{}, fmt.Errorf("commit delete: %w", err)
	}

	return prior, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.ProcessedRecord, error) {
	var (
		record        model.ProcessedRecord
		roadState     string
		recordedAtStr string
	)

	if err := row.Scan(
		&record.ID,
		&roadState,
		&record.UserID,
		&record.Accelerometer.X,
		&record.Accelerometer.Y,
		&record.Accelerometer.Z,
		&record.Gps.Longitude,
		&record.Gps.Latitude,
		&recordedAtStr,
	); err != nil {
		return model.ProcessedRecord{}, err
	}

	record.RoadState = model.RoadState(roadState)

	recordedAt, err := time.Parse(time.RFC3339Nano, recordedAtStr)
	if err != nil {
		recordedAt, _ = time.Parse("2006-01-02T15:04:05Z07:00", recordedAtStr)
	}
	record.Timestamp = recordedAt

	return record, nil
}
