// Package export copies bitable records into a local SQLite database.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// ErrRecordNotExported is returned by Get for a record the database does not hold.
var ErrRecordNotExported = errors.New("record not exported")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	app_token          TEXT    NOT NULL,
	table_id           TEXT    NOT NULL,
	record_id          TEXT    NOT NULL,
	fields             TEXT    NOT NULL,
	created_time       INTEGER NOT NULL DEFAULT 0,
	last_modified_time INTEGER NOT NULL DEFAULT 0,
	exported_at        INTEGER NOT NULL,
	PRIMARY KEY (app_token, table_id, record_id)
);`

const upsertSQL = `
INSERT INTO records (app_token, table_id, record_id, fields, created_time, last_modified_time, exported_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (app_token, table_id, record_id) DO UPDATE SET
	fields             = excluded.fields,
	created_time       = excluded.created_time,
	last_modified_time = excluded.last_modified_time,
	exported_at        = excluded.exported_at`

// SQLiteSink stores records keyed by app token, table ID and record ID.
// Writing a record that is already present replaces it.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening export database: %w", err)
	}

	// One writer; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, schemaSQL)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("creating export schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// WriteBatch upserts records in one transaction.
func (s *SQLiteSink) WriteBatch(ctx context.Context, appToken, tableID string, records []bitable.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning export transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("preparing upsert: %w", err)
	}

	defer func() {
		_ = stmt.Close()
	}()

	now := time.Now().UnixMilli()

	for _, record := range records {
		fields, err := json.Marshal(record.Fields)
		if err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("encoding fields of %s: %w", record.RecordID, err)
		}

		_, err = stmt.ExecContext(ctx, appToken, tableID, record.RecordID, string(fields),
			record.CreatedTime, record.LastModifiedTime, now)
		if err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("writing record %s: %w", record.RecordID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing export transaction: %w", err)
	}

	return nil
}

// Get reads one exported record.
func (s *SQLiteSink) Get(ctx context.Context, appToken, tableID, recordID string) (*bitable.Record, error) {
	var (
		fields string
		record = bitable.Record{RecordID: recordID}
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT fields, created_time, last_modified_time FROM records WHERE app_token = ? AND table_id = ? AND record_id = ?`,
		appToken, tableID, recordID,
	).Scan(&fields, &record.CreatedTime, &record.LastModifiedTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotExported, recordID)
	}

	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", recordID, err)
	}

	err = json.Unmarshal([]byte(fields), &record.Fields)
	if err != nil {
		return nil, fmt.Errorf("parsing fields of %s: %w", recordID, err)
	}

	return &record, nil
}

// Count returns the number of records held for one table.
func (s *SQLiteSink) Count(ctx context.Context, appToken, tableID string) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE app_token = ? AND table_id = ?`, appToken, tableID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}

	return count, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Table copies every record matched by opts from table into sink and returns
// the number of records written. Pages are committed as they arrive, so an
// interrupted export keeps what it already wrote.
func Table(ctx context.Context, table bitable.Table, sink *SQLiteSink, opts *bitable.SearchOptions) (int, error) {
	written := 0

	err := table.Iterate(ctx, opts, func(records []bitable.Record) error {
		err := sink.WriteBatch(ctx, table.AppToken(), table.TableID(), records)
		if err != nil {
			return err
		}

		written += len(records)

		return nil
	})
	if err != nil {
		return written, fmt.Errorf("exporting table %s: %w", table.TableID(), err)
	}

	return written, nil
}
