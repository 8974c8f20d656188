package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/lifeline/internal/core/domain"
)

// RecordRepo stores error records. It implements the recorder's Sink
// interface so the archive plugs into the forwarding pipeline directly.
type RecordRepo struct {
	db *DB
}

func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

type recordRow struct {
	ID        string    `db:"id"`
	Message   string    `db:"message"`
	Severity  string    `db:"severity"`
	Source    string    `db:"source"`
	Timestamp time.Time `db:"recorded_at"`
}

// Emit inserts one record.
func (r *RecordRepo) Emit(ctx context.Context, rec domain.ErrorRecord) error {
	const q = `
		INSERT INTO error_records (id, message, severity, source, recorded_at)
		VALUES (:id, :message, :severity, :source, :recorded_at)
		ON CONFLICT (id) DO NOTHING`

	row := recordRow{
		ID:        rec.ID,
		Message:   rec.Message,
		Severity:  string(rec.Severity),
		Source:    rec.Source,
		Timestamp: rec.Timestamp,
	}
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("insert error record: %w", err)
	}
	return nil
}

// Close satisfies the Sink interface. The connection is owned by the
// composition root.
func (r *RecordRepo) Close() error { return nil }

// Recent returns the newest records, newest first.
func (r *RecordRepo) Recent(ctx context.Context, limit int) ([]domain.ErrorRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, message, severity, source, recorded_at
		FROM error_records
		ORDER BY recorded_at DESC
		LIMIT $1`

	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("select error records: %w", err)
	}

	out := make([]domain.ErrorRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ErrorRecord{
			ID:        row.ID,
			Message:   row.Message,
			Severity:  domain.Severity(row.Severity),
			Source:    row.Source,
			Timestamp: row.Timestamp,
		})
	}
	return out, nil
}
