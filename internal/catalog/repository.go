package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository persists day records and ledger configuration.
type Repository interface {
	UpsertDay(ctx context.Context, day *Day) error
	GetDay(ctx context.Context, date string) (*Day, error)
	ListDays(ctx context.Context, limit int) ([]*Day, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const dayColumns = `date, status, sunrise, sunset, capture_start, capture_end,
	interval_seconds, frames_target, frames_captured, video_path, video_bytes,
	session_id, error, created_at, updated_at`

// UpsertDay inserts or replaces the record for day.Date. CreatedAt is kept
// from the first insert.
func (r *SQLiteRepository) UpsertDay(ctx context.Context, d *Day) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO days (`+dayColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			status = excluded.status,
			sunrise = excluded.sunrise,
			sunset = excluded.sunset,
			capture_start = excluded.capture_start,
			capture_end = excluded.capture_end,
			interval_seconds = excluded.interval_seconds,
			frames_target = excluded.frames_target,
			frames_captured = excluded.frames_captured,
			video_path = excluded.video_path,
			video_bytes = excluded.video_bytes,
			session_id = excluded.session_id,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, d.Date, d.Status,
		nullTime(d.Sunrise), nullTime(d.Sunset), nullTime(d.CaptureStart), nullTime(d.CaptureEnd),
		d.IntervalSeconds, d.FramesTarget, d.FramesCaptured,
		nullString(d.VideoPath), d.VideoBytes, nullString(d.SessionID), nullString(d.Error),
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339))
	return err
}

// GetDay returns the record for date, or nil if none exists.
func (r *SQLiteRepository) GetDay(ctx context.Context, date string) (*Day, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+dayColumns+` FROM days WHERE date = ?`, date)
	if err != nil {
		return nil, err
	}
	days, err := scanDays(rows)
	if err != nil || len(days) == 0 {
		return nil, err
	}
	return days[0], nil
}

// ListDays returns the most recent records, newest first.
func (r *SQLiteRepository) ListDays(ctx context.Context, limit int) ([]*Day, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+dayColumns+` FROM days ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanDays(rows)
}

func scanDays(rows *sql.Rows) ([]*Day, error) {
	defer rows.Close()

	var days []*Day
	for rows.Next() {
		var d Day
		var sunrise, sunset, start, end sql.NullString
		var videoPath, sessionID, errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&d.Date, &d.Status, &sunrise, &sunset, &start, &end,
			&d.IntervalSeconds, &d.FramesTarget, &d.FramesCaptured, &videoPath, &d.VideoBytes,
			&sessionID, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		d.Sunrise = parseTime(sunrise)
		d.Sunset = parseTime(sunset)
		d.CaptureStart = parseTime(start)
		d.CaptureEnd = parseTime(end)
		d.VideoPath = videoPath.String
		d.SessionID = sessionID.String
		d.Error = errMsg.String
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		days = append(days, &d)
	}
	return days, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s.String)
	return t
}
