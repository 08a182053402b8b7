package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/gauge-tracker/constants"
	"github.com/joseph-ayodele/gauge-tracker/internal/entity"
)

const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

type ReadingRepository interface {
	Insert(ctx context.Context, recs ...*entity.Reading) error
	ListRecent(ctx context.Context, limit int) ([]*entity.Reading, error)
	ListAll(ctx context.Context) ([]*entity.Reading, error)
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)
}

type readingRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
}

func NewReadingRepository(db *DB, logger *slog.Logger) ReadingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &readingRepository{drv: db.drv, logger: logger}
}

// Insert stores the records in one statement. Missing IDs and creation times are filled in.
func (r *readingRepository) Insert(ctx context.Context, recs ...*entity.Reading) error {
	if len(recs) == 0 {
		return nil
	}
	ins := entsql.Dialect(r.drv.Dialect()).Insert(readingsTable).Columns(readingColumns...)
	for _, rec := range recs {
		if rec.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			rec.ID = id
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		ins.Values(
			rec.ID.String(), rec.Source, rec.ContentHash, formatCaptured(rec.Date),
			nullFloat(rec.Temperature), nullFloat(rec.Humidity), nullFloat(rec.Lat), nullFloat(rec.Lng),
			string(rec.Status), rec.NeedsReview, rec.Notes, rec.LLMReason, rec.Error,
			rec.CreatedAt.UTC().Format(createdAtLayout),
		)
	}
	query, args := ins.Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to insert readings", "count", len(recs), "error", err)
		return fmt.Errorf("insert readings: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *readingRepository) ListRecent(ctx context.Context, limit int) ([]*entity.Reading, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, limit)
}

// ListAll returns every stored record, newest first.
func (r *readingRepository) ListAll(ctx context.Context) ([]*entity.Reading, error) {
	return r.list(ctx, 0)
}

// list applies no LIMIT when limit is 0.
func (r *readingRepository) list(ctx context.Context, limit int) ([]*entity.Reading, error) {
	b := entsql.Dialect(r.drv.Dialect())
	t := b.Table(readingsTable)
	cols := make([]string, len(readingColumns))
	for i, c := range readingColumns {
		cols[i] = t.C(c)
	}
	sel := b.Select(cols...).From(t).
		OrderBy(entsql.Desc(t.C("created_at")), entsql.Desc(t.C("id")))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		r.logger.Error("failed to list readings", "error", err)
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Reading, 0, min(limit, 64))
	for rows.Next() {
		rec, err := scanReading(&rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *readingRepository) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	if contentHash == "" {
		return false, nil
	}
	b := entsql.Dialect(r.drv.Dialect())
	t := b.Table(readingsTable)
	query, args := b.Select(t.C("id")).From(t).Where(entsql.EQ(t.C("content_hash"), contentHash)).Limit(1).Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return false, fmt.Errorf("lookup content hash: %w", err)
	}
	defer func() { _ = rows.Close() }()
	found := rows.Next()
	return found, rows.Err()
}

func scanReading(rows *entsql.Rows) (*entity.Reading, error) {
	var (
		rec                 entity.Reading
		id, status, created string
		captured            sql.NullString
		temp, hum, lat, lng sql.NullFloat64
	)
	if err := rows.Scan(
		&id, &rec.Source, &rec.ContentHash, &captured,
		&temp, &hum, &lat, &lng,
		&status, &rec.NeedsReview, &rec.Notes, &rec.LLMReason, &rec.Error, &created,
	); err != nil {
		return nil, fmt.Errorf("scan reading: %w", err)
	}
	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("scan reading id: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(createdAtLayout, created); err != nil {
		return nil, fmt.Errorf("scan reading created_at: %w", err)
	}
	if captured.Valid {
		ts, err := time.Parse(time.RFC3339, captured.String)
		if err != nil {
			return nil, fmt.Errorf("scan reading captured_at: %w", err)
		}
		rec.Date = &ts
	}
	rec.Status = constants.PhotoStatus(status)
	rec.Temperature = ptrFloat(temp)
	rec.Humidity = ptrFloat(hum)
	rec.Lat = ptrFloat(lat)
	rec.Lng = ptrFloat(lng)
	return &rec, nil
}

func formatCaptured(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func ptrFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
