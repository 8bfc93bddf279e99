package sqlrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

type ScanRepository struct {
	db *sql.DB
	d  Dialect
}

var _ domain.Repository = (*ScanRepository)(nil)

func NewScanRepository(db *sql.DB, d Dialect) *ScanRepository {
	return &ScanRepository{db: db, d: d}
}

const scanColumns = `id, user_id, scan_type, scan_path, status, files_scanned, threats_found, started_at, completed_at, report_url`

// Create insert Scan record
func (r *ScanRepository) Create(ctx context.Context, s *domain.Scan) error {
	q := r.d.rebind(`
INSERT INTO scans (` + scanColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?)`)

	started := s.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	var completed sql.NullTime
	if s.CompletedAt != nil {
		completed = sql.NullTime{Time: s.CompletedAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		string(s.ID), s.UserID, string(s.Type), s.Path, string(s.Status),
		s.FilesScanned, s.ThreatsFound, started.UTC(), completed, s.ReportURL,
	)
	if err != nil {
		return fmt.Errorf("inserting scan: %w", err)
	}
	return nil
}

// Complete update kolom terminal satu scan
func (r *ScanRepository) Complete(ctx context.Context, user string, id domain.ScanID, c domain.Completion) error {
	q := r.d.rebind(`
UPDATE scans
SET status = ?, files_scanned = ?, threats_found = ?, completed_at = ?, report_url = ?
WHERE user_id = ? AND id = ?`)

	res, err := r.db.ExecContext(ctx, q,
		string(c.Status), c.FilesScanned, c.ThreatsFound, c.CompletedAt.UTC(), c.ReportURL,
		user, string(id),
	)
	if err != nil {
		return fmt.Errorf("completing scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing scan: %w", err)
	}
	if n == 0 {
		// MySQL reports 0 when values did not change; confirm the row exists.
		if _, err := r.Get(ctx, user, id); err != nil {
			return err
		}
	}
	return nil
}

// Get by ID + user
func (r *ScanRepository) Get(ctx context.Context, user string, id domain.ScanID) (*domain.Scan, error) {
	q := r.d.rebind(`SELECT ` + scanColumns + ` FROM scans WHERE user_id = ? AND id = ?`)
	s, err := scanScan(r.db.QueryRowContext(ctx, q, user, string(id)))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(err).
			Category(errors.CategoryNotFound).
			Op("scans.get").
			Msg("scan not found").
			Context("scan_id", id).
			Build()
	}
	if err != nil {
		return nil, fmt.Errorf("querying scan: %w", err)
	}
	return s, nil
}

// Latest scans per user
func (r *ScanRepository) Latest(ctx context.Context, user string, limit int) ([]*domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.d.rebind(`SELECT ` + scanColumns + ` FROM scans
WHERE user_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`)
	return r.query(ctx, q, user, limit)
}

// Paginate with offset + limit (classic pagination)
func (r *ScanRepository) Paginate(ctx context.Context, user string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q := r.d.rebind(`SELECT ` + scanColumns + ` FROM scans
WHERE user_id = ? ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`)
	data, err := r.query(ctx, q, user, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, err
	}

	var total int64
	cq := r.d.rebind(`SELECT COUNT(*) FROM scans WHERE user_id = ?`)
	if err := r.db.QueryRowContext(ctx, cq, user).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Summary counts scan results since a point in time
func (r *ScanRepository) Summary(ctx context.Context, user string, since time.Time) (domain.Summary, error) {
	q := r.d.rebind(`
SELECT COUNT(*) AS total_scans,
       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed_scans,
       COALESCE(SUM(files_scanned), 0) AS files_scanned,
       COALESCE(SUM(threats_found), 0) AS threats_found
FROM scans
WHERE user_id = ? AND started_at >= ?`)

	var s domain.Summary
	if err := r.db.QueryRowContext(ctx, q, user, since.UTC()).Scan(
		&s.TotalScans, &s.CompletedScans, &s.FilesScanned, &s.ThreatsFound,
	); err != nil {
		return domain.Summary{}, fmt.Errorf("summarizing scans: %w", err)
	}
	return s, nil
}

func (r *ScanRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Scan, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	out := []*domain.Scan{}
	for rows.Next() {
		s, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func scanScan(row scanner) (*domain.Scan, error) {
	var (
		s         domain.Scan
		completed sql.NullTime
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &s.Type, &s.Path, &s.Status,
		&s.FilesScanned, &s.ThreatsFound, &s.StartedAt, &completed, &s.ReportURL,
	); err != nil {
		return nil, err
	}
	s.StartedAt = s.StartedAt.UTC()
	s.CompletedAt = nullTime(completed)
	return &s, nil
}
