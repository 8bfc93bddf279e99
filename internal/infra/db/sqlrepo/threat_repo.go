package sqlrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	domain "github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

type ThreatRepository struct {
	db *sql.DB
	d  Dialect
}

var _ domain.Repository = (*ThreatRepository)(nil)

func NewThreatRepository(db *sql.DB, d Dialect) *ThreatRepository {
	return &ThreatRepository{db: db, d: d}
}

const threatColumns = `id, user_id, scan_id, file_path, threat_name, threat_type, severity, status, detected_at, resolved_at, action_taken`

// CreateBatch inserts every threat in one transaction.
func (r *ThreatRepository) CreateBatch(ctx context.Context, ts []*domain.Threat) (err error) {
	if len(ts) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, r.d.rebind(`
INSERT INTO threats (`+threatColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`))
	if err != nil {
		return fmt.Errorf("preparing threat insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range ts {
		var resolved sql.NullTime
		if t.ResolvedAt != nil {
			resolved = sql.NullTime{Time: t.ResolvedAt.UTC(), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			string(t.ID), t.UserID, string(t.ScanID), t.FilePath, t.Name,
			string(t.Type), string(t.Severity), string(t.Status),
			t.DetectedAt.UTC(), resolved, t.ActionTaken,
		); err != nil {
			return fmt.Errorf("inserting threat %s: %w", t.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit threats: %w", err)
	}
	return nil
}

func (r *ThreatRepository) Get(ctx context.Context, user string, id domain.ThreatID) (*domain.Threat, error) {
	q := r.d.rebind(`SELECT ` + threatColumns + ` FROM threats WHERE user_id = ? AND id = ?`)
	t, err := scanThreat(r.db.QueryRowContext(ctx, q, user, string(id)))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(err).
			Category(errors.CategoryNotFound).
			Op("threats.get").
			Msg("threat not found").
			Context("threat_id", id).
			Build()
	}
	if err != nil {
		return nil, fmt.Errorf("querying threat: %w", err)
	}
	return t, nil
}

// List returns the user's threats ordered by detected_at desc.
func (r *ThreatRepository) List(ctx context.Context, user string, f domain.Filter) ([]*domain.Threat, error) {
	q := `SELECT ` + threatColumns + ` FROM threats WHERE user_id = ?`
	args := []any{user}
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.ScanID != "" {
		q += ` AND scan_id = ?`
		args = append(args, string(f.ScanID))
	}
	q += ` ORDER BY detected_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, r.d.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("querying threats: %w", err)
	}
	defer rows.Close()

	out := []*domain.Threat{}
	for rows.Next() {
		t, err := scanThreat(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// Resolve is a conditional update: only a detected threat moves.
func (r *ThreatRepository) Resolve(ctx context.Context, user string, id domain.ThreatID, res domain.Resolution) (bool, error) {
	q := r.d.rebind(`
UPDATE threats
SET status = ?, resolved_at = ?, action_taken = ?
WHERE user_id = ? AND id = ? AND status = ?`)

	result, err := r.db.ExecContext(ctx, q,
		string(res.Status), res.ResolvedAt.UTC(), res.ActionTaken,
		user, string(id), string(domain.StatusDetected),
	)
	if err != nil {
		return false, fmt.Errorf("resolving threat: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolving threat: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.Get(ctx, user, id); err != nil {
		return false, err
	}
	return false, nil
}

// Revert puts a threat back to detected when it is still in status from.
func (r *ThreatRepository) Revert(ctx context.Context, user string, id domain.ThreatID, from domain.Status) error {
	q := r.d.rebind(`
UPDATE threats
SET status = ?, resolved_at = NULL, action_taken = ''
WHERE user_id = ? AND id = ? AND status = ?`)
	if _, err := r.db.ExecContext(ctx, q, string(domain.StatusDetected), user, string(id), string(from)); err != nil {
		return fmt.Errorf("reverting threat: %w", err)
	}
	return nil
}

func (r *ThreatRepository) CountActive(ctx context.Context, user string) (int, error) {
	q := r.d.rebind(`SELECT COUNT(*) FROM threats WHERE user_id = ? AND status = ?`)
	var n int
	if err := r.db.QueryRowContext(ctx, q, user, string(domain.StatusDetected)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting threats: %w", err)
	}
	return n, nil
}

func scanThreat(row scanner) (*domain.Threat, error) {
	var (
		t        domain.Threat
		resolved sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.ScanID, &t.FilePath, &t.Name,
		&t.Type, &t.Severity, &t.Status,
		&t.DetectedAt, &resolved, &t.ActionTaken,
	); err != nil {
		return nil, err
	}
	t.DetectedAt = t.DetectedAt.UTC()
	t.ResolvedAt = nullTime(resolved)
	return &t, nil
}
