package sqlrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/bryanwahyu/n0dr1e/internal/domain/quarantine"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

type QuarantineRepository struct {
	db *sql.DB
	d  Dialect
}

var _ quarantine.Repository = (*QuarantineRepository)(nil)

func NewQuarantineRepository(db *sql.DB, d Dialect) *QuarantineRepository {
	return &QuarantineRepository{db: db, d: d}
}

const entryColumns = `id, threat_id, user_id, original_path, quarantine_path, file_size, quarantined_at, restored_at`

func (r *QuarantineRepository) Create(ctx context.Context, e *quarantine.Entry) error {
	q := r.d.rebind(`INSERT INTO quarantine (` + entryColumns + `) VALUES (?,?,?,?,?,?,?,?)`)
	var restored sql.NullTime
	if e.RestoredAt != nil {
		restored = sql.NullTime{Time: e.RestoredAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		string(e.ID), string(e.ThreatID), e.UserID, e.OriginalPath, e.QuarantinePath,
		e.FileSize, e.QuarantinedAt.UTC(), restored,
	)
	if err != nil {
		return fmt.Errorf("inserting quarantine entry: %w", err)
	}
	return nil
}

func (r *QuarantineRepository) GetByThreat(ctx context.Context, user string, id threats.ThreatID) (*quarantine.Entry, error) {
	q := r.d.rebind(`SELECT ` + entryColumns + ` FROM quarantine WHERE user_id = ? AND threat_id = ?`)
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, user, string(id)))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(err).
			Category(errors.CategoryNotFound).
			Op("quarantine.get").
			Msg("quarantine entry not found").
			Context("threat_id", id).
			Build()
	}
	if err != nil {
		return nil, fmt.Errorf("querying quarantine entry: %w", err)
	}
	return e, nil
}

func (r *QuarantineRepository) List(ctx context.Context, user string) ([]*quarantine.Entry, error) {
	q := r.d.rebind(`SELECT ` + entryColumns + ` FROM quarantine WHERE user_id = ? ORDER BY quarantined_at DESC, id DESC`)
	rows, err := r.db.QueryContext(ctx, q, user)
	if err != nil {
		return nil, fmt.Errorf("querying quarantine: %w", err)
	}
	defer rows.Close()

	out := []*quarantine.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func scanEntry(row scanner) (*quarantine.Entry, error) {
	var (
		e        quarantine.Entry
		restored sql.NullTime
	)
	if err := row.Scan(
		&e.ID, &e.ThreatID, &e.UserID, &e.OriginalPath, &e.QuarantinePath,
		&e.FileSize, &e.QuarantinedAt, &restored,
	); err != nil {
		return nil, err
	}
	e.QuarantinedAt = e.QuarantinedAt.UTC()
	e.RestoredAt = nullTime(restored)
	return &e, nil
}
