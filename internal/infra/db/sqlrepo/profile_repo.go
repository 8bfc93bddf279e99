package sqlrepo

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

type ProfileRepository struct {
	db *sql.DB
	d  Dialect
}

var _ profiles.Repository = (*ProfileRepository)(nil)

func NewProfileRepository(db *sql.DB, d Dialect) *ProfileRepository {
	return &ProfileRepository{db: db, d: d}
}

func (r *ProfileRepository) Get(ctx context.Context, user string) (*profiles.Profile, error) {
	q := r.d.rebind(`
SELECT user_id, email, full_name, subscription_tier, subscription_status, subscription_end, created_at, updated_at
FROM profiles WHERE user_id = ?`)

	var (
		p   profiles.Profile
		end sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, user).Scan(
		&p.UserID, &p.Email, &p.FullName, &p.Tier, &p.SubscriptionStatus, &end, &p.CreatedAt, &p.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(err).
			Category(errors.CategoryNotFound).
			Op("profiles.get").
			Msg("profile not found").
			Context("user_id", user).
			Build()
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	p.SubscriptionEnd = nullTime(end)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Save upserts a profile; created_at of an existing row is kept.
func (r *ProfileRepository) Save(ctx context.Context, p *profiles.Profile) error {
	var q string
	switch r.d {
	case MySQL:
		q = `
INSERT INTO profiles (user_id, email, full_name, subscription_tier, subscription_status, subscription_end, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 email=VALUES(email), full_name=VALUES(full_name),
 subscription_tier=VALUES(subscription_tier), subscription_status=VALUES(subscription_status),
 subscription_end=VALUES(subscription_end), updated_at=VALUES(updated_at)`
	default:
		q = r.d.rebind(`
INSERT INTO profiles (user_id, email, full_name, subscription_tier, subscription_status, subscription_end, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT (user_id) DO UPDATE SET
 email = excluded.email, full_name = excluded.full_name,
 subscription_tier = excluded.subscription_tier, subscription_status = excluded.subscription_status,
 subscription_end = excluded.subscription_end, updated_at = excluded.updated_at`)
	}

	now := time.Now().UTC()
	created, updated := p.CreatedAt, p.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}
	var end sql.NullTime
	if p.SubscriptionEnd != nil {
		end = sql.NullTime{Time: p.SubscriptionEnd.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		p.UserID, p.Email, p.FullName, string(p.Tier), p.SubscriptionStatus, end, created.UTC(), updated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}
