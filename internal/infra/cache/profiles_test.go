package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/memory"
)

type countingRepo struct {
	profiles.Repository
	gets int
}

func (r *countingRepo) Get(ctx context.Context, user string) (*profiles.Profile, error) {
	r.gets++
	return r.Repository.Get(ctx, user)
}

func TestProfiles_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Profiles().Save(ctx, &profiles.Profile{UserID: "u1", Tier: profiles.TierFree}))
	repo := &countingRepo{Repository: store.Profiles()}
	c := NewProfiles(repo, time.Minute, 0)

	for range 3 {
		p, err := c.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, profiles.TierFree, p.Tier)
	}
	assert.Equal(t, 1, repo.gets)
	assert.Equal(t, 1, c.Len())

	// callers cannot mutate the cached copy
	p, _ := c.Get(ctx, "u1")
	p.Tier = profiles.TierEnterprise
	p, _ = c.Get(ctx, "u1")
	assert.Equal(t, profiles.TierFree, p.Tier)

	require.NoError(t, c.Save(ctx, &profiles.Profile{UserID: "u1", Tier: profiles.TierPro}))
	p, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profiles.TierPro, p.Tier)
	assert.Equal(t, 2, repo.gets)
}

func TestProfiles_MissIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := &countingRepo{Repository: store.Profiles()}
	c := NewProfiles(repo, time.Minute, 0)

	_, err := c.Get(ctx, "u1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = c.Get(ctx, "u1")
	assert.Error(t, err)
	assert.Equal(t, 2, repo.gets)
	assert.Zero(t, c.Len())
}

func TestProfiles_Expiry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Profiles().Save(ctx, &profiles.Profile{UserID: "u1", Tier: profiles.TierFree}))
	repo := &countingRepo{Repository: store.Profiles()}
	c := NewProfiles(repo, 10*time.Millisecond, 0)

	_, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.gets)
}
