package profiles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/n0dr1e/internal/domain/scans"
)

func TestTierAllows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tier Tier
		typ  scans.Type
		want bool
	}{
		{TierFree, scans.TypeQuick, true},
		{TierFree, scans.TypeCustom, true},
		{TierFree, scans.TypeFull, false},
		{TierPro, scans.TypeFull, true},
		{TierEnterprise, scans.TypeFull, true},
		{Tier(""), scans.TypeFull, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier)+"/"+string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Allows(tt.typ))
		})
	}
}

func TestAnonymousIsFree(t *testing.T) {
	t.Parallel()

	p := Anonymous("u1")
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, TierFree, p.Tier)
	assert.True(t, p.Tier.Valid())
	assert.False(t, Tier("gold").Valid())
}
