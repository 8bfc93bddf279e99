package profiles

import (
	"time"

	"github.com/bryanwahyu/n0dr1e/internal/domain/scans"
)

// Tier enum
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Allows reports whether the tier may run scans of type st. Full system
// scans are a paid feature.
func (t Tier) Allows(st scans.Type) bool {
	if st == scans.TypeFull {
		return t == TierPro || t == TierEnterprise
	}
	return true
}

// Profile is one per authenticated user; read-mostly.
type Profile struct {
	UserID             string     `json:"user_id"`
	Email              string     `json:"email"`
	FullName           string     `json:"full_name,omitempty"`
	Tier               Tier       `json:"subscription_tier"`
	SubscriptionStatus string     `json:"subscription_status,omitempty"`
	SubscriptionEnd    *time.Time `json:"subscription_end,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Anonymous is the profile assumed for users without a stored row.
func Anonymous(user string) *Profile {
	return &Profile{UserID: user, Tier: TierFree}
}
