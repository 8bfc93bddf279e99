package threats

import "context"

// Repository port for threat records.
type Repository interface {
	// CreateBatch inserts all threats or none.
	CreateBatch(ctx context.Context, ts []*Threat) error
	Get(ctx context.Context, user string, id ThreatID) (*Threat, error)
	// List returns the user's threats ordered by detected_at desc.
	List(ctx context.Context, user string, f Filter) ([]*Threat, error)
	// Resolve applies r only while the threat is still detected. ok is false
	// when the row exists but was already resolved.
	Resolve(ctx context.Context, user string, id ThreatID, r Resolution) (ok bool, err error)
	// Revert moves a threat from status back to detected, clearing the
	// resolution fields. Used to compensate a partially applied quarantine.
	Revert(ctx context.Context, user string, id ThreatID, from Status) error
	CountActive(ctx context.Context, user string) (int, error)
}
