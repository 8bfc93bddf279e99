package profiles

import "context"

// Repository port for profiles.
type Repository interface {
	// Get returns a not-found error when the user has no profile.
	Get(ctx context.Context, user string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
}
