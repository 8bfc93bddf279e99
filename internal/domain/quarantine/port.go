package quarantine

import (
	"context"

	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
)

// Repository port for quarantine entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByThreat(ctx context.Context, user string, threatID threats.ThreatID) (*Entry, error)
	List(ctx context.Context, user string) ([]*Entry, error)
}
