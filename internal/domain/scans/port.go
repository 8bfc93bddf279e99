package scans

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, s *Scan) error
	// Complete writes the terminal fields of a scan. It fails with a
	// not-found error when no row matches user and id.
	Complete(ctx context.Context, user string, id ScanID, c Completion) error
	Get(ctx context.Context, user string, id ScanID) (*Scan, error)
	Latest(ctx context.Context, user string, limit int) ([]*Scan, error)
	Paginate(ctx context.Context, user string, page, pageSize int) (PaginatedResult, error)
	Summary(ctx context.Context, user string, since time.Time) (Summary, error)
}

// ReportStore port (penyimpanan laporan hasil scan)
type ReportStore interface {
	PutReport(ctx context.Context, key string, body []byte) (string, error)
}
