package scans

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/bryanwahyu/n0dr1e/internal/application"
	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	domain "github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

// Service implements use-cases untuk Scan: the per-user simulator and the
// dashboard read models.
// Service is designed to be used concurrently and is thread-safe
type Service struct {
	Scans    domain.Repository
	Threats  threats.Repository
	Profiles profiles.Repository
	Reports  domain.ReportStore // optional
	Events   application.Publisher
	Metrics  application.Metrics
	Clock    application.Clock
	Random   application.Random
	Logger   *slog.Logger
	Config   SimulatorConfig

	once     sync.Once
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	// runs counts tick loops, including runs in their completion writes.
	runs     sync.WaitGroup
}

func (s *Service) init() {
	s.once.Do(func() {
		s.sessions = make(map[string]*Session)
		s.Config = s.Config.withDefaults()
		if s.Events == nil {
			s.Events = application.NopPublisher{}
		}
		if s.Metrics == nil {
			s.Metrics = application.NopMetrics{}
		}
		if s.Clock == nil {
			s.Clock = application.SystemClock{}
		}
		if s.Random == nil {
			s.Random = application.NewRandom(0)
		}
		if s.Logger == nil {
			s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
	})
}

//
// ==== READ MODELS ====
//

const (
	DefaultLatestLimit = 10
	MaxLatestLimit     = 100
	DefaultPageSize    = 20
	MaxPageSize        = 100
	DefaultSummaryDays = 30
	MaxSummaryDays     = 365
)

// Latest ambil N scan terakhir, newest first
func (s *Service) Latest(ctx context.Context, user string, limit int) ([]*domain.Scan, error) {
	s.init()
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	limit = min(limit, MaxLatestLimit)
	out, err := s.Scans.Latest(ctx, user, limit)
	if err != nil {
		return nil, errors.Persistence("scans.latest", err)
	}
	return out, nil
}

// Paginate returns one page of the scan history.
func (s *Service) Paginate(ctx context.Context, user string, page, pageSize int) (domain.PaginatedResult, error) {
	s.init()
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)
	res, err := s.Scans.Paginate(ctx, user, page, pageSize)
	if err != nil {
		return domain.PaginatedResult{}, errors.Persistence("scans.paginate", err)
	}
	return res, nil
}

// Get ambil 1 scan by id
func (s *Service) Get(ctx context.Context, user string, id domain.ScanID) (*domain.Scan, error) {
	s.init()
	if strings.TrimSpace(string(id)) == "" {
		return nil, errors.Validation("scans.get", "scan id is required")
	}
	sc, err := s.Scans.Get(ctx, user, id)
	if err != nil {
		return nil, errors.Persistence("scans.get", err)
	}
	return sc, nil
}

// SummaryView is the dashboard header: scan totals over a window plus the
// number of threats still waiting for a decision.
type SummaryView struct {
	domain.Summary
	ActiveThreats int `json:"active_threats"`
	Days          int `json:"days"`
}

// Summary rekap hasil scan N hari terakhir
func (s *Service) Summary(ctx context.Context, user string, sinceDays int) (SummaryView, error) {
	const op = "scans.summary"
	s.init()
	if sinceDays <= 0 {
		sinceDays = DefaultSummaryDays
	}
	sinceDays = min(sinceDays, MaxSummaryDays)
	since := s.Clock.Now().AddDate(0, 0, -sinceDays)

	sum, err := s.Scans.Summary(ctx, user, since)
	if err != nil {
		return SummaryView{}, errors.Persistence(op, err)
	}
	active, err := s.Threats.CountActive(ctx, user)
	if err != nil {
		return SummaryView{}, errors.Persistence(op, err)
	}
	return SummaryView{Summary: sum, ActiveThreats: active, Days: sinceDays}, nil
}

// Profile returns the stored profile of user, or the free-tier default.
func (s *Service) Profile(ctx context.Context, user string) (*profiles.Profile, error) {
	s.init()
	p, err := s.profile(ctx, user)
	if err != nil {
		return nil, errors.Persistence("profiles.get", err)
	}
	return p, nil
}

// SaveProfile upserts a profile. Used by the admin CLI.
func (s *Service) SaveProfile(ctx context.Context, p *profiles.Profile) error {
	const op = "profiles.save"
	s.init()
	if strings.TrimSpace(p.UserID) == "" {
		return errors.Validation(op, "user id is required")
	}
	if !p.Tier.Valid() {
		return errors.Validation(op, "subscription tier must be free, pro or enterprise")
	}
	now := s.Clock.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return errors.Persistence(op, s.Profiles.Save(ctx, p))
}

func (s *Service) profile(ctx context.Context, user string) (*profiles.Profile, error) {
	p, err := s.Profiles.Get(ctx, user)
	if errors.Is(err, errors.ErrNotFound) {
		return profiles.Anonymous(user), nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
