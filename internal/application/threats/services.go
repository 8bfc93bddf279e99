package threats

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bryanwahyu/n0dr1e/internal/application"
	"github.com/bryanwahyu/n0dr1e/internal/domain/quarantine"
	domain "github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

// MaxPlaceholderFileSize bounds the recorded size of a quarantined file.
// Nothing is read from disk; the size is a placeholder.
const MaxPlaceholderFileSize = 1024000

// Service implements the threat resolution workflow: every detected threat
// is resolved at most once, by quarantine, delete or ignore.
type Service struct {
	Threats    domain.Repository
	Entries    quarantine.Repository
	Events     application.Publisher
	Metrics    application.Metrics
	Clock      application.Clock
	Random     application.Random
	Logger     *slog.Logger
}

func (s *Service) defaults() {
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
}

// NewService wires a Service and fills the optional collaborators.
func NewService(s Service) *Service {
	s.defaults()
	return &s
}

// List returns the user's threats, newest first.
func (s *Service) List(ctx context.Context, user string, f domain.Filter) ([]*domain.Threat, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.Validation("threats.list", "unknown threat status "+string(f.Status))
	}
	out, err := s.Threats.List(ctx, user, f)
	if err != nil {
		return nil, errors.Persistence("threats.list", err)
	}
	return out, nil
}

// ListQuarantine returns the user's quarantine entries, newest first.
func (s *Service) ListQuarantine(ctx context.Context, user string) ([]*quarantine.Entry, error) {
	out, err := s.Entries.List(ctx, user)
	if err != nil {
		return nil, errors.Persistence("quarantine.list", err)
	}
	return out, nil
}

// Get returns one threat of user.
func (s *Service) Get(ctx context.Context, user string, id domain.ThreatID) (*domain.Threat, error) {
	t, err := s.Threats.Get(ctx, user, id)
	if err != nil {
		return nil, errors.Persistence("threats.get", err)
	}
	return t, nil
}

// QuarantineCommand untuk quarantine threat. FilePath defaults to the path
// recorded on the threat.
type QuarantineCommand struct {
	UserID   string
	ThreatID domain.ThreatID
	FilePath string
}

// Quarantine moves a detected threat to quarantine and records an entry.
// The two writes are not atomic: when the entry insert fails, the threat is
// reverted to detected. It returns the refreshed threat list.
func (s *Service) Quarantine(ctx context.Context, cmd QuarantineCommand) ([]*domain.Threat, error) {
	const op = "threats.quarantine"
	t, err := s.resolve(ctx, op, cmd.UserID, cmd.ThreatID, domain.ActionQuarantine)
	if err != nil {
		return nil, err
	}

	path := strings.TrimSpace(cmd.FilePath)
	if path == "" {
		path = t.FilePath
	}
	entry := &quarantine.Entry{
		ID:             quarantine.EntryID(uuid.NewString()),
		ThreatID:       t.ID,
		UserID:         cmd.UserID,
		OriginalPath:   path,
		QuarantinePath: quarantine.PathFor(t.ID, path),
		FileSize:       int64(s.Random.IntN(MaxPlaceholderFileSize)),
		QuarantinedAt:  s.Clock.Now(),
	}
	if err := s.Entries.Create(ctx, entry); err != nil {
		log := s.Logger.With("user", cmd.UserID, "threat_id", t.ID)
		log.Error("recording quarantine entry", "error", err)
		if rerr := s.Threats.Revert(ctx, cmd.UserID, t.ID, domain.StatusQuarantined); rerr != nil {
			log.Error("reverting threat after failed quarantine", "error", rerr)
			return nil, errors.Persistence(op, errors.Join(err, rerr))
		}
		return nil, errors.Persistence(op, err)
	}

	s.resolved(t, domain.ActionQuarantine, map[string]any{"quarantine_path": entry.QuarantinePath})
	return s.List(ctx, cmd.UserID, domain.Filter{})
}

// Delete marks a detected threat as deleted. No file is touched.
func (s *Service) Delete(ctx context.Context, user string, id domain.ThreatID) ([]*domain.Threat, error) {
	t, err := s.resolve(ctx, "threats.delete", user, id, domain.ActionDelete)
	if err != nil {
		return nil, err
	}
	s.resolved(t, domain.ActionDelete, nil)
	return s.List(ctx, user, domain.Filter{})
}

// Ignore dismisses a detected threat.
func (s *Service) Ignore(ctx context.Context, user string, id domain.ThreatID) ([]*domain.Threat, error) {
	t, err := s.resolve(ctx, "threats.ignore", user, id, domain.ActionIgnore)
	if err != nil {
		return nil, err
	}
	s.resolved(t, domain.ActionIgnore, nil)
	return s.List(ctx, user, domain.Filter{})
}

// resolve applies the conditional detected -> terminal transition. A threat
// that was already resolved, including by a concurrent caller, yields a
// precondition error.
func (s *Service) resolve(ctx context.Context, op, user string, id domain.ThreatID, a domain.Action) (*domain.Threat, error) {
	if strings.TrimSpace(user) == "" {
		return nil, errors.Validation(op, "user id is required")
	}
	if strings.TrimSpace(string(id)) == "" {
		return nil, errors.Validation(op, "threat id is required")
	}
	t, err := s.Threats.Get(ctx, user, id)
	if err != nil {
		return nil, errors.Persistence(op, err)
	}
	if t.Status.Resolved() {
		return nil, alreadyResolved(op, t)
	}

	now := s.Clock.Now()
	ok, err := s.Threats.Resolve(ctx, user, id, domain.Resolution{
		Status:      a.Status(),
		ResolvedAt:  now,
		ActionTaken: a.Description(),
	})
	if err != nil {
		return nil, errors.Persistence(op, err)
	}
	if !ok {
		return nil, alreadyResolved(op, t)
	}
	t.Status = a.Status()
	t.ResolvedAt = &now
	t.ActionTaken = a.Description()
	return t, nil
}

func alreadyResolved(op string, t *domain.Threat) error {
	return errors.New(nil).
		Category(errors.CategoryPrecondition).
		Op(op).
		Msg("threat already resolved").
		Context("threat_id", t.ID).
		Context("status", t.Status).
		Build()
}

func (s *Service) resolved(t *domain.Threat, a domain.Action, data map[string]any) {
	s.Metrics.ThreatResolved(string(a))
	if data == nil {
		data = map[string]any{}
	}
	data["status"] = t.Status
	data["action_taken"] = t.ActionTaken
	if err := s.Events.Publish(context.Background(), application.Event{
		Kind:     application.EventThreatResolved,
		UserID:   t.UserID,
		ScanID:   string(t.ScanID),
		ThreatID: string(t.ID),
		At:       *t.ResolvedAt,
		Data:     data,
	}); err != nil {
		s.Logger.Debug("publishing event", "error", err)
	}
	s.Logger.Info("threat resolved", "user", t.UserID, "threat_id", t.ID, "action", a)
}
