package ai

import (
	"context"
	"log/slog"

	"github.com/bryanwahyu/n0dr1e/internal/domain/ai"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

// Service answers remediation questions about a user's threats. Client is
// nil when no provider is configured.
type Service struct {
	Threats threats.Repository
	Client  ai.Client
	Logger  *slog.Logger
}

func NewService(repo threats.Repository, client ai.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Threats: repo, Client: client, Logger: logger}
}

// Advise returns guidance for one threat. Provider quota errors keep
// ai.ErrQuotaExceeded in their chain.
func (s *Service) Advise(ctx context.Context, user string, id threats.ThreatID) (ai.Advice, error) {
	const op = "ai.advise"
	if s.Client == nil {
		return ai.Advice{}, errors.Unavailable(op, "threat advisor is not configured")
	}
	t, err := s.Threats.Get(ctx, user, id)
	if err != nil {
		return ai.Advice{}, errors.Persistence(op, err)
	}
	adv, err := s.Client.Advise(ctx, t)
	if err != nil {
		s.Logger.Warn("threat advisor failed", "user", user, "threat_id", id, "error", err)
		return ai.Advice{}, errors.New(err).
			Category(errors.CategoryUnavailable).
			Op(op).
			Context("threat_id", id).
			Build()
	}
	return adv, nil
}
