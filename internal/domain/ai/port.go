package ai

import (
	"context"

	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
)

// Client port for the remediation advisor.
type Client interface {
	Advise(ctx context.Context, t *threats.Threat) (Advice, error)
}

// Advice is the remediation guidance returned for one threat.
type Advice struct {
	ThreatID    threats.ThreatID `json:"threat_id"`
	Summary     string           `json:"summary"`
	RiskLevel   string           `json:"risk_level"`
	Steps       []string         `json:"steps"`
	Recommended threats.Action   `json:"recommended_action"`
	Model       string           `json:"model,omitempty"`
}
