package threats

import (
	"time"

	"github.com/bryanwahyu/n0dr1e/internal/domain/scans"
)

type ThreatID string

// Type enum
type Type string

const (
	TypeVirus   Type = "virus"
	TypeMalware Type = "malware"
	TypeTrojan  Type = "trojan"
)

// Types lists every threat type, in a stable order.
var Types = []Type{TypeVirus, TypeMalware, TypeTrojan}

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Status enum
type Status string

const (
	StatusDetected    Status = "detected"
	StatusQuarantined Status = "quarantined"
	StatusDeleted     Status = "deleted"
	StatusIgnored     Status = "ignored"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDetected, StatusQuarantined, StatusDeleted, StatusIgnored:
		return true
	}
	return false
}

// Resolved reports whether the threat already left the detected state.
func (s Status) Resolved() bool { return s != StatusDetected }

// Action is one of the three resolutions a user can apply to a detected threat.
type Action string

const (
	ActionQuarantine Action = "quarantine"
	ActionDelete     Action = "delete"
	ActionIgnore     Action = "ignore"
)

// Status returns the terminal status an action moves a threat to.
func (a Action) Status() Status {
	switch a {
	case ActionQuarantine:
		return StatusQuarantined
	case ActionDelete:
		return StatusDeleted
	case ActionIgnore:
		return StatusIgnored
	}
	return ""
}

// Description is the action-taken text stored on the threat.
func (a Action) Description() string {
	switch a {
	case ActionQuarantine:
		return "File moved to quarantine"
	case ActionDelete:
		return "File permanently deleted"
	case ActionIgnore:
		return "User chose to ignore this threat"
	}
	return ""
}

type Threat struct {
	ID          ThreatID     `json:"id"`
	UserID      string       `json:"user_id"`
	ScanID      scans.ScanID `json:"scan_id"`
	FilePath    string       `json:"file_path"`
	Name        string       `json:"threat_name"`
	Type        Type         `json:"threat_type"`
	Severity    Severity     `json:"severity"`
	Status      Status       `json:"status"`
	DetectedAt  time.Time    `json:"detected_at"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
	ActionTaken string       `json:"action_taken,omitempty"`
}

// Resolution is the one-shot transition applied by Repository.Resolve.
type Resolution struct {
	Status      Status
	ResolvedAt  time.Time
	ActionTaken string
}

// Filter narrows List; zero value lists everything for the user.
type Filter struct {
	Status Status
	ScanID scans.ScanID
}
