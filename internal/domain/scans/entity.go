package scans

import (
	"time"
)

// ID tipe untuk Scan
type ScanID string

// Type enum
type Type string

const (
	TypeQuick  Type = "quick"
	TypeFull   Type = "full"
	TypeCustom Type = "custom"
)

// TargetFiles is the fixed number of files a scan of this type covers.
// Unknown types return 0.
func (t Type) TargetFiles() int {
	switch t {
	case TypeQuick:
		return 1000
	case TypeFull:
		return 50000
	case TypeCustom:
		return 5000
	default:
		return 0
	}
}

func (t Type) Valid() bool { return t.TargetFiles() > 0 }

// Status enum
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further update is expected for the record.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Aggregate Root: Scan
type Scan struct {
	ID           ScanID     `json:"id"`
	UserID       string     `json:"user_id"`
	Type         Type       `json:"scan_type"`
	Path         string     `json:"scan_path,omitempty"`
	Status       Status     `json:"status"`
	FilesScanned int        `json:"files_scanned"`
	ThreatsFound int        `json:"threats_found"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ReportURL    string     `json:"report_url,omitempty"`
}

// Completion is the terminal update written when a scan finishes or is cancelled.
type Completion struct {
	Status       Status
	FilesScanned int
	ThreatsFound int
	CompletedAt  time.Time
	ReportURL    string
}

// Summary rekap scan per user
type Summary struct {
	TotalScans     int `json:"total_scans"`
	CompletedScans int `json:"completed_scans"`
	FilesScanned   int `json:"files_scanned"`
	ThreatsFound   int `json:"threats_found"`
}
