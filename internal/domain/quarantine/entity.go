package quarantine

import (
	"strings"
	"time"

	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
)

// PathPrefix is the isolated location every quarantined file is recorded under.
const PathPrefix = "/quarantine/"

type EntryID string

type Entry struct {
	ID             EntryID          `json:"id"`
	ThreatID       threats.ThreatID `json:"threat_id"`
	UserID         string           `json:"user_id"`
	OriginalPath   string           `json:"original_path"`
	QuarantinePath string           `json:"quarantine_path"`
	FileSize       int64            `json:"file_size"`
	QuarantinedAt  time.Time        `json:"quarantined_at"`
	RestoredAt     *time.Time       `json:"restored_at,omitempty"`
}

// PathFor derives the quarantine location of a file: the fixed prefix, the
// threat id and the original base name joined by an underscore.
func PathFor(id threats.ThreatID, originalPath string) string {
	return PathPrefix + string(id) + "_" + BaseName(originalPath)
}

// BaseName returns the last element of p, accepting both slash styles since
// recorded paths come from Windows and Unix hosts alike.
func BaseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
