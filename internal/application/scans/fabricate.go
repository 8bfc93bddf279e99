package scans

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/n0dr1e/internal/application"
	domain "github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
)

// SampleFiles are the paths the simulator pretends to visit. Threat paths
// cycle through them in order; the "currently scanning" path is a random pick.
var SampleFiles = []string{
	`C:\Program Files\App\file1.exe`,
	`C:\Users\Documents\document.pdf`,
	`C:\Windows\System32\driver.sys`,
	`C:\Temp\suspicious.tmp`,
	`C:\Downloads\installer.exe`,
}

// MaxThreatsPerScan bounds the random threat count (inclusive).
const MaxThreatsPerScan = 2

const nameAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func pickFile(rnd application.Random) string {
	return SampleFiles[rnd.IntN(len(SampleFiles))]
}

// threatName builds a synthetic signature name such as "Threat.k3x9qa".
func threatName(rnd application.Random) string {
	var b strings.Builder
	b.WriteString("Threat.")
	for range 6 {
		b.WriteByte(nameAlphabet[rnd.IntN(len(nameAlphabet))])
	}
	return b.String()
}

// fabricateThreats draws the number of threats for a finished scan and builds
// the records. Nothing is persisted here.
func fabricateThreats(rnd application.Random, sc *domain.Scan, now time.Time) []*threats.Threat {
	n := rnd.IntN(MaxThreatsPerScan + 1)
	out := make([]*threats.Threat, 0, n)
	for i := range n {
		out = append(out, &threats.Threat{
			ID:         threats.ThreatID(uuid.NewString()),
			UserID:     sc.UserID,
			ScanID:     sc.ID,
			FilePath:   SampleFiles[i%len(SampleFiles)],
			Name:       threatName(rnd),
			Type:       threats.Types[rnd.IntN(len(threats.Types))],
			Severity:   threats.Severities[rnd.IntN(len(threats.Severities))],
			Status:     threats.StatusDetected,
			DetectedAt: now,
		})
	}
	return out
}
