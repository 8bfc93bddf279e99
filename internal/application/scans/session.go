package scans

import (
	"context"
	"math"
	"sync"
	"time"

	domain "github.com/bryanwahyu/n0dr1e/internal/domain/scans"
)

// Phase of a user's scan session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// Snapshot is the view of a session handed to the presentation layer.
type Snapshot struct {
	UserID       string      `json:"user_id"`
	Phase        Phase       `json:"phase"`
	ScanID       string      `json:"scan_id,omitempty"`
	ScanType     domain.Type `json:"scan_type,omitempty"`
	ScanPath     string      `json:"scan_path,omitempty"`
	Progress     int         `json:"progress"`
	FilesScanned int         `json:"files_scanned"`
	TotalFiles   int         `json:"total_files,omitempty"`
	ThreatsFound int         `json:"threats_found"`
	CurrentFile  string      `json:"current_file,omitempty"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// run is the handle of one Start invocation. It is consumed by Stop or by
// the completion branch, never both.
type run struct {
	scan   *domain.Scan
	cancel context.CancelFunc
	done   chan struct{}

	// guarded by Session.mu
	completing bool
	cancelled  bool
}

// Session owns the scan state of one user. Commands (Start/Stop) are
// serialized by cmdMu; the tick loop and readers share mu.
type Session struct {
	user  string
	cmdMu sync.Mutex

	mu       sync.RWMutex
	phase    Phase
	cur      *run
	progress float64
	files    int
	threats  int
	file     string
	errMsg   string
	subs     map[chan Snapshot]struct{}

	// pins held by in-flight commands and subscribers, guarded by Service.mu
	refs int
}

func newSession(user string) *Session {
	return &Session{user: user, phase: PhaseIdle, subs: make(map[chan Snapshot]struct{})}
}

// Snapshot returns the current view.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		UserID:       s.user,
		Phase:        s.phase,
		FilesScanned: s.files,
		ThreatsFound: s.threats,
		CurrentFile:  s.file,
		Error:        s.errMsg,
	}
	if s.phase == PhaseIdle || s.cur == nil {
		return snap
	}
	sc := s.cur.scan
	started := sc.StartedAt
	snap.ScanID = string(sc.ID)
	snap.ScanType = sc.Type
	snap.ScanPath = sc.Path
	snap.TotalFiles = sc.Type.TargetFiles()
	snap.StartedAt = &started
	if s.phase == PhaseCompleted {
		snap.Progress = 100
	} else {
		// 100 is reserved for the terminal tick.
		snap.Progress = min(int(math.Floor(s.progress)), 99)
	}
	return snap
}

func (s *Session) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == PhaseRunning
}

// idle reports whether the session holds nothing worth keeping.
func (s *Session) idle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == PhaseIdle && s.cur == nil
}

func (s *Session) begin(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseRunning
	s.cur = r
	s.progress, s.files, s.threats = 0, 0, 0
	s.file, s.errMsg = "", ""
	s.broadcastLocked()
}

// advance adds inc percent to the progress of r. It returns true exactly once,
// on the tick that reaches 100; from then on the run belongs to the completion
// branch and Stop leaves it alone.
func (s *Session) advance(r *run, inc float64, file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != r || r.cancelled || r.completing {
		return false
	}
	s.progress += inc
	if s.progress >= 100 {
		r.completing = true
		return true
	}
	target := r.scan.Type.TargetFiles()
	s.files = min(int(math.Floor(s.progress/100*float64(target))), target-1)
	s.file = file
	s.broadcastLocked()
	return false
}

// finish publishes the terminal state of a completed run.
func (s *Session) finish(r *run, threats int, failure error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != r {
		return
	}
	s.phase = PhaseCompleted
	s.progress = 100
	s.files = r.scan.Type.TargetFiles()
	s.threats = threats
	s.file = ""
	s.errMsg = ""
	if failure != nil {
		s.errMsg = failure.Error()
	}
	s.broadcastLocked()
}

// claimStop marks the running run as cancelled. It returns nil when there is
// nothing to stop: idle, already completed, or completing.
func (s *Session) claimStop() (*run, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.cur
	if s.phase != PhaseRunning || r == nil || r.completing || r.cancelled {
		return nil, 0
	}
	r.cancelled = true
	return r, s.files
}

func (s *Session) reset(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != r {
		return
	}
	s.phase = PhaseIdle
	s.cur = nil
	s.progress, s.files, s.threats = 0, 0, 0
	s.file, s.errMsg = "", ""
	s.broadcastLocked()
}

func (s *Session) subscribe(buf int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, buf)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// broadcastLocked fans the snapshot out without blocking; a subscriber with
// a full buffer misses this frame.
func (s *Session) broadcastLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
