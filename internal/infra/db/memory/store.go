// Package memory is an in-process record store. It backs the simulate
// command and the service tests; Fail injects store errors per operation.
package memory

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	"github.com/bryanwahyu/n0dr1e/internal/domain/quarantine"
	"github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

// Operation names accepted by Fail.
const (
	OpScanCreate       = "scans.create"
	OpScanComplete     = "scans.complete"
	OpScanRead         = "scans.read"
	OpThreatCreate     = "threats.create"
	OpThreatResolve    = "threats.resolve"
	OpThreatRevert     = "threats.revert"
	OpThreatRead       = "threats.read"
	OpQuarantineCreate = "quarantine.create"
	OpProfileRead      = "profiles.read"
	OpProfileSave      = "profiles.save"
)

type Store struct {
	mu       sync.Mutex
	scans    map[scans.ScanID]*scans.Scan
	threats  map[threats.ThreatID]*threats.Threat
	entries  []*quarantine.Entry
	profiles map[string]*profiles.Profile
	fail     map[string]error
	writes   int
}

func New() *Store {
	return &Store{
		scans:    make(map[scans.ScanID]*scans.Scan),
		threats:  make(map[threats.ThreatID]*threats.Threat),
		profiles: make(map[string]*profiles.Profile),
		fail:     make(map[string]error),
	}
}

// Fail makes every later call of op return err. A nil err clears it.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Writes counts the successful mutations since New.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) Scans() *ScanRepository            { return &ScanRepository{s} }
func (s *Store) Threats() *ThreatRepository        { return &ThreatRepository{s} }
func (s *Store) Quarantine() *QuarantineRepository { return &QuarantineRepository{s} }
func (s *Store) Profiles() *ProfileRepository      { return &ProfileRepository{s} }

// Ping satisfies the health checker.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) failure(op string) error { return s.fail[op] }

//
// ==== scans ====
//

type ScanRepository struct{ s *Store }

var _ scans.Repository = (*ScanRepository)(nil)

func (r *ScanRepository) Create(_ context.Context, sc *scans.Scan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpScanCreate); err != nil {
		return err
	}
	cp := *sc
	r.s.scans[sc.ID] = &cp
	r.s.writes++
	return nil
}

func (r *ScanRepository) Complete(_ context.Context, user string, id scans.ScanID, c scans.Completion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpScanComplete); err != nil {
		return err
	}
	sc, ok := r.s.scans[id]
	if !ok || sc.UserID != user {
		return errors.NotFound(OpScanComplete, "scan not found")
	}
	at := c.CompletedAt
	sc.Status = c.Status
	sc.FilesScanned = c.FilesScanned
	sc.ThreatsFound = c.ThreatsFound
	sc.CompletedAt = &at
	sc.ReportURL = c.ReportURL
	r.s.writes++
	return nil
}

func (r *ScanRepository) Get(_ context.Context, user string, id scans.ScanID) (*scans.Scan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpScanRead); err != nil {
		return nil, err
	}
	sc, ok := r.s.scans[id]
	if !ok || sc.UserID != user {
		return nil, errors.NotFound("scans.get", "scan not found")
	}
	return clone(sc), nil
}

func (r *ScanRepository) Latest(_ context.Context, user string, limit int) ([]*scans.Scan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpScanRead); err != nil {
		return nil, err
	}
	all := r.ownedLocked(user)
	return all[:min(limit, len(all))], nil
}

func (r *ScanRepository) Paginate(_ context.Context, user string, page, pageSize int) (scans.PaginatedResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpScanRead); err != nil {
		return scans.PaginatedResult{}, err
	}
	all := r.ownedLocked(user)
	lo := min((page-1)*pageSize, len(all))
	hi := min(lo+pageSize, len(all))
	return scans.PaginatedResult{
		Data:       all[lo:hi],
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(len(all)),
		TotalPages: int(math.Ceil(float64(len(all)) / float64(pageSize))),
	}, nil
}

func (r *ScanRepository) Summary(_ context.Context, user string, since time.Time) (scans.Summary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpScanRead); err != nil {
		return scans.Summary{}, err
	}
	var sum scans.Summary
	for _, sc := range r.s.scans {
		if sc.UserID != user || sc.StartedAt.Before(since) {
			continue
		}
		sum.TotalScans++
		if sc.Status == scans.StatusCompleted {
			sum.CompletedScans++
		}
		sum.FilesScanned += sc.FilesScanned
		sum.ThreatsFound += sc.ThreatsFound
	}
	return sum, nil
}

// ownedLocked returns copies of user's scans, newest first.
func (r *ScanRepository) ownedLocked(user string) []*scans.Scan {
	var out []*scans.Scan
	for _, sc := range r.s.scans {
		if sc.UserID == user {
			out = append(out, clone(sc))
		}
	}
	slices.SortFunc(out, func(a, b *scans.Scan) int {
		return cmp.Or(b.StartedAt.Compare(a.StartedAt), cmp.Compare(b.ID, a.ID))
	})
	return out
}

func clone(sc *scans.Scan) *scans.Scan {
	cp := *sc
	if sc.CompletedAt != nil {
		at := *sc.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

//
// ==== threats ====
//

type ThreatRepository struct{ s *Store }

var _ threats.Repository = (*ThreatRepository)(nil)

func (r *ThreatRepository) CreateBatch(_ context.Context, ts []*threats.Threat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpThreatCreate); err != nil {
		return err
	}
	for _, t := range ts {
		cp := *t
		r.s.threats[t.ID] = &cp
	}
	r.s.writes++
	return nil
}

func (r *ThreatRepository) Get(_ context.Context, user string, id threats.ThreatID) (*threats.Threat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpThreatRead); err != nil {
		return nil, err
	}
	t, ok := r.s.threats[id]
	if !ok || t.UserID != user {
		return nil, errors.NotFound("threats.get", "threat not found")
	}
	return cloneThreat(t), nil
}

func (r *ThreatRepository) List(_ context.Context, user string, f threats.Filter) ([]*threats.Threat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpThreatRead); err != nil {
		return nil, err
	}
	out := []*threats.Threat{}
	for _, t := range r.s.threats {
		if t.UserID != user {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.ScanID != "" && t.ScanID != f.ScanID {
			continue
		}
		out = append(out, cloneThreat(t))
	}
	slices.SortFunc(out, func(a, b *threats.Threat) int {
		return cmp.Or(b.DetectedAt.Compare(a.DetectedAt), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

func (r *ThreatRepository) Resolve(_ context.Context, user string, id threats.ThreatID, res threats.Resolution) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpThreatResolve); err != nil {
		return false, err
	}
	t, ok := r.s.threats[id]
	if !ok || t.UserID != user {
		return false, errors.NotFound("threats.resolve", "threat not found")
	}
	if t.Status != threats.StatusDetected {
		return false, nil
	}
	at := res.ResolvedAt
	t.Status = res.Status
	t.ResolvedAt = &at
	t.ActionTaken = res.ActionTaken
	r.s.writes++
	return true, nil
}

func (r *ThreatRepository) Revert(_ context.Context, user string, id threats.ThreatID, from threats.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpThreatRevert); err != nil {
		return err
	}
	t, ok := r.s.threats[id]
	if !ok || t.UserID != user {
		return errors.NotFound("threats.revert", "threat not found")
	}
	if t.Status != from {
		return nil
	}
	t.Status = threats.StatusDetected
	t.ResolvedAt = nil
	t.ActionTaken = ""
	r.s.writes++
	return nil
}

func (r *ThreatRepository) CountActive(_ context.Context, user string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpThreatRead); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range r.s.threats {
		if t.UserID == user && t.Status == threats.StatusDetected {
			n++
		}
	}
	return n, nil
}

func cloneThreat(t *threats.Threat) *threats.Threat {
	cp := *t
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}

//
// ==== quarantine ====
//

type QuarantineRepository struct{ s *Store }

var _ quarantine.Repository = (*QuarantineRepository)(nil)

func (r *QuarantineRepository) Create(_ context.Context, e *quarantine.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpQuarantineCreate); err != nil {
		return err
	}
	cp := *e
	r.s.entries = append(r.s.entries, &cp)
	r.s.writes++
	return nil
}

func (r *QuarantineRepository) GetByThreat(_ context.Context, user string, id threats.ThreatID) (*quarantine.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		if e.UserID == user && e.ThreatID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, errors.NotFound("quarantine.get", "quarantine entry not found")
}

func (r *QuarantineRepository) List(_ context.Context, user string) ([]*quarantine.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*quarantine.Entry{}
	for _, e := range r.s.entries {
		if e.UserID == user {
			cp := *e
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *quarantine.Entry) int {
		return b.QuarantinedAt.Compare(a.QuarantinedAt)
	})
	return out, nil
}

//
// ==== profiles ====
//

type ProfileRepository struct{ s *Store }

var _ profiles.Repository = (*ProfileRepository)(nil)

func (r *ProfileRepository) Get(_ context.Context, user string) (*profiles.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpProfileRead); err != nil {
		return nil, err
	}
	p, ok := r.s.profiles[user]
	if !ok {
		return nil, errors.NotFound("profiles.get", "profile not found")
	}
	cp := *p
	return &cp, nil
}

func (r *ProfileRepository) Save(_ context.Context, p *profiles.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpProfileSave); err != nil {
		return err
	}
	cp := *p
	if old, ok := r.s.profiles[p.UserID]; ok && !old.CreatedAt.IsZero() {
		cp.CreatedAt = old.CreatedAt
	}
	r.s.profiles[p.UserID] = &cp
	r.s.writes++
	return nil
}
