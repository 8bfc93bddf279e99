package scans

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/n0dr1e/internal/application"
	domain "github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
)

// SimulatorConfig tunes the fake scan speed.
type SimulatorConfig struct {
	TickInterval time.Duration
	// Each tick advances by a uniform number of files in [FilesPerTickMin, FilesPerTickMax).
	FilesPerTickMin float64
	FilesPerTickMax float64
	// CompletionTimeout bounds the terminal writes of a scan.
	CompletionTimeout time.Duration
}

// DefaultSimulatorConfig mirrors the dashboard: 100ms ticks of 25-75 files.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		TickInterval:      100 * time.Millisecond,
		FilesPerTickMin:   25,
		FilesPerTickMax:   75,
		CompletionTimeout: 30 * time.Second,
	}
}

func (c SimulatorConfig) withDefaults() SimulatorConfig {
	d := DefaultSimulatorConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.FilesPerTickMin <= 0 {
		c.FilesPerTickMin = d.FilesPerTickMin
	}
	if c.FilesPerTickMax < c.FilesPerTickMin {
		c.FilesPerTickMax = c.FilesPerTickMin
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = d.CompletionTimeout
	}
	return c
}

// StartScanCommand untuk memulai scan
type StartScanCommand struct {
	UserID string
	Type   string
	Path   string
}

// StartScan begins a simulated scan for the user. Starting while a scan is
// already running is a no-op that returns the running session.
func (s *Service) StartScan(ctx context.Context, cmd StartScanCommand) (Snapshot, error) {
	const op = "scans.start"
	s.init()

	user := strings.TrimSpace(cmd.UserID)
	if user == "" {
		return Snapshot{}, errors.Validation(op, "user id is required")
	}
	typ := domain.Type(strings.ToLower(strings.TrimSpace(cmd.Type)))
	if !typ.Valid() {
		return Snapshot{}, errors.Validation(op, fmt.Sprintf("unknown scan type %q (allowed: quick, full, custom)", cmd.Type))
	}
	path := strings.TrimSpace(cmd.Path)
	if typ == domain.TypeCustom && path == "" {
		return Snapshot{}, errors.Validation(op, "custom scans require a path")
	}
	if typ != domain.TypeCustom {
		path = ""
	}

	sess := s.acquire(user, true)
	if sess == nil {
		return Snapshot{}, errors.Unavailable(op, "scan service is shutting down")
	}
	defer s.release(sess)
	sess.cmdMu.Lock()
	defer sess.cmdMu.Unlock()

	if s.isClosed() {
		return Snapshot{}, errors.Unavailable(op, "scan service is shutting down")
	}
	if sess.running() {
		return sess.Snapshot(), nil
	}

	prof, err := s.profile(ctx, user)
	if err != nil {
		return Snapshot{}, errors.Persistence(op, err)
	}
	if !prof.Tier.Allows(typ) {
		s.Logger.Info("scan rejected by subscription tier", "user", user, "type", typ, "tier", prof.Tier)
		return Snapshot{}, errors.Authorization(op, "upgrade required: full system scans need a pro or enterprise subscription")
	}

	scan := &domain.Scan{
		ID:        domain.ScanID(uuid.NewString()),
		UserID:    user,
		Type:      typ,
		Path:      path,
		Status:    domain.StatusRunning,
		StartedAt: s.Clock.Now(),
	}
	if err := s.Scans.Create(ctx, scan); err != nil {
		s.Logger.Error("creating scan record", "user", user, "error", err)
		return Snapshot{}, errors.Persistence(op, err)
	}

	s.Metrics.ScanStarted(string(typ))
	s.publish(application.Event{
		Kind:   application.EventScanStarted,
		UserID: user,
		ScanID: string(scan.ID),
		At:     scan.StartedAt,
		Data:   map[string]any{"scan_type": typ, "scan_path": path},
	})
	s.Logger.Info("scan started", "user", user, "scan_id", scan.ID, "type", typ)

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{scan: scan, cancel: cancel, done: make(chan struct{})}
	sess.begin(r)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.loop(runCtx, sess, r)
	}()
	return sess.Snapshot(), nil
}

// StopScan cancels the running scan of user. Calling it while idle, after
// completion, or more than once is a no-op. The scan record is marked
// cancelled; a failure to do so is returned after the local state was reset.
func (s *Service) StopScan(ctx context.Context, user string) (Snapshot, error) {
	s.init()
	sess := s.acquire(user, false)
	if sess == nil {
		return Snapshot{UserID: user, Phase: PhaseIdle}, nil
	}
	defer s.release(sess)
	sess.cmdMu.Lock()
	defer sess.cmdMu.Unlock()
	return s.stopLocked(ctx, sess)
}

func (s *Service) stopLocked(ctx context.Context, sess *Session) (Snapshot, error) {
	r, files := sess.claimStop()
	if r == nil {
		return sess.Snapshot(), nil
	}
	r.cancel()
	<-r.done
	sess.reset(r)

	sc := r.scan
	s.Metrics.ScanFinished(string(sc.Type), "stopped")
	s.publish(application.Event{
		Kind:   application.EventScanStopped,
		UserID: sc.UserID,
		ScanID: string(sc.ID),
		At:     s.Clock.Now(),
	})
	s.Logger.Info("scan stopped", "user", sc.UserID, "scan_id", sc.ID, "files_scanned", files)

	// local state is already reset; the record must follow even if the caller went away
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Config.CompletionTimeout)
	defer cancel()
	err := s.Scans.Complete(wctx, sc.UserID, sc.ID, domain.Completion{
		Status:       domain.StatusCancelled,
		FilesScanned: files,
		CompletedAt:  s.Clock.Now(),
	})
	if err != nil {
		s.Logger.Error("marking scan cancelled", "user", sc.UserID, "scan_id", sc.ID, "error", err)
		return sess.Snapshot(), errors.Persistence("scans.stop", err)
	}
	return sess.Snapshot(), nil
}

// Current returns the session snapshot of user; idle when none exists.
func (s *Service) Current(user string) Snapshot {
	s.init()
	if sess := s.lookup(user); sess != nil {
		return sess.Snapshot()
	}
	return Snapshot{UserID: user, Phase: PhaseIdle}
}

// Subscribe streams snapshots of user's session. The current snapshot is
// delivered first. The returned func releases the subscription and closes
// the channel. After Close the channel only carries the idle snapshot.
func (s *Service) Subscribe(user string) (<-chan Snapshot, func()) {
	s.init()
	sess := s.acquire(user, true)
	if sess == nil {
		ch := make(chan Snapshot, 1)
		ch <- Snapshot{UserID: user, Phase: PhaseIdle}
		var once sync.Once
		return ch, func() { once.Do(func() { close(ch) }) }
	}
	ch, unsubscribe := sess.subscribe(16)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			unsubscribe()
			s.release(sess)
		})
	}
}

// Close stops every running session, marking their records cancelled, and
// waits until scans caught in their completion writes have finished or ctx
// is done. StartScan fails once Close has been called.
func (s *Service) Close(ctx context.Context) error {
	s.init()
	s.mu.Lock()
	s.closed = true
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range all {
		sess.cmdMu.Lock()
		_, err := s.stopLocked(ctx, sess)
		sess.cmdMu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, errors.New(ctx.Err()).
			Category(errors.CategoryUnavailable).
			Op("scans.close").
			Msg("scans still completing").
			Build())
	}
	return errors.Join(errs...)
}

// loop is the periodic task of one run. Ticks execute sequentially on this
// goroutine, so they never overlap.
func (s *Service) loop(ctx context.Context, sess *Session, r *run) {
	defer close(r.done)

	ticker := time.NewTicker(s.Config.TickInterval)
	defer ticker.Stop()

	step := 100 / float64(r.scan.Type.TargetFiles())
	spread := s.Config.FilesPerTickMax - s.Config.FilesPerTickMin
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		files := s.Config.FilesPerTickMin + s.Random.Float64()*spread
		if sess.advance(r, step*files, pickFile(s.Random)) {
			s.complete(sess, r)
			return
		}
	}
}

// complete runs the terminal branch of a scan exactly once: fabricate
// threats, archive the report, (a) update the scan record, (b) insert threats.
// The session reports completed only after the writes and notifications.
func (s *Service) complete(sess *Session, r *run) {
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.CompletionTimeout)
	defer cancel()

	sc := r.scan
	now := s.Clock.Now()
	target := sc.Type.TargetFiles()
	found := fabricateThreats(s.Random, sc, now)
	reportURL := s.archive(ctx, sc, found, now)

	log := s.Logger.With("user", sc.UserID, "scan_id", sc.ID)
	var failure error
	err := s.Scans.Complete(ctx, sc.UserID, sc.ID, domain.Completion{
		Status:       domain.StatusCompleted,
		FilesScanned: target,
		ThreatsFound: len(found),
		CompletedAt:  now,
		ReportURL:    reportURL,
	})
	if err != nil {
		failure = errors.Persistence("scans.complete", err)
	} else if len(found) > 0 {
		if err := s.Threats.CreateBatch(ctx, found); err != nil {
			failure = errors.Persistence("threats.create", err)
			// keep threats_found equal to the stored rows
			cerr := s.Scans.Complete(ctx, sc.UserID, sc.ID, domain.Completion{
				Status:       domain.StatusFailed,
				FilesScanned: target,
				CompletedAt:  now,
				ReportURL:    reportURL,
			})
			if cerr != nil {
				log.Error("compensating scan record", "error", cerr)
			}
		}
	}

	if failure != nil {
		log.Error("completing scan", "error", failure)
		s.Metrics.ScanFinished(string(sc.Type), "failed")
		sess.finish(r, 0, failure)
		return
	}

	s.Metrics.ScanFinished(string(sc.Type), "completed")
	s.publish(application.Event{
		Kind:   application.EventScanCompleted,
		UserID: sc.UserID,
		ScanID: string(sc.ID),
		At:     now,
		Data:   map[string]any{"files_scanned": target, "threats_found": len(found), "report_url": reportURL},
	})
	for _, t := range found {
		s.Metrics.ThreatDetected(string(t.Severity))
		s.publish(application.Event{
			Kind:     application.EventThreatDetected,
			UserID:   t.UserID,
			ScanID:   string(t.ScanID),
			ThreatID: string(t.ID),
			At:       now,
			Data:     map[string]any{"threat_name": t.Name, "severity": t.Severity, "file_path": t.FilePath},
		})
	}
	log.Info("scan completed", "files_scanned", target, "threats_found", len(found))
	sess.finish(r, len(found), nil)
}

type scanReport struct {
	Scan        *domain.Scan      `json:"scan"`
	Threats     []*threats.Threat `json:"threats"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// archive uploads the JSON report of a finished scan. Failures only cost the
// report link.
func (s *Service) archive(ctx context.Context, sc *domain.Scan, found []*threats.Threat, now time.Time) string {
	if s.Reports == nil {
		return ""
	}
	final := *sc
	final.Status = domain.StatusCompleted
	final.FilesScanned = sc.Type.TargetFiles()
	final.ThreatsFound = len(found)
	final.CompletedAt = &now

	body, err := json.Marshal(scanReport{Scan: &final, Threats: found, GeneratedAt: now})
	if err != nil {
		s.Logger.Warn("encoding scan report", "scan_id", sc.ID, "error", err)
		return ""
	}
	key := fmt.Sprintf("%s/scans/%s.json", sc.UserID, sc.ID)
	url, err := s.Reports.PutReport(ctx, key, body)
	if err != nil {
		s.Logger.Warn("uploading scan report", "scan_id", sc.ID, "error", err)
		return ""
	}
	return url
}

func (s *Service) publish(ev application.Event) {
	if err := s.Events.Publish(context.Background(), ev); err != nil {
		s.Logger.Debug("publishing event", "kind", ev.Kind, "error", err)
	}
}

// acquire pins the session of user in the map until release. It creates the
// session when create is set; nil means none exists or the service is closed.
func (s *Service) acquire(user string, create bool) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if create && s.closed {
		return nil
	}
	sess, ok := s.sessions[user]
	if !ok {
		if !create {
			return nil
		}
		sess = newSession(user)
		s.sessions[user] = sess
	}
	sess.refs++
	return sess
}

// release drops the pin and evicts the session once it is idle and unpinned,
// so the map only holds users with a scan or a subscriber.
func (s *Service) release(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.refs--
	if sess.refs == 0 && sess.idle() && s.sessions[sess.user] == sess {
		delete(s.sessions, sess.user)
	}
}

func (s *Service) lookup(user string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[user]
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
