package sqlrepo_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	"github.com/bryanwahyu/n0dr1e/internal/domain/quarantine"
	"github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/sqlite"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/sqlrepo"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func openRepos(t *testing.T) sqlrepo.Repositories {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Connect(ctx, sqlite.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(ctx, db))
	// idempotent
	require.NoError(t, sqlite.Migrate(ctx, db))
	return sqlrepo.New(db, sqlrepo.SQLite)
}

func newScan(id, user string, started time.Time) *scans.Scan {
	return &scans.Scan{
		ID:        scans.ScanID(id),
		UserID:    user,
		Type:      scans.TypeQuick,
		Status:    scans.StatusRunning,
		StartedAt: started,
	}
}

func TestScanRepository(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, r.Scans.Create(ctx, newScan(fmt.Sprintf("s%d", i), "u1", t0.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, r.Scans.Create(ctx, newScan("other", "u2", t0)))

	got, err := r.Scans.Get(ctx, "u1", "s0")
	require.NoError(t, err)
	assert.Equal(t, scans.StatusRunning, got.Status)
	assert.True(t, got.StartedAt.Equal(t0))
	assert.Nil(t, got.CompletedAt)

	_, err = r.Scans.Get(ctx, "u2", "s0")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	done := t0.Add(5 * time.Minute)
	require.NoError(t, r.Scans.Complete(ctx, "u1", "s0", scans.Completion{
		Status: scans.StatusCompleted, FilesScanned: 1000, ThreatsFound: 2, CompletedAt: done, ReportURL: "https://r/s0.json",
	}))
	got, err = r.Scans.Get(ctx, "u1", "s0")
	require.NoError(t, err)
	assert.Equal(t, scans.StatusCompleted, got.Status)
	assert.Equal(t, 1000, got.FilesScanned)
	assert.Equal(t, 2, got.ThreatsFound)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(done))
	assert.Equal(t, "https://r/s0.json", got.ReportURL)

	err = r.Scans.Complete(ctx, "u2", "s0", scans.Completion{Status: scans.StatusCancelled, CompletedAt: done})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	latest, err := r.Scans.Latest(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, scans.ScanID("s4"), latest[0].ID)
	assert.Equal(t, scans.ScanID("s2"), latest[2].ID)

	page, err := r.Scans.Paginate(ctx, "u1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, scans.ScanID("s2"), page.Data[0].ID)

	sum, err := r.Scans.Summary(ctx, "u1", t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, scans.Summary{TotalScans: 5, CompletedScans: 1, FilesScanned: 1000, ThreatsFound: 2}, sum)

	sum, err = r.Scans.Summary(ctx, "u1", t0.Add(150*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalScans)

	empty, err := r.Scans.Latest(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func seedThreats(t *testing.T, r sqlrepo.Repositories) {
	t.Helper()
	require.NoError(t, r.Threats.CreateBatch(context.Background(), []*threats.Threat{
		{ID: "t1", UserID: "u1", ScanID: "s1", FilePath: "/a/b/evil.exe", Name: "Threat.aaaaaa", Type: threats.TypeVirus, Severity: threats.SeverityHigh, Status: threats.StatusDetected, DetectedAt: t0},
		{ID: "t2", UserID: "u1", ScanID: "s1", FilePath: `C:\x.tmp`, Name: "Threat.bbbbbb", Type: threats.TypeTrojan, Severity: threats.SeverityLow, Status: threats.StatusDetected, DetectedAt: t0.Add(time.Second)},
		{ID: "t3", UserID: "u1", ScanID: "s2", FilePath: "/c", Name: "Threat.cccccc", Type: threats.TypeMalware, Severity: threats.SeverityCritical, Status: threats.StatusDetected, DetectedAt: t0.Add(2 * time.Second)},
	}))
}

func TestThreatRepository(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()
	seedThreats(t, r)

	all, err := r.Threats.List(ctx, "u1", threats.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, threats.ThreatID("t3"), all[0].ID)

	byScan, err := r.Threats.List(ctx, "u1", threats.Filter{ScanID: "s1"})
	require.NoError(t, err)
	assert.Len(t, byScan, 2)

	n, err := r.Threats.CountActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res := threats.Resolution{Status: threats.StatusIgnored, ResolvedAt: t0.Add(time.Hour), ActionTaken: threats.ActionIgnore.Description()}
	ok, err := r.Threats.Resolve(ctx, "u1", "t1", res)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Threats.Resolve(ctx, "u1", "t1", res)
	require.NoError(t, err)
	assert.False(t, ok, "second resolution is refused")

	_, err = r.Threats.Resolve(ctx, "u2", "t1", res)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	t1, err := r.Threats.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, threats.StatusIgnored, t1.Status)
	require.NotNil(t, t1.ResolvedAt)
	assert.Equal(t, "User chose to ignore this threat", t1.ActionTaken)

	detected, err := r.Threats.List(ctx, "u1", threats.Filter{Status: threats.StatusDetected})
	require.NoError(t, err)
	assert.Len(t, detected, 2)

	require.NoError(t, r.Threats.Revert(ctx, "u1", "t1", threats.StatusQuarantined))
	t1, err = r.Threats.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, threats.StatusIgnored, t1.Status, "revert only applies from the given status")

	require.NoError(t, r.Threats.Revert(ctx, "u1", "t1", threats.StatusIgnored))
	t1, err = r.Threats.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, threats.StatusDetected, t1.Status)
	assert.Nil(t, t1.ResolvedAt)
	assert.Empty(t, t1.ActionTaken)
}

func TestThreatRepository_CreateBatchIsAtomic(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()
	seedThreats(t, r)

	err := r.Threats.CreateBatch(ctx, []*threats.Threat{
		{ID: "t9", UserID: "u1", ScanID: "s3", FilePath: "/n", Name: "Threat.new000", Type: threats.TypeVirus, Severity: threats.SeverityLow, Status: threats.StatusDetected, DetectedAt: t0},
		{ID: "t1", UserID: "u1", ScanID: "s3", FilePath: "/dup", Name: "Threat.dup000", Type: threats.TypeVirus, Severity: threats.SeverityLow, Status: threats.StatusDetected, DetectedAt: t0},
	})
	require.Error(t, err)

	_, err = r.Threats.Get(ctx, "u1", "t9")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "first row rolled back")
}

func TestThreatRepository_ConcurrentResolve(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()
	seedThreats(t, r)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.Threats.Resolve(ctx, "u1", "t2", threats.Resolution{
				Status: threats.StatusDeleted, ResolvedAt: t0.Add(time.Duration(i) * time.Second), ActionTaken: threats.ActionDelete.Description(),
			})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, won)
}

func TestQuarantineRepository(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()

	e := &quarantine.Entry{
		ID:             "q1",
		ThreatID:       "t1",
		UserID:         "u1",
		OriginalPath:   "/a/b/evil.exe",
		QuarantinePath: quarantine.PathFor("t1", "/a/b/evil.exe"),
		FileSize:       4096,
		QuarantinedAt:  t0,
	}
	require.NoError(t, r.Quarantine.Create(ctx, e))
	assert.Error(t, r.Quarantine.Create(ctx, &quarantine.Entry{ID: "q2", ThreatID: "t1", UserID: "u1", QuarantinedAt: t0}),
		"one entry per threat")

	got, err := r.Quarantine.GetByThreat(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "/quarantine/t1_evil.exe", got.QuarantinePath)
	assert.Equal(t, int64(4096), got.FileSize)

	_, err = r.Quarantine.GetByThreat(ctx, "u2", "t1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	list, err := r.Quarantine.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProfileRepository(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()

	_, err := r.Profiles.Get(ctx, "u1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	end := t0.AddDate(1, 0, 0)
	require.NoError(t, r.Profiles.Save(ctx, &profiles.Profile{
		UserID: "u1", Email: "u1@example.com", Tier: profiles.TierFree, CreatedAt: t0, UpdatedAt: t0,
	}))
	require.NoError(t, r.Profiles.Save(ctx, &profiles.Profile{
		UserID: "u1", Email: "u1@example.com", Tier: profiles.TierPro, SubscriptionStatus: "active",
		SubscriptionEnd: &end, CreatedAt: t0.Add(time.Hour), UpdatedAt: t0.Add(time.Hour),
	}))

	p, err := r.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profiles.TierPro, p.Tier)
	assert.Equal(t, "active", p.SubscriptionStatus)
	require.NotNil(t, p.SubscriptionEnd)
	assert.True(t, p.SubscriptionEnd.Equal(end))
	assert.True(t, p.CreatedAt.Equal(t0), "created_at survives upsert")
	assert.True(t, p.UpdatedAt.Equal(t0.Add(time.Hour)))
}
