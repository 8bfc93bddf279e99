//go:build integration

package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/sqlrepo"
)

func TestMySQLRepositories(t *testing.T) {
	ctx := context.Background()
	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("n0dr1e"),
		tcmysql.WithUsername("n0dr1e"),
		tcmysql.WithPassword("secret"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Connect(ctx, Options{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	r := sqlrepo.New(db, sqlrepo.MySQL)
	now := time.Now().UTC().Truncate(time.Microsecond)

	sc := &scans.Scan{ID: "s1", UserID: "u1", Type: scans.TypeQuick, Status: scans.StatusRunning, StartedAt: now}
	require.NoError(t, r.Scans.Create(ctx, sc))
	require.NoError(t, r.Scans.Complete(ctx, "u1", "s1", scans.Completion{
		Status: scans.StatusCompleted, FilesScanned: 1000, ThreatsFound: 1, CompletedAt: now.Add(time.Second),
	}))
	// same values again: MySQL reports zero affected rows
	require.NoError(t, r.Scans.Complete(ctx, "u1", "s1", scans.Completion{
		Status: scans.StatusCompleted, FilesScanned: 1000, ThreatsFound: 1, CompletedAt: now.Add(time.Second),
	}))

	got, err := r.Scans.Get(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, scans.StatusCompleted, got.Status)
	assert.True(t, got.StartedAt.Equal(now))

	require.NoError(t, r.Threats.CreateBatch(ctx, []*threats.Threat{{
		ID: "t1", UserID: "u1", ScanID: "s1", FilePath: "/a/b/evil.exe", Name: "Threat.aaaaaa",
		Type: threats.TypeVirus, Severity: threats.SeverityHigh, Status: threats.StatusDetected, DetectedAt: now,
	}}))
	ok, err := r.Threats.Resolve(ctx, "u1", "t1", threats.Resolution{Status: threats.StatusDeleted, ResolvedAt: now, ActionTaken: "File permanently deleted"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Threats.Resolve(ctx, "u1", "t1", threats.Resolution{Status: threats.StatusIgnored, ResolvedAt: now})
	require.NoError(t, err)
	assert.False(t, ok)

	sum, err := r.Scans.Summary(ctx, "u1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, scans.Summary{TotalScans: 1, CompletedScans: 1, FilesScanned: 1000, ThreatsFound: 1}, sum)
}
