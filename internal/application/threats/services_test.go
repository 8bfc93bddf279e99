package threats

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/n0dr1e/internal/application"
	domain "github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/errors"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/memory"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Threats().CreateBatch(context.Background(), []*domain.Threat{
		{ID: "t1", UserID: "u1", ScanID: "s1", FilePath: "/a/b/evil.exe", Name: "Threat.aaaaaa", Type: domain.TypeVirus, Severity: domain.SeverityHigh, Status: domain.StatusDetected, DetectedAt: testNow.Add(-time.Hour)},
		{ID: "t2", UserID: "u1", ScanID: "s1", FilePath: `C:\Temp\suspicious.tmp`, Name: "Threat.bbbbbb", Type: domain.TypeTrojan, Severity: domain.SeverityLow, Status: domain.StatusDetected, DetectedAt: testNow},
		{ID: "t3", UserID: "u2", ScanID: "s9", FilePath: "/x", Name: "Threat.cccccc", Type: domain.TypeMalware, Severity: domain.SeverityCritical, Status: domain.StatusDetected, DetectedAt: testNow},
	}))
	svc := NewService(Service{
		Threats:    store.Threats(),
		Entries:    store.Quarantine(),
		Clock:      application.FixedClock{T: testNow},
		Random:     application.NewRandom(7),
	})
	return svc, store
}

func TestQuarantine(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	list, err := svc.Quarantine(ctx, QuarantineCommand{UserID: "u1", ThreatID: "t1", FilePath: "/a/b/evil.exe"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.ThreatID("t2"), list[0].ID, "newest first")
	assert.Equal(t, domain.StatusQuarantined, list[1].Status)
	assert.Equal(t, "File moved to quarantine", list[1].ActionTaken)
	require.NotNil(t, list[1].ResolvedAt)
	assert.Equal(t, testNow, *list[1].ResolvedAt)

	entries, err := svc.ListQuarantine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "/quarantine/t1_evil.exe", e.QuarantinePath)
	assert.Equal(t, "/a/b/evil.exe", e.OriginalPath)
	assert.GreaterOrEqual(t, e.FileSize, int64(0))
	assert.Less(t, e.FileSize, int64(MaxPlaceholderFileSize))

	_, err = store.Quarantine().GetByThreat(ctx, "u1", "t1")
	require.NoError(t, err)
}

func TestQuarantine_DefaultsToRecordedPath(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Quarantine(ctx, QuarantineCommand{UserID: "u1", ThreatID: "t2"})
	require.NoError(t, err)

	entries, err := svc.ListQuarantine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/quarantine/t2_suspicious.tmp", entries[0].QuarantinePath)
}

func TestResolveTwiceIsPrecondition(t *testing.T) {
	actions := map[string]func(svc *Service) error{
		"quarantine": func(svc *Service) error {
			_, err := svc.Quarantine(context.Background(), QuarantineCommand{UserID: "u1", ThreatID: "t1"})
			return err
		},
		"delete": func(svc *Service) error {
			_, err := svc.Delete(context.Background(), "u1", "t1")
			return err
		},
		"ignore": func(svc *Service) error {
			_, err := svc.Ignore(context.Background(), "u1", "t1")
			return err
		},
	}
	for first, do := range actions {
		for second, again := range actions {
			t.Run(first+"_then_"+second, func(t *testing.T) {
				svc, store := setup(t)
				require.NoError(t, do(svc))
				writes := store.Writes()

				err := again(svc)
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrPrecondition))
				assert.Equal(t, writes, store.Writes())
				assert.Equal(t, domain.ThreatID("t1"), errors.ContextOf(err)["threat_id"])

				entries, err := svc.ListQuarantine(context.Background(), "u1")
				require.NoError(t, err)
				if first == "quarantine" {
					assert.Len(t, entries, 1)
				} else {
					assert.Empty(t, entries)
				}
			})
		}
	}
}

func TestDeleteAndIgnore(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	list, err := svc.Delete(ctx, "u1", "t1")
	require.NoError(t, err)
	byID := index(list)
	assert.Equal(t, domain.StatusDeleted, byID["t1"].Status)
	assert.Equal(t, "File permanently deleted", byID["t1"].ActionTaken)

	list, err = svc.Ignore(ctx, "u1", "t2")
	require.NoError(t, err)
	byID = index(list)
	assert.Equal(t, domain.StatusIgnored, byID["t2"].Status)
	assert.Equal(t, "User chose to ignore this threat", byID["t2"].ActionTaken)

	entries, err := svc.ListQuarantine(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_OtherUsersThreat(t *testing.T) {
	svc, store := setup(t)
	_, err := svc.Delete(context.Background(), "u1", "t3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	t3, err := store.Threats().Get(context.Background(), "u2", "t3")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDetected, t3.Status)
}

func TestQuarantine_EntryFailureReverts(t *testing.T) {
	svc, store := setup(t)
	store.Fail(memory.OpQuarantineCreate, assert.AnError)
	ctx := context.Background()

	_, err := svc.Quarantine(ctx, QuarantineCommand{UserID: "u1", ThreatID: "t1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPersistence))

	t1, err := store.Threats().Get(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDetected, t1.Status)
	assert.Nil(t, t1.ResolvedAt)
	assert.Empty(t, t1.ActionTaken)

	store.Fail(memory.OpQuarantineCreate, nil)
	_, err = svc.Quarantine(ctx, QuarantineCommand{UserID: "u1", ThreatID: "t1"})
	require.NoError(t, err)
}

func TestResolve_Concurrent(t *testing.T) {
	svc, store := setup(t)
	const n = 8

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = svc.Quarantine(context.Background(), QuarantineCommand{UserID: "u1", ThreatID: "t1"})
			} else {
				_, errs[i] = svc.Delete(context.Background(), "u1", "t1")
			}
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, errors.ErrPrecondition), err)
	}
	assert.Equal(t, 1, ok)

	entries, err := store.Quarantine().List(context.Background(), "u1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 1)
}

func TestList_Filter(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	_, err := svc.Ignore(ctx, "u1", "t1")
	require.NoError(t, err)

	active, err := svc.List(ctx, "u1", domain.Filter{Status: domain.StatusDetected})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.ThreatID("t2"), active[0].ID)

	_, err = svc.List(ctx, "u1", domain.Filter{Status: "purged"})
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func TestResolve_Validation(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Ignore(context.Background(), "u1", " ")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "threat id"))
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
}

func index(list []*domain.Threat) map[domain.ThreatID]*domain.Threat {
	out := make(map[domain.ThreatID]*domain.Threat, len(list))
	for _, t := range list {
		out[t.ID] = t
	}
	return out
}
