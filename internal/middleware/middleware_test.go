package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/n0dr1e/internal/application"
)

var _ application.Metrics = (*Metrics)(nil)

func TestValidateScanType(t *testing.T) {
	for _, ok := range []string{"quick", "FULL", " custom "} {
		assert.NoError(t, ValidateScanType(ok), ok)
	}
	for _, bad := range []string{"", "deep", "quick;rm"} {
		assert.Error(t, ValidateScanType(bad), bad)
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"", true},
		{"/home/user/Downloads", true},
		{`C:\Users\me\Documents`, true},
		{"/home/user/..hidden", true},
		{"/home/../etc", false},
		{`C:\..\Windows`, false},
		{"/tmp/$(reboot)", false},
		{"/tmp/a;b", false},
		{"/tmp/" + strings.Repeat("a", 5000), false},
	}
	for _, tt := range tests {
		err := ValidatePath(tt.path)
		if tt.ok {
			assert.NoError(t, err, tt.path)
		} else {
			assert.Error(t, err, tt.path)
		}
	}
}

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("user_01-a"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("a b"))
	assert.Error(t, ValidateUserID(strings.Repeat("x", 65)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "/home/user", SanitizeString("  /home/\x00user\x07 "))
}

func TestRateLimiter_SweepDropsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(5 * time.Minute)
	rl.Allow("a")
	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, rl.Sweep())
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	h := APIKeyAuth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, UserFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/u1/profile", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIKeyAuth_SetsUser(t *testing.T) {
	h := APIKeyAuth(map[string]string{"u1": "k1"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", UserFromContext(r.Context()))
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/u1/profile", nil)
	req.Header.Set("Authorization", "k1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics_DomainCounters(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.ScanStarted("quick")
	m.ScanStarted("full")
	m.ScanFinished("quick", "completed")
	m.ThreatDetected("high")
	m.ThreatResolved("quarantine")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runningSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansFinished.WithLabelValues("quick", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.threatsDetected.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.threatsResolved.WithLabelValues("quarantine")))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/u1/scans/x", nil))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "bytes=\"7 B\"")
}
