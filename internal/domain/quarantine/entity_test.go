package quarantine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
)

func TestPathFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
		path string
		want string
	}{
		{"unix", "t1", "/a/b/evil.exe", "/quarantine/t1_evil.exe"},
		{"windows", "t2", `C:\Temp\suspicious.tmp`, "/quarantine/t2_suspicious.tmp"},
		{"bare", "t3", "payload.bin", "/quarantine/t3_payload.bin"},
		{"trailing slash", "t4", "/opt/dropper/", "/quarantine/t4_dropper"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathFor(threats.ThreatID(tt.id), tt.path)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, got, tt.id)
		})
	}
}
