package scans

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  Type
		want int
	}{
		{TypeQuick, 1000},
		{TypeFull, 50000},
		{TypeCustom, 5000},
		{Type("deep"), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.TargetFiles())
			assert.Equal(t, tt.want > 0, tt.typ.Valid())
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
