package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	err := Authorization("scans.start", "upgrade required")
	assert.True(t, Is(err, ErrAuthorization))
	assert.False(t, Is(err, ErrValidation))
	assert.Equal(t, "scans.start: upgrade required", err.Error())

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, Is(wrapped, ErrAuthorization))
	assert.Equal(t, CategoryAuthorization, CategoryOf(wrapped))
}

func TestPersistenceWrapsCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("connection refused")
	err := Persistence("scans.create", cause)

	require.Error(t, err)
	assert.True(t, Is(err, ErrPersistence))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "scans.create: connection refused", err.Error())
	assert.NoError(t, Persistence("noop", nil))
}

func TestPersistenceKeepsCategorizedCause(t *testing.T) {
	t.Parallel()

	nf := NotFound("threats.get", "threat not found")
	err := Persistence("threats.quarantine", nf)
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrPersistence))
}

func TestBuilder(t *testing.T) {
	t.Parallel()

	err := New(stderrors.New("boom")).
		Category(CategoryPrecondition).
		Op("threats.resolve").
		Msg("already resolved").
		Context("threat_id", "t1").
		Build()

	assert.Equal(t, "threats.resolve: already resolved: boom", err.Error())
	assert.Equal(t, map[string]any{"threat_id": "t1"}, ContextOf(err))
	assert.True(t, Is(err, ErrPrecondition))

	assert.Equal(t, CategoryValidation, Newf("bad %s", "input").Build().Category)
	assert.Empty(t, CategoryOf(stderrors.New("plain")))
}
