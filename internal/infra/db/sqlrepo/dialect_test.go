package sqlrepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = ? WHERE c = ?"
	assert.Equal(t, q, MySQL.rebind(q))
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE c = $3", Postgres.rebind(q))
}

func TestDialectValid(t *testing.T) {
	assert.True(t, Postgres.Valid())
	assert.False(t, Dialect("oracle").Valid())
}
