package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKeyStable(t *testing.T) {
	a := LockKey(LockHistoricalSync)
	b := LockKey(LockHistoricalSync)
	assert.Equal(t, a, b)
}

func TestLockKeyDistinguishesNames(t *testing.T) {
	assert.NotEqual(t, LockKey("historico_sla"), LockKey("other_lock"))
	assert.NotEqual(t, LockKey(""), LockKey("historico_sla"))
}
