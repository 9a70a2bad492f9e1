package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Exclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir, "shop")
	require.NoError(t, err)

	_, err = Acquire(dir, "shop")
	assert.Error(t, err, "second acquire for the same database must fail")

	// A different database is independent.
	other, err := Acquire(dir, "crm")
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, first.Release())

	again, err := Acquire(dir, "shop")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestRelease_NilSafe(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
