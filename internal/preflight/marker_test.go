package preflight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarker_Lifecycle(t *testing.T) {
	dir := t.TempDir()

	// Given a fresh data directory, checks are needed
	assert.True(t, NeedsCheck(dir))
	assert.Zero(t, MarkerAge(dir))

	// When a passing run is recorded
	require.NoError(t, MarkPassed(dir))

	// Then the marker suppresses further checks
	assert.False(t, NeedsCheck(dir))
	assert.Greater(t, MarkerAge(dir).Nanoseconds(), int64(0))

	// And clearing it forces a re-check
	require.NoError(t, ClearMarker(dir))
	assert.True(t, NeedsCheck(dir))
}

func TestClearMarker_MissingIsNoError(t *testing.T) {
	assert.NoError(t, ClearMarker(t.TempDir()))
}

func TestMarkPassed_CreatesDataDir(t *testing.T) {
	dir := t.TempDir() + "/nested/data"

	require.NoError(t, MarkPassed(dir))

	assert.False(t, NeedsCheck(dir))
}
