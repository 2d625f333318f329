package logsink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "pt1", 4)
	require.NoError(t, err)
	defer s.Close()

	assert.FileExists(t, filepath.Join(dir, "pt1.log"))
}

func TestAppendBuffersUntilCapacity(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "pt1", 2)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append("1.0 100"))
	data, err := os.ReadFile(filepath.Join(dir, "pt1.log"))
	require.NoError(t, err)
	assert.Empty(t, data, "first entry should still be buffered, not flushed")

	require.NoError(t, s.Append("2.0 200"))
	data, err = os.ReadFile(filepath.Join(dir, "pt1.log"))
	require.NoError(t, err)
	assert.Equal(t, "1.0 100\n2.0 200\n", string(data))
}

func TestFlushWritesPartialBuffer(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "pt1", 10)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append("1.0 100"))
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(filepath.Join(dir, "pt1.log"))
	require.NoError(t, err)
	assert.Equal(t, "1.0 100\n", string(data))
}

func TestCloseFlushesRemainingLines(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "pt1", 10)
	require.NoError(t, err)

	require.NoError(t, s.Append("1.0 100"))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(filepath.Join(dir, "pt1.log"))
	require.NoError(t, err)
	assert.Equal(t, "1.0 100\n", string(data))
}

func TestOpenFailsOnUnwritableDirectory(t *testing.T) {
	_, err := Open("/nonexistent-dir-for-test", "pt1", 4)
	require.Error(t, err)

	var permErr *PermissionError
	require.ErrorAs(t, err, &permErr)
}
