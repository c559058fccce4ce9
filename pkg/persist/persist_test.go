package persist

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/inspire-names/pkg/logging"
	"github.com/Sternrassler/inspire-names/pkg/mapping"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestWrite_RoundTrip(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "names.json")
	m := mapping.IdentityMapping{"INSPIRE-1": strPtr("jane.2")}

	require.NoError(t, Write(m, dst))

	got, err := Read(dst)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWrite_AbsentSides(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "names.json")
	m := mapping.IdentityMapping{
		"INSPIRE-1":       nil,
		mapping.AbsentKey: strPtr("jane.2"),
	}

	require.NoError(t, Write(m, dst))

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.JSONEq(t, `{"INSPIRE-1": null, "null": "jane.2"}`, string(b))
}

func TestWrite_CreatesMissingDirectories(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "a", "b", "c", "names.json")

	require.NoError(t, Write(mapping.IdentityMapping{}, dst))

	info, err := os.Stat(filepath.Join(root, "a", "b", "c"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))
}

func TestWrite_Idempotent(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out", "names.json")
	m := mapping.IdentityMapping{
		"INSPIRE-1": strPtr("jane.2"),
		"INSPIRE-2": strPtr("john.1"),
		"INSPIRE-3": nil,
	}

	require.NoError(t, Write(m, dst))
	first, err := os.ReadFile(dst)
	require.NoError(t, err)

	require.NoError(t, Write(m, dst))
	second, err := os.ReadFile(dst)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWrite_OverwritesLongerFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "names.json")
	require.NoError(t, os.WriteFile(dst, []byte(`{"INSPIRE-999": "someone.with.a.long.name.1"}`), 0o644))

	m := mapping.IdentityMapping{"INSPIRE-1": strPtr("a.1")}
	require.NoError(t, Write(m, dst))

	got, err := Read(dst)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWrite_DirectoryIsAFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := Write(mapping.IdentityMapping{}, filepath.Join(blocker, "names.json"))
	require.Error(t, err)
}

func TestWrite_Locked(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "names.json")

	other := flock.New(dst + LockSuffix)
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer other.Unlock()

	err = Write(mapping.IdentityMapping{}, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked), "got %v", err)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWrite_LeavesLockFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "names.json")
	m := mapping.IdentityMapping{"INSPIRE-1": strPtr("jane.2")}

	require.NoError(t, Write(m, dst))

	info, err := os.Stat(dst + LockSuffix)
	require.NoError(t, err, "lock file stays next to the output")
	assert.False(t, info.IsDir())

	// the leftover lock file does not block the next writer
	m["INSPIRE-2"] = nil
	require.NoError(t, Write(m, dst))

	got, err := Read(dst)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWriteContext_RunLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logging.Setup(logging.Config{Level: logging.LevelInfo, Output: buf})
	t.Cleanup(func() { logging.Setup(logging.Config{Level: logging.LevelError, Output: io.Discard}) })

	dst := filepath.Join(t.TempDir(), "names.json")
	ctx := logging.ContextWithRun(context.Background(), "run-789")

	require.NoError(t, WriteContext(ctx, mapping.IdentityMapping{}, dst))

	assert.Contains(t, buf.String(), `"component":"writer"`)
	assert.Contains(t, buf.String(), `"run_id":"run-789"`)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestRead_Malformed(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(src, []byte(`["not", "an", "object"]`), 0o644))

	_, err := Read(src)
	assert.Error(t, err)
}
