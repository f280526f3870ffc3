package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnCatalogChange(t *testing.T) {
	dir := t.TempDir()

	reg, report := New(Options{CatalogDirs: []string{dir}, RequiredTools: []string{}})
	require.Equal(t, 0, report.Count)

	w, err := NewWatcher(reg, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "probe.yaml"), []byte(`
name: watched_probe
display_name: Watched Probe
description: Appeared while watching.
`), 0644))

	assert.Eventually(t, func() bool {
		_, ok := reg.Get("watched_probe")
		return ok
	}, 3*time.Second, 50*time.Millisecond, "watcher should trigger a reload")
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	reg, _ := New(Options{CatalogDirs: []string{dir}, RequiredTools: []string{}})

	w, err := NewWatcher(reg, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0644))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, reg.Count())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	reg, _ := New(Options{RequiredTools: []string{}})

	w, err := NewWatcher(reg, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
