package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func startWatcher(t *testing.T, w *Watcher) (<-chan []string, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []string, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) {
			changes <- changed
		})
	}()
	return changes, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestWatcherReportsProjectAndSurveyChanges(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "cave.mak")
	surveyPath := filepath.Join(dir, "sub", "a.dat")
	writeFile(t, projectPath, "@1,2,3,4,0;\n&Wgs 1984;\n")
	writeFile(t, surveyPath, "")

	w, err := New(projectPath, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.SetFiles([]string{surveyPath}))

	changes, stop := startWatcher(t, w)
	defer stop()

	writeFile(t, surveyPath, "Cave\r\n")
	select {
	case got := <-changes:
		assert.Equal(t, []string{surveyPath}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for survey change")
	}

	writeFile(t, projectPath, "@1,2,3,4,0;\n&Wgs 1972;\n")
	select {
	case got := <-changes:
		assert.Equal(t, []string{projectPath}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for project change")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "cave.mak")
	writeFile(t, projectPath, "")

	w, err := New(projectPath, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	changes, stop := startWatcher(t, w)
	defer stop()

	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")
	select {
	case got := <-changes:
		t.Fatalf("unexpected change report %v", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "cave.mak")
	writeFile(t, projectPath, "")

	w, err := New(projectPath, WithDebounce(200*time.Millisecond))
	require.NoError(t, err)
	changes, stop := startWatcher(t, w)
	defer stop()

	for i := 0; i < 5; i++ {
		writeFile(t, projectPath, "x")
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case got := <-changes:
		assert.Equal(t, []string{projectPath}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	select {
	case got := <-changes:
		t.Fatalf("burst reported twice: %v", got)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestSettled(t *testing.T) {
	w := &Watcher{debounce: time.Second, pending: map[string]time.Time{}}
	now := time.Now()
	w.pending["/b"] = now.Add(-2 * time.Second)
	w.pending["/a"] = now.Add(-time.Second)
	w.pending["/c"] = now

	assert.Equal(t, []string{"/a", "/b"}, w.settled(now))
	assert.Len(t, w.pending, 1)
}
