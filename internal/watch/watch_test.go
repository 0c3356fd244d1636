package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForCallback waits up to timeout for the callback channel to
// receive a value.
func waitForCallback(ch <-chan string, timeout time.Duration) (string, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		return "", false
	}
}

func startWatcher(t *testing.T, root string) (*Watcher, chan string) {
	t.Helper()

	w, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })

	changed := make(chan string, 10)
	require.NoError(t, w.Watch(root, func(path string) {
		changed <- path
	}))

	// Give the event loop time to come up.
	time.Sleep(50 * time.Millisecond)
	return w, changed
}

func TestWatcher_DetectsCoverageRewrite(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "flask_coverage.json")
	require.NoError(t, os.WriteFile(report, []byte(`{"files": {}}`), 0644))

	_, changed := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(report, []byte(`{"files": {"a.py": {"executed_lines": [1]}}}`), 0644))

	path, ok := waitForCallback(changed, 2*time.Second)
	assert.True(t, ok, "expected callback for rewritten coverage report")
	assert.Equal(t, report, path)
}

func TestWatcher_DetectsDatasetInSubdirectory(t *testing.T) {
	dir := t.TempDir()
	processed := filepath.Join(dir, "processed")
	require.NoError(t, os.MkdirAll(processed, 0755))

	_, changed := startWatcher(t, dir)

	dataset := filepath.Join(processed, "ml_smell_predictions.csv")
	require.NoError(t, os.WriteFile(dataset, []byte("repo_name,file_path\n"), 0644))

	path, ok := waitForCallback(changed, 2*time.Second)
	assert.True(t, ok, "expected callback for new dataset")
	assert.Equal(t, dataset, path)
}

func TestWatcher_NewDirectoryJoinsWatch(t *testing.T) {
	dir := t.TempDir()

	_, changed := startWatcher(t, dir)

	late := filepath.Join(dir, "processed")
	require.NoError(t, os.MkdirAll(late, 0755))
	// Let the create event land and the directory get registered.
	time.Sleep(300 * time.Millisecond)

	dataset := filepath.Join(late, "dataset.csv")
	require.NoError(t, os.WriteFile(dataset, []byte("repo_name\n"), 0644))

	path, ok := waitForCallback(changed, 2*time.Second)
	assert.True(t, ok, "expected callback for file in directory created after Watch")
	assert.Equal(t, dataset, path)
}

func TestWatcher_IgnoresEditorNoise(t *testing.T) {
	dir := t.TempDir()

	_, changed := startWatcher(t, dir)

	os.WriteFile(filepath.Join(dir, ".flask_coverage.json.swp"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.csv~"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("# docs"), 0644)

	_, ok := waitForCallback(changed, 500*time.Millisecond)
	assert.False(t, ok, "noise files should not trigger the callback")

	report := filepath.Join(dir, "click_coverage.json")
	require.NoError(t, os.WriteFile(report, []byte(`{"files": {}}`), 0644))

	path, ok := waitForCallback(changed, 2*time.Second)
	assert.True(t, ok, "expected callback for real coverage report")
	assert.Equal(t, report, path)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	w, err := New()
	require.NoError(t, err)

	callCount := 0
	var mu sync.Mutex
	require.NoError(t, w.Watch(dir, func(string) {
		mu.Lock()
		callCount++
		mu.Unlock()
	}))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Stop())

	mu.Lock()
	countAfterStop := callCount
	mu.Unlock()

	os.WriteFile(filepath.Join(dir, "after_stop.csv"), []byte("x"), 0644)
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	countAfterWrite := callCount
	mu.Unlock()
	assert.Equal(t, countAfterStop, countAfterWrite, "callbacks fired after Stop")

	assert.NoError(t, w.Stop())
}

func TestRelevantFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"data/flask_coverage.json", true},
		{"data/processed/ml_smell_predictions.csv", true},
		{"data/Report.JSON", true},
		{"data/.flask_coverage.json.swp", false},
		{"data/dataset.csv~", false},
		{"data/README.md", false},
		{"data/coverage", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, relevantFile(tt.path), "relevantFile(%q)", tt.path)
	}
}
