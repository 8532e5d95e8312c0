package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWatcher(t *testing.T, path string, opts ...WatcherOption) *FileWatcher {
	t.Helper()
	loader := NewLoader().WithConfigPath(path).WithEnvLookup(envMap(nil))
	opts = append([]WatcherOption{
		WithPollInterval(10 * time.Millisecond),
		WithDebounceDelay(10 * time.Millisecond),
		WithWatcherLogger(zaptest.NewLogger(t)),
	}, opts...)
	w, err := NewFileWatcher(path, loader, opts...)
	require.NoError(t, err)
	return w
}

// touch 写入内容并把修改时间推后，避免文件系统时间精度导致漏检
func touch(t *testing.T, path, content string, offset time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	mt := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, mt, mt))
}

func TestNewFileWatcher_Validation(t *testing.T) {
	_, err := NewFileWatcher("", nil)
	assert.Error(t, err)

	w, err := NewFileWatcher(filepath.Join(t.TempDir(), "later.yaml"), nil)
	require.NoError(t, err, "missing file is watched for creation")
	assert.False(t, w.IsRunning())
}

func TestFileWatcher_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formflow.yaml")
	touch(t, path, "log:\n  level: info\n", 0)
	w := newTestWatcher(t, path)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(context.Background()), "second start is rejected")

	w.Stop()
	assert.False(t, w.IsRunning())
	w.Stop()
}

func TestFileWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formflow.yaml")
	touch(t, path, "log:\n  level: info\n", -time.Minute)
	w := newTestWatcher(t, path)

	var mu sync.Mutex
	var levels []string
	w.OnReload(func(c *Config) {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, c.Log.Level)
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	touch(t, path, "log:\n  level: debug\n", 0)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) == 1 && levels[0] == "debug"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileWatcher_InvalidConfigKeepsOld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formflow.yaml")
	touch(t, path, "log:\n  level: info\n", -time.Minute)

	errCh := make(chan error, 1)
	w := newTestWatcher(t, path, WithReloadError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}))
	reloaded := false
	w.OnReload(func(*Config) { reloaded = true })
	require.NoError(t, w.Start(context.Background()))

	touch(t, path, "log:\n  level: shouting\n", 0)

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "Level")
	case <-time.After(2 * time.Second):
		t.Fatal("reload error not reported")
	}
	w.Stop()
	assert.False(t, reloaded)
}

func TestFileWatcher_ContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formflow.yaml")
	touch(t, path, "", 0)
	w := newTestWatcher(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	// Stop 在 ctx 已取消后仍能正常返回
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after context cancel")
	}
}
