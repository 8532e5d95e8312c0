package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/formflow/formflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "FormFlow "+Version)
	assert.Contains(t, out.String(), "Git Commit: "+GitCommit)
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "optimize", "version", "health"}, names)
}

func TestHealthCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/ready":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	var out bytes.Buffer
	err := runHealthCheck(context.Background(), &out, &healthOptions{addr: ts.URL + "/", timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "OK\n", out.String())

	err = runHealthCheck(context.Background(), &out, &healthOptions{addr: ts.URL, ready: true, timeout: time.Second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "unhealthy")
}

func TestHealthCommand_Unreachable(t *testing.T) {
	err := runHealthCheck(context.Background(), &bytes.Buffer{}, &healthOptions{addr: "http://127.0.0.1:1", timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"bogus": zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			cfg := config.DefaultLogConfig()
			cfg.Format = format
			cfg.Level = "warn"
			cfg.OutputPaths = []string{filepath.Join(t.TempDir(), "out.log")}

			logger, level, err := initLogger(cfg)
			require.NoError(t, err)
			assert.Equal(t, zapcore.WarnLevel, level.Level())
			assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

			level.SetLevel(zapcore.DebugLevel)
			assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
		})
	}
}

func TestInitLogger_BadOutput(t *testing.T) {
	cfg := config.DefaultLogConfig()
	cfg.OutputPaths = []string{filepath.Join(t.TempDir(), "missing", "dir", "out.log")}
	_, _, err := initLogger(cfg)
	assert.Error(t, err)
}

func TestWatchLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "log:\n  level: info\n")

	cfg := config.DefaultLogConfig()
	cfg.OutputPaths = []string{filepath.Join(dir, "out.log")}
	logger, level, err := initLogger(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := watchLogLevel(ctx, path, level, logger)
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, dir, "config.yaml", "log:\n  level: debug\n")
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool { return level.Level() == zapcore.DebugLevel }, 5*time.Second, 50*time.Millisecond)
}
