// 配置文件变更监听器实现。
//
// 轮询文件修改时间，变更后经防抖重新加载配置并回调。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 监听器类型定义 ---

// FileWatcher 监听单个配置文件，变更时重新加载并回调
type FileWatcher struct {
	mu sync.Mutex

	// 配置
	path          string
	loader        *Loader
	pollInterval  time.Duration
	debounceDelay time.Duration

	// 状态
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastMod time.Time
	exists  bool

	// 回调
	onReload []func(*Config)
	onError  func(error)

	logger *zap.Logger
}

// WatcherOption 配置 FileWatcher
type WatcherOption func(*FileWatcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithDebounceDelay 设置防抖延迟
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d >= 0 {
			w.debounceDelay = d
		}
	}
}

// WithWatcherLogger 设置日志
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithReloadError 设置重载失败回调；重载失败时保留旧配置
func WithReloadError(fn func(error)) WatcherOption {
	return func(w *FileWatcher) { w.onError = fn }
}

// --- 监听器实现 ---

// NewFileWatcher 创建监听器。loader 为空时使用以 path 为配置文件的默认 Loader。
func NewFileWatcher(path string, loader *Loader, opts ...WatcherOption) (*FileWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher: empty path")
	}
	if loader == nil {
		loader = NewLoader().WithConfigPath(path)
	}
	w := &FileWatcher{
		path:          path,
		loader:        loader,
		pollInterval:  time.Second,
		debounceDelay: 100 * time.Millisecond,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "config_watcher"), zap.String("path", path))

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
		}
		w.logger.Warn("config file does not exist, will watch for creation")
	}
	return w, nil
}

// OnReload 注册配置重载成功回调
func (w *FileWatcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Start 开始监听，ctx 结束或调用 Stop 后停止
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if info, err := os.Stat(w.path); err == nil {
		w.lastMod, w.exists = info.ModTime(), true
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true
	go w.pollLoop(ctx, w.done)

	w.logger.Info("config watcher started",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Duration("debounce_delay", w.debounceDelay))
	return nil
}

// Stop 停止监听并等待轮询协程退出
func (w *FileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("config watcher stopped")
}

// IsRunning 返回是否在运行
func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *FileWatcher) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.changed() {
				// 连续写入只触发一次重载
				debounce = time.After(w.debounceDelay)
			}
		case <-debounce:
			debounce = nil
			w.reload()
		}
	}
}

// changed 检查文件是否被创建或修改；删除不触发重载
func (w *FileWatcher) changed() bool {
	info, err := os.Stat(w.path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if w.exists {
			w.logger.Warn("config file removed, keeping current config")
		}
		w.exists = false
		return false
	}
	if !w.exists || info.ModTime().After(w.lastMod) {
		w.exists, w.lastMod = true, info.ModTime()
		return true
	}
	return false
}

func (w *FileWatcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Error("config reload failed", zap.Error(err))
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	callbacks := make([]func(*Config), len(w.onReload))
	copy(callbacks, w.onReload)
	w.mu.Unlock()

	w.logger.Info("config reloaded")
	for _, cb := range callbacks {
		cb(cfg)
	}
}
