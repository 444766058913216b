package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	apperrors "github.com/docuhub/vector-go/internal/errors"
	"github.com/docuhub/vector-go/internal/logger"
)

// Watcher 监听文档目录的文件变化并驱动Processor。
// 每个路径独立防抖：记录最近一次排期时间，到期任务只有在
// 排期时间仍然是最新时才执行，被更新的排期覆盖的任务静默退出。
type Watcher struct {
	watcher   *fsnotify.Watcher
	processor *Processor
	root      string
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // path -> 最近一次排期时间

	done chan struct{}
	log  *zap.Logger
}

// NewWatcher 创建文件监听器
func NewWatcher(processor *Processor, root string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer,
			"failed to create file watcher: "+err.Error())
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Watcher{
		watcher:   fsWatcher,
		processor: processor,
		root:      root,
		debounce:  debounce,
		pending:   make(map[string]time.Time),
		done:      make(chan struct{}),
		log:       logger.Component("document_monitor"),
	}, nil
}

// Start 注册目录树并开始消费事件
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.WalkDir(w.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return apperrors.NewStorageError("failed to watch documents directory", err)
	}

	go w.loop(ctx)
	w.log.Info("document monitor started",
		zap.String("root", w.root),
		zap.Duration("debounce", w.debounce))
	return nil
}

// Close 停止监听
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// 新建目录需要纳入监听，fsnotify不自动递归
	if event.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.log.Error("failed to watch new directory",
					zap.String("file_path", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !w.processor.ShouldProcess(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if err := w.processor.RemoveDocumentByPath(ctx, event.Name); err != nil && !apperrors.IsNotFound(err) {
			w.log.Error("failed to remove document",
				zap.String("file_path", event.Name), zap.Error(err))
		}
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.scheduleChange(ctx, event.Name)
	}
}

// scheduleChange 记录排期并安排防抖任务
func (w *Watcher) scheduleChange(ctx context.Context, path string) {
	now := time.Now()
	w.mu.Lock()
	w.pending[path] = now
	w.mu.Unlock()

	time.AfterFunc(w.debounce, func() {
		w.processChange(ctx, path, now)
	})
}

// processChange 防抖到期回调。排期时间已被更新的任务是过期任务，直接丢弃。
func (w *Watcher) processChange(ctx context.Context, path string, scheduled time.Time) {
	w.mu.Lock()
	latest, ok := w.pending[path]
	if !ok || !latest.Equal(scheduled) {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	if _, err := w.processor.ProcessDocument(ctx, path); err != nil {
		w.log.Error("failed to process document",
			zap.String("file_path", path), zap.Error(err))
	}
}
