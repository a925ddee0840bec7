package dic

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/nbti/nbadmin/log"
	"github.com/nbti/nbadmin/log/logger"
	"github.com/pkg/errors"
)

// Holder 持有当前字典快照，文件变更时整体替换，读方不加锁
type Holder struct {
	path    string
	current atomic.Pointer[Dictionary]
	logger  logger.Logger
	onSwap  func(*Dictionary)
}

type HolderOption func(*Holder)

func WithLogger(l logger.Logger) HolderOption {
	return func(h *Holder) {
		h.logger = l
	}
}

// WithOnSwap 每次成功替换后回调
func WithOnSwap(fn func(*Dictionary)) HolderOption {
	return func(h *Holder) {
		h.onSwap = fn
	}
}

func NewHolder(path string, opts ...HolderOption) (*Holder, error) {
	h := &Holder{path: path, logger: log.Default()}
	for _, opt := range opts {
		opt(h)
	}
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	h.current.Store(d)
	return h, nil
}

func (h *Holder) Current() *Dictionary {
	return h.current.Load()
}

// Reload 重新读取文件，失败时保留旧快照
func (h *Holder) Reload() error {
	d, err := Load(h.path)
	if err != nil {
		return err
	}
	h.current.Store(d)
	if h.onSwap != nil {
		h.onSwap(d)
	}
	return nil
}

// Watch 监听字典所在目录，直到 ctx 结束
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer watcher.Close()

	target, err := filepath.Abs(h.path)
	if err != nil {
		return errors.Wrap(err, "resolve dictionary path")
	}
	// 监听目录，编辑器以 rename 方式保存时文件句柄会变
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(target))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := h.Reload(); err != nil {
				h.logger.ErrorContext(ctx, "dictionary reload failed, keeping previous snapshot", "path", h.path, "error", err.Error())
				continue
			}
			h.logger.InfoContext(ctx, "dictionary reloaded", "path", h.path, "tables", len(h.Current().Tables()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.WarnContext(ctx, "dictionary watcher error", "error", err.Error())
		}
	}
}
