// Package watcher 入库目录监控：新样本落地后自动送入提取流程。
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// SampleHandler 新样本处理函数
type SampleHandler func(ctx context.Context, apkPath string) error

// SampleWatcher 监控入库目录，debounce 合并同一文件的连续写事件。
// 采集端往目录里拷贝 APK 时会触发一连串 Write 事件，只有文件大小
// 稳定之后才认为落地完成。
type SampleWatcher struct {
	watcher  *fsnotify.Watcher
	watchDir string
	pattern  string
	handler  SampleHandler
	logger   *logrus.Logger
	debounce time.Duration

	mu         sync.Mutex
	processing map[string]bool

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSampleWatcher 创建监控器，pattern 形如 "*.apk"
func NewSampleWatcher(watchDir, pattern string, handler SampleHandler, logger *logrus.Logger) (*SampleWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := os.MkdirAll(watchDir, 0755); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to create watch directory: %w", err)
	}

	if err := w.Add(watchDir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to add watch directory: %w", err)
	}

	sw := &SampleWatcher{
		watcher:    w,
		watchDir:   watchDir,
		pattern:    pattern,
		handler:    handler,
		logger:     logger,
		debounce:   2 * time.Second,
		processing: make(map[string]bool),
		stopChan:   make(chan struct{}),
	}

	logger.WithFields(logrus.Fields{
		"watch_dir": watchDir,
		"pattern":   pattern,
	}).Info("Sample watcher created")

	return sw, nil
}

// Start 启动事件循环。scanExisting 为 true 时先处理目录里已有的样本，
// 已经提取过的样本由断点机制跳过，重复触发无害。
func (sw *SampleWatcher) Start(ctx context.Context, scanExisting bool) error {
	if scanExisting {
		if err := sw.scanExistingFiles(ctx); err != nil {
			sw.logger.WithError(err).Warn("Failed to scan existing samples")
		}
	}

	go sw.eventLoop(ctx)

	sw.logger.Info("Sample watcher started")
	return nil
}

func (sw *SampleWatcher) scanExistingFiles(ctx context.Context) error {
	entries, err := os.ReadDir(sw.watchDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !sw.matchPattern(entry.Name()) {
			continue
		}
		apkPath := filepath.Join(sw.watchDir, entry.Name())
		sw.logger.WithField("file", entry.Name()).Info("Found existing sample")
		go sw.handleFile(ctx, apkPath)
	}

	return nil
}

func (sw *SampleWatcher) eventLoop(ctx context.Context) {
	debounceTimer := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("Sample watcher context done")
			return
		case <-sw.stopChan:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				sw.logger.Warn("Watcher events channel closed")
				return
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !sw.matchPattern(filepath.Base(event.Name)) {
				continue
			}

			sw.logger.WithFields(logrus.Fields{
				"event": event.Op.String(),
				"file":  filepath.Base(event.Name),
			}).Debug("Sample event detected")

			if timer, exists := debounceTimer[event.Name]; exists {
				timer.Stop()
			}
			name := event.Name
			debounceTimer[name] = time.AfterFunc(sw.debounce, func() {
				sw.handleFile(ctx, name)
			})

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				sw.logger.Warn("Watcher errors channel closed")
				return
			}
			sw.logger.WithError(err).Error("Watcher error")
		}
	}
}

func (sw *SampleWatcher) handleFile(ctx context.Context, apkPath string) {
	sw.mu.Lock()
	if sw.processing[apkPath] {
		sw.mu.Unlock()
		sw.logger.WithField("file", apkPath).Debug("Sample is already being processed")
		return
	}
	sw.processing[apkPath] = true
	sw.mu.Unlock()

	defer func() {
		sw.mu.Lock()
		delete(sw.processing, apkPath)
		sw.mu.Unlock()
	}()

	if err := sw.waitForFileReady(apkPath); err != nil {
		sw.logger.WithError(err).WithField("file", apkPath).Error("Sample not ready")
		return
	}

	sw.logger.WithField("file", apkPath).Info("Processing new sample")

	if err := sw.handler(ctx, apkPath); err != nil {
		sw.logger.WithError(err).WithField("file", apkPath).Error("Failed to process sample")
		return
	}

	sw.logger.WithField("file", apkPath).Info("Sample processed")
}

// waitForFileReady 等待文件大小稳定，避免读到半截的 APK
func (sw *SampleWatcher) waitForFileReady(apkPath string) error {
	maxAttempts := 10
	for i := 0; i < maxAttempts; i++ {
		file, err := os.OpenFile(apkPath, os.O_RDONLY, 0644)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file does not exist")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		info1, err := file.Stat()
		if err != nil {
			file.Close()
			return err
		}

		time.Sleep(500 * time.Millisecond)

		info2, err := file.Stat()
		if err != nil {
			file.Close()
			return err
		}
		file.Close()

		if info1.Size() == info2.Size() && info1.Size() > 0 {
			return nil
		}
	}

	return fmt.Errorf("file not ready after %d attempts", maxAttempts)
}

func (sw *SampleWatcher) matchPattern(fileName string) bool {
	if sw.pattern == "*" {
		return true
	}
	if strings.HasPrefix(sw.pattern, "*.") {
		ext := strings.TrimPrefix(sw.pattern, "*")
		return strings.HasSuffix(strings.ToLower(fileName), strings.ToLower(ext))
	}
	return fileName == sw.pattern
}

// Stop 停止监控
func (sw *SampleWatcher) Stop() error {
	sw.stopOnce.Do(func() { close(sw.stopChan) })
	if sw.watcher != nil {
		return sw.watcher.Close()
	}
	return nil
}

// WatchDir 监控目录
func (sw *SampleWatcher) WatchDir() string {
	return sw.watchDir
}
