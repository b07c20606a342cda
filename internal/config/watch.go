package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"replaybot/pkg/logx"
)

// Watch re-reads the config file whenever it changes and calls onChange
// with the freshly validated result. Invalid intermediate states (editors
// write in multiple events) are logged and skipped; the previous config
// stays in effect. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors replace files via rename, which drops
	// a watch on the file itself.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Base(path)

	// Debounce bursts of write events into one reload.
	const settle = 300 * time.Millisecond
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(settle, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch error", logx.Err(err))
		case <-fire:
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config reload skipped", logx.Err(err))
				continue
			}
			log.Info("config reloaded", logx.String("path", path))
			onChange(cfg)
		}
	}
}
