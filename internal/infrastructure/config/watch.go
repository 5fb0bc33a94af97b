package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/pkg/debounce"
)

// Watcher reloads configuration when the config file changes.
// Editors often write a file in several steps, so reloads are debounced.
type Watcher struct {
	v        *viper.Viper
	reload   *debounce.Callback[fsnotify.Event]
	logger   *zap.Logger
	onChange func(*Config)
}

// Watch starts watching the config file. An empty path uses the default
// search paths, in which case a config file must exist. onChange receives
// every successfully reloaded config; invalid reloads are logged and skipped.
func Watch(path string, delay time.Duration, logger *zap.Logger, onChange func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	w := &Watcher{
		v:        v,
		logger:   logger,
		onChange: onChange,
	}
	w.reload = debounce.NewCallback(w.apply, delay)

	v.OnConfigChange(func(e fsnotify.Event) {
		w.reload.Call(e)
	})
	v.WatchConfig()

	logger.Info("Watching config file", zap.String("file", v.ConfigFileUsed()))
	return w, nil
}

func (w *Watcher) apply(e fsnotify.Event) {
	cfg, err := fromViper(w.v)
	if err != nil {
		w.logger.Warn("Ignoring invalid config reload",
			zap.String("file", e.Name),
			zap.Error(err))
		return
	}
	w.logger.Info("Config reloaded",
		zap.String("file", e.Name),
		zap.String("op", e.Op.String()))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// File returns the config file being watched
func (w *Watcher) File() string {
	return w.v.ConfigFileUsed()
}

// Stop drops any pending reload. The underlying file watch lives until exit.
func (w *Watcher) Stop() {
	w.reload.Cancel()
}
