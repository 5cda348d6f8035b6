package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/sweeney/button-sensor/internal/logic"
)

// Watcher reloads the button thresholds when the config file changes. Only
// the timing is hot-reloadable; other keys need a restart.
type Watcher struct {
	v       *viper.Viper
	log     logrus.FieldLogger
	updates chan logic.Timing
}

// NewWatcher creates a Watcher over v. Call Start to begin watching.
func NewWatcher(v *viper.Viper, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		v:       v,
		log:     log.WithField("component", "config"),
		updates: make(chan logic.Timing, 1),
	}
}

// Start begins watching the config file. It is a no-op when no file was read.
func (w *Watcher) Start() {
	if w.v.ConfigFileUsed() == "" {
		return
	}
	w.v.OnConfigChange(w.handle)
	w.v.WatchConfig()
}

// Updates delivers reloaded timing. Only the latest unread value is kept.
func (w *Watcher) Updates() <-chan logic.Timing {
	return w.updates
}

func (w *Watcher) handle(e fsnotify.Event) {
	cfg, err := Load(w.v)
	if err != nil {
		w.log.WithError(err).WithField("file", e.Name).Warn("ignoring invalid config change")
		return
	}

	timing := cfg.Timing()
	w.log.WithFields(logrus.Fields{
		"file":          e.Name,
		"debounce_ms":   timing.Debounce,
		"click_ms":      timing.ClickWindow,
		"long_press_ms": timing.LongPress,
	}).Info("config reloaded")

	// Replace any value the run loop has not picked up yet
	select {
	case <-w.updates:
	default:
	}
	w.updates <- timing
}
