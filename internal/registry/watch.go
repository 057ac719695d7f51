package registry

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when the plugin directory changes so the UI can trigger
// a rediscovery. Bursts of filesystem events (a git clone writes many
// files) collapse into one notification.
type Watcher struct {
	fs     *fsnotify.Watcher
	notify chan struct{}
	done   chan struct{}
}

// WatchDir starts watching dir. Callers receive change signals from
// Changes and must Close the watcher when done.
func WatchDir(dir string, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, err
	}

	w := &Watcher{
		fs:     fs,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.loop(debounce)
	return w, nil
}

// Changes delivers one signal per settled burst of directory changes.
func (w *Watcher) Changes() <-chan struct{} { return w.notify }

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}

func (w *Watcher) loop(debounce time.Duration) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		case <-fire:
			fire = nil
			select {
			case w.notify <- struct{}{}:
			default:
			}
		}
	}
}

// relevantEvent keeps manifest writes and directory creations/removals;
// editor temp files and chmods are ignored.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasSuffix(event.Name, "_plugin.yaml") {
		return true
	}
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}
