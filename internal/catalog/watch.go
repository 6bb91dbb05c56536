package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events a single file copy produces.
const DefaultDebounce = 500 * time.Millisecond

// relevant reports whether a changed file can affect the snapshot.
func relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	ext := filepath.Ext(base)
	return ext == ".geojson" || ext == ".json"
}

// Watch reloads the catalog whenever a data file under the directory
// changes, until ctx is done. Failed reloads keep the previous snapshot.
// onReload, when set, runs after each successful reload.
func (c *Catalog) Watch(ctx context.Context, debounce time.Duration, onReload func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dirs := []string{c.dir}
	for _, sub := range []string{"census", "boundaries"} {
		if info, err := os.Stat(filepath.Join(c.dir, sub)); err == nil && info.IsDir() {
			dirs = append(dirs, filepath.Join(c.dir, sub))
		}
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	log.Printf("Watching '%s' for data changes", c.dir)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.Add(event.Name)
					continue
				}
			}
			if !relevant(event.Name) || event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}
		case <-fire:
			if err := c.Reload(); err != nil {
				log.Printf("Catalog reload failed, keeping previous data: %v", err)
				continue
			}
			if onReload != nil {
				onReload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}
