package watcher

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/revel/devproxy/model"
)

// IsStyle reports whether the path has one of the style extensions.
func IsStyle(name string, styleExtensions []string) bool {
	ext := path.Ext(name)
	if ext == "" {
		return false
	}
	for _, e := range styleExtensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// Classify turns a batch of changes into the reload browsers should do.
// Only a batch made entirely of stylesheets is refreshed in place.
func Classify(changes []model.ChangeEvent, styleExtensions []string) model.ReloadEvent {
	ev := model.ReloadEvent{LiveCSS: len(changes) > 0}
	seen := map[string]bool{}
	for _, c := range changes {
		if !seen[c.Path] {
			seen[c.Path] = true
			ev.Paths = append(ev.Paths, c.Path)
		}
		if !IsStyle(c.Path, styleExtensions) {
			ev.LiveCSS = false
		}
	}
	return ev
}

// Coalesce groups changes arriving less than delay apart into one
// ReloadEvent. The returned channel is closed when changes is closed
// (after the pending batch is delivered) or when ctx is done.
func Coalesce(ctx context.Context, changes <-chan model.ChangeEvent, delay time.Duration, styleExtensions []string) <-chan model.ReloadEvent {
	out := make(chan model.ReloadEvent)
	go func() {
		defer close(out)
		var (
			pending []model.ChangeEvent
			timer   *time.Timer
			timerC  <-chan time.Time
		)
		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			ev := Classify(pending, styleExtensions)
			pending = nil
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					flush()
					return
				}
				pending = append(pending, change)
				if delay <= 0 {
					if !flush() {
						return
					}
					continue
				}
				// Reset the countdown, the batch ends after a quiet period.
				if timer == nil {
					timer = time.NewTimer(delay)
				} else {
					timer.Reset(delay)
				}
				timerC = timer.C
			case <-timerC:
				timerC = nil
				if !flush() {
					return
				}
			}
		}
	}()
	return out
}
