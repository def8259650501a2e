package worker

import (
	"context"
	"time"
)

type DebounceRequest struct {
	Key    string
	Cancel bool
}

// Debouncer emits a key on Due once no Schedule for it has arrived for the
// quiet interval. Each Schedule pushes the deadline back; Cancel drops it.
// Both go through one channel so they are handled in call order.
type Debouncer struct {
	RequestCh chan DebounceRequest
	due       chan string
	quiet     time.Duration
	tick      time.Duration
}

func NewDebouncer(quietMilliseconds int) *Debouncer {
	quiet := time.Duration(quietMilliseconds) * time.Millisecond
	tick := max(quiet/10, 5*time.Millisecond)
	return &Debouncer{
		RequestCh: make(chan DebounceRequest, 1024), // buffer to absorb drag bursts
		due:       make(chan string, 64),
		quiet:     quiet,
		tick:      tick,
	}
}

func (d *Debouncer) Schedule(key string) {
	d.RequestCh <- DebounceRequest{Key: key}
}

func (d *Debouncer) Cancel(key string) {
	d.RequestCh <- DebounceRequest{Key: key, Cancel: true}
}

func (d *Debouncer) Due() <-chan string {
	return d.due
}

func (d *Debouncer) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	deadlines := make(map[string]time.Time)
	// Keys already due but not yet taken by the reader
	var ready []string

	unready := func(key string) {
		for i, k := range ready {
			if k == key {
				ready = append(ready[:i], ready[i+1:]...)
				return
			}
		}
	}

	for {
		// Only offer a key when one is ready, so a slow reader never blocks
		// Schedule or Cancel
		var out chan string
		var next string
		if len(ready) > 0 {
			out = d.due
			next = ready[0]
		}

		select {
		case req := <-d.RequestCh:
			unready(req.Key)
			if req.Cancel {
				delete(deadlines, req.Key)
			} else {
				deadlines[req.Key] = time.Now().Add(d.quiet)
			}

		case out <- next:
			ready = ready[1:]

		case now := <-ticker.C:
			for key, at := range deadlines {
				if !now.Before(at) {
					ready = append(ready, key)
					delete(deadlines, key)
				}
			}

		case <-shutdownCtx.Done():
			return
		}
	}
}
