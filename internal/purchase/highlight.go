package purchase

import (
	"sync"
	"time"
)

// Highlighter marks recently purchased listings for a short time.
type Highlighter struct {
	duration time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewHighlighter(duration time.Duration) *Highlighter {
	return &Highlighter{duration: duration, timers: make(map[string]*time.Timer)}
}

// Flash highlights listingID, restarting the timer if it is already lit.
func (h *Highlighter) Flash(listingID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.timers[listingID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(h.duration, func() {
		h.mu.Lock()
		if h.timers[listingID] == timer {
			delete(h.timers, listingID)
		}
		h.mu.Unlock()
	})
	h.timers[listingID] = timer
}

func (h *Highlighter) Active(listingID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.timers[listingID]
	return ok
}

// Stop clears every pending highlight.
func (h *Highlighter) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
}
