package session

import (
	"sync"

	"sharecrop/internal/logger"
	"sharecrop/internal/models"
)

// Registry keeps one session per viewer id.
type Registry struct {
	geocoder  Geocoder
	purchaser Purchaser
	log       *logger.Logger
	popupW    float64
	popupH    float64

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(geocoder Geocoder, purchaser Purchaser, log *logger.Logger, popupW, popupH float64) *Registry {
	return &Registry{
		geocoder:  geocoder,
		purchaser: purchaser,
		log:       log,
		popupW:    popupW,
		popupH:    popupH,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the viewer's session, creating it on first use.
func (r *Registry) Get(viewer models.Identity) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[viewer.ID]; ok {
		return s
	}
	s := New(viewer, r.geocoder, r.purchaser, r.log, r.popupW, r.popupH)
	r.sessions[viewer.ID] = s
	return s
}

// Drop closes and forgets the viewer's session.
func (r *Registry) Drop(viewerID string) {
	r.mu.Lock()
	s, ok := r.sessions[viewerID]
	delete(r.sessions, viewerID)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
