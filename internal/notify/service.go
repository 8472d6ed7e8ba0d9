package notify

import (
	"context"
	"sort"

	"sharecrop/internal/models"
	"sharecrop/internal/store"
)

// Service reads and updates a user's persisted notifications.
type Service struct {
	Store *store.Store
}

func NewService(st *store.Store) *Service {
	return &Service{Store: st}
}

// List returns the user's notifications newest first with the unread count.
func (s *Service) List(ctx context.Context, userID string) ([]models.Notification, int, error) {
	notes, err := s.Store.Notifications(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })

	unread := 0
	for _, n := range notes {
		if !n.Read {
			unread++
		}
	}
	return notes, unread, nil
}

// MarkRead flags one notification as read. Unknown ids are ignored.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.Store.MarkNotificationRead(ctx, userID, id)
}
