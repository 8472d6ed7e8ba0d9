package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sharecrop/internal/utils"
)

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notes, unread, err := h.Notifications.List(r.Context(), caller(r).ID)
	if err != nil {
		h.fail(w, "ListNotifications", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Notifications loaded", map[string]any{
		"notifications": notes,
		"unread":        unread,
	})
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Notifications.MarkRead(r.Context(), caller(r).ID, chi.URLParam(r, "notificationId")); err != nil {
		h.fail(w, "MarkNotificationRead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamNotifications pushes the caller's new notifications as server-sent
// events until the client disconnects. The stream is exempt from the
// server's write timeout.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("StreamNotifications failed", "streaming unsupported"))
		return
	}

	userID := caller(r).ID
	ctx := r.Context()

	// the server write timeout would otherwise cut the stream
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.Logger.Debug("SSE", fmt.Sprintf("Could not clear write deadline: %v", err))
	}

	events := h.Hub.Subscribe(ctx, userID)

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to notifications for user: %s", userID))

	for {
		select {
		case n, ok := <-events:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(n)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize notification: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: notification\nid: %s\ndata: %s\n\n", n.ID, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from notifications for user: %s", userID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
