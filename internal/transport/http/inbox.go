package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
)

// eventTimeLayouts are tried in order when parsing event dates.
var eventTimeLayouts = []string{"2006-01-02 15:04:05", time.RFC3339}

type eventRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
}

func (r eventRequest) input() (app.EventInput, error) {
	start, err := parseEventTime("start_date", r.StartDate)
	if err != nil {
		return app.EventInput{}, err
	}
	end, err := parseEventTime("end_date", r.EndDate)
	if err != nil {
		return app.EventInput{}, err
	}
	return app.EventInput{Title: r.Title, Description: r.Description, StartsAt: start, EndsAt: end}, nil
}

func parseEventTime(field, raw string) (time.Time, error) {
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.Validation("'" + field + "' is Invalid")
}

func (h *Handler) bindEvent(c *gin.Context) (app.EventInput, bool) {
	var req eventRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return app.EventInput{}, false
	}
	in, err := req.input()
	if err != nil {
		h.fail(c, err)
		return app.EventInput{}, false
	}
	return in, true
}

func (h *Handler) events(c *gin.Context) {
	events, err := h.inbox.Events(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"events": events})
}

func (h *Handler) createEvent(c *gin.Context) {
	in, ok := h.bindEvent(c)
	if !ok {
		return
	}
	event, err := h.inbox.CreateEvent(c.Request.Context(), currentUser(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"event": event})
}

func (h *Handler) updateEvent(c *gin.Context) {
	id, err := pathID(c, "event")
	if err != nil {
		h.fail(c, err)
		return
	}
	in, ok := h.bindEvent(c)
	if !ok {
		return
	}
	event, err := h.inbox.UpdateEvent(c.Request.Context(), currentUser(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"event": event})
}

func (h *Handler) deleteEvent(c *gin.Context) {
	id, err := pathID(c, "event")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.inbox.DeleteEvent(c.Request.Context(), currentUser(c), id); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

func (h *Handler) notifications(c *gin.Context) {
	list, err := h.inbox.Notifications(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"notifications": list})
}

func (h *Handler) deleteNotification(c *gin.Context) {
	id, err := pathID(c, "notification")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.inbox.DeleteNotification(c.Request.Context(), currentUser(c), id); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Successfully Deleted Notification!"})
}

func (h *Handler) clearNotifications(c *gin.Context) {
	if _, err := h.inbox.ClearNotifications(c.Request.Context(), currentUser(c)); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Successfully Deleted All Notifications!"})
}
