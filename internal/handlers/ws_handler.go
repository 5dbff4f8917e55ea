package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"taskboard/internal/realtime"
)

// WSHandler upgrades /ws and hands the connection to the hub.
type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewWSHandler accepts any origin when allowedOrigins is empty or contains "*".
func NewWSHandler(hub *realtime.Hub, allowedOrigins []string, log *logrus.Entry) *WSHandler {
	h := &WSHandler{hub: hub, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// @Summary      Subscribe to task events
// @Description  Upgrades to a WebSocket. Send join-room / leave-room to pick projects.
// @Tags         Realtime
// @Router       /ws [get]
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.log.WithError(err).WithField("operation", "handlers.WSHandler.Serve").Debug("upgrade failed")
		return
	}
	h.hub.Serve(c.Request.Context(), conn, getUserID(c))
}
