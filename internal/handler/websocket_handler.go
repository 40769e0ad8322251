package handler

import (
	"net/http"

	"github.com/dafibh/lendora/lendora-backend/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades /ws requests into office event feeds
type WebSocketHandler struct {
	hub       *websocket.Hub
	validator websocket.TokenValidator
	origins   map[string]struct{}
	upgrader  ws.Upgrader
}

func NewWebSocketHandler(hub *websocket.Hub, validator websocket.TokenValidator, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:       hub,
		validator: validator,
		origins:   make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		h.origins[o] = struct{}{}
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin lets non-browser clients through; browsers must come from a
// configured CORS origin
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.origins[origin]; ok {
		return true
	}
	log.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
	return false
}

// HandleWS upgrades GET /ws. Browsers cannot set headers on the upgrade, so
// the access token travels in the query string. entities narrows the feed,
// e.g. entities=payment,invoice; clients can change it later with
// {"action":"subscribe"|"unsubscribe","entities":[...]} frames.
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return NewUnauthorizedError(c, "Missing token")
	}

	entities, err := websocket.ParseEntities(c.QueryParam("entities"))
	if err != nil {
		return NewValidationError(c, "Invalid entities filter", []ValidationError{{Field: "entities", Message: err.Error()}})
	}

	staffID, err := h.validator.ValidateToken(c.Request().Context(), token)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket token rejected")
		return NewUnauthorizedError(c, "Invalid token")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		log.Warn().Err(err).Str("staff_id", staffID).Msg("WebSocket upgrade failed")
		return nil
	}

	client := websocket.NewClient(conn, staffID, h.hub, entities...)
	h.hub.Register(client)
	log.Info().Str("staff_id", staffID).Str("client_id", client.ID()).Interface("entities", entities).Msg("WebSocket client connected")

	go client.Run()
	return nil
}
