package presence

import (
	"net/http"

	utils "barlive/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WSHandler upgrades authenticated requests into presence connections.
type WSHandler struct {
	registry *Registry
	upgrader websocket.Upgrader
}

func NewWSHandler(registry *Registry) *WSHandler {
	return &WSHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection upgrades the request and runs the connection pumps. The
// caller identity comes from the auth middleware; the entity identity a client
// presents as is a query parameter because one account can watch as itself or
// as one of its linked business entities.
func (h *WSHandler) HandleConnection(c echo.Context) error {
	accountID, _ := c.Get("account_id").(string)
	if accountID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	entityAccountID := c.QueryParam("entity_account_id")

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		utils.Logger.Errorf("WebSocket upgrade failed: %v", err)
		return err
	}

	client := NewClient(h.registry, conn, accountID, entityAccountID)
	h.registry.Register(client)

	go client.WritePump()
	go client.ReadPump()
	return nil
}
