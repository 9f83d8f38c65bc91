package presence

import (
	"encoding/json"
	"sync"

	utils "barlive/pkg/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sendBufferSize = 256

// serverEvent is the envelope for everything pushed to a connection.
type serverEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// clientEvent is the envelope for everything a connection sends us.
type clientEvent struct {
	Event string `json:"event"`
	Data  struct {
		ChannelName string `json:"channel_name"`
		Broadcaster bool   `json:"broadcaster"`
		Content     string `json:"content"`
	} `json:"data"`
}

func encodeEvent(event string, payload interface{}) []byte {
	data, err := json.Marshal(serverEvent{Event: event, Data: payload})
	if err != nil {
		utils.Logger.Errorf("Error marshaling %s event: %v", event, err)
		return nil
	}
	return data
}

// Client is one realtime connection. Identity is fixed at upgrade time from
// the authenticated request and never taken from payloads.
type Client struct {
	ID              string
	AccountID       string
	EntityAccountID string

	conn     *websocket.Conn
	registry *Registry
	send     chan []byte

	roomsMu sync.Mutex
	rooms   map[string]*Room
}

func NewClient(registry *Registry, conn *websocket.Conn, accountID, entityAccountID string) *Client {
	return &Client{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		EntityAccountID: entityAccountID,
		conn:            conn,
		registry:        registry,
		send:            make(chan []byte, sendBufferSize),
	}
}

// logicalID identifies the user this connection belongs to, preferring the
// entity account so two tabs under one entity dedup to one viewer.
func (c *Client) logicalID() string {
	if c.EntityAccountID != "" {
		return c.EntityAccountID
	}
	return c.AccountID
}

func (c *Client) addRoom(r *Room) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	if c.rooms == nil {
		c.rooms = make(map[string]*Room)
	}
	c.rooms[r.name] = r
}

func (c *Client) delRoom(name string) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	delete(c.rooms, name)
}

func (c *Client) roomList() []*Room {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	rooms := make([]*Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// queueRaw enqueues a pre-encoded frame, dropping it if the connection's
// buffer is full. A slow viewer must not block a room broadcast.
func (c *Client) queueRaw(data []byte) {
	if data == nil {
		return
	}
	select {
	case c.send <- data:
	default:
		utils.Logger.Debugf("Dropping event for slow connection %s", c.ID)
	}
}

// ReadPump consumes inbound events until the connection dies, then tears the
// client down. A malformed event is ignored rather than crashing the handler;
// the transport must stay alive for every other room.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				utils.Logger.Errorf("WebSocket read error: %v", err)
			}
			break
		}

		var event clientEvent
		if err := json.Unmarshal(message, &event); err != nil {
			utils.Logger.Debugf("Ignoring malformed event from %s: %v", c.ID, err)
			continue
		}

		switch event.Event {
		case "join":
			c.registry.JoinChannel(c, event.Data.ChannelName, event.Data.Broadcaster)
		case "leave":
			c.registry.LeaveChannel(c, event.Data.ChannelName)
		case "chat":
			c.registry.RelayChat(c, event.Data.ChannelName, event.Data.Content)
		default:
			utils.Logger.Debugf("Ignoring unknown event %q from %s", event.Event, c.ID)
		}
	}
}

// WritePump drains the send buffer onto the wire.
func (c *Client) WritePump() {
	defer func() {
		c.conn.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		if err := w.Close(); err != nil {
			return
		}
	}
}
