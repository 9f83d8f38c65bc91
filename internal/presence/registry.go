package presence

import (
	"fmt"
	"sync"
	"time"

	utils "barlive/pkg/utils"
)

// Realtime events emitted by the presence layer.
const (
	EventUserJoined      = "user-joined"
	EventUsersJoined     = "users-joined"
	EventUserLeft        = "user-left"
	EventViewerCount     = "viewer-count"
	EventChatMessage     = "chat-message"
	EventLivestreamEnded = "livestream-ended"
	EventStatusChanged   = "livestream-status-changed"
)

// EntityRoomKey is the personal delivery room for an entity account.
func EntityRoomKey(entityAccountID string) string {
	return "entity:" + entityAccountID
}

// AccountRoomKey is the personal delivery room for a raw account.
func AccountRoomKey(accountID string) string {
	return "account:" + accountID
}

// EndSessionFunc ends the livestream bound to a channel after broadcaster loss.
type EndSessionFunc func(channelName string) error

// DisplayInfoFunc resolves the display name and avatar of an entity account.
// Sender identity on relayed messages is always resolved server-side through
// this, never trusted from a payload.
type DisplayInfoFunc func(entityAccountID string) (name string, avatar string, err error)

// Registry owns all presence state for the process: one Room per channel plus
// a subscription index for personal delivery rooms. It is constructed once and
// handed to the connection layer; rooms rebuild naturally as clients reconnect
// after a restart.
type Registry struct {
	mu            sync.RWMutex
	rooms         map[string]*Room
	subscriptions map[string]map[*Client]struct{}
	clients       map[*Client]struct{}

	batchSize     int
	batchDebounce time.Duration
	endSession    EndSessionFunc
	displayInfo   DisplayInfoFunc
}

func NewRegistry(batchSize int, batchDebounce time.Duration, endSession EndSessionFunc, displayInfo DisplayInfoFunc) (*Registry, error) {
	if endSession == nil {
		return nil, fmt.Errorf("presence registry requires an end-session callback")
	}
	if displayInfo == nil {
		return nil, fmt.Errorf("presence registry requires a display-info lookup")
	}
	if batchSize < 1 {
		batchSize = 10
	}
	if batchDebounce <= 0 {
		batchDebounce = 3 * time.Second
	}
	return &Registry{
		rooms:         make(map[string]*Room),
		subscriptions: make(map[string]map[*Client]struct{}),
		clients:       make(map[*Client]struct{}),
		batchSize:     batchSize,
		batchDebounce: batchDebounce,
		endSession:    endSession,
		displayInfo:   displayInfo,
	}, nil
}

// Register adds a connection and subscribes it to its personal delivery rooms
// so notification pushes reach it under either identity.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c] = struct{}{}
	if c.AccountID != "" {
		r.subscribeLocked(AccountRoomKey(c.AccountID), c)
	}
	if c.EntityAccountID != "" {
		r.subscribeLocked(EntityRoomKey(c.EntityAccountID), c)
	}
}

func (r *Registry) subscribeLocked(key string, c *Client) {
	if r.subscriptions[key] == nil {
		r.subscriptions[key] = make(map[*Client]struct{})
	}
	r.subscriptions[key][c] = struct{}{}
}

// Unregister removes a connection from every room and subscription it holds.
// Called on websocket disconnect, clean or not.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	delete(r.clients, c)
	for key, subs := range r.subscriptions {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.subscriptions, key)
		}
	}
	r.mu.Unlock()

	for _, room := range c.roomList() {
		r.leaveRoom(c, room)
	}
}

// JoinChannel records a connection in a channel room. Joins are idempotent per
// logical user: a second connection of the same user updates membership and
// the viewer count but produces no join announcements.
func (r *Registry) JoinChannel(c *Client, channelName string, isBroadcaster bool) {
	if channelName == "" {
		return
	}

	var name, avatar string
	if !isBroadcaster {
		var err error
		name, avatar, err = r.displayInfo(c.logicalID())
		if err != nil {
			utils.Logger.Warnf("Failed to resolve display info for %s: %v", c.logicalID(), err)
			name = c.logicalID()
		}
	}

	room := r.getOrCreateRoom(channelName)
	room.join(c, isBroadcaster, name, avatar)
	c.addRoom(room)
}

// LeaveChannel removes a connection from a channel room explicitly.
func (r *Registry) LeaveChannel(c *Client, channelName string) {
	r.mu.RLock()
	room := r.rooms[channelName]
	r.mu.RUnlock()
	if room == nil {
		return
	}
	c.delRoom(channelName)
	r.leaveRoom(c, room)
}

func (r *Registry) leaveRoom(c *Client, room *Room) {
	lostBroadcaster, empty := room.leave(c)
	if lostBroadcaster {
		r.handleBroadcasterLoss(room)
	}
	if empty {
		r.mu.Lock()
		if r.rooms[room.name] == room && room.isEmpty() {
			delete(r.rooms, room.name)
		}
		r.mu.Unlock()
	}
}

// handleBroadcasterLoss ends the session bound to the channel and tells the
// room it is over. The ended event is emitted even when the store lookup or
// the end operation fails, so viewers are never left stranded.
func (r *Registry) handleBroadcasterLoss(room *Room) {
	utils.Logger.Infof("Last broadcaster left channel %s, ending livestream", room.name)

	if err := r.endSession(room.name); err != nil {
		utils.Logger.Warnf("Failed to end livestream on channel %s: %v", room.name, err)
	}

	room.emit(EventLivestreamEnded, map[string]interface{}{
		"channel_name": room.name,
	})
	r.EmitGlobal(EventStatusChanged, map[string]interface{}{
		"channel_name": room.name,
		"status":       "ended",
	})
}

// RelayChat broadcasts a chat message to the sender's room with the sender
// identity re-resolved server-side.
func (r *Registry) RelayChat(c *Client, channelName, content string) {
	r.mu.RLock()
	room := r.rooms[channelName]
	r.mu.RUnlock()
	if room == nil || content == "" {
		return
	}

	name, avatar, err := r.displayInfo(c.logicalID())
	if err != nil {
		utils.Logger.Warnf("Failed to resolve chat sender %s: %v", c.logicalID(), err)
		name = c.logicalID()
	}

	room.emit(EventChatMessage, map[string]interface{}{
		"channel_name":      channelName,
		"account_id":        c.AccountID,
		"entity_account_id": c.EntityAccountID,
		"sender_name":       name,
		"sender_avatar":     avatar,
		"content":           content,
		"timestamp":         time.Now(),
	})
}

// EmitToRoom pushes an event to a channel room or a personal delivery room.
func (r *Registry) EmitToRoom(roomKey, event string, payload interface{}) {
	r.mu.RLock()
	room := r.rooms[roomKey]
	var subs []*Client
	if set, ok := r.subscriptions[roomKey]; ok {
		subs = make([]*Client, 0, len(set))
		for c := range set {
			subs = append(subs, c)
		}
	}
	r.mu.RUnlock()

	if room != nil {
		room.emit(event, payload)
	}
	if len(subs) > 0 {
		data := encodeEvent(event, payload)
		for _, c := range subs {
			c.queueRaw(data)
		}
	}
}

// EmitGlobal pushes an event to every registered connection.
func (r *Registry) EmitGlobal(event string, payload interface{}) {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	data := encodeEvent(event, payload)
	for _, c := range clients {
		c.queueRaw(data)
	}
}

// ViewerCount reports the current viewer count for a channel, zero if the
// room does not exist.
func (r *Registry) ViewerCount(channelName string) int {
	r.mu.RLock()
	room := r.rooms[channelName]
	r.mu.RUnlock()
	if room == nil {
		return 0
	}
	return room.viewerCount()
}

func (r *Registry) getOrCreateRoom(channelName string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[channelName]
	if !ok {
		room = newRoom(channelName, r.batchSize, r.batchDebounce)
		r.rooms[channelName] = room
	}
	return room
}
