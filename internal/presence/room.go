package presence

import (
	"sync"
	"time"
)

type member struct {
	logicalID     string
	isBroadcaster bool
}

// Room tracks the connections of one channel. All membership mutations for a
// channel are serialized behind the room mutex so the dedup set and the join
// batch stay consistent under concurrent connection callbacks.
type Room struct {
	name          string
	batchSize     int
	batchDebounce time.Duration

	mu           sync.Mutex
	members      map[*Client]*member
	joined       map[string]int // logical user -> live connection count
	broadcasters map[*Client]struct{}

	// Pending join announcement batch: at most one flush timer in flight.
	pendingJoins int
	batchTimer   *time.Timer
}

func newRoom(name string, batchSize int, batchDebounce time.Duration) *Room {
	return &Room{
		name:          name,
		batchSize:     batchSize,
		batchDebounce: batchDebounce,
		members:       make(map[*Client]*member),
		joined:        make(map[string]int),
		broadcasters:  make(map[*Client]struct{}),
	}
}

// join records a connection. The first connection of a logical user announces
// the join and feeds the batch counter; further connections of the same user
// only update membership and the viewer count.
func (r *Room) join(c *Client, isBroadcaster bool, displayName, avatar string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[c]; ok {
		return
	}

	logical := c.logicalID()
	firstConnection := r.joined[logical] == 0
	r.members[c] = &member{logicalID: logical, isBroadcaster: isBroadcaster}
	r.joined[logical]++

	if isBroadcaster {
		r.broadcasters[c] = struct{}{}
	} else if firstConnection {
		r.emitLocked(EventUserJoined, map[string]interface{}{
			"channel_name":      r.name,
			"account_id":        c.AccountID,
			"entity_account_id": c.EntityAccountID,
			"name":              displayName,
			"avatar":            avatar,
		})
		r.pendingJoins++
		if r.pendingJoins >= r.batchSize {
			r.flushJoinBatchLocked()
		} else {
			r.scheduleFlushLocked()
		}
	}

	r.emitViewerCountLocked()
}

// leave removes a connection. It reports whether the room just lost its last
// broadcaster connection and whether the room is now empty.
func (r *Room) leave(c *Client) (lostBroadcaster, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[c]
	if !ok {
		return false, false
	}
	delete(r.members, c)

	r.joined[m.logicalID]--
	lastConnection := r.joined[m.logicalID] <= 0
	if lastConnection {
		delete(r.joined, m.logicalID)
	}

	if m.isBroadcaster {
		delete(r.broadcasters, c)
		lostBroadcaster = len(r.broadcasters) == 0
	} else if lastConnection {
		r.emitLocked(EventUserLeft, map[string]interface{}{
			"channel_name":      r.name,
			"account_id":        c.AccountID,
			"entity_account_id": c.EntityAccountID,
		})
	}

	r.emitViewerCountLocked()

	if len(r.members) == 0 {
		if r.batchTimer != nil {
			r.batchTimer.Stop()
			r.batchTimer = nil
		}
		r.pendingJoins = 0
		empty = true
	}
	return lostBroadcaster, empty
}

// viewerCount counts distinct logical users with at least one connection,
// excluding anyone holding a broadcaster connection.
func (r *Room) viewerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewerCountLocked()
}

func (r *Room) viewerCountLocked() int {
	broadcasterIDs := make(map[string]struct{}, len(r.broadcasters))
	for c := range r.broadcasters {
		broadcasterIDs[c.logicalID()] = struct{}{}
	}

	count := 0
	for logical := range r.joined {
		if _, ok := broadcasterIDs[logical]; ok {
			continue
		}
		count++
	}
	return count
}

func (r *Room) isEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

// scheduleFlushLocked arms the debounce timer, replacing any previous
// deadline so at most one delayed flush is in flight per room.
func (r *Room) scheduleFlushLocked() {
	if r.batchTimer != nil {
		r.batchTimer.Stop()
	}
	r.batchTimer = time.AfterFunc(r.batchDebounce, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.flushJoinBatchLocked()
	})
}

func (r *Room) flushJoinBatchLocked() {
	if r.batchTimer != nil {
		r.batchTimer.Stop()
		r.batchTimer = nil
	}
	if r.pendingJoins == 0 {
		return
	}
	r.emitLocked(EventUsersJoined, map[string]interface{}{
		"channel_name": r.name,
		"count":        r.pendingJoins,
	})
	r.pendingJoins = 0
}

func (r *Room) emitViewerCountLocked() {
	r.emitLocked(EventViewerCount, map[string]interface{}{
		"channel_name": r.name,
		"count":        r.viewerCountLocked(),
	})
}

// emit pushes an event to every connection in the room.
func (r *Room) emit(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitLocked(event, payload)
}

func (r *Room) emitLocked(event string, payload interface{}) {
	data := encodeEvent(event, payload)
	for c := range r.members {
		c.queueRaw(data)
	}
}
