package presence

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodedEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// drainEvents empties a client's send buffer into decoded events.
func drainEvents(t *testing.T, c *Client) []decodedEvent {
	t.Helper()
	var events []decodedEvent
	for {
		select {
		case raw := <-c.send:
			var ev decodedEvent
			require.NoError(t, json.Unmarshal(raw, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func countEvents(events []decodedEvent, name string) int {
	count := 0
	for _, ev := range events {
		if ev.Event == name {
			count++
		}
	}
	return count
}

func lastEvent(events []decodedEvent, name string) (decodedEvent, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Event == name {
			return events[i], true
		}
	}
	return decodedEvent{}, false
}

type endRecorder struct {
	mu       sync.Mutex
	channels []string
	err      error
}

func (e *endRecorder) end(channelName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels = append(e.channels, channelName)
	return e.err
}

func (e *endRecorder) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.channels...)
}

func newTestRegistry(t *testing.T, batchSize int, debounce time.Duration, ender *endRecorder) *Registry {
	t.Helper()
	if ender == nil {
		ender = &endRecorder{}
	}
	registry, err := NewRegistry(batchSize, debounce, ender.end, func(entityAccountID string) (string, string, error) {
		return "Resolved " + entityAccountID, "avatar.png", nil
	})
	require.NoError(t, err)
	return registry
}

func newTestClient(registry *Registry, accountID, entityAccountID string) *Client {
	c := NewClient(registry, nil, accountID, entityAccountID)
	registry.Register(c)
	return c
}

func TestNewRegistry_RequiresCallbacks(t *testing.T) {
	_, err := NewRegistry(10, time.Second, nil, func(string) (string, string, error) { return "", "", nil })
	assert.Error(t, err)

	_, err = NewRegistry(10, time.Second, func(string) error { return nil }, nil)
	assert.Error(t, err)
}

func TestJoin_DedupAcrossConnections(t *testing.T) {
	registry := newTestRegistry(t, 10, time.Minute, nil)

	connA := newTestClient(registry, "acct-u", "ent-u")
	connB := newTestClient(registry, "acct-u", "ent-u")

	registry.JoinChannel(connA, "chan-1", false)
	registry.JoinChannel(connB, "chan-1", false)

	events := drainEvents(t, connA)
	assert.Equal(t, 1, countEvents(events, EventUserJoined), "second tab of the same user must not re-announce")

	viewerCount, ok := lastEvent(events, EventViewerCount)
	require.True(t, ok)
	assert.Equal(t, float64(1), viewerCount.Data["count"])
	assert.Equal(t, 1, registry.ViewerCount("chan-1"))
}

func TestJoin_ViewerCountExcludesBroadcaster(t *testing.T) {
	registry := newTestRegistry(t, 10, time.Minute, nil)

	broadcaster := newTestClient(registry, "acct-host", "ent-host")
	registry.JoinChannel(broadcaster, "chan-1", true)
	assert.Equal(t, 0, registry.ViewerCount("chan-1"))

	viewer := newTestClient(registry, "acct-v", "ent-v")
	registry.JoinChannel(viewer, "chan-1", false)
	assert.Equal(t, 1, registry.ViewerCount("chan-1"))

	// The broadcaster join produced no announcement of its own.
	events := drainEvents(t, broadcaster)
	assert.Equal(t, 1, countEvents(events, EventUserJoined), "only the viewer join is announced")
}

func TestJoin_BatchFlushesAtThreshold(t *testing.T) {
	registry := newTestRegistry(t, 10, time.Minute, nil)

	watcher := newTestClient(registry, "acct-0", "ent-0")
	registry.JoinChannel(watcher, "chan-1", false)

	for i := 1; i < 10; i++ {
		c := newTestClient(registry, fmt.Sprintf("acct-%d", i), fmt.Sprintf("ent-%d", i))
		registry.JoinChannel(c, "chan-1", false)
	}

	events := drainEvents(t, watcher)
	require.Equal(t, 1, countEvents(events, EventUsersJoined))
	batch, _ := lastEvent(events, EventUsersJoined)
	assert.Equal(t, float64(10), batch.Data["count"])

	// The counter reset with the flush; one more join does not re-emit.
	extra := newTestClient(registry, "acct-extra", "ent-extra")
	registry.JoinChannel(extra, "chan-1", false)
	events = drainEvents(t, watcher)
	assert.Zero(t, countEvents(events, EventUsersJoined))
}

func TestJoin_BatchFlushesOnDebounce(t *testing.T) {
	registry := newTestRegistry(t, 100, 30*time.Millisecond, nil)

	watcher := newTestClient(registry, "acct-0", "ent-0")
	registry.JoinChannel(watcher, "chan-1", false)
	for i := 1; i < 3; i++ {
		c := newTestClient(registry, fmt.Sprintf("acct-%d", i), fmt.Sprintf("ent-%d", i))
		registry.JoinChannel(c, "chan-1", false)
	}

	require.Eventually(t, func() bool {
		events := drainEvents(t, watcher)
		batch, ok := lastEvent(events, EventUsersJoined)
		return ok && batch.Data["count"] == float64(3)
	}, time.Second, 10*time.Millisecond)
}

func TestLeave_LastConnectionAnnounces(t *testing.T) {
	registry := newTestRegistry(t, 10, time.Minute, nil)

	watcher := newTestClient(registry, "acct-w", "ent-w")
	registry.JoinChannel(watcher, "chan-1", false)

	connA := newTestClient(registry, "acct-u", "ent-u")
	connB := newTestClient(registry, "acct-u", "ent-u")
	registry.JoinChannel(connA, "chan-1", false)
	registry.JoinChannel(connB, "chan-1", false)
	drainEvents(t, watcher)

	// First connection down: the user is still present through the second.
	registry.LeaveChannel(connA, "chan-1")
	events := drainEvents(t, watcher)
	assert.Zero(t, countEvents(events, EventUserLeft))
	assert.Equal(t, 2, registry.ViewerCount("chan-1"))

	registry.LeaveChannel(connB, "chan-1")
	events = drainEvents(t, watcher)
	assert.Equal(t, 1, countEvents(events, EventUserLeft))
	assert.Equal(t, 1, registry.ViewerCount("chan-1"))
}

func TestBroadcasterLoss_EndsSession(t *testing.T) {
	ender := &endRecorder{}
	registry := newTestRegistry(t, 10, time.Minute, ender)

	broadcaster := newTestClient(registry, "acct-host", "ent-host")
	viewer := newTestClient(registry, "acct-v", "ent-v")
	registry.JoinChannel(broadcaster, "chan-1", true)
	registry.JoinChannel(viewer, "chan-1", false)
	drainEvents(t, viewer)

	registry.Unregister(broadcaster)

	assert.Equal(t, []string{"chan-1"}, ender.calls())

	events := drainEvents(t, viewer)
	assert.Equal(t, 1, countEvents(events, EventLivestreamEnded))
	assert.Equal(t, 1, countEvents(events, EventStatusChanged))
}

func TestBroadcasterLoss_EndFailureStillNotifiesRoom(t *testing.T) {
	ender := &endRecorder{err: fmt.Errorf("already ended")}
	registry := newTestRegistry(t, 10, time.Minute, ender)

	broadcaster := newTestClient(registry, "acct-host", "ent-host")
	viewer := newTestClient(registry, "acct-v", "ent-v")
	registry.JoinChannel(broadcaster, "chan-1", true)
	registry.JoinChannel(viewer, "chan-1", false)
	drainEvents(t, viewer)

	registry.Unregister(broadcaster)

	// Viewers are never left stranded, store consistency or not.
	events := drainEvents(t, viewer)
	assert.Equal(t, 1, countEvents(events, EventLivestreamEnded))
	assert.Equal(t, 1, countEvents(events, EventStatusChanged))
}

func TestBroadcasterLoss_WaitsForLastBroadcasterConnection(t *testing.T) {
	ender := &endRecorder{}
	registry := newTestRegistry(t, 10, time.Minute, ender)

	connA := newTestClient(registry, "acct-host", "ent-host")
	connB := newTestClient(registry, "acct-host", "ent-host")
	registry.JoinChannel(connA, "chan-1", true)
	registry.JoinChannel(connB, "chan-1", true)

	registry.Unregister(connA)
	assert.Empty(t, ender.calls(), "a broadcaster connection remains")

	registry.Unregister(connB)
	assert.Equal(t, []string{"chan-1"}, ender.calls())
}

func TestChatRelay_SenderResolvedServerSide(t *testing.T) {
	registry := newTestRegistry(t, 10, time.Minute, nil)

	sender := newTestClient(registry, "acct-s", "ent-s")
	receiver := newTestClient(registry, "acct-r", "ent-r")
	registry.JoinChannel(sender, "chan-1", false)
	registry.JoinChannel(receiver, "chan-1", false)
	drainEvents(t, receiver)

	registry.RelayChat(sender, "chan-1", "first round is on me")

	events := drainEvents(t, receiver)
	msg, ok := lastEvent(events, EventChatMessage)
	require.True(t, ok)
	assert.Equal(t, "Resolved ent-s", msg.Data["sender_name"])
	assert.Equal(t, "first round is on me", msg.Data["content"])
	assert.Equal(t, "ent-s", msg.Data["entity_account_id"])
}

func TestEmitToRoom_PersonalDeliveryRooms(t *testing.T) {
	registry := newTestRegistry(t, 10, time.Minute, nil)

	c := newTestClient(registry, "acct-u", "ent-u")

	registry.EmitToRoom(EntityRoomKey("ent-u"), "livestream-started", map[string]interface{}{"title": "DJ Night"})
	registry.EmitToRoom(AccountRoomKey("acct-u"), "livestream-started", map[string]interface{}{"title": "DJ Night"})
	registry.EmitToRoom(EntityRoomKey("ent-other"), "livestream-started", nil)

	events := drainEvents(t, c)
	assert.Equal(t, 2, countEvents(events, "livestream-started"))
}

func TestUnregister_CleansUpEverything(t *testing.T) {
	registry := newTestRegistry(t, 10, time.Minute, nil)

	c := newTestClient(registry, "acct-u", "ent-u")
	registry.JoinChannel(c, "chan-1", false)
	registry.Unregister(c)

	assert.Equal(t, 0, registry.ViewerCount("chan-1"))
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	assert.Empty(t, registry.rooms, "empty room is discarded")
	assert.Empty(t, registry.clients)
	assert.Empty(t, registry.subscriptions)
}
