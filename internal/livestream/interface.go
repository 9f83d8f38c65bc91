package livestream

import (
	"time"

	"github.com/google/uuid"
)

// LivestreamStore defines the persistence operations for livestream sessions
type LivestreamStore interface {
	Create(ls *Livestream) error
	GetByID(id uuid.UUID) (*Livestream, error)
	GetByChannel(channelName string) (*Livestream, error)
	GetActive(limit int) ([]*Livestream, error)
	GetActiveByHost(entityAccountID, accountID string) ([]*Livestream, error)
	GetByHost(hostID string, limit int) ([]*Livestream, error)
	GetScheduled() ([]*Livestream, error)
	GetScheduledByHost(hostID string) ([]*Livestream, error)
	GetScheduledReadyToActivate(now time.Time) ([]*Livestream, error)
	UpdateStatus(id uuid.UUID, status string, endTime *time.Time, recordingURL *string) (*Livestream, error)
	ActivateScheduled(id uuid.UUID, channelName string, uid int64, startTime time.Time) (*Livestream, error)
	IncrementView(id uuid.UUID) (*Livestream, error)
}

// CredentialIssuer produces realtime-media channel credentials.
type CredentialIssuer interface {
	IssuePublisherCredential(accountID string) (*ChannelCredential, error)
	IssueSubscriberCredential(channelName string) (*ChannelCredential, error)
}

// EntityResolver maps a caller account to the business entity it broadcasts as.
type EntityResolver interface {
	ResolveEntityAccountID(accountID string) (string, error)
	ResolveEntityType(entityAccountID string) (entityType string, entityID string, err error)
}

// FollowerSource lists the followers of a broadcaster entity.
type FollowerSource interface {
	GetFollowers(entityAccountID string) ([]*Follower, error)
}

// EntityInfoLookup resolves the public display info of an entity account.
type EntityInfoLookup interface {
	GetDisplayInfo(entityAccountID string) (name string, avatar string, err error)
}

// NotificationStore persists fan-out notifications.
type NotificationStore interface {
	CreateNotification(n *Notification) error
}

// RoomEmitter pushes an event to every realtime connection in a room.
type RoomEmitter interface {
	EmitToRoom(roomKey, event string, payload interface{})
}

// Notifier is the fan-out side effect triggered when a session goes live. The
// lifecycle service dispatches it on its own goroutine; implementations must
// swallow per-follower failures.
type Notifier interface {
	NotifyFollowers(ls *Livestream)
}
