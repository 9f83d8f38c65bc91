package livestream

import (
	"time"

	"github.com/google/uuid"
)

// Livestream statuses. A session is created as scheduled or live and only
// ever moves forward; nothing leaves ended.
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusEnded     = "ended"
)

// NotificationTypeLivestream is the type stamped on fan-out notifications.
const NotificationTypeLivestream = "Livestream"

type Livestream struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	HostAccountID       string     `json:"host_account_id" db:"host_account_id"`
	HostEntityAccountID string     `json:"host_entity_account_id" db:"host_entity_account_id"`
	HostEntityID        *string    `json:"host_entity_id" db:"host_entity_id"`
	HostEntityType      *string    `json:"host_entity_type" db:"host_entity_type"`
	Title               string     `json:"title" db:"title"`
	Description         *string    `json:"description" db:"description"`
	PinnedComment       *string    `json:"pinned_comment" db:"pinned_comment"`
	Status              string     `json:"status" db:"status"`
	AgoraChannelName    string     `json:"agora_channel_name" db:"agora_channel_name"`
	AgoraUID            int64      `json:"agora_uid" db:"agora_uid"`
	ViewCount           int        `json:"view_count" db:"view_count"`
	RecordingURL        *string    `json:"recording_url" db:"recording_url"`
	ScheduledStartTime  *time.Time `json:"scheduled_start_time" db:"scheduled_start_time"`
	ScheduledSettings   *string    `json:"scheduled_settings" db:"scheduled_settings"`
	StartTime           *time.Time `json:"start_time" db:"start_time"`
	EndTime             *time.Time `json:"end_time" db:"end_time"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// IsOwnedBy reports whether the given caller account owns this session,
// either as the raw account or as the broadcaster entity account.
func (l *Livestream) IsOwnedBy(accountID string) bool {
	return l.HostAccountID == accountID || l.HostEntityAccountID == accountID
}

// ChannelCredential is a time-boxed realtime-media credential for one
// channel, issued for either the publisher or a subscriber role.
type ChannelCredential struct {
	ChannelName string `json:"channel_name"`
	UID         int64  `json:"uid"`
	Token       string `json:"token"`
}

// Follower is the read-only projection used at fan-out time.
type Follower struct {
	EntityAccountID string `json:"entity_account_id" db:"follower_entity_account_id"`
	AccountID       string `json:"account_id" db:"follower_account_id"`
	EntityType      string `json:"entity_type" db:"follower_entity_type"`
}

type Notification struct {
	ID                      uuid.UUID `json:"id" db:"id"`
	Type                    string    `json:"type" db:"type"`
	SenderEntityAccountID   string    `json:"sender_entity_account_id" db:"sender_entity_account_id"`
	ReceiverEntityAccountID string    `json:"receiver_entity_account_id" db:"receiver_entity_account_id"`
	Content                 string    `json:"content" db:"content"`
	Link                    string    `json:"link" db:"link"`
	Status                  string    `json:"status" db:"status"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
}
