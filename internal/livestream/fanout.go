package livestream

import (
	"fmt"
	"sync/atomic"
	"time"

	"barlive/internal/presence"
	utils "barlive/pkg/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// EventLivestreamStarted is pushed to each follower's rooms when a session
// goes live.
const EventLivestreamStarted = "livestream-started"

// fanoutConcurrency bounds the number of followers processed at once.
const fanoutConcurrency = 8

// FollowerFanout delivers one notification per follower when a session goes
// live: a persisted row plus a realtime push to the follower's entity-account
// room and raw account room. Per-follower failures are logged and counted but
// never propagate to the lifecycle operation that triggered the fan-out.
type FollowerFanout struct {
	followers     FollowerSource
	info          EntityInfoLookup
	notifications NotificationStore
	emitter       RoomEmitter
}

func NewFollowerFanout(followers FollowerSource, info EntityInfoLookup, notifications NotificationStore, emitter RoomEmitter) *FollowerFanout {
	return &FollowerFanout{
		followers:     followers,
		info:          info,
		notifications: notifications,
		emitter:       emitter,
	}
}

func (f *FollowerFanout) NotifyFollowers(ls *Livestream) {
	followers, err := f.followers.GetFollowers(ls.HostEntityAccountID)
	if err != nil {
		utils.Logger.Errorf("Fan-out aborted, failed to get followers of %s: %v", ls.HostEntityAccountID, err)
		return
	}
	if len(followers) == 0 {
		return
	}

	hostName, _, err := f.info.GetDisplayInfo(ls.HostEntityAccountID)
	if err != nil || hostName == "" {
		utils.Logger.Warnf("Failed to resolve display info for %s: %v", ls.HostEntityAccountID, err)
		hostName = "Someone you follow"
	}

	content := fmt.Sprintf("%s is live now: %s", hostName, ls.Title)
	link := "/livestream/" + ls.ID.String()

	var failed int64
	g := errgroup.Group{}
	g.SetLimit(fanoutConcurrency)

	for _, follower := range followers {
		follower := follower
		g.Go(func() error {
			if follower.EntityAccountID == "" {
				atomic.AddInt64(&failed, 1)
				utils.Logger.Warnf("Skipping follower of %s with empty entity account id", ls.HostEntityAccountID)
				return nil
			}

			notification := &Notification{
				ID:                      uuid.New(),
				Type:                    NotificationTypeLivestream,
				SenderEntityAccountID:   ls.HostEntityAccountID,
				ReceiverEntityAccountID: follower.EntityAccountID,
				Content:                 content,
				Link:                    link,
				Status:                  "Unread",
				CreatedAt:               time.Now(),
			}

			if err := f.notifications.CreateNotification(notification); err != nil {
				atomic.AddInt64(&failed, 1)
				utils.Logger.Errorf("Failed to persist livestream notification for %s: %v", follower.EntityAccountID, err)
				return nil
			}

			payload := map[string]interface{}{
				"livestream_id": ls.ID,
				"channel_name":  ls.AgoraChannelName,
				"title":         ls.Title,
				"host_name":     hostName,
				"content":       content,
				"link":          link,
			}
			f.emitter.EmitToRoom(presence.EntityRoomKey(follower.EntityAccountID), EventLivestreamStarted, payload)
			if follower.AccountID != "" {
				f.emitter.EmitToRoom(presence.AccountRoomKey(follower.AccountID), EventLivestreamStarted, payload)
			}
			return nil
		})
	}
	g.Wait()

	utils.WithFields(map[string]interface{}{
		"livestream_id": ls.ID,
		"followers":     len(followers),
		"failed":        atomic.LoadInt64(&failed),
	}).Info("Livestream follower fan-out complete")
}
