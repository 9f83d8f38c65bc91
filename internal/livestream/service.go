package livestream

import (
	"strings"
	"time"

	utils "barlive/pkg/utils"

	"github.com/google/uuid"
)

type LivestreamService struct {
	store    LivestreamStore
	creds    CredentialIssuer
	entities EntityResolver
	notifier Notifier
}

func NewLivestreamService(store LivestreamStore, creds CredentialIssuer, entities EntityResolver, notifier Notifier) *LivestreamService {
	return &LivestreamService{
		store:    store,
		creds:    creds,
		entities: entities,
		notifier: notifier,
	}
}

// StartParams carries the caller input for StartLivestream.
type StartParams struct {
	Title           string
	Description     *string
	PinnedComment   *string
	HostAccountID   string
	EntityAccountID string
	EntityID        string
	EntityType      string
}

// ScheduleParams carries the caller input for CreateScheduledLivestream.
type ScheduleParams struct {
	Title              string
	Description        *string
	ScheduledStartTime time.Time
	Settings           *string
	HostAccountID      string
	EntityAccountID    string
	EntityID           string
	EntityType         string
}

type resolvedEntity struct {
	entityAccountID string
	entityID        *string
	entityType      *string
}

// resolveBroadcaster determines the business entity a caller broadcasts as.
// The entity account is mandatory; a failed type lookup is tolerated since the
// type only decorates the record.
func (s *LivestreamService) resolveBroadcaster(hostAccountID, entityAccountID, entityID, entityType string) (*resolvedEntity, error) {
	if entityAccountID == "" {
		resolved, err := s.entities.ResolveEntityAccountID(hostAccountID)
		if err != nil || resolved == "" {
			utils.Logger.Errorf("Failed to resolve entity account for %s: %v", hostAccountID, err)
			return nil, utils.ErrEntityResolutionFailed
		}
		entityAccountID = resolved
	}

	if entityType == "" {
		resolvedType, resolvedID, err := s.entities.ResolveEntityType(entityAccountID)
		if err != nil {
			utils.Logger.Warnf("Failed to resolve entity type for %s: %v", entityAccountID, err)
		} else {
			entityType = resolvedType
			if entityID == "" {
				entityID = resolvedID
			}
		}
	}

	re := &resolvedEntity{entityAccountID: entityAccountID}
	if entityID != "" {
		re.entityID = &entityID
	}
	if entityType != "" {
		re.entityType = &entityType
	}
	return re, nil
}

// endDanglingLive force-ends any live session attributed to this host. Starting
// a new stream always takes over a stale live row left by a prior crash.
func (s *LivestreamService) endDanglingLive(entityAccountID, hostAccountID string) {
	active, err := s.store.GetActiveByHost(entityAccountID, hostAccountID)
	if err != nil {
		utils.Logger.Errorf("Failed to list active livestreams for take-over: %v", err)
		return
	}

	now := time.Now()
	for _, ls := range active {
		if _, err := s.store.UpdateStatus(ls.ID, StatusEnded, &now, nil); err != nil {
			utils.Logger.Errorf("Failed to force-end dangling livestream %s: %v", ls.ID, err)
			continue
		}
		utils.Logger.Infof("Force-ended dangling livestream %s for host %s", ls.ID, entityAccountID)
	}
}

// StartLivestream creates a live session, taking over any stale live session
// for the same host. Follower notification runs in the background; the session
// is started as soon as it is persisted, whatever the fan-out outcome.
func (s *LivestreamService) StartLivestream(params StartParams) (*Livestream, *ChannelCredential, error) {
	if params.HostAccountID == "" {
		return nil, nil, utils.ErrUnauthenticated
	}

	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return nil, nil, utils.NewValidationError("livestream title is required")
	}
	if len(params.Title) > 200 {
		return nil, nil, utils.NewValidationError("livestream title too long")
	}

	entity, err := s.resolveBroadcaster(params.HostAccountID, params.EntityAccountID, params.EntityID, params.EntityType)
	if err != nil {
		return nil, nil, err
	}

	s.endDanglingLive(entity.entityAccountID, params.HostAccountID)

	cred, err := s.creds.IssuePublisherCredential(params.HostAccountID)
	if err != nil {
		utils.Logger.Errorf("Failed to issue publisher credential: %v", err)
		return nil, nil, utils.NewDependencyError("failed to issue channel credential")
	}

	now := time.Now()
	ls := &Livestream{
		ID:                  uuid.New(),
		HostAccountID:       params.HostAccountID,
		HostEntityAccountID: entity.entityAccountID,
		HostEntityID:        entity.entityID,
		HostEntityType:      entity.entityType,
		Title:               params.Title,
		Description:         params.Description,
		PinnedComment:       params.PinnedComment,
		Status:              StatusLive,
		AgoraChannelName:    cred.ChannelName,
		AgoraUID:            cred.UID,
		StartTime:           &now,
	}

	if err := s.store.Create(ls); err != nil {
		utils.Logger.Errorf("Failed to create livestream: %v", err)
		return nil, nil, utils.NewDependencyError("failed to create livestream")
	}

	utils.Logger.Infof("Started livestream %s on channel %s for host %s", ls.ID, ls.AgoraChannelName, entity.entityAccountID)
	go s.notifier.NotifyFollowers(ls)

	return ls, cred, nil
}

// EndLivestream ends a live or scheduled session owned by the caller.
func (s *LivestreamService) EndLivestream(id uuid.UUID, hostAccountID string, recordingURL *string) (*Livestream, error) {
	if hostAccountID == "" {
		return nil, utils.ErrUnauthenticated
	}

	ls, err := s.store.GetByID(id)
	if err != nil {
		return nil, utils.NewDependencyError("failed to get livestream")
	}
	if ls == nil {
		return nil, utils.ErrLivestreamNotFound
	}
	if !ls.IsOwnedBy(hostAccountID) {
		return nil, utils.ErrForbidden
	}
	if ls.Status == StatusEnded {
		return nil, utils.ErrAlreadyEnded
	}

	now := time.Now()
	updated, err := s.store.UpdateStatus(id, StatusEnded, &now, recordingURL)
	if err != nil {
		utils.Logger.Errorf("Failed to end livestream %s: %v", id, err)
		return nil, utils.NewDependencyError("failed to end livestream")
	}
	if updated == nil {
		// Store did not echo the update back; hand the caller the pre-update
		// record with the transition applied so it always has a usable result.
		ls.Status = StatusEnded
		ls.EndTime = &now
		if recordingURL != nil {
			ls.RecordingURL = recordingURL
		}
		updated = ls
	}

	utils.Logger.Infof("Ended livestream %s for host %s", id, hostAccountID)
	return updated, nil
}

// EndLivestreamByChannel ends the session bound to a channel. Used by the
// presence layer when the last broadcaster connection drops, so there is no
// ownership check.
func (s *LivestreamService) EndLivestreamByChannel(channelName string) (*Livestream, error) {
	ls, err := s.store.GetByChannel(channelName)
	if err != nil {
		return nil, utils.NewDependencyError("failed to get livestream")
	}
	if ls == nil {
		return nil, utils.ErrLivestreamNotFound
	}
	if ls.Status == StatusEnded {
		return nil, utils.ErrAlreadyEnded
	}

	now := time.Now()
	updated, err := s.store.UpdateStatus(ls.ID, StatusEnded, &now, nil)
	if err != nil {
		utils.Logger.Errorf("Failed to end livestream on channel %s: %v", channelName, err)
		return nil, utils.NewDependencyError("failed to end livestream")
	}
	if updated == nil {
		ls.Status = StatusEnded
		ls.EndTime = &now
		updated = ls
	}

	utils.Logger.Infof("Ended livestream %s after broadcaster loss on channel %s", ls.ID, channelName)
	return updated, nil
}

// CreateScheduledLivestream persists a future session. Credentials are issued
// now as a reservation; activation later replaces them with a fresh set.
func (s *LivestreamService) CreateScheduledLivestream(params ScheduleParams) (*Livestream, error) {
	if params.HostAccountID == "" {
		return nil, utils.ErrUnauthenticated
	}

	params.Title = strings.TrimSpace(params.Title)
	if params.Title == "" {
		return nil, utils.NewValidationError("livestream title is required")
	}
	if params.ScheduledStartTime.IsZero() || !params.ScheduledStartTime.After(time.Now()) {
		return nil, utils.ErrInvalidSchedule
	}

	entity, err := s.resolveBroadcaster(params.HostAccountID, params.EntityAccountID, params.EntityID, params.EntityType)
	if err != nil {
		return nil, err
	}

	cred, err := s.creds.IssuePublisherCredential(params.HostAccountID)
	if err != nil {
		utils.Logger.Errorf("Failed to issue publisher credential: %v", err)
		return nil, utils.NewDependencyError("failed to issue channel credential")
	}

	ls := &Livestream{
		ID:                  uuid.New(),
		HostAccountID:       params.HostAccountID,
		HostEntityAccountID: entity.entityAccountID,
		HostEntityID:        entity.entityID,
		HostEntityType:      entity.entityType,
		Title:               params.Title,
		Description:         params.Description,
		Status:              StatusScheduled,
		AgoraChannelName:    cred.ChannelName,
		AgoraUID:            cred.UID,
		ScheduledStartTime:  &params.ScheduledStartTime,
		ScheduledSettings:   params.Settings,
	}

	if err := s.store.Create(ls); err != nil {
		utils.Logger.Errorf("Failed to create scheduled livestream: %v", err)
		return nil, utils.NewDependencyError("failed to create scheduled livestream")
	}

	utils.Logger.Infof("Scheduled livestream %s for %s by host %s", ls.ID, params.ScheduledStartTime, entity.entityAccountID)
	return ls, nil
}

// ActivateScheduledLivestream transitions a scheduled session to live with a
// fresh credential set. Activating anything but a scheduled session fails with
// NotScheduled, which keeps a double activation from silently reapplying.
func (s *LivestreamService) ActivateScheduledLivestream(id uuid.UUID) (*Livestream, *ChannelCredential, error) {
	ls, err := s.store.GetByID(id)
	if err != nil {
		return nil, nil, utils.NewDependencyError("failed to get livestream")
	}
	if ls == nil {
		return nil, nil, utils.ErrLivestreamNotFound
	}
	if ls.Status != StatusScheduled {
		return nil, nil, utils.ErrNotScheduled
	}

	s.endDanglingLive(ls.HostEntityAccountID, ls.HostAccountID)

	cred, err := s.creds.IssuePublisherCredential(ls.HostAccountID)
	if err != nil {
		utils.Logger.Errorf("Failed to issue publisher credential for activation: %v", err)
		return nil, nil, utils.NewDependencyError("failed to issue channel credential")
	}

	activated, err := s.store.ActivateScheduled(id, cred.ChannelName, cred.UID, time.Now())
	if err != nil {
		utils.Logger.Errorf("Failed to activate scheduled livestream %s: %v", id, err)
		return nil, nil, utils.NewDependencyError("failed to activate livestream")
	}
	if activated == nil {
		// Lost a race with another activation or an end.
		return nil, nil, utils.ErrNotScheduled
	}

	utils.Logger.Infof("Activated scheduled livestream %s on channel %s", id, activated.AgoraChannelName)
	go s.notifier.NotifyFollowers(activated)

	return activated, cred, nil
}

// CancelScheduledLivestream ends a scheduled session before it activates.
func (s *LivestreamService) CancelScheduledLivestream(id uuid.UUID, hostAccountID string) (*Livestream, error) {
	if hostAccountID == "" {
		return nil, utils.ErrUnauthenticated
	}

	ls, err := s.store.GetByID(id)
	if err != nil {
		return nil, utils.NewDependencyError("failed to get livestream")
	}
	if ls == nil {
		return nil, utils.ErrLivestreamNotFound
	}
	if !ls.IsOwnedBy(hostAccountID) {
		return nil, utils.ErrForbidden
	}
	if ls.Status == StatusEnded {
		return nil, utils.ErrAlreadyEnded
	}
	if ls.Status != StatusScheduled {
		return nil, utils.ErrNotScheduled
	}

	now := time.Now()
	updated, err := s.store.UpdateStatus(id, StatusEnded, &now, nil)
	if err != nil {
		utils.Logger.Errorf("Failed to cancel scheduled livestream %s: %v", id, err)
		return nil, utils.NewDependencyError("failed to cancel livestream")
	}
	if updated == nil {
		ls.Status = StatusEnded
		ls.EndTime = &now
		updated = ls
	}

	utils.Logger.Infof("Cancelled scheduled livestream %s for host %s", id, hostAccountID)
	return updated, nil
}

// IssueViewerCredential issues a subscriber token for a live channel.
func (s *LivestreamService) IssueViewerCredential(channelName string) (*ChannelCredential, error) {
	ls, err := s.store.GetByChannel(channelName)
	if err != nil {
		return nil, utils.NewDependencyError("failed to get livestream")
	}
	if ls == nil {
		return nil, utils.ErrLivestreamNotFound
	}
	if ls.Status != StatusLive {
		return nil, utils.ErrNotLive
	}

	cred, err := s.creds.IssueSubscriberCredential(channelName)
	if err != nil {
		utils.Logger.Errorf("Failed to issue subscriber credential: %v", err)
		return nil, utils.NewDependencyError("failed to issue channel credential")
	}
	return cred, nil
}

// Read-side pass-throughs used by the HTTP layer.

func (s *LivestreamService) GetActiveLivestreams(limit int) ([]*Livestream, error) {
	livestreams, err := s.store.GetActive(limit)
	if err != nil {
		return nil, utils.NewDependencyError("failed to get active livestreams")
	}
	return livestreams, nil
}

func (s *LivestreamService) GetLivestreamByChannel(channelName string) (*Livestream, error) {
	ls, err := s.store.GetByChannel(channelName)
	if err != nil {
		return nil, utils.NewDependencyError("failed to get livestream")
	}
	if ls == nil {
		return nil, utils.ErrLivestreamNotFound
	}
	return ls, nil
}

func (s *LivestreamService) GetLivestreamsByHost(hostID string, limit int) ([]*Livestream, error) {
	livestreams, err := s.store.GetByHost(hostID, limit)
	if err != nil {
		return nil, utils.NewDependencyError("failed to get livestreams")
	}
	return livestreams, nil
}

func (s *LivestreamService) GetScheduledLivestreams() ([]*Livestream, error) {
	livestreams, err := s.store.GetScheduled()
	if err != nil {
		return nil, utils.NewDependencyError("failed to get scheduled livestreams")
	}
	return livestreams, nil
}

func (s *LivestreamService) GetScheduledLivestreamsByHost(hostID string) ([]*Livestream, error) {
	livestreams, err := s.store.GetScheduledByHost(hostID)
	if err != nil {
		return nil, utils.NewDependencyError("failed to get scheduled livestreams")
	}
	return livestreams, nil
}

func (s *LivestreamService) IncrementViewCount(id uuid.UUID) (*Livestream, error) {
	ls, err := s.store.IncrementView(id)
	if err != nil {
		return nil, utils.NewDependencyError("failed to increment view count")
	}
	if ls == nil {
		return nil, utils.ErrLivestreamNotFound
	}
	return ls, nil
}
