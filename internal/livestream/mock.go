package livestream

import (
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockLivestreamStore struct {
	mock.Mock
}

func (m *MockLivestreamStore) Create(ls *Livestream) error {
	args := m.Called(ls)
	return args.Error(0)
}

func (m *MockLivestreamStore) GetByID(id uuid.UUID) (*Livestream, error) {
	args := m.Called(id)
	if ls, ok := args.Get(0).(*Livestream); ok {
		return ls, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) GetByChannel(channelName string) (*Livestream, error) {
	args := m.Called(channelName)
	if ls, ok := args.Get(0).(*Livestream); ok {
		return ls, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) GetActive(limit int) ([]*Livestream, error) {
	args := m.Called(limit)
	if livestreams, ok := args.Get(0).([]*Livestream); ok {
		return livestreams, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) GetActiveByHost(entityAccountID, accountID string) ([]*Livestream, error) {
	args := m.Called(entityAccountID, accountID)
	if livestreams, ok := args.Get(0).([]*Livestream); ok {
		return livestreams, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) GetByHost(hostID string, limit int) ([]*Livestream, error) {
	args := m.Called(hostID, limit)
	if livestreams, ok := args.Get(0).([]*Livestream); ok {
		return livestreams, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) GetScheduled() ([]*Livestream, error) {
	args := m.Called()
	if livestreams, ok := args.Get(0).([]*Livestream); ok {
		return livestreams, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) GetScheduledByHost(hostID string) ([]*Livestream, error) {
	args := m.Called(hostID)
	if livestreams, ok := args.Get(0).([]*Livestream); ok {
		return livestreams, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) GetScheduledReadyToActivate(now time.Time) ([]*Livestream, error) {
	args := m.Called(now)
	if livestreams, ok := args.Get(0).([]*Livestream); ok {
		return livestreams, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) UpdateStatus(id uuid.UUID, status string, endTime *time.Time, recordingURL *string) (*Livestream, error) {
	args := m.Called(id, status, endTime, recordingURL)
	if ls, ok := args.Get(0).(*Livestream); ok {
		return ls, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) ActivateScheduled(id uuid.UUID, channelName string, uid int64, startTime time.Time) (*Livestream, error) {
	args := m.Called(id, channelName, uid, startTime)
	if ls, ok := args.Get(0).(*Livestream); ok {
		return ls, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLivestreamStore) IncrementView(id uuid.UUID) (*Livestream, error) {
	args := m.Called(id)
	if ls, ok := args.Get(0).(*Livestream); ok {
		return ls, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCredentialIssuer struct {
	mock.Mock
}

func (m *MockCredentialIssuer) IssuePublisherCredential(accountID string) (*ChannelCredential, error) {
	args := m.Called(accountID)
	if cred, ok := args.Get(0).(*ChannelCredential); ok {
		return cred, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCredentialIssuer) IssueSubscriberCredential(channelName string) (*ChannelCredential, error) {
	args := m.Called(channelName)
	if cred, ok := args.Get(0).(*ChannelCredential); ok {
		return cred, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEntityResolver struct {
	mock.Mock
}

func (m *MockEntityResolver) ResolveEntityAccountID(accountID string) (string, error) {
	args := m.Called(accountID)
	return args.String(0), args.Error(1)
}

func (m *MockEntityResolver) ResolveEntityType(entityAccountID string) (string, string, error) {
	args := m.Called(entityAccountID)
	return args.String(0), args.String(1), args.Error(2)
}

type MockFollowerSource struct {
	mock.Mock
}

func (m *MockFollowerSource) GetFollowers(entityAccountID string) ([]*Follower, error) {
	args := m.Called(entityAccountID)
	if followers, ok := args.Get(0).([]*Follower); ok {
		return followers, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEntityInfoLookup struct {
	mock.Mock
}

func (m *MockEntityInfoLookup) GetDisplayInfo(entityAccountID string) (string, string, error) {
	args := m.Called(entityAccountID)
	return args.String(0), args.String(1), args.Error(2)
}

type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) CreateNotification(n *Notification) error {
	args := m.Called(n)
	return args.Error(0)
}

type MockRoomEmitter struct {
	mock.Mock
}

func (m *MockRoomEmitter) EmitToRoom(roomKey, event string, payload interface{}) {
	m.Called(roomKey, event, payload)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyFollowers(ls *Livestream) {
	m.Called(ls)
}
