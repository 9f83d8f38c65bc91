package livestream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	utils "barlive/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubActivator struct {
	fn func(id uuid.UUID) error
}

func (a *stubActivator) ActivateScheduledLivestream(id uuid.UUID) (*Livestream, *ChannelCredential, error) {
	if a.fn != nil {
		return nil, nil, a.fn(id)
	}
	return nil, nil, nil
}

func newDueSession(t *testing.T, store *memoryStore, service *LivestreamService) *Livestream {
	t.Helper()
	ls, err := service.CreateScheduledLivestream(ScheduleParams{
		Title:              "Quiz Night",
		HostAccountID:      "acct-1",
		ScheduledStartTime: time.Now().Add(20 * time.Millisecond),
	})
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	return ls
}

func TestScheduler_ActivatesDueSessions(t *testing.T) {
	store := newMemoryStore()
	service := newTestService(store)
	scheduler := NewActivationScheduler(store, service, time.Minute, 0, time.Second)

	ls := newDueSession(t, store, service)

	results, err := scheduler.RunNow()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Activated)
	assert.Equal(t, ls.ID, results[0].LivestreamID)

	activated, err := store.GetByID(ls.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLive, activated.Status)

	// A second cycle finds nothing due and changes nothing.
	results, err = scheduler.RunNow()
	require.NoError(t, err)
	assert.Empty(t, results)

	still, err := store.GetByID(ls.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLive, still.Status)
	assert.Equal(t, 1, liveCountForHost(t, store, "ent-1"))
}

func TestScheduler_SingleFlight(t *testing.T) {
	store := newMemoryStore()
	service := newTestService(store)

	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	activator := &stubActivator{fn: func(id uuid.UUID) error {
		startedOnce.Do(func() { close(started) })
		<-release
		return nil
	}}

	scheduler := NewActivationScheduler(store, activator, time.Minute, 0, time.Second)
	newDueSession(t, store, service)

	done := make(chan []ActivationResult)
	go func() {
		results, err := scheduler.RunNow()
		require.NoError(t, err)
		done <- results
	}()

	<-started
	_, err := scheduler.RunNow()
	assert.Equal(t, utils.ErrSchedulerAlreadyRunning, err)

	close(release)
	results := <-done
	require.Len(t, results, 1)
	assert.True(t, results[0].Activated)

	// The guard is released once the first cycle finishes.
	_, err = scheduler.RunNow()
	assert.NoError(t, err)
}

func TestScheduler_FailureDoesNotAbortBatch(t *testing.T) {
	store := newMemoryStore()
	service := newTestService(store)

	first := newDueSession(t, store, service)
	_, err := service.CreateScheduledLivestream(ScheduleParams{
		Title:              "Open Mic",
		HostAccountID:      "acct-2",
		ScheduledStartTime: time.Now().Add(20 * time.Millisecond),
	})
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	activator := &stubActivator{fn: func(id uuid.UUID) error {
		if id == first.ID {
			return fmt.Errorf("credential issuer unreachable")
		}
		return nil
	}}

	scheduler := NewActivationScheduler(store, activator, time.Minute, 0, time.Second)
	results, err := scheduler.RunNow()
	require.NoError(t, err)
	require.Len(t, results, 2)

	activated, failed := 0, 0
	for _, r := range results {
		if r.Activated {
			activated++
		} else {
			failed++
			assert.Equal(t, first.ID, r.LivestreamID)
		}
	}
	assert.Equal(t, 1, activated)
	assert.Equal(t, 1, failed)
}

func TestScheduler_ItemTimeout(t *testing.T) {
	store := newMemoryStore()
	service := newTestService(store)
	newDueSession(t, store, service)

	hang := make(chan struct{})
	defer close(hang)
	activator := &stubActivator{fn: func(id uuid.UUID) error {
		<-hang
		return fmt.Errorf("never reached")
	}}

	scheduler := NewActivationScheduler(store, activator, time.Minute, 0, 50*time.Millisecond)
	results, err := scheduler.RunNow()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Activated)
	assert.Contains(t, results[0].Error, "timed out")
}

func TestScheduler_StartStop(t *testing.T) {
	store := newMemoryStore()
	service := newTestService(store)
	ls := newDueSession(t, store, service)

	scheduler := NewActivationScheduler(store, service, time.Hour, 10*time.Millisecond, time.Second)
	scheduler.Start()
	defer scheduler.Stop()

	// The immediate run after start picks up sessions that became due while
	// the process was down.
	require.Eventually(t, func() bool {
		s, err := store.GetByID(ls.ID)
		return err == nil && s.Status == StatusLive
	}, time.Second, 10*time.Millisecond)
}
