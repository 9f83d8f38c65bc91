package livestream

import (
	"sync/atomic"
	"time"

	utils "barlive/pkg/utils"

	"github.com/google/uuid"
)

// Activator is the slice of the lifecycle service the scheduler drives.
type Activator interface {
	ActivateScheduledLivestream(id uuid.UUID) (*Livestream, *ChannelCredential, error)
}

// ActivationResult reports the outcome for one due candidate.
type ActivationResult struct {
	LivestreamID uuid.UUID `json:"livestream_id"`
	Activated    bool      `json:"activated"`
	Error        string    `json:"error,omitempty"`
}

// ActivationScheduler periodically activates scheduled sessions whose start
// time has arrived. At most one cycle runs at a time; a tick that fires while
// a cycle is in flight is skipped, not queued — the next tick re-scans the
// same candidates.
type ActivationScheduler struct {
	store        LivestreamStore
	activator    Activator
	interval     time.Duration
	initialDelay time.Duration
	itemTimeout  time.Duration
	running      atomic.Bool
	stop         chan struct{}
	done         chan struct{}
}

func NewActivationScheduler(store LivestreamStore, activator Activator, interval, initialDelay, itemTimeout time.Duration) *ActivationScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if itemTimeout <= 0 {
		itemTimeout = 30 * time.Second
	}
	return &ActivationScheduler{
		store:        store,
		activator:    activator,
		interval:     interval,
		initialDelay: initialDelay,
		itemTimeout:  itemTimeout,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the polling loop. One immediate run shortly after start
// covers sessions that became due while the process was down.
func (s *ActivationScheduler) Start() {
	go func() {
		defer close(s.done)

		initial := time.NewTimer(s.initialDelay)
		defer initial.Stop()
		select {
		case <-initial.C:
			s.tick()
		case <-s.stop:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *ActivationScheduler) Stop() {
	close(s.stop)
	<-s.done
}

// tick runs one cycle unless a previous one is still in flight.
func (s *ActivationScheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		utils.Logger.Warn("Skipping scheduler tick, previous cycle still running")
		return
	}
	defer s.running.Store(false)

	s.runCycle()
}

// RunNow executes a cycle on demand with the same single-flight guard,
// reporting the outcome per candidate.
func (s *ActivationScheduler) RunNow() ([]ActivationResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, utils.ErrSchedulerAlreadyRunning
	}
	defer s.running.Store(false)

	return s.runCycle(), nil
}

func (s *ActivationScheduler) runCycle() []ActivationResult {
	due, err := s.store.GetScheduledReadyToActivate(time.Now())
	if err != nil {
		utils.Logger.Errorf("Scheduler failed to query due livestreams: %v", err)
		return nil
	}
	if len(due) == 0 {
		return nil
	}

	utils.Logger.Infof("Scheduler found %d scheduled livestream(s) ready to activate", len(due))

	results := make([]ActivationResult, 0, len(due))
	for _, ls := range due {
		result := ActivationResult{LivestreamID: ls.ID}
		if err := s.activateWithTimeout(ls.ID); err != nil {
			// A failure on one candidate never aborts the batch; the next
			// cycle will retry it.
			result.Error = err.Error()
			utils.Logger.Errorf("Scheduler failed to activate livestream %s: %v", ls.ID, err)
		} else {
			result.Activated = true
			utils.Logger.Infof("Scheduler activated livestream %s", ls.ID)
		}
		results = append(results, result)
	}
	return results
}

// activateWithTimeout bounds one activation call so a hung candidate cannot
// stall the rest of the batch.
func (s *ActivationScheduler) activateWithTimeout(id uuid.UUID) error {
	errCh := make(chan error, 1)
	go func() {
		_, _, err := s.activator.ActivateScheduledLivestream(id)
		errCh <- err
	}()

	timeout := time.NewTimer(s.itemTimeout)
	defer timeout.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timeout.C:
		return utils.NewDependencyError("activation timed out")
	}
}
