package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
)

// ErrStopped is returned by Flush after Stop
var ErrStopped = errors.New("saver is stopped")

// SaveFunc persists the current state
type SaveFunc func(ctx context.Context) error

// Saver debounces save requests. At most one save runs at a time; requests
// that arrive while a save is running collapse into a single follow-up save.
type Saver struct {
	save  SaveFunc
	delay time.Duration
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	pending  bool
	inFlight bool
	followUp bool
	stopped  bool
	done     chan struct{}
	lastErr  error
	status   models.SyncStatus
}

func New(save SaveFunc, delay time.Duration) *Saver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Saver{
		save:   save,
		delay:  delay,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		status: models.SyncStatus{State: models.SyncIdle},
	}
}

// Schedule requests a save after the quiet period. Each call restarts the timer.
func (s *Saver) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.pending = true
	s.status.Pending = true
	if !s.inFlight {
		s.status.State = models.SyncPending
	}
	s.stopTimer()
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

// stopTimer cancels the debounce timer and invalidates a callback that has
// already fired but not yet taken the lock. Caller holds mu.
func (s *Saver) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Saver) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.inFlight {
		s.followUp = true
		s.mu.Unlock()
		return
	}
	s.begin()
	s.mu.Unlock()

	for {
		err := s.save(s.ctx)

		s.mu.Lock()
		again := s.finish(err)
		if again && !s.stopped {
			s.begin()
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()
		return
	}
}

// begin marks a save as running. Caller holds mu.
func (s *Saver) begin() {
	s.inFlight = true
	s.pending = false
	s.done = make(chan struct{})
	s.status.State = models.SyncSaving
	s.status.Pending = false
}

// finish records the outcome of a save and reports whether a follow-up is
// owed. Caller holds mu.
func (s *Saver) finish(err error) bool {
	s.inFlight = false
	close(s.done)
	s.lastErr = err

	if err != nil {
		logger.Warn("Save failed", "error", err)
		s.status.State = models.SyncFailed
		s.status.LastError = err.Error()
	} else {
		now := s.now()
		s.status.State = models.SyncSaved
		s.status.LastError = ""
		s.status.LastSavedAt = &now
	}

	if s.followUp {
		s.followUp = false
		s.pending = true
	}
	s.status.Pending = s.pending
	return s.pending && s.timer == nil
}

// Flush cancels the debounce, waits for any running save and writes
// outstanding changes. It returns the error of the last save.
func (s *Saver) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return ErrStopped
		}
		s.stopTimer()
		if s.inFlight {
			done := s.done
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !s.pending {
			err := s.lastErr
			s.mu.Unlock()
			return err
		}
		s.begin()
		s.mu.Unlock()

		err := s.save(ctx)

		s.mu.Lock()
		s.finish(err)
		s.mu.Unlock()
	}
}

// Status returns a copy of the current sync status
func (s *Saver) Status() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	if st.LastSavedAt != nil {
		t := *st.LastSavedAt
		st.LastSavedAt = &t
	}
	return st
}

// Stop discards any scheduled save and waits for a running one to finish.
// Call Flush first to keep outstanding changes.
func (s *Saver) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.stopTimer()
	var done chan struct{}
	if s.inFlight {
		done = s.done
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	s.cancel()
}
