package session

import (
	"fmt"

	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/habits"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/streak"
	"github.com/julianstephens/daystreak/internal/utils"
	"github.com/julianstephens/daystreak/internal/validation"
)

// mutate runs fn against the working set, then refreshes derived state and
// schedules a save when fn succeeded.
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.state == Offline {
		s.mu.Unlock()
		return ErrOffline
	}
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.recompute()
	saver := s.saver
	s.mu.Unlock()

	saver.Schedule()
	return nil
}

// mutateLog is mutate for edits that only touch the completion log. No save is
// scheduled when fn left the log unchanged and nothing else is pending.
func (s *Session) mutateLog(fn func() error) error {
	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.state == Offline {
		s.mu.Unlock()
		return ErrOffline
	}
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !s.log.Dirty() {
		s.mu.Unlock()
		return nil
	}
	s.recompute()
	saver := s.saver
	s.mu.Unlock()

	saver.Schedule()
	return nil
}

func (s *Session) AddHabit(h models.Habit) (models.Habit, error) {
	var added models.Habit
	err := s.mutate(func() error {
		var err error
		added, err = s.registry.Add(h, s.now())
		return err
	})
	return added, err
}

// UpdateHabit edits the habit named by ref (id or name) inside its edit window
func (s *Session) UpdateHabit(ref string, c habits.Changes) (models.Habit, error) {
	var updated models.Habit
	err := s.mutate(func() error {
		h, err := s.registry.Resolve(ref)
		if err != nil {
			return err
		}
		updated, err = s.registry.Update(h.ID, c, s.now())
		return err
	})
	return updated, err
}

// DeleteHabit removes a habit and every completion of it. It returns the
// number of log entries touched.
func (s *Session) DeleteHabit(ref string) (models.Habit, int, error) {
	var (
		deleted models.Habit
		touched int
	)
	err := s.mutate(func() error {
		h, err := s.registry.Resolve(ref)
		if err != nil {
			return err
		}
		touched, err = s.registry.Delete(h.ID, s.log, s.now())
		deleted = h
		return err
	})
	return deleted, touched, err
}

func (s *Session) SetArchived(ref string, archived bool) (models.Habit, error) {
	var out models.Habit
	err := s.mutate(func() error {
		h, err := s.registry.Resolve(ref)
		if err != nil {
			return err
		}
		out, err = s.registry.SetArchived(h.ID, archived)
		return err
	})
	return out, err
}

// Toggle flips the completion of a habit on day and reports the new state
func (s *Session) Toggle(ref, day string) (models.Habit, bool, error) {
	var (
		h    models.Habit
		done bool
	)
	err := s.mutate(func() error {
		var err error
		h, err = s.registry.Resolve(ref)
		if err != nil {
			return err
		}
		done, err = s.log.Toggle(h.ID, day)
		return err
	})
	return h, done, err
}

func (s *Session) SetMood(day string, score int) error {
	return s.mutateLog(func() error {
		return s.log.SetMood(day, score)
	})
}

func (s *Session) ClearMood(day string) error {
	return s.mutateLog(func() error {
		return s.log.ClearMood(day)
	})
}

// SetReflection stores text for day, truncated to the reflection limit
func (s *Session) SetReflection(day, text string) (string, error) {
	var stored string
	err := s.mutateLog(func() error {
		var err error
		stored, err = s.log.SetReflection(day, text)
		return err
	})
	return stored, err
}

// Prune removes log entries older than the retention horizon
func (s *Session) Prune() (int, error) {
	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return 0, ErrNotStarted
	}
	removed, err := s.log.PruneOlderThan(utils.RetentionCutoff(s.now()))
	if err != nil || removed == 0 {
		s.mu.Unlock()
		return removed, err
	}
	s.recompute()
	saver := s.saver
	s.mu.Unlock()

	saver.Schedule()
	return removed, nil
}

// PrunedOnStart returns the number of log entries retention removed during Start
func (s *Session) PrunedOnStart() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruned
}

// Validate reports problems in the working set
func (s *Session) Validate() (validation.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Uninitialized {
		return validation.ValidationResult{}, ErrNotStarted
	}
	return validation.ValidateSnapshot(s.snapshot()), nil
}

// Repair fixes the problems Validate reports and schedules a save
func (s *Session) Repair() ([]validation.FixAction, error) {
	s.mu.Lock()
	if s.state == Uninitialized {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	fixed, actions := validation.FixSnapshot(s.snapshot())
	if len(actions) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	s.setWorking(fixed)
	saver := s.saver
	s.mu.Unlock()

	saver.Schedule()
	return actions, nil
}

// read runs fn under the session lock
func (s *Session) read(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Uninitialized {
		return ErrNotStarted
	}
	fn()
	return nil
}

func (s *Session) Habits(includeArchived bool) ([]models.Habit, error) {
	var out []models.Habit
	err := s.read(func() { out = s.registry.List(includeArchived) })
	return out, err
}

func (s *Session) Habit(ref string) (models.Habit, error) {
	var (
		h   models.Habit
		err error
	)
	if rerr := s.read(func() { h, err = s.registry.Resolve(ref) }); rerr != nil {
		return models.Habit{}, rerr
	}
	return h, err
}

// Statuses returns the derived status of every listed habit as of today
func (s *Session) Statuses(includeArchived bool) ([]models.HabitStatus, error) {
	var out []models.HabitStatus
	err := s.read(func() {
		out = streak.HabitStatuses(s.registry.List(includeArchived), s.log, s.today())
	})
	return out, err
}

func (s *Session) Insights() (models.Insights, error) {
	var out models.Insights
	err := s.read(func() {
		out = streak.Insights(s.registry.All(), s.log, s.today(), s.guest.BestStreak)
	})
	return out, err
}

func (s *Session) DayRates(from, to string) ([]models.DayRate, error) {
	var (
		out []models.DayRate
		err error
	)
	if rerr := s.read(func() { out, err = streak.DayRates(s.registry.All(), s.log, from, to) }); rerr != nil {
		return nil, rerr
	}
	return out, err
}

// Entry returns the log entry for day; a day without one is an empty entry
func (s *Session) Entry(day string) (models.DayEntry, error) {
	if !utils.ValidateDay(day) {
		return models.DayEntry{}, fmt.Errorf("%w: invalid date %q", apperrors.ErrValidation, day)
	}
	var out models.DayEntry
	err := s.read(func() {
		if e, ok := s.log.Entry(day); ok {
			out = e
		}
	})
	return out, err
}

// CurrentStreak returns the overall streak as of today
func (s *Session) CurrentStreak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Snapshot() (models.Snapshot, error) {
	var out models.Snapshot
	err := s.read(func() { out = s.snapshot() })
	return out, err
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Meta returns the local bookkeeping (guest id, sync and migration times, best streak)
func (s *Session) Meta() models.LocalMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guest.LocalMeta
}

func (s *Session) SyncStatus() models.SyncStatus {
	s.mu.Lock()
	saver, offlineErr := s.saver, s.offlineErr
	s.mu.Unlock()
	if offlineErr != nil {
		return models.SyncStatus{State: models.SyncFailed, LastError: offlineErr.Error()}
	}
	if saver == nil {
		return models.SyncStatus{State: models.SyncIdle}
	}
	return saver.Status()
}
