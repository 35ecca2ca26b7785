// Package habits is the registry of tracked habits.
package habits

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/utils"
	"github.com/julianstephens/daystreak/internal/validation"
)

// Scrubber removes every completion of a habit; implemented by the completion log.
type Scrubber interface {
	RemoveHabitEverywhere(habitID string) int
}

// Changes lists the editable fields of a habit. Nil fields are left as is.
type Changes struct {
	Name        *string
	Description *string
	Category    *models.Category
	TimeHint    *string
	Priority    *models.Priority
}

func (c Changes) IsEmpty() bool {
	return c.Name == nil && c.Description == nil && c.Category == nil && c.TimeHint == nil && c.Priority == nil
}

type Registry struct {
	mu     sync.RWMutex
	habits []models.Habit
}

func New(habits []models.Habit) *Registry {
	return &Registry{habits: append([]models.Habit{}, habits...)}
}

// CanEdit reports whether h is still inside its edit window: the UTC calendar
// day it was created on.
func CanEdit(h models.Habit, now time.Time) bool {
	return utils.DayKey(h.CreatedAt) == utils.DayKey(now)
}

// Add validates and registers a new habit with a fresh id and creation time.
func (r *Registry) Add(h models.Habit, now time.Time) (models.Habit, error) {
	name, err := validation.ValidateHabitName(h.Name)
	if err != nil {
		return models.Habit{}, err
	}
	h.Name = name
	if err := validation.ValidateCategory(h.Category); err != nil {
		return models.Habit{}, err
	}
	if err := validation.ValidatePriority(h.Priority); err != nil {
		return models.Habit{}, err
	}

	h.ID = uuid.New().String()
	h.CreatedAt = now.UTC()
	h.IsArchived = false
	h.TimeHint = strings.TrimSpace(h.TimeHint)

	r.mu.Lock()
	r.habits = append(r.habits, h)
	r.mu.Unlock()
	return h, nil
}

func (r *Registry) indexOf(id string) int {
	for i, h := range r.habits {
		if h.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) Get(id string) (models.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	return r.habits[i], nil
}

// FindByName returns the first habit whose name matches case-insensitively.
func (r *Registry) FindByName(name string) (models.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.TrimSpace(name)
	for _, h := range r.habits {
		if strings.EqualFold(h.Name, needle) {
			return h, nil
		}
	}
	return models.Habit{}, fmt.Errorf("habit %q: %w", name, apperrors.ErrNotFound)
}

// Resolve looks a habit up by id first, then by name.
func (r *Registry) Resolve(ref string) (models.Habit, error) {
	if h, err := r.Get(ref); err == nil {
		return h, nil
	}
	return r.FindByName(ref)
}

// List returns the habits ordered by priority (highest first) then creation time.
func (r *Registry) List(includeArchived bool) []models.Habit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Habit, 0, len(r.habits))
	for _, h := range r.habits {
		if h.IsArchived && !includeArchived {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// All returns the habits in registration order.
func (r *Registry) All() []models.Habit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Habit{}, r.habits...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.habits)
}

// Update applies changes to a habit inside its edit window. CreatedAt is never modified.
func (r *Registry) Update(id string, c Changes, now time.Time) (models.Habit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	h := r.habits[i]
	if c.IsEmpty() {
		return h, nil
	}
	if !CanEdit(h, now) {
		return models.Habit{}, fmt.Errorf("habit %q was created on %s: %w", h.Name, utils.DayKey(h.CreatedAt), apperrors.ErrNotEditable)
	}

	if c.Name != nil {
		name, err := validation.ValidateHabitName(*c.Name)
		if err != nil {
			return models.Habit{}, err
		}
		h.Name = name
	}
	if c.Description != nil {
		h.Description = strings.TrimSpace(*c.Description)
	}
	if c.Category != nil {
		if err := validation.ValidateCategory(*c.Category); err != nil {
			return models.Habit{}, err
		}
		h.Category = *c.Category
	}
	if c.TimeHint != nil {
		h.TimeHint = strings.TrimSpace(*c.TimeHint)
	}
	if c.Priority != nil {
		if err := validation.ValidatePriority(*c.Priority); err != nil {
			return models.Habit{}, err
		}
		h.Priority = *c.Priority
	}

	r.habits[i] = h
	return h, nil
}

// SetArchived archives or restores a habit. Always allowed.
func (r *Registry) SetArchived(id string, archived bool) (models.Habit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	r.habits[i].IsArchived = archived
	return r.habits[i], nil
}

// Delete deregisters a habit inside its edit window and scrubs it from the log.
// It returns the number of log entries touched.
func (r *Registry) Delete(id string, log Scrubber, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return 0, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	h := r.habits[i]
	if !CanEdit(h, now) {
		return 0, fmt.Errorf("habit %q was created on %s: %w", h.Name, utils.DayKey(h.CreatedAt), apperrors.ErrNotEditable)
	}

	r.habits = append(r.habits[:i], r.habits[i+1:]...)
	return log.RemoveHabitEverywhere(id), nil
}
