package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/julianstephens/daystreak/internal/completionlog"
	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
)

// UserData maps a user's snapshot onto three keys of a KVStore:
// user:<id>:habits, user:<id>:dailyData and user:<id>:currentStreak.
type UserData struct {
	kv KVStore
}

func NewUserData(kv KVStore) *UserData {
	return &UserData{kv: kv}
}

func HabitsKey(userID string) string {
	return constants.KVUserPrefix + userID + constants.KVHabitsSuffix
}

func DailyDataKey(userID string) string {
	return constants.KVUserPrefix + userID + constants.KVDailyDataSuffix
}

func CurrentStreakKey(userID string) string {
	return constants.KVUserPrefix + userID + constants.KVCurrentStreakSuffix
}

// Load returns the user's snapshot. Missing keys default to empty collections
// and a zero streak; malformed values degrade the same way.
func (u *UserData) Load(ctx context.Context, userID string) (models.Snapshot, error) {
	if userID == "" {
		return models.Snapshot{}, fmt.Errorf("user id is required")
	}

	values, err := u.kv.MGet(ctx, []string{HabitsKey(userID), DailyDataKey(userID), CurrentStreakKey(userID)})
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to load data for user %s: %w", userID, err)
	}

	doc := map[string]json.RawMessage{}
	if v, ok := values[HabitsKey(userID)]; ok {
		doc["habits"] = v
	}
	if v, ok := values[DailyDataKey(userID)]; ok {
		doc["dailyData"] = v
	}
	if v, ok := values[CurrentStreakKey(userID)]; ok {
		doc["currentStreak"] = v
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return models.Snapshot{}, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.NewSnapshot(), nil
	}
	return snap, nil
}

// Save writes all three keys in one MSet.
func (u *UserData) Save(ctx context.Context, userID string, snap models.Snapshot) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	snap.Normalize()

	habits, err := json.Marshal(snap.Habits)
	if err != nil {
		return fmt.Errorf("failed to encode habits: %w", err)
	}
	daily, err := json.Marshal(snap.DailyData)
	if err != nil {
		return fmt.Errorf("failed to encode daily data: %w", err)
	}
	streak, err := json.Marshal(snap.CurrentStreak)
	if err != nil {
		return err
	}

	return u.kv.MSet(ctx, map[string]json.RawMessage{
		HabitsKey(userID):        habits,
		DailyDataKey(userID):     daily,
		CurrentStreakKey(userID): streak,
	})
}

// PruneAll drops every user's log entries older than cutoff and returns the
// total number of entries removed. Each write is a compare-and-swap against
// the value that was pruned, so a save landing mid-prune is re-read and
// pruned again instead of being overwritten.
func (u *UserData) PruneAll(ctx context.Context, cutoff string) (int, error) {
	keys, err := u.kv.Keys(ctx, constants.KVUserPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	total := 0
	for _, key := range keys {
		if !strings.HasSuffix(key, constants.KVDailyDataSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}

		removed, err := u.pruneKey(ctx, key, cutoff)
		if err != nil {
			return total, err
		}
		total += removed
	}
	return total, nil
}

func (u *UserData) pruneKey(ctx context.Context, key, cutoff string) (int, error) {
	for attempt := 0; attempt < constants.PruneAttempts; attempt++ {
		values, err := u.kv.MGet(ctx, []string{key})
		if err != nil {
			return 0, err
		}
		prev, ok := values[key]
		if !ok {
			return 0, nil
		}
		var daily map[string]models.DayEntry
		if err := json.Unmarshal(prev, &daily); err != nil {
			return 0, nil
		}

		log := completionlog.New(daily)
		removed, err := log.PruneOlderThan(cutoff)
		if err != nil {
			return 0, err
		}
		if removed == 0 {
			return 0, nil
		}

		encoded, err := json.Marshal(log.Snapshot())
		if err != nil {
			return 0, err
		}
		swapped, err := u.kv.CompareAndSwap(ctx, key, prev, encoded)
		if err != nil {
			return 0, err
		}
		if swapped {
			return removed, nil
		}
	}
	return 0, fmt.Errorf("%s kept changing during prune after %d attempts", key, constants.PruneAttempts)
}
