package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/storage/sqlite"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]json.RawMessage

	// afterGet runs once the lock is released, after every MGet
	afterGet func(keys []string)
}

func newMemKV() *memKV { return &memKV{data: map[string]json.RawMessage{}} }

func (m *memKV) MGet(_ context.Context, keys []string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	out := map[string]json.RawMessage{}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	hook := m.afterGet
	m.mu.Unlock()

	if hook != nil {
		hook(keys)
	}
	return out, nil
}

func (m *memKV) CompareAndSwap(_ context.Context, key string, prev, next json.RawMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[key]
	if !ok || !bytes.Equal(cur, prev) {
		return false, nil
	}
	m.data[key] = next
	return true, nil
}

func (m *memKV) MSet(_ context.Context, values map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

func (m *memKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memKV) Close() error { return nil }

func TestUserDataLoadMissingDefaults(t *testing.T) {
	ud := NewUserData(newMemKV())
	snap, err := ud.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(models.NewSnapshot(), snap); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestUserDataKeyLayout(t *testing.T) {
	kv := newMemKV()
	ud := NewUserData(kv)
	mood := 3
	snap := models.Snapshot{
		Habits:        []models.Habit{{ID: "a", Name: "Read", Category: models.CategoryStudy}},
		DailyData:     map[string]models.DayEntry{"2024-01-01": {CompletedHabits: []string{"a"}, Mood: &mood}},
		CurrentStreak: 1,
	}
	if err := ud.Save(context.Background(), "u1", snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for _, key := range []string{"user:u1:habits", "user:u1:dailyData", "user:u1:currentStreak"} {
		if _, ok := kv.data[key]; !ok {
			t.Errorf("key %s not written", key)
		}
	}
	if string(kv.data["user:u1:currentStreak"]) != "1" {
		t.Errorf("currentStreak = %s", kv.data["user:u1:currentStreak"])
	}

	got, err := ud.Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUserDataLoadMalformedValues(t *testing.T) {
	kv := newMemKV()
	kv.data["user:u1:habits"] = json.RawMessage(`"not a list"`)
	kv.data["user:u1:currentStreak"] = json.RawMessage(`"seven"`)
	kv.data["user:u1:dailyData"] = json.RawMessage(`{"2024-01-01":{"completedHabits":["a"]}}`)

	snap, err := NewUserData(kv).Load(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Habits) != 0 || snap.CurrentStreak != 0 {
		t.Errorf("malformed values not defaulted: %+v", snap)
	}
	if !snap.DailyData["2024-01-01"].Has("a") {
		t.Error("valid dailyData was dropped")
	}
}

func TestUserDataPruneAllWithSQLite(t *testing.T) {
	kv := sqlite.NewStore(filepath.Join(t.TempDir(), "server.db"))
	if err := kv.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer kv.Close()

	ctx := context.Background()
	ud := NewUserData(kv)
	for _, user := range []string{"u1", "u2"} {
		snap := models.Snapshot{
			Habits: []models.Habit{},
			DailyData: map[string]models.DayEntry{
				"2021-01-01": {CompletedHabits: []string{}},
				"2021-06-01": {CompletedHabits: []string{}},
				"2025-01-01": {CompletedHabits: []string{}},
			},
		}
		if err := ud.Save(ctx, user, snap); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := ud.PruneAll(ctx, "2024-10-18")
	if err != nil {
		t.Fatalf("PruneAll() error = %v", err)
	}
	if removed != 4 {
		t.Errorf("PruneAll() = %d, want 4", removed)
	}

	snap, err := ud.Load(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.DailyData) != 1 {
		t.Errorf("DailyData after prune = %v", snap.DailyData)
	}
}

func TestUserDataPruneAllKeepsConcurrentSave(t *testing.T) {
	kv := newMemKV()
	ud := NewUserData(kv)
	ctx := context.Background()

	base := models.Snapshot{
		Habits: []models.Habit{},
		DailyData: map[string]models.DayEntry{
			"2021-01-01": {CompletedHabits: []string{}},
			"2026-10-17": {CompletedHabits: []string{}},
		},
	}
	if err := ud.Save(ctx, "u1", base); err != nil {
		t.Fatal(err)
	}

	// A save lands between the prune's read and its write.
	saved := false
	kv.afterGet = func(keys []string) {
		if saved || len(keys) != 1 || keys[0] != DailyDataKey("u1") {
			return
		}
		saved = true
		next := base
		next.DailyData = map[string]models.DayEntry{
			"2021-01-01": {CompletedHabits: []string{}},
			"2026-10-17": {CompletedHabits: []string{}},
			"2026-10-18": {CompletedHabits: []string{}},
		}
		if err := ud.Save(ctx, "u1", next); err != nil {
			t.Errorf("Save() error = %v", err)
		}
	}

	removed, err := ud.PruneAll(ctx, "2024-10-18")
	if err != nil {
		t.Fatalf("PruneAll() error = %v", err)
	}
	if !saved {
		t.Fatal("concurrent save never ran")
	}
	if removed != 1 {
		t.Errorf("PruneAll() = %d, want 1", removed)
	}

	kv.afterGet = nil
	got, err := ud.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	var days []string
	for day := range got.DailyData {
		days = append(days, day)
	}
	sort.Strings(days)
	if diff := cmp.Diff([]string{"2026-10-17", "2026-10-18"}, days); diff != "" {
		t.Errorf("dailyData after prune mismatch (-want +got):\n%s", diff)
	}
}

func TestUserDataPruneAllGivesUpOnContention(t *testing.T) {
	kv := newMemKV()
	ud := NewUserData(kv)
	ctx := context.Background()

	old := models.Snapshot{
		Habits:    []models.Habit{},
		DailyData: map[string]models.DayEntry{"2021-01-01": {CompletedHabits: []string{}}},
	}
	if err := ud.Save(ctx, "u1", old); err != nil {
		t.Fatal(err)
	}

	n := 0
	kv.afterGet = func(keys []string) {
		n++
		kv.mu.Lock()
		kv.data[DailyDataKey("u1")] = json.RawMessage(fmt.Sprintf(`{"2021-01-0%d":{"completedHabits":[]}}`, n%9+1))
		kv.mu.Unlock()
	}

	if _, err := ud.PruneAll(ctx, "2024-10-18"); err == nil {
		t.Error("PruneAll() should fail when the key never settles")
	}
}
