package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/daystreak/internal/models"
)

// LoadData reads the guest document from the relational tables.
func (s *Store) LoadData() (models.LocalData, error) {
	if s.db == nil {
		return models.LocalData{}, fmt.Errorf("storage not loaded")
	}

	doc := models.LocalData{Data: models.NewSnapshot()}

	habits, err := s.loadHabits()
	if err != nil {
		return models.LocalData{}, err
	}
	doc.Data.Habits = habits

	entries, err := s.loadEntries()
	if err != nil {
		return models.LocalData{}, err
	}
	doc.Data.DailyData = entries

	row := s.db.QueryRow(`
		SELECT guest_id, created_at, last_sync_at, migrated_at, best_streak, current_streak
		FROM local_meta WHERE id = 1`)

	var createdAt string
	var lastSyncAt, migratedAt sql.NullString
	err = row.Scan(&doc.GuestID, &createdAt, &lastSyncAt, &migratedAt, &doc.BestStreak, &doc.Data.CurrentStreak)
	if err == sql.ErrNoRows {
		return doc, nil
	}
	if err != nil {
		return models.LocalData{}, fmt.Errorf("failed to read local metadata: %w", err)
	}

	if doc.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return models.LocalData{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if doc.LastSyncAt, err = parseNullTime(lastSyncAt); err != nil {
		return models.LocalData{}, fmt.Errorf("failed to parse last_sync_at: %w", err)
	}
	if doc.MigratedAt, err = parseNullTime(migratedAt); err != nil {
		return models.LocalData{}, fmt.Errorf("failed to parse migrated_at: %w", err)
	}

	return doc, nil
}

func (s *Store) loadHabits() ([]models.Habit, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, category, time_hint, priority, is_archived, created_at
		FROM habits ORDER BY position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		var h models.Habit
		var category, createdAt string
		var priority int
		if err := rows.Scan(&h.ID, &h.Name, &h.Description, &category, &h.TimeHint, &priority, &h.IsArchived, &createdAt); err != nil {
			return nil, err
		}
		h.Category = models.Category(category)
		h.Priority = models.Priority(priority)
		h.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for habit %s: %w", h.ID, err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *Store) loadEntries() (map[string]models.DayEntry, error) {
	entries := map[string]models.DayEntry{}

	rows, err := s.db.Query(`SELECT day, mood, reflection FROM day_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query day entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day, reflection string
		var mood sql.NullInt64
		if err := rows.Scan(&day, &mood, &reflection); err != nil {
			return nil, err
		}
		e := models.DayEntry{CompletedHabits: []string{}, Reflection: reflection}
		if mood.Valid {
			m := int(mood.Int64)
			e.Mood = &m
		}
		entries[day] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := s.db.Query(`SELECT day, habit_id FROM day_completions ORDER BY day, habit_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var day, habitID string
		if err := crows.Scan(&day, &habitID); err != nil {
			return nil, err
		}
		e, ok := entries[day]
		if !ok {
			e = models.DayEntry{CompletedHabits: []string{}}
		}
		e.CompletedHabits = append(e.CompletedHabits, habitID)
		entries[day] = e
	}
	return entries, crows.Err()
}

// SaveData replaces the stored document in a single transaction.
func (s *Store) SaveData(doc models.LocalData) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM day_completions", "DELETE FROM day_entries", "DELETE FROM habits"} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to clear tables: %w", err)
		}
	}

	for i, h := range doc.Data.Habits {
		_, err := tx.Exec(`
			INSERT INTO habits (id, name, description, category, time_hint, priority, is_archived, created_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.ID, h.Name, h.Description, string(h.Category), h.TimeHint, int(h.Priority), boolToInt(h.IsArchived),
			h.CreatedAt.UTC().Format(time.RFC3339Nano), i)
		if err != nil {
			return fmt.Errorf("failed to save habit %s: %w", h.ID, err)
		}
	}

	for day, e := range doc.Data.DailyData {
		var mood interface{}
		if e.Mood != nil {
			mood = *e.Mood
		}
		if _, err := tx.Exec(`INSERT INTO day_entries (day, mood, reflection) VALUES (?, ?, ?)`, day, mood, e.Reflection); err != nil {
			return fmt.Errorf("failed to save entry %s: %w", day, err)
		}
		for _, id := range e.CompletedHabits {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO day_completions (day, habit_id) VALUES (?, ?)`, day, id); err != nil {
				return fmt.Errorf("failed to save completion %s/%s: %w", day, id, err)
			}
		}
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO local_meta (id, guest_id, created_at, last_sync_at, migrated_at, best_streak, current_streak)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			guest_id = excluded.guest_id,
			created_at = excluded.created_at,
			last_sync_at = excluded.last_sync_at,
			migrated_at = excluded.migrated_at,
			best_streak = excluded.best_streak,
			current_streak = excluded.current_streak`,
		doc.GuestID, createdAt.UTC().Format(time.RFC3339Nano), formatNullTime(doc.LastSyncAt), formatNullTime(doc.MigratedAt),
		doc.BestStreak, doc.Data.CurrentStreak)
	if err != nil {
		return fmt.Errorf("failed to save local metadata: %w", err)
	}

	return tx.Commit()
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
