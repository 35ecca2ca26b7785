package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/habits"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memLocal struct {
	mu     sync.Mutex
	doc    models.LocalData
	saves  int
	closed bool
}

func (m *memLocal) Init() error           { return nil }
func (m *memLocal) Load() error           { return nil }
func (m *memLocal) Close() error          { m.closed = true; return nil }
func (m *memLocal) GetConfigPath() string { return "mem" }

func (m *memLocal) LoadData() (models.LocalData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.doc
	doc.Data = doc.Data.Clone()
	return doc, nil
}

func (m *memLocal) SaveData(doc models.LocalData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.Data = doc.Data.Clone()
	m.doc = doc
	m.saves++
	return nil
}

func (m *memLocal) data() models.LocalData {
	doc, _ := m.LoadData()
	return doc
}

type fakeRemote struct {
	mu      sync.Mutex
	valid   map[string]bool
	snap    models.Snapshot
	saves   int
	saveErr error
	loadErr error
}

func newFakeRemote(tokens ...string) *fakeRemote {
	r := &fakeRemote{valid: map[string]bool{}, snap: models.NewSnapshot()}
	for _, t := range tokens {
		r.valid[t] = true
	}
	return r
}

func (r *fakeRemote) Load(_ context.Context, token string) (models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return models.Snapshot{}, r.loadErr
	}
	if !r.valid[token] {
		return models.Snapshot{}, apperrors.ErrUnauthorized
	}
	return r.snap.Clone(), nil
}

func (r *fakeRemote) Save(_ context.Context, token string, snap models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.valid[token] {
		return apperrors.ErrUnauthorized
	}
	if r.saveErr != nil {
		return r.saveErr
	}
	r.snap = snap.Clone()
	r.saves++
	return nil
}

func (r *fakeRemote) current() models.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.Clone()
}

type fakeCreds struct {
	mu      sync.Mutex
	token   string
	account string
}

func (c *fakeCreds) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return "", keyring.ErrNotFound
	}
	return c.token, nil
}

func (c *fakeCreds) SetToken(t string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = t
	return nil
}

func (c *fakeCreds) Account() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account, nil
}

func (c *fakeCreds) SetAccount(a string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = a
	return nil
}

func (c *fakeCreds) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.account = "", ""
	return nil
}

type fakeBackup struct {
	calls int
	err   error
}

func (b *fakeBackup) CreateBackup() (string, error) {
	b.calls++
	return "/tmp/daystreak-backup.db", b.err
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	local  *memLocal
	remote *fakeRemote
	creds  *fakeCreds
	backup *fakeBackup
	clock  *clock
}

func newEnv() *env {
	return &env{
		local:  &memLocal{doc: models.LocalData{Data: models.NewSnapshot()}},
		remote: newFakeRemote("good"),
		creds:  &fakeCreds{},
		backup: &fakeBackup{},
		clock:  &clock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
}

func (e *env) start(t *testing.T) *Session {
	t.Helper()
	s := New(Config{
		Local:       e.local,
		Remote:      e.remote,
		Credentials: e.creds,
		Backup:      e.backup,
		Now:         e.clock.Now,
		SaveDelay:   time.Hour,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func addHabit(t *testing.T, s *Session, name string) models.Habit {
	t.Helper()
	h, err := s.AddHabit(models.Habit{Name: name, Category: models.CategoryHealth})
	if err != nil {
		t.Fatalf("AddHabit(%s) failed: %v", name, err)
	}
	return h
}

func TestStartAsGuest(t *testing.T) {
	e := newEnv()
	s := e.start(t)

	if s.State() != Guest {
		t.Fatalf("state = %s, want guest", s.State())
	}
	if !strings.HasPrefix(s.Meta().GuestID, constants.GuestIDPrefix) {
		t.Errorf("guest id = %q", s.Meta().GuestID)
	}
	if st := s.SyncStatus(); st.State != models.SyncIdle {
		t.Errorf("sync state = %s", st.State)
	}
}

func TestGuestMutationsPersistLocally(t *testing.T) {
	e := newEnv()
	s := e.start(t)

	h := addHabit(t, s, "Stretch")
	if _, done, err := s.Toggle("stretch", "2026-03-10"); err != nil || !done {
		t.Fatalf("Toggle = %v, %v", done, err)
	}
	if err := s.SetMood("2026-03-10", 4); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetReflection("2026-03-10", strings.Repeat("é", 300)); err != nil {
		t.Fatal(err)
	}
	if s.SyncStatus().State != models.SyncPending {
		t.Errorf("sync state = %s, want pending", s.SyncStatus().State)
	}

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	doc := e.local.data()
	entry := doc.Data.DailyData["2026-03-10"]
	if !entry.Has(h.ID) || entry.Mood == nil || *entry.Mood != 4 {
		t.Errorf("persisted entry = %+v", entry)
	}
	if n := len([]rune(entry.Reflection)); n != constants.MaxReflectionRunes {
		t.Errorf("reflection length = %d", n)
	}
	if doc.Data.CurrentStreak != 1 || doc.BestStreak != 1 {
		t.Errorf("streak = %d best = %d", doc.Data.CurrentStreak, doc.BestStreak)
	}
	if doc.GuestID == "" {
		t.Error("guest id not persisted")
	}
}

func TestMoodOutOfRangeRejected(t *testing.T) {
	s := newEnv().start(t)
	err := s.SetMood("2026-03-10", 6)
	if apperrors.Classify(err) != apperrors.KindValidation {
		t.Fatalf("SetMood(6) error = %v", err)
	}
	if s.SyncStatus().State != models.SyncIdle {
		t.Error("rejected mutation scheduled a save")
	}
}

func TestEditWindow(t *testing.T) {
	e := newEnv()
	s := e.start(t)
	addHabit(t, s, "Read")

	name := "Read more"
	if _, err := s.UpdateHabit("Read", habits.Changes{Name: &name}); err != nil {
		t.Fatalf("same-day update failed: %v", err)
	}

	e.clock.Add(24 * time.Hour)
	other := "Read less"
	if _, err := s.UpdateHabit("Read more", habits.Changes{Name: &other}); !errors.Is(err, apperrors.ErrNotEditable) {
		t.Errorf("next-day update error = %v", err)
	}
	if _, _, err := s.DeleteHabit("Read more"); !errors.Is(err, apperrors.ErrNotEditable) {
		t.Errorf("next-day delete error = %v", err)
	}
	if _, err := s.SetArchived("Read more", true); err != nil {
		t.Errorf("archive should always be allowed: %v", err)
	}
}

func TestDeleteScrubsCompletions(t *testing.T) {
	s := newEnv().start(t)
	h := addHabit(t, s, "Walk")
	if _, _, err := s.Toggle(h.ID, "2026-03-10"); err != nil {
		t.Fatal(err)
	}

	_, touched, err := s.DeleteHabit(h.ID)
	if err != nil || touched != 1 {
		t.Fatalf("DeleteHabit = %d, %v", touched, err)
	}
	entry, err := s.Entry("2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Has(h.ID) {
		t.Error("completion survived delete")
	}
	if s.CurrentStreak() != 0 {
		t.Errorf("streak = %d after delete", s.CurrentStreak())
	}
}

func TestStartAuthenticated(t *testing.T) {
	e := newEnv()
	e.creds.token = "good"
	e.creds.account = "me@example.com"
	e.remote.snap.Habits = []models.Habit{{ID: "r1", Name: "Remote", Category: models.CategoryStudy}}

	s := e.start(t)
	if s.State() != Authenticated || s.Account() != "me@example.com" {
		t.Fatalf("state = %s account = %q", s.State(), s.Account())
	}
	if _, _, err := s.Toggle("r1", "2026-03-10"); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if !e.remote.current().DailyData["2026-03-10"].Has("r1") {
		t.Error("remote did not receive the completion")
	}
	if e.local.data().LastSyncAt == nil {
		t.Error("last sync time not recorded")
	}
	if len(e.local.data().Data.Habits) != 0 {
		t.Error("account data leaked into the guest copy")
	}
}

func TestStartWithRejectedCredential(t *testing.T) {
	e := newEnv()
	e.creds.token = "expired"

	s := e.start(t)
	if s.State() != Guest {
		t.Fatalf("state = %s, want guest", s.State())
	}
	if _, err := e.creds.Token(); !errors.Is(err, keyring.ErrNotFound) {
		t.Error("rejected credential was kept")
	}
}

func TestLoginMigratesGuestData(t *testing.T) {
	e := newEnv()
	e.remote.snap.Habits = []models.Habit{{ID: "r1", Name: "Remote", Category: models.CategoryStudy}}
	s := e.start(t)

	h := addHabit(t, s, "Local")
	if _, _, err := s.Toggle(h.ID, "2026-03-10"); err != nil {
		t.Fatal(err)
	}

	result, err := s.Login(context.Background(), "good", "me")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !result.Migrated || result.Habits != 2 || result.Backup == "" {
		t.Errorf("result = %+v", result)
	}
	if e.backup.calls != 1 {
		t.Errorf("backups = %d, want 1", e.backup.calls)
	}

	remote := e.remote.current()
	if len(remote.Habits) != 2 || !remote.DailyData["2026-03-10"].Has(h.ID) {
		t.Errorf("remote after migration = %+v", remote)
	}
	if remote.CurrentStreak != 1 {
		t.Errorf("remote streak = %d", remote.CurrentStreak)
	}

	local := e.local.data()
	if local.MigratedAt == nil {
		t.Error("migrated_at not recorded")
	}
	if len(local.Data.Habits) != 1 {
		t.Error("guest copy was not kept as a backup")
	}

	// second attempt is a no-op
	again, err := s.Migrate(context.Background())
	if err != nil || again.Migrated {
		t.Errorf("second Migrate = %+v, %v", again, err)
	}
}

func TestLoginWithEmptyGuestDataLeavesRemote(t *testing.T) {
	e := newEnv()
	e.remote.snap.Habits = []models.Habit{{ID: "r1", Name: "Remote", Category: models.CategoryStudy}}
	s := e.start(t)

	result, err := s.Login(context.Background(), "good", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Migrated || e.remote.saves != 0 || e.backup.calls != 0 {
		t.Errorf("empty guest data touched the remote: %+v saves=%d", result, e.remote.saves)
	}
	list, _ := s.Habits(false)
	if len(list) != 1 || list[0].ID != "r1" {
		t.Errorf("working set = %+v", list)
	}
}

func TestLoginRejected(t *testing.T) {
	e := newEnv()
	s := e.start(t)
	if _, err := s.Login(context.Background(), "bad", ""); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("Login error = %v", err)
	}
	if s.State() != Guest {
		t.Errorf("state = %s", s.State())
	}
	if _, err := e.creds.Token(); err == nil {
		t.Error("rejected token was stored")
	}
}

func TestFailedMigrationCanBeRetried(t *testing.T) {
	e := newEnv()
	e.remote.snap.Habits = []models.Habit{{ID: "r1", Name: "Remote", Category: models.CategoryStudy}}
	before := e.remote.current()
	s := e.start(t)
	addHabit(t, s, "Local")

	e.remote.saveErr = apperrors.ErrTransient
	_, err := s.Login(context.Background(), "good", "")
	if !errors.Is(err, apperrors.ErrTransient) {
		t.Fatalf("Login error = %v, want transient", err)
	}
	if s.State() != Authenticated {
		t.Fatalf("state = %s", s.State())
	}
	if e.local.data().MigratedAt != nil {
		t.Error("migrated_at set after failure")
	}
	if diff := cmp.Diff(before, e.remote.current()); diff != "" {
		t.Errorf("remote changed by failed migration:\n%s", diff)
	}

	e.remote.saveErr = nil
	result, err := s.Migrate(context.Background())
	if err != nil || !result.Migrated {
		t.Fatalf("retry = %+v, %v", result, err)
	}
	if len(e.remote.current().Habits) != 2 {
		t.Error("retry did not merge")
	}
}

func TestStartOfflineWhenServerUnreachable(t *testing.T) {
	e := newEnv()
	e.local.doc.Data.Habits = []models.Habit{{ID: "g1", Name: "Guest", Category: models.CategoryHealth}}
	e.creds.token = "good"
	e.creds.account = "me"
	e.remote.loadErr = fmt.Errorf("%w: connection refused", apperrors.ErrTransient)

	s := e.start(t)
	if s.State() != Offline || s.Account() != "me" {
		t.Fatalf("state = %s account = %q, want offline me", s.State(), s.Account())
	}
	if _, err := s.Statuses(false); err != nil {
		t.Errorf("Statuses() error = %v", err)
	}
	if st := s.SyncStatus(); st.State != models.SyncFailed || st.LastError == "" {
		t.Errorf("sync status = %+v, want failed with an error", st)
	}
	if _, err := s.AddHabit(models.Habit{Name: "Run", Category: models.CategoryHealth}); !errors.Is(err, apperrors.ErrTransient) {
		t.Errorf("AddHabit() error = %v, want ErrTransient", err)
	}
	if _, err := s.Migrate(context.Background()); !errors.Is(err, ErrOffline) {
		t.Errorf("Migrate() error = %v, want ErrOffline", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if e.remote.saves != 0 {
		t.Error("offline session wrote to the server")
	}

	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if s.State() != Guest {
		t.Errorf("state after logout = %s, want guest", s.State())
	}
	if _, err := e.creds.Token(); !errors.Is(err, keyring.ErrNotFound) {
		t.Error("credential survived logout")
	}
	list, _ := s.Habits(true)
	if len(list) != 1 || list[0].ID != "g1" {
		t.Errorf("working set after logout = %+v", list)
	}
}

func TestReconnectLeavesOffline(t *testing.T) {
	e := newEnv()
	e.creds.token = "good"
	e.remote.snap.Habits = []models.Habit{{ID: "r1", Name: "Remote", Category: models.CategoryStudy}}
	e.remote.loadErr = apperrors.ErrTransient

	s := e.start(t)
	if err := s.Reconnect(context.Background()); !errors.Is(err, apperrors.ErrTransient) {
		t.Fatalf("Reconnect() while down error = %v", err)
	}
	if s.State() != Offline {
		t.Fatalf("state = %s, want offline", s.State())
	}

	e.remote.mu.Lock()
	e.remote.loadErr = nil
	e.remote.mu.Unlock()
	if err := s.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect() error = %v", err)
	}
	if s.State() != Authenticated {
		t.Fatalf("state = %s, want authenticated", s.State())
	}
	if st := s.SyncStatus(); st.State == models.SyncFailed {
		t.Errorf("sync status still failed: %+v", st)
	}
	if _, err := s.Habit("r1"); err != nil {
		t.Errorf("account habit missing after reconnect: %v", err)
	}
}

func TestUnchangedLogEditSkipsSave(t *testing.T) {
	e := newEnv()
	s := e.start(t)
	ctx := context.Background()

	if err := s.SetMood("2026-03-10", 3); err != nil {
		t.Fatal(err)
	}
	if !s.SyncStatus().Pending {
		t.Fatal("mood change did not schedule a save")
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	saves := e.local.saves

	if err := s.SetMood("2026-03-10", 3); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearMood("2026-03-11"); err != nil {
		t.Fatal(err)
	}
	if s.SyncStatus().Pending {
		t.Error("unchanged edits scheduled a save")
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if e.local.saves != saves {
		t.Errorf("local saves = %d, want %d", e.local.saves, saves)
	}
}

func TestLogout(t *testing.T) {
	e := newEnv()
	s := e.start(t)
	addHabit(t, s, "Local")
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.remote.snap.Habits = []models.Habit{{ID: "r1", Name: "Remote", Category: models.CategoryStudy}}
	if _, err := s.Login(context.Background(), "good", "me"); err != nil {
		t.Fatal(err)
	}

	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if s.State() != Guest || s.Account() != "" {
		t.Errorf("state = %s account = %q", s.State(), s.Account())
	}
	if _, err := e.creds.Token(); err == nil {
		t.Error("credential survived logout")
	}
	list, _ := s.Habits(true)
	if len(list) != 1 || list[0].Name != "Local" {
		t.Errorf("working set after logout = %+v", list)
	}
}

func TestUnauthorizedSaveDemotesToGuest(t *testing.T) {
	e := newEnv()
	e.creds.token = "good"
	e.remote.snap.Habits = []models.Habit{{ID: "r1", Name: "Remote", Category: models.CategoryStudy}}
	s := e.start(t)

	if _, _, err := s.Toggle("r1", "2026-03-10"); err != nil {
		t.Fatal(err)
	}
	e.remote.mu.Lock()
	delete(e.remote.valid, "good")
	e.remote.mu.Unlock()

	if err := s.Flush(context.Background()); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("Flush error = %v", err)
	}
	if s.State() != Guest {
		t.Errorf("state = %s, want guest", s.State())
	}
	if st := s.SyncStatus(); st.State != models.SyncFailed {
		t.Errorf("sync state = %s", st.State)
	}
}

func TestPruneOnStart(t *testing.T) {
	e := newEnv()
	e.local.doc.Data.DailyData = map[string]models.DayEntry{
		"2023-01-01": {Reflection: "old"},
		"2026-03-01": {Reflection: "recent"},
	}
	s := e.start(t)

	if got := s.PrunedOnStart(); got != 1 {
		t.Errorf("PrunedOnStart() = %d, want 1", got)
	}
	if _, err := s.Entry("2026-03-01"); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	days := e.local.data().Data.DailyData
	if _, ok := days["2023-01-01"]; ok {
		t.Error("entry older than the retention horizon survived")
	}
	if _, ok := days["2026-03-01"]; !ok {
		t.Error("recent entry was pruned")
	}
}

func TestValidateAndRepair(t *testing.T) {
	e := newEnv()
	e.local.doc.Data.Habits = []models.Habit{
		{ID: "a", Name: "A", Category: models.CategoryHealth},
		{ID: "a", Name: "A again", Category: models.CategoryHealth},
		{ID: "b", Name: "B", Category: "Hobby"},
	}
	s := e.start(t)

	res, err := s.Validate()
	if err != nil || !res.HasConflicts() {
		t.Fatalf("Validate = %+v, %v", res, err)
	}
	actions, err := s.Repair()
	if err != nil || len(actions) == 0 {
		t.Fatalf("Repair = %v, %v", actions, err)
	}
	res, _ = s.Validate()
	if res.HasConflicts() {
		t.Errorf("conflicts remain: %s", res.FormatReport())
	}
}

func TestCloseFlushes(t *testing.T) {
	e := newEnv()
	s := New(Config{Local: e.local, Remote: e.remote, Credentials: e.creds, Now: e.clock.Now, SaveDelay: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	addHabit(t, s, "Journal")

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(e.local.data().Data.Habits) != 1 || !e.local.closed {
		t.Error("Close did not flush and close the store")
	}
	if _, err := s.AddHabit(models.Habit{Name: "x", Category: models.CategoryHealth}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("AddHabit after Close = %v", err)
	}
}

func TestInsightsAndRates(t *testing.T) {
	s := newEnv().start(t)
	a := addHabit(t, s, "A")
	addHabit(t, s, "B")
	if _, _, err := s.Toggle(a.ID, "2026-03-10"); err != nil {
		t.Fatal(err)
	}

	ins, err := s.Insights()
	if err != nil {
		t.Fatal(err)
	}
	if ins.ActiveHabits != 2 || ins.CompletedToday != 1 || ins.CurrentStreak != 1 {
		t.Errorf("insights = %+v", ins)
	}

	rates, err := s.DayRates("2026-03-09", "2026-03-10")
	if err != nil || len(rates) != 2 {
		t.Fatalf("DayRates = %+v, %v", rates, err)
	}
	statuses, err := s.Statuses(false)
	if err != nil || len(statuses) != 2 {
		t.Fatalf("Statuses = %+v, %v", statuses, err)
	}
}
