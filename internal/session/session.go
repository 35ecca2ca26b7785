// Package session owns the in-memory habit state for one process and decides
// where it is persisted: the local guest store or the sync server.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/daystreak/internal/autosave"
	"github.com/julianstephens/daystreak/internal/completionlog"
	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/habits"
	"github.com/julianstephens/daystreak/internal/keyring"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/reconcile"
	"github.com/julianstephens/daystreak/internal/storage"
	"github.com/julianstephens/daystreak/internal/streak"
	"github.com/julianstephens/daystreak/internal/utils"
	"github.com/julianstephens/daystreak/internal/validation"
)

type State int

const (
	Uninitialized State = iota
	Guest
	Authenticated
	// Offline holds a stored credential whose account data could not be
	// loaded. The working set is empty and refuses edits until Reconnect.
	Offline
)

func (s State) String() string {
	switch s {
	case Guest:
		return "guest"
	case Authenticated:
		return "authenticated"
	case Offline:
		return "offline"
	default:
		return "uninitialized"
	}
}

var (
	ErrNotStarted       = errors.New("session not started")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrOffline          = fmt.Errorf("%w: account data could not be loaded, run 'daystreak sync' once the server is reachable", apperrors.ErrTransient)
)

// Remote is the sync server
type Remote interface {
	Load(ctx context.Context, token string) (models.Snapshot, error)
	Save(ctx context.Context, token string, snap models.Snapshot) error
}

// Credentials stores the access token and account label
type Credentials interface {
	Token() (string, error)
	SetToken(token string) error
	Account() (string, error)
	SetAccount(label string) error
	Clear() error
}

// Backuper snapshots the local store before a migration
type Backuper interface {
	CreateBackup() (string, error)
}

type Config struct {
	Local       storage.Provider
	Remote      Remote
	Credentials Credentials
	// Backup is optional; the JSON store has no file backups
	Backup    Backuper
	Now       func() time.Time
	SaveDelay time.Duration
}

// MigrationResult describes a guest to account migration
type MigrationResult struct {
	Migrated bool
	Habits   int
	Days     int
	Backup   string
}

type Session struct {
	local  storage.Provider
	remote Remote
	creds  Credentials
	backup Backuper
	now    func() time.Time
	delay  time.Duration

	mu       sync.Mutex
	state    State
	token    string
	account  string
	guest    models.LocalData
	registry *habits.Registry
	log      *completionlog.Log
	current  int
	pruned   int
	saver    *autosave.Saver

	offlineErr error
}

func New(cfg Config) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	delay := cfg.SaveDelay
	if delay <= 0 {
		delay = constants.SaveDebounce
	}
	return &Session{
		local:  cfg.Local,
		remote: cfg.Remote,
		creds:  cfg.Credentials,
		backup: cfg.Backup,
		now:    now,
		delay:  delay,
		state:  Uninitialized,
	}
}

func (s *Session) today() string {
	return utils.DayKey(s.now())
}

// Start loads the local guest copy and, when a stored credential is accepted
// by the server, switches to the account's data. A credential rejected with
// 401 is cleared and the session continues as guest. When the server cannot
// be reached the session starts Offline so logout and reads still work.
func (s *Session) Start(ctx context.Context) error {
	if err := s.local.Load(); err != nil {
		return err
	}
	guest, err := s.loadGuest()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.guest = guest
	s.saver = autosave.New(s.persist, s.delay)
	s.mu.Unlock()

	token, err := s.storedToken()
	if err != nil {
		return err
	}
	if token == "" {
		s.enterGuest()
	} else {
		snap, err := s.remote.Load(ctx, token)
		account, _ := s.creds.Account()
		switch {
		case errors.Is(err, apperrors.ErrUnauthorized):
			logger.Warn("Stored credential was rejected, continuing as guest")
			if cerr := s.creds.Clear(); cerr != nil {
				logger.Warn("Failed to clear rejected credential", "error", cerr)
			}
			s.enterGuest()
		case err != nil:
			logger.Warn("Failed to load account data, starting offline", "error", err)
			s.enterOffline(token, account, err)
		default:
			s.enterAuthenticated(token, account, snap)
		}
	}

	n, err := s.Prune()
	if err != nil {
		logger.Warn("Retention cleanup failed", "error", err)
	}
	s.mu.Lock()
	s.pruned = n
	s.mu.Unlock()
	return nil
}

func (s *Session) loadGuest() (models.LocalData, error) {
	doc, err := s.local.LoadData()
	if err != nil {
		return models.LocalData{}, fmt.Errorf("failed to load local data: %w", err)
	}
	if doc.GuestID == "" {
		meta := storage.NewLocalMeta(s.now())
		meta.BestStreak = doc.BestStreak
		meta.LastSyncAt = doc.LastSyncAt
		meta.MigratedAt = doc.MigratedAt
		doc.LocalMeta = meta
	}
	doc.Data.Normalize()
	if n := validation.ScrubDangling(&doc.Data); n > 0 {
		logger.Warn("Removed completions of unknown habits", "count", n)
	}
	return doc, nil
}

func (s *Session) storedToken() (string, error) {
	if s.creds == nil {
		return "", nil
	}
	token, err := s.creds.Token()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		if errors.Is(err, keyring.ErrKeyringUnavailable) {
			logger.Warn("Keyring unavailable, continuing as guest", "error", err)
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// enterGuest makes the local guest copy the working set
func (s *Session) enterGuest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Guest
	s.token = ""
	s.account = ""
	s.offlineErr = nil
	s.setWorking(s.guest.Data)
}

func (s *Session) enterAuthenticated(token, account string, snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Authenticated
	s.token = token
	s.account = account
	s.offlineErr = nil
	s.setWorking(snap)
}

func (s *Session) enterOffline(token, account string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Offline
	s.token = token
	s.account = account
	s.offlineErr = cause
	s.setWorking(models.NewSnapshot())
}

// Reconnect retries the account load of an Offline session. It is a no-op in
// any other state.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	state, token, account := s.state, s.token, s.account
	s.mu.Unlock()
	if state != Offline {
		return nil
	}

	snap, err := s.remote.Load(ctx, token)
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		s.demote(token)
		return err
	case err != nil:
		s.mu.Lock()
		s.offlineErr = err
		s.mu.Unlock()
		return fmt.Errorf("account data still unavailable: %w", err)
	}
	s.enterAuthenticated(token, account, snap)
	logger.Info("Reconnected to the sync server")
	return nil
}

// setWorking replaces the in-memory state. Caller holds mu.
func (s *Session) setWorking(snap models.Snapshot) {
	snap = snap.Clone()
	snap.Normalize()
	validation.ScrubDangling(&snap)
	s.registry = habits.New(snap.Habits)
	s.log = completionlog.New(snap.DailyData)
	s.recompute()
}

// recompute refreshes the overall streak and the best streak ledger. Caller holds mu.
func (s *Session) recompute() {
	s.current = streak.OverallStreak(s.registry.All(), s.log, s.today())
	s.guest.BestStreak = streak.BestStreak(s.current, s.guest.BestStreak)
}

// snapshot builds the wire document from the working set. Caller holds mu.
func (s *Session) snapshot() models.Snapshot {
	return models.Snapshot{
		Habits:        s.registry.All(),
		DailyData:     s.log.Snapshot(),
		CurrentStreak: s.current,
	}
}

// persist writes the working set to wherever the session currently lives.
// It runs on the autosave goroutine.
func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	state, token := s.state, s.token
	snap := s.snapshot()
	if state == Guest {
		s.guest.Data = snap
	}
	guest := s.guest
	guest.Data = guest.Data.Clone()
	s.mu.Unlock()

	switch state {
	case Guest:
		if err := s.local.SaveData(guest); err != nil {
			return fmt.Errorf("failed to save local data: %w", err)
		}
	case Authenticated:
		err := s.remote.Save(ctx, token, snap)
		if errors.Is(err, apperrors.ErrUnauthorized) {
			s.demote(token)
			return err
		}
		if err != nil {
			return err
		}
		s.touchSync()
	case Offline:
		// nothing was loaded, so there is nothing to write back
		return nil
	default:
		return ErrNotStarted
	}

	s.mu.Lock()
	if s.log != nil {
		s.log.MarkClean()
	}
	s.mu.Unlock()
	return nil
}

// touchSync records a successful remote write in the local bookkeeping
func (s *Session) touchSync() {
	s.mu.Lock()
	now := s.now().UTC()
	s.guest.LastSyncAt = &now
	guest := s.guest
	guest.Data = guest.Data.Clone()
	s.mu.Unlock()

	if err := s.local.SaveData(guest); err != nil {
		logger.Warn("Failed to record sync time", "error", err)
	}
}

// demote drops back to the guest copy after the server rejected token.
// Changes made against the account since the last acknowledged save are lost.
func (s *Session) demote(token string) {
	s.mu.Lock()
	if (s.state != Authenticated && s.state != Offline) || s.token != token {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	logger.Warn("Server rejected the credential, switching to guest mode")
	if s.creds != nil {
		if err := s.creds.Clear(); err != nil {
			logger.Warn("Failed to clear rejected credential", "error", err)
		}
	}
	s.enterGuest()
}

// Login verifies token against the server and switches to the account. When
// unmigrated guest data exists it is merged into the account; a failed
// migration is returned alongside a successful login and can be retried.
func (s *Session) Login(ctx context.Context, token, account string) (MigrationResult, error) {
	if err := s.requireStarted(); err != nil {
		return MigrationResult{}, err
	}
	if token == "" {
		return MigrationResult{}, fmt.Errorf("%w: token is required", apperrors.ErrValidation)
	}

	snap, err := s.remote.Load(ctx, token)
	if err != nil {
		return MigrationResult{}, err
	}

	if err := s.saver.Flush(ctx); err != nil {
		logger.Warn("Failed to flush guest changes before login", "error", err)
	}
	if err := s.creds.SetToken(token); err != nil {
		return MigrationResult{}, err
	}
	if account != "" {
		if err := s.creds.SetAccount(account); err != nil {
			logger.Warn("Failed to store account label", "error", err)
		}
	}
	s.enterAuthenticated(token, account, snap)
	logger.Info("Signed in", "account", account)

	result, err := s.Migrate(ctx)
	if err != nil {
		return result, fmt.Errorf("signed in, but migrating guest data failed: %w", err)
	}
	return result, nil
}

// Migrate merges the guest copy into the account. The local file is backed
// up first and migrated_at is recorded only after the server acknowledged the
// merged document. Empty guest data, or data already migrated, is a no-op.
func (s *Session) Migrate(ctx context.Context) (MigrationResult, error) {
	s.mu.Lock()
	if s.state == Offline {
		s.mu.Unlock()
		return MigrationResult{}, ErrOffline
	}
	if s.state != Authenticated {
		s.mu.Unlock()
		return MigrationResult{}, ErrNotAuthenticated
	}
	token := s.token
	local := s.guest.Data.Clone()
	migrated := s.guest.MigratedAt != nil
	s.mu.Unlock()

	if migrated || !reconcile.ShouldMigrate(local) {
		return MigrationResult{}, nil
	}

	var result MigrationResult
	if s.backup != nil {
		path, err := s.backup.CreateBackup()
		if err != nil {
			return result, fmt.Errorf("failed to back up local data: %w", err)
		}
		result.Backup = path
	}

	// pending account edits must reach the server before it is re-read
	if err := s.saver.Flush(ctx); err != nil {
		return result, err
	}
	remote, err := s.remote.Load(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			s.demote(token)
		}
		return result, err
	}

	merged := reconcile.Merge(local, remote, s.today())
	if err := s.remote.Save(ctx, token, merged); err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			s.demote(token)
		}
		return result, err
	}

	s.mu.Lock()
	now := s.now().UTC()
	s.guest.MigratedAt = &now
	s.guest.LastSyncAt = &now
	guest := s.guest
	guest.Data = guest.Data.Clone()
	s.setWorking(merged)
	s.mu.Unlock()

	if err := s.local.SaveData(guest); err != nil {
		// the server has the data; a retry would merge the same guest copy again
		logger.Warn("Failed to record migration locally", "error", err)
	}

	result.Migrated = true
	result.Habits = len(merged.Habits)
	result.Days = len(merged.DailyData)
	logger.Info("Migrated guest data", "habits", result.Habits, "days", result.Days)
	return result, nil
}

// Logout flushes pending account changes, deletes the credential and
// continues on the local guest copy. It never contacts the server when the
// session is Offline.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.requireStarted(); err != nil {
		return err
	}

	s.mu.Lock()
	authenticated := s.state == Authenticated
	s.mu.Unlock()

	if authenticated {
		if err := s.saver.Flush(ctx); err != nil {
			logger.Warn("Failed to save account changes before logout", "error", err)
		}
	}
	if err := s.creds.Clear(); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	guest, err := s.loadGuest()
	if err != nil {
		return err
	}
	s.mu.Lock()
	best := s.guest.BestStreak
	s.guest = guest
	s.guest.BestStreak = streak.BestStreak(best, guest.BestStreak)
	s.mu.Unlock()

	s.enterGuest()
	logger.Info("Signed out")
	return nil
}

func (s *Session) requireStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Uninitialized {
		return ErrNotStarted
	}
	return nil
}

// Flush writes outstanding changes now
func (s *Session) Flush(ctx context.Context) error {
	if err := s.requireStarted(); err != nil {
		return err
	}
	return s.saver.Flush(ctx)
}

// Close flushes outstanding changes and releases the local store
func (s *Session) Close(ctx context.Context) error {
	var flushErr error
	s.mu.Lock()
	saver := s.saver
	s.mu.Unlock()

	if saver != nil {
		flushErr = saver.Flush(ctx)
		saver.Stop()
	}

	s.mu.Lock()
	s.state = Uninitialized
	s.mu.Unlock()
	if err := s.local.Close(); err != nil {
		return errors.Join(flushErr, err)
	}
	return flushErr
}
