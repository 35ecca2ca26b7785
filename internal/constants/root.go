package constants

import "time"

const (
	AppName           = "daystreak"
	DefaultConfigPath = "~/.config/daystreak/daystreak.db"
	DefaultServerURL  = "http://localhost:8080"
	Version           = "v0.1.0"

	// DateFormat is the key format of every completion log entry (YYYY-MM-DD, UTC)
	DateFormat = "2006-01-02"

	// Keyring entries
	KeyringAccessTokenUser = "access-token"
	KeyringAccountUser     = "account-label"
	KeyringDatabaseUser    = "database-connection"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "daystreak-"
	BackupFileSuffix = ".db"

	// Lockfile guarding the local store against a second writer
	SessionLockfileName = "daystreak.lock"

	// Sync constants
	SaveDebounce         = 1 * time.Second
	SyncMaxRetries       = 3
	SyncRetryBaseDelay   = 1 * time.Second
	SyncRequestTimeout   = 15 * time.Second
	ServerMaxBodyBytes   = 1 << 20
	ServerRequestTimeout = 30 * time.Second

	// Guest identifier prefix (guest_<unix ms>_<7 random chars>)
	GuestIDPrefix = "guest_"

	// Server key layout, mirrors the hosted key-value store
	KVUserPrefix          = "user:"
	KVHabitsSuffix        = ":habits"
	KVDailyDataSuffix     = ":dailyData"
	KVCurrentStreakSuffix = ":currentStreak"

	// DefaultRetentionCron runs the retention cleanup every night at 03:15
	DefaultRetentionCron = "0 15 3 * * *"
)
