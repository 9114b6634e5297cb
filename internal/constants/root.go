package constants

import "time"

const (
	AppName            = "progressquest"
	BinaryName         = "pquest"
	DefaultKeyringUser = "database-connection"
	DefaultConfigDir   = "~/.config/progressquest"
	DefaultStorePath   = "~/.config/progressquest/progressquest.db"
	DefaultServerURL   = "https://experience-points-backend.onrender.com"
	Version            = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Goal mechanics
	MaxHistoryEntries = 30
	LevelUpFactor     = 1.5
	ProgressBands     = 10

	// Sync engine
	SyncCooldown        = 10 * time.Second
	QueuedSyncDelay     = 1 * time.Second
	BackgroundSyncDelay = 1500 * time.Millisecond
	AutoSyncInterval    = 5 * time.Minute
	AutoSyncStartDelay  = 1 * time.Second
	ConnectivityPoll    = 30 * time.Second
	ConnectivityTimeout = 3 * time.Second

	// Outbound call timeouts
	LoginTimeout     = 15 * time.Second
	GoalsTimeout     = 15 * time.Second
	SyncTimeout      = 25 * time.Second
	RefreshTimeout   = 10 * time.Second
	LogoutTimeout    = 8 * time.Second
	TemplatesTimeout = 8 * time.Second

	// Credential vault
	CookieMaxAge          = 30 * 24 * time.Hour
	TokenRefreshThreshold = 30 * time.Minute
	SessionFileName       = "session.json"
	CookieFileName        = "cookies.txt"

	// Login failures: diagnostics from the 2nd, token reset at the 3rd
	LoginFailureDiagnosticAt = 2
	LoginFailureResetAt      = 3

	// Backup constants
	MaxBackups       = 3
	BackupDirName    = "backups"
	BackupFilePrefix = "progressquest-"
	BackupFileSuffix = ".db"

	// Watcher lock
	WatchLockfileName = "pquest-watch.lock"
)
