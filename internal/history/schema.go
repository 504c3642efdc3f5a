package history

import "time"

// Schema creates the installs table. One row is written per install attempt.
const Schema = `
CREATE TABLE IF NOT EXISTS installs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_id TEXT NOT NULL,
    app_name TEXT NOT NULL,
    url TEXT NOT NULL,
    file_path TEXT,
    mount_path TEXT,
    bytes INTEGER NOT NULL DEFAULT 0,
    digest TEXT,
    status TEXT NOT NULL CHECK(status IN ('installed', 'mounted', 'failed')),
    error_message TEXT,
    installed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_installs_app_id ON installs(app_id);
CREATE INDEX IF NOT EXISTS idx_installs_installed_at ON installs(installed_at);
`

// Status constants
const (
	StatusInstalled = "installed"
	StatusMounted   = "mounted"
	StatusFailed    = "failed"
)

// Entry is one install attempt.
type Entry struct {
	ID           int64
	AppID        string
	AppName      string
	URL          string
	FilePath     string
	MountPath    string
	Bytes        int64
	Digest       string
	Status       string
	ErrorMessage string
	InstalledAt  time.Time
}
