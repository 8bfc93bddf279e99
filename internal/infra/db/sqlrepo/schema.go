package sqlrepo

var schema = map[Dialect][]string{
	MySQL: {
		`CREATE TABLE IF NOT EXISTS profiles (
  user_id VARCHAR(64) NOT NULL PRIMARY KEY,
  email VARCHAR(255) NOT NULL DEFAULT '',
  full_name VARCHAR(255) NOT NULL DEFAULT '',
  subscription_tier VARCHAR(16) NOT NULL DEFAULT 'free',
  subscription_status VARCHAR(32) NOT NULL DEFAULT '',
  subscription_end DATETIME(6) NULL,
  created_at DATETIME(6) NOT NULL,
  updated_at DATETIME(6) NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS scans (
  id VARCHAR(64) NOT NULL PRIMARY KEY,
  user_id VARCHAR(64) NOT NULL,
  scan_type VARCHAR(16) NOT NULL,
  scan_path VARCHAR(1024) NOT NULL DEFAULT '',
  status VARCHAR(16) NOT NULL,
  files_scanned INT NOT NULL DEFAULT 0,
  threats_found INT NOT NULL DEFAULT 0,
  started_at DATETIME(6) NOT NULL,
  completed_at DATETIME(6) NULL,
  report_url VARCHAR(1024) NOT NULL DEFAULT '',
  INDEX idx_scans_user_started (user_id, started_at)
)`,
		`CREATE TABLE IF NOT EXISTS threats (
  id VARCHAR(64) NOT NULL PRIMARY KEY,
  user_id VARCHAR(64) NOT NULL,
  scan_id VARCHAR(64) NOT NULL,
  file_path VARCHAR(1024) NOT NULL,
  threat_name VARCHAR(128) NOT NULL,
  threat_type VARCHAR(16) NOT NULL,
  severity VARCHAR(16) NOT NULL,
  status VARCHAR(16) NOT NULL,
  detected_at DATETIME(6) NOT NULL,
  resolved_at DATETIME(6) NULL,
  action_taken VARCHAR(255) NOT NULL DEFAULT '',
  INDEX idx_threats_user_detected (user_id, detected_at),
  INDEX idx_threats_scan (scan_id)
)`,
		`CREATE TABLE IF NOT EXISTS quarantine (
  id VARCHAR(64) NOT NULL PRIMARY KEY,
  threat_id VARCHAR(64) NOT NULL,
  user_id VARCHAR(64) NOT NULL,
  original_path VARCHAR(1024) NOT NULL,
  quarantine_path VARCHAR(1024) NOT NULL,
  file_size BIGINT NOT NULL DEFAULT 0,
  quarantined_at DATETIME(6) NOT NULL,
  restored_at DATETIME(6) NULL,
  UNIQUE KEY uq_quarantine_threat (threat_id),
  INDEX idx_quarantine_user (user_id, quarantined_at)
)`,
	},
	Postgres: {
		`CREATE TABLE IF NOT EXISTS profiles (
  user_id TEXT PRIMARY KEY,
  email TEXT NOT NULL DEFAULT '',
  full_name TEXT NOT NULL DEFAULT '',
  subscription_tier TEXT NOT NULL DEFAULT 'free',
  subscription_status TEXT NOT NULL DEFAULT '',
  subscription_end TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS scans (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  scan_type TEXT NOT NULL,
  scan_path TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  files_scanned INTEGER NOT NULL DEFAULT 0,
  threats_found INTEGER NOT NULL DEFAULT 0,
  started_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ NULL,
  report_url TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_user_started ON scans (user_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS threats (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  scan_id TEXT NOT NULL,
  file_path TEXT NOT NULL,
  threat_name TEXT NOT NULL,
  threat_type TEXT NOT NULL,
  severity TEXT NOT NULL,
  status TEXT NOT NULL,
  detected_at TIMESTAMPTZ NOT NULL,
  resolved_at TIMESTAMPTZ NULL,
  action_taken TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_threats_user_detected ON threats (user_id, detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_threats_scan ON threats (scan_id)`,
		`CREATE TABLE IF NOT EXISTS quarantine (
  id TEXT PRIMARY KEY,
  threat_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  original_path TEXT NOT NULL,
  quarantine_path TEXT NOT NULL,
  file_size BIGINT NOT NULL DEFAULT 0,
  quarantined_at TIMESTAMPTZ NOT NULL,
  restored_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_quarantine_user ON quarantine (user_id, quarantined_at)`,
	},
	SQLite: {
		`CREATE TABLE IF NOT EXISTS profiles (
  user_id TEXT PRIMARY KEY,
  email TEXT NOT NULL DEFAULT '',
  full_name TEXT NOT NULL DEFAULT '',
  subscription_tier TEXT NOT NULL DEFAULT 'free',
  subscription_status TEXT NOT NULL DEFAULT '',
  subscription_end DATETIME NULL,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS scans (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  scan_type TEXT NOT NULL,
  scan_path TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  files_scanned INTEGER NOT NULL DEFAULT 0,
  threats_found INTEGER NOT NULL DEFAULT 0,
  started_at DATETIME NOT NULL,
  completed_at DATETIME NULL,
  report_url TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_user_started ON scans (user_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS threats (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  scan_id TEXT NOT NULL,
  file_path TEXT NOT NULL,
  threat_name TEXT NOT NULL,
  threat_type TEXT NOT NULL,
  severity TEXT NOT NULL,
  status TEXT NOT NULL,
  detected_at DATETIME NOT NULL,
  resolved_at DATETIME NULL,
  action_taken TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_threats_user_detected ON threats (user_id, detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_threats_scan ON threats (scan_id)`,
		`CREATE TABLE IF NOT EXISTS quarantine (
  id TEXT PRIMARY KEY,
  threat_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  original_path TEXT NOT NULL,
  quarantine_path TEXT NOT NULL,
  file_size INTEGER NOT NULL DEFAULT 0,
  quarantined_at DATETIME NOT NULL,
  restored_at DATETIME NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_quarantine_user ON quarantine (user_id, quarantined_at)`,
	},
}
