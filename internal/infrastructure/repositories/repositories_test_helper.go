package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createUserTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		is_email_verified BOOLEAN NOT NULL DEFAULT 0,
		verified_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
}

func createAPIKeyTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE api_keys (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		key_prefix TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		key_preview TEXT NOT NULL,
		permissions TEXT NOT NULL,
		rate_limit INTEGER NOT NULL DEFAULT 0,
		lifetime_cap INTEGER NOT NULL DEFAULT 0,
		total_requests INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_used_at DATETIME,
		expires_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
}

func createSecurityEventTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE security_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		ip_address TEXT NOT NULL,
		user_agent TEXT,
		endpoint TEXT,
		severity TEXT NOT NULL,
		details TEXT,
		user_id TEXT,
		api_key_id TEXT,
		created_at DATETIME
	);`)
}

func createUsageRecordTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE usage_records (
		id TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		response_time_ms INTEGER NOT NULL,
		request_size INTEGER NOT NULL DEFAULT 0,
		response_size INTEGER NOT NULL DEFAULT 0,
		ip_address TEXT NOT NULL,
		user_agent TEXT,
		api_key_id TEXT,
		user_id TEXT,
		created_at DATETIME
	);`)
}
