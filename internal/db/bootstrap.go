package db

import (
	"strconv"
	"strings"
	"time"
)

// RequiredSchemaVersion is the lowest schema this binary can serve.
const RequiredSchemaVersion = 1

type migration struct {
	version int
	path    string
}

func migrationCatalogForBackend(backend string) ([]migration, error) {
	switch backend {
	case "mariadb":
		return []migration{{1, "extras/migrations/mariadb/V001__baseline.sql"}}, nil
	case "sqlite":
		return []migration{{1, "baseline schema (applied in-process)"}}, nil
	}
	return nil, &Error{Backend: backend, Message: "unknown database backend for migration lookup"}
}

// SchemaValidation reports the state of the schema_version gate after a
// successful validation.
type SchemaValidation struct {
	CurrentVersion    int
	RequiredVersion   int
	PendingMigrations []string
}

func (v SchemaValidation) PendingList() string {
	if len(v.PendingMigrations) == 0 {
		return "none"
	}
	return strings.Join(v.PendingMigrations, ", ")
}

func tableExists(conn Conn, tableName string) (bool, error) {
	var query string
	switch conn.BackendName() {
	case "mariadb":
		query = "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = @table_name"
	default:
		query = "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = @table_name"
	}

	stmt, err := conn.Prepare(query)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	idx, err := stmt.BindParameterIndex("@table_name")
	if err != nil {
		return false, err
	}
	if err := stmt.BindText(idx, tableName); err != nil {
		return false, err
	}

	result, err := stmt.Step()
	if err != nil {
		return false, err
	}
	return result == StepRow, nil
}

func readSchemaVersion(conn Conn) (int, error) {
	stmt, err := conn.Prepare("SELECT version FROM schema_version LIMIT 1")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	result, err := stmt.Step()
	if err != nil {
		return 0, err
	}
	if result != StepRow {
		return 0, &Error{Backend: conn.BackendName(),
			Message: "schema_version exists but has no rows. Apply baseline migration V001 before starting stationgate"}
	}

	return int(stmt.ColumnInt(0)), nil
}

// ValidateSchema enforces the schema_version gate. The service refuses to
// start below the required version or above the newest version this binary
// knows about; unknown pending migrations past the current version are
// reported, not fatal.
func ValidateSchema(conn Conn) (SchemaValidation, error) {
	migrations, err := migrationCatalogForBackend(conn.BackendName())
	if err != nil {
		return SchemaValidation{}, err
	}
	latestKnownVersion := migrations[len(migrations)-1].version

	exists, err := tableExists(conn, "schema_version")
	if err != nil {
		return SchemaValidation{}, err
	}
	if !exists {
		return SchemaValidation{}, &Error{Backend: conn.BackendName(),
			Message: "schema_version table is missing. Apply baseline migration " + migrations[0].path + " and retry"}
	}

	currentVersion, err := readSchemaVersion(conn)
	if err != nil {
		return SchemaValidation{}, err
	}

	if currentVersion > latestKnownVersion {
		return SchemaValidation{}, &Error{Backend: conn.BackendName(),
			Message: "database schema version " + strconv.Itoa(currentVersion) +
				" is newer than this binary supports (latest known migration: " +
				strconv.Itoa(latestKnownVersion) + "). Deploy a newer stationgate binary"}
	}

	validation := SchemaValidation{
		CurrentVersion:  currentVersion,
		RequiredVersion: RequiredSchemaVersion,
	}
	for _, m := range migrations {
		if m.version > currentVersion {
			validation.PendingMigrations = append(validation.PendingMigrations, m.path)
		}
	}

	if currentVersion < RequiredSchemaVersion {
		return SchemaValidation{}, &Error{Backend: conn.BackendName(),
			Message: "database schema version " + strconv.Itoa(currentVersion) + " is below required " +
				strconv.Itoa(RequiredSchemaVersion) + ". Apply migrations: " + validation.PendingList()}
	}

	return validation, nil
}

// sqliteBaseline is the schema applied to a fresh sqlite database. Mariadb
// deployments apply the equivalent DDL through the versioned migration files
// instead.
var sqliteBaseline = []string{
	`CREATE TABLE IF NOT EXISTS avatar (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		attributes INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_avatar_name_address ON avatar (name, address)`,
	`CREATE TABLE IF NOT EXISTS room (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		creator_id INTEGER NOT NULL,
		creator_name TEXT NOT NULL,
		creator_address TEXT NOT NULL,
		room_name TEXT NOT NULL,
		room_topic TEXT NOT NULL DEFAULT '',
		room_password TEXT NOT NULL DEFAULT '',
		room_prefix TEXT NOT NULL,
		room_address TEXT NOT NULL,
		room_attributes INTEGER NOT NULL DEFAULT 0,
		room_max_size INTEGER NOT NULL DEFAULT 0,
		room_message_id INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		node_level INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_room_address ON room (room_address)`,
	`CREATE TABLE IF NOT EXISTS room_administrator (
		administrator_avatar_id INTEGER NOT NULL,
		room_id INTEGER NOT NULL,
		PRIMARY KEY (administrator_avatar_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS room_moderator (
		moderator_avatar_id INTEGER NOT NULL,
		room_id INTEGER NOT NULL,
		PRIMARY KEY (moderator_avatar_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS room_ban (
		banned_avatar_id INTEGER NOT NULL,
		room_id INTEGER NOT NULL,
		PRIMARY KEY (banned_avatar_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS room_invite (
		invited_avatar_id INTEGER NOT NULL,
		room_id INTEGER NOT NULL,
		PRIMARY KEY (invited_avatar_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS persistent_message (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		avatar_id INTEGER NOT NULL,
		from_name TEXT NOT NULL,
		from_address TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		sent_time INTEGER NOT NULL,
		status INTEGER NOT NULL,
		folder TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		oob BLOB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_persistent_message_avatar ON persistent_message (avatar_id)`,
	`CREATE TABLE IF NOT EXISTS friend (
		avatar_id INTEGER NOT NULL,
		friend_avatar_id INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (avatar_id, friend_avatar_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ignore (
		avatar_id INTEGER NOT NULL,
		ignore_avatar_id INTEGER NOT NULL,
		PRIMARY KEY (avatar_id, ignore_avatar_id)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL
	)`,
}

// EnsureSqliteSchema applies the baseline to a fresh sqlite database and
// stamps schema_version. Re-running against an initialized database is a
// no-op.
func EnsureSqliteSchema(conn Conn) error {
	for _, ddl := range sqliteBaseline {
		stmt, err := conn.Prepare(ddl)
		if err != nil {
			return err
		}
		if err := ExpectDone(stmt, "apply baseline schema"); err != nil {
			stmt.Close()
			return err
		}
		if err := stmt.Close(); err != nil {
			return err
		}
	}

	version, err := currentVersionOrZero(conn)
	if err != nil {
		return err
	}
	if version > 0 {
		return nil
	}

	stmt, err := conn.Prepare("INSERT INTO schema_version (version, applied_at) VALUES (@version, @applied_at)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := NewBinder(stmt)
	binder.Int("@version", RequiredSchemaVersion)
	binder.Text("@applied_at", time.Now().UTC().Format(time.RFC3339))
	if err := binder.Err(); err != nil {
		return err
	}

	return ExpectDone(stmt, "stamp schema version")
}

func currentVersionOrZero(conn Conn) (int, error) {
	stmt, err := conn.Prepare("SELECT version FROM schema_version LIMIT 1")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	result, err := stmt.Step()
	if err != nil {
		return 0, err
	}
	if result != StepRow {
		return 0, nil
	}
	return int(stmt.ColumnInt(0)), nil
}
