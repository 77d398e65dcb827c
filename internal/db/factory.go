package db

import (
	"log"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Settings selects and parameterizes a backend. Path applies to sqlite; the
// remaining fields apply to mariadb.
type Settings struct {
	Engine   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	Schema   string
}

// Connect opens the configured backend and runs the schema gate. The
// connection is only returned once the schema passed validation.
func Connect(settings Settings) (Conn, SchemaValidation, error) {
	var conn Conn

	switch settings.Engine {
	case "mariadb":
		var missing []string
		if settings.User == "" {
			missing = append(missing, "database_user")
		}
		if settings.Schema == "" {
			missing = append(missing, "database_schema")
		}
		if len(missing) > 0 {
			return nil, SchemaValidation{}, &Error{Backend: "database",
				Message: "database_engine=mariadb requires " + strings.Join(missing, ", ") +
					"; set these in stationgate.cfg. To use legacy SQLite mode, set database_engine=sqlite and configure database_path"}
		}

		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = settings.Host + ":" + strconv.Itoa(settings.Port)
		cfg.User = settings.User
		cfg.Passwd = settings.Password
		cfg.DBName = settings.Schema
		cfg.ParseTime = false

		mariadb, err := OpenMariadb(cfg.FormatDSN())
		if err != nil {
			return nil, SchemaValidation{}, err
		}
		conn = mariadb

	case "sqlite":
		sqlite, err := OpenSqlite(settings.Path)
		if err != nil {
			return nil, SchemaValidation{}, err
		}
		if err := EnsureSqliteSchema(sqlite); err != nil {
			sqlite.Close()
			return nil, SchemaValidation{}, err
		}
		conn = sqlite

	default:
		return nil, SchemaValidation{}, &Error{Backend: "database",
			Message: "unsupported database_engine '" + settings.Engine + "'; expected sqlite or mariadb"}
	}

	validation, err := ValidateSchema(conn)
	if err != nil {
		conn.Close()
		return nil, SchemaValidation{}, err
	}

	logSchemaStatus(conn, validation)
	return conn, validation, nil
}

func logSchemaStatus(conn Conn, validation SchemaValidation) {
	log.Printf("Database backend selected: %s", conn.BackendName())
	log.Printf("Database capabilities: %s", conn.Capabilities())
	log.Printf("Database schema version: %d (required %d)", validation.CurrentVersion, validation.RequiredVersion)
	log.Printf("Required migrations before next version: %s", validation.PendingList())
}
