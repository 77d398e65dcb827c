package db

import (
	"database/sql"
	"errors"

	sqlite "modernc.org/sqlite"
)

// SqliteConn is the file-embedded backend. A single underlying connection is
// used so LastInsertID carries the same per-handle meaning it has in the
// sqlite C API.
type SqliteConn struct {
	sqldb        *sql.DB
	lastInsertID uint32
	capabilities Capabilities
}

func OpenSqlite(path string) (*SqliteConn, error) {
	sqldb, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, wrapSqliteError("open database failed", err)
	}
	sqldb.SetMaxOpenConns(1)

	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, wrapSqliteError("open database failed", err)
	}

	return &SqliteConn{
		sqldb: sqldb,
		capabilities: Capabilities{
			Upsert:    UpsertInsertOrIgnore,
			Blob:      BlobNative,
			Isolation: IsolationSerializableOnly,
		},
	}, nil
}

// Prepare normalizes the parameter template without touching the engine;
// database/sql compiles the statement lazily, so malformed SQL surfaces as a
// backend Error from the first Step, not from Prepare.
func (c *SqliteConn) Prepare(sqlText string) (Stmt, error) {
	norm := NormalizeNamedParameters(sqlText)
	return &sqliteStmt{
		conn: c,
		norm: norm,
		args: make([]any, len(norm.LogicalIndexByPosition)),
	}, nil
}

func (c *SqliteConn) Begin() (Tx, error) {
	tx, err := c.sqldb.Begin()
	if err != nil {
		return nil, wrapSqliteError("begin transaction failed", err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (c *SqliteConn) LastInsertID() uint32 { return c.lastInsertID }

func (c *SqliteConn) BackendName() string { return "sqlite" }

func (c *SqliteConn) Capabilities() Capabilities { return c.capabilities }

func (c *SqliteConn) Close() error { return c.sqldb.Close() }

type sqliteStmt struct {
	conn     *SqliteConn
	norm     NormalizedSql
	args     []any
	executed bool
	cursor   cursor
}

func (s *sqliteStmt) BindParameterIndex(name string) (int, error) {
	idx, ok := s.norm.LogicalIndexByName[name]
	if !ok {
		return 0, &Error{Backend: "sqlite", Message: "missing parameter: " + name}
	}
	return idx, nil
}

func (s *sqliteStmt) bind(index int, value any) error {
	if index < 0 || index >= len(s.norm.PositionsByLogicalIndex) {
		return &Error{Backend: "sqlite", Message: "invalid bind index"}
	}
	for _, position := range s.norm.PositionsByLogicalIndex[index] {
		s.args[position-1] = value
	}
	return nil
}

func (s *sqliteStmt) BindInt(index int, value int64) error { return s.bind(index, value) }

func (s *sqliteStmt) BindText(index int, value string) error { return s.bind(index, value) }

func (s *sqliteStmt) BindBlob(index int, value []byte) error { return s.bind(index, value) }

func (s *sqliteStmt) Step() (StepResult, error) {
	if !s.executed {
		s.executed = true
		s.cursor.wrapErr = wrapSqliteError

		if isQuery(s.norm.SQL) {
			rows, err := s.conn.sqldb.Query(s.norm.SQL, s.args...)
			if err != nil {
				return StepDone, wrapSqliteError("step failed", err)
			}
			s.cursor.rows = rows
		} else {
			res, err := s.conn.sqldb.Exec(s.norm.SQL, s.args...)
			if err != nil {
				return StepDone, wrapSqliteError("step failed", err)
			}
			if id, err := res.LastInsertId(); err == nil && id > 0 {
				s.conn.lastInsertID = uint32(id)
			}
			return StepDone, nil
		}
	}

	return s.cursor.step()
}

func (s *sqliteStmt) ColumnInt(index int) int64   { return s.cursor.columnInt(index) }
func (s *sqliteStmt) ColumnText(index int) string { return s.cursor.columnText(index) }
func (s *sqliteStmt) ColumnBlob(index int) []byte { return s.cursor.columnBlob(index) }
func (s *sqliteStmt) ColumnBytes(index int) int   { return s.cursor.columnBytes(index) }

func (s *sqliteStmt) Close() error { return s.cursor.close() }

type sqliteTx struct {
	tx   *sql.Tx
	done bool
}

func (t *sqliteTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return wrapSqliteError("transaction commit failed", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return wrapSqliteError("transaction rollback failed", err)
	}
	return nil
}

func wrapSqliteError(context string, err error) error {
	code := 0
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code = sqliteErr.Code()
	}
	return &Error{Backend: "sqlite", Code: code, Message: context + ": " + err.Error()}
}
