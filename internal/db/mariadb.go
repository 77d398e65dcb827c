package db

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MariadbConn is the networked backend. Parameters are rendered into the SQL
// text as escaped literals rather than sent through the wire protocol, which
// keeps blob transport uniform with the hex-literal capability it reports.
type MariadbConn struct {
	sqldb        *sql.DB
	lastInsertID uint32
	capabilities Capabilities
}

func OpenMariadb(dsn string) (*MariadbConn, error) {
	sqldb, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, wrapMariadbError("open database failed", err)
	}
	sqldb.SetMaxOpenConns(1)

	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, wrapMariadbError("open database failed", err)
	}

	return &MariadbConn{
		sqldb: sqldb,
		capabilities: Capabilities{
			Upsert:    UpsertInsertIgnore,
			Blob:      BlobHexLiteral,
			Isolation: IsolationReadCommitted,
		},
	}, nil
}

// Prepare normalizes the parameter template; the rendered statement reaches
// the server at the first Step, which is where malformed SQL surfaces.
func (c *MariadbConn) Prepare(sqlText string) (Stmt, error) {
	norm := NormalizeNamedParameters(sqlText)
	return &mariadbStmt{
		conn:    c,
		norm:    norm,
		literal: make([]string, len(norm.PositionsByLogicalIndex)),
		bound:   make([]bool, len(norm.PositionsByLogicalIndex)),
	}, nil
}

func (c *MariadbConn) Begin() (Tx, error) {
	tx, err := c.sqldb.Begin()
	if err != nil {
		return nil, wrapMariadbError("begin transaction failed", err)
	}
	return &mariadbTx{tx: tx}, nil
}

func (c *MariadbConn) LastInsertID() uint32 { return c.lastInsertID }

func (c *MariadbConn) BackendName() string { return "mariadb" }

func (c *MariadbConn) Capabilities() Capabilities { return c.capabilities }

func (c *MariadbConn) Close() error { return c.sqldb.Close() }

type mariadbStmt struct {
	conn     *MariadbConn
	norm     NormalizedSql
	literal  []string
	bound    []bool
	executed bool
	cursor   cursor
}

func (s *mariadbStmt) BindParameterIndex(name string) (int, error) {
	idx, ok := s.norm.LogicalIndexByName[name]
	if !ok {
		return 0, &Error{Backend: "mariadb", Message: "missing parameter: " + name}
	}
	return idx, nil
}

func (s *mariadbStmt) setLiteral(index int, literal string) error {
	if index < 0 || index >= len(s.literal) {
		return &Error{Backend: "mariadb", Message: "invalid bind index"}
	}
	s.literal[index] = literal
	s.bound[index] = true
	return nil
}

func (s *mariadbStmt) BindInt(index int, value int64) error {
	return s.setLiteral(index, strconv.FormatInt(value, 10))
}

func (s *mariadbStmt) BindText(index int, value string) error {
	return s.setLiteral(index, quoteMariadbString(value))
}

func (s *mariadbStmt) BindBlob(index int, value []byte) error {
	return s.setLiteral(index, blobToHexLiteral(value))
}

// render splices the bound literals back into the normalized SQL. Placeholders
// appear in template order, so the n-th `?` resolves through
// LogicalIndexByPosition to the literal its name owns.
func (s *mariadbStmt) render() (string, error) {
	var out strings.Builder
	out.Grow(len(s.norm.SQL) + 16*len(s.literal))

	position := 0
	for i := 0; i < len(s.norm.SQL); i++ {
		if s.norm.SQL[i] != '?' {
			out.WriteByte(s.norm.SQL[i])
			continue
		}
		if position >= len(s.norm.LogicalIndexByPosition) {
			return "", &Error{Backend: "mariadb", Message: "placeholder count mismatch"}
		}
		logicalIndex := s.norm.LogicalIndexByPosition[position]
		if !s.bound[logicalIndex] {
			return "", &Error{Backend: "mariadb", Message: "unbound parameter at position " + strconv.Itoa(position + 1)}
		}
		out.WriteString(s.literal[logicalIndex])
		position++
	}

	return out.String(), nil
}

func (s *mariadbStmt) Step() (StepResult, error) {
	if !s.executed {
		s.executed = true
		s.cursor.wrapErr = wrapMariadbError

		rendered, err := s.render()
		if err != nil {
			return StepDone, err
		}

		if isQuery(rendered) {
			rows, err := s.conn.sqldb.Query(rendered)
			if err != nil {
				return StepDone, wrapMariadbError("step failed", err)
			}
			s.cursor.rows = rows
		} else {
			res, err := s.conn.sqldb.Exec(rendered)
			if err != nil {
				return StepDone, wrapMariadbError("step failed", err)
			}
			if id, err := res.LastInsertId(); err == nil && id > 0 {
				s.conn.lastInsertID = uint32(id)
			}
			return StepDone, nil
		}
	}

	return s.cursor.step()
}

func (s *mariadbStmt) ColumnInt(index int) int64   { return s.cursor.columnInt(index) }
func (s *mariadbStmt) ColumnText(index int) string { return s.cursor.columnText(index) }
func (s *mariadbStmt) ColumnBlob(index int) []byte { return s.cursor.columnBlob(index) }
func (s *mariadbStmt) ColumnBytes(index int) int   { return s.cursor.columnBytes(index) }

func (s *mariadbStmt) Close() error { return s.cursor.close() }

type mariadbTx struct {
	tx   *sql.Tx
	done bool
}

func (t *mariadbTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return wrapMariadbError("transaction commit failed", err)
	}
	return nil
}

func (t *mariadbTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return wrapMariadbError("transaction rollback failed", err)
	}
	return nil
}

// quoteMariadbString escapes per the mysql text protocol and wraps the result
// in single quotes.
func quoteMariadbString(value string) string {
	var out strings.Builder
	out.Grow(len(value) + 2)
	out.WriteByte('\'')
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case 0:
			out.WriteString(`\0`)
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case 0x1a:
			out.WriteString(`\Z`)
		case '\'':
			out.WriteString(`\'`)
		case '"':
			out.WriteString(`\"`)
		case '\\':
			out.WriteString(`\\`)
		default:
			out.WriteByte(c)
		}
	}
	out.WriteByte('\'')
	return out.String()
}

// blobToHexLiteral renders a blob as X'..'. An empty blob becomes '' since
// X'' is rejected by some server versions.
func blobToHexLiteral(value []byte) string {
	if len(value) == 0 {
		return "''"
	}
	return "X'" + strings.ToUpper(hex.EncodeToString(value)) + "'"
}

func wrapMariadbError(context string, err error) error {
	code := 0
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		code = int(mysqlErr.Number)
	}
	return &Error{Backend: "mariadb", Code: code, Message: context + ": " + err.Error()}
}
