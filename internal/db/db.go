package db

import (
	"fmt"
)

// StepResult reports whether a statement produced a row or ran to completion.
type StepResult int

const (
	StepRow StepResult = iota
	StepDone
)

// Upsert strategies supported by the backends.
type Upsert int

const (
	UpsertInsertIgnore Upsert = iota
	UpsertInsertOrIgnore
	UpsertOnConflictDoNothing
)

// Blob describes how a backend transports blob values.
type Blob int

const (
	BlobNative Blob = iota
	BlobHexLiteral
)

// Isolation describes the transaction isolation a backend offers.
type Isolation int

const (
	IsolationSerializableOnly Isolation = iota
	IsolationReadCommitted
)

// Capabilities describes a backend without naming it. Callers outside this
// package must branch on capabilities, never on BackendName.
type Capabilities struct {
	Upsert    Upsert
	Blob      Blob
	Isolation Isolation
}

// UpsertInto renders the idempotent-insert head for the given table, e.g.
// "INSERT IGNORE INTO room_ban" or "INSERT OR IGNORE INTO room_ban".
func (c Capabilities) UpsertInto(table string) string {
	switch c.Upsert {
	case UpsertInsertOrIgnore:
		return "INSERT OR IGNORE INTO " + table
	case UpsertOnConflictDoNothing:
		// Caller appends the column/value clause; the conflict clause
		// trails the VALUES list on backends using this strategy.
		return "INSERT INTO " + table
	default:
		return "INSERT IGNORE INTO " + table
	}
}

func (c Capabilities) String() string {
	upsert := "INSERT IGNORE"
	switch c.Upsert {
	case UpsertInsertOrIgnore:
		upsert = "INSERT OR IGNORE"
	case UpsertOnConflictDoNothing:
		upsert = "ON CONFLICT DO NOTHING"
	}

	blob := "native"
	if c.Blob == BlobHexLiteral {
		blob = "hex-literal"
	}

	isolation := "serializable-only"
	if c.Isolation == IsolationReadCommitted {
		isolation = "read-committed"
	}

	return fmt.Sprintf("upsert=%s, blob=%s, tx_isolation=%s", upsert, blob, isolation)
}

// Error is a storage-layer failure: connection loss, malformed SQL,
// constraint violation. The domain layer propagates these without retrying.
type Error struct {
	Backend string
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("database error [%s:%d] %s", e.Backend, e.Code, e.Message)
}

// Stmt is a prepared statement with named parameters normalized to logical
// indexes. Binding a logical index applies the value to every native
// position that shares the parameter name.
type Stmt interface {
	BindParameterIndex(name string) (int, error)
	BindInt(index int, value int64) error
	BindText(index int, value string) error
	BindBlob(index int, value []byte) error

	Step() (StepResult, error)

	ColumnInt(index int) int64
	ColumnText(index int) string
	ColumnBlob(index int) []byte
	ColumnBytes(index int) int

	Close() error
}

// Tx is a transaction in progress. Commit is terminal; a Tx released through
// TxScope without a commit rolls back.
type Tx interface {
	Commit() error
	Rollback() error
}

// Conn is the narrow capability interface the domain layer depends on.
type Conn interface {
	Prepare(sql string) (Stmt, error)
	Begin() (Tx, error)
	LastInsertID() uint32
	BackendName() string
	Capabilities() Capabilities
	Close() error
}

// ExpectDone steps a statement that must not return rows. Any row is treated
// the same as a backend fault: these statements mutate exactly their target
// rows or the stored data is suspect.
func ExpectDone(stmt Stmt, context string) error {
	result, err := stmt.Step()
	if err != nil {
		return err
	}
	if result != StepDone {
		return &Error{Backend: "database", Message: context + " expected statement completion"}
	}
	return nil
}

// TxScope rolls the transaction back unless Commit was reached, so early
// returns on error paths cannot leave a transaction open.
type TxScope struct {
	tx        Tx
	committed bool
}

func NewTxScope(tx Tx) *TxScope {
	return &TxScope{tx: tx}
}

func (s *TxScope) Commit() error {
	if err := s.tx.Commit(); err != nil {
		return err
	}
	s.committed = true
	return nil
}

// Release rolls back if the scope was never committed. Safe to defer.
func (s *TxScope) Release() {
	if !s.committed {
		_ = s.tx.Rollback()
	}
}

// IgnoreTableForBackend returns the identifier for the ignore-list table.
// "ignore" is a reserved word on mariadb and must be backtick-quoted there.
func IgnoreTableForBackend(backend string) string {
	if backend == "mariadb" {
		return "`ignore`"
	}
	return "ignore"
}

// IgnoreTable resolves the ignore-list table identifier for a connection.
func IgnoreTable(conn Conn) string {
	return IgnoreTableForBackend(conn.BackendName())
}

// Binder accumulates the first bind error so call sites can bind a batch of
// named parameters and check once.
type Binder struct {
	stmt Stmt
	err  error
}

func NewBinder(stmt Stmt) *Binder {
	return &Binder{stmt: stmt}
}

func (b *Binder) index(name string) (int, bool) {
	if b.err != nil {
		return 0, false
	}
	idx, err := b.stmt.BindParameterIndex(name)
	if err != nil {
		b.err = err
		return 0, false
	}
	return idx, true
}

func (b *Binder) Int(name string, value int64) {
	if idx, ok := b.index(name); ok {
		b.err = b.stmt.BindInt(idx, value)
	}
}

func (b *Binder) Text(name string, value string) {
	if idx, ok := b.index(name); ok {
		b.err = b.stmt.BindText(idx, value)
	}
}

func (b *Binder) Blob(name string, value []byte) {
	if idx, ok := b.index(name); ok {
		b.err = b.stmt.BindBlob(idx, value)
	}
}

func (b *Binder) Err() error {
	return b.err
}
