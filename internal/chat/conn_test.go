package chat

import (
	"strings"

	"stationgate/internal/db"
)

// recordedStmt is a scripted db.Stmt that captures binds by parameter name so
// tests can assert exactly what a service wrote.
type recordedStmt struct {
	conn        *fakeChatConn
	sql         string
	norm        db.NormalizedSql
	nameByIndex map[int]string

	ints  map[string]int64
	texts map[string]string
	blobs map[string][]byte

	started bool
	rows    [][]any
	current []any
	closed  bool
}

func (s *recordedStmt) BindParameterIndex(name string) (int, error) {
	index, ok := s.norm.LogicalIndexByName[name]
	if !ok {
		return 0, &db.Error{Backend: "fake", Message: "missing parameter: " + name}
	}
	return index, nil
}

func (s *recordedStmt) BindInt(index int, value int64) error {
	s.ints[s.nameByIndex[index]] = value
	return nil
}

func (s *recordedStmt) BindText(index int, value string) error {
	s.texts[s.nameByIndex[index]] = value
	return nil
}

func (s *recordedStmt) BindBlob(index int, value []byte) error {
	s.blobs[s.nameByIndex[index]] = value
	return nil
}

func (s *recordedStmt) Step() (db.StepResult, error) {
	if s.conn.failOn != "" && strings.Contains(s.sql, s.conn.failOn) {
		return db.StepDone, &db.Error{Backend: "fake", Message: "scripted failure"}
	}

	if !s.started {
		s.started = true
		if s.conn.rowsFor != nil {
			s.rows = s.conn.rowsFor(s)
		}
		if strings.HasPrefix(s.sql, "INSERT") {
			s.conn.nextInsertID++
			s.conn.lastInsertID = s.conn.nextInsertID
		}
	}

	if len(s.rows) == 0 {
		return db.StepDone, nil
	}
	s.current = s.rows[0]
	s.rows = s.rows[1:]
	return db.StepRow, nil
}

func (s *recordedStmt) ColumnInt(index int) int64 {
	if index >= len(s.current) {
		return 0
	}
	v, _ := s.current[index].(int64)
	return v
}

func (s *recordedStmt) ColumnText(index int) string {
	if index >= len(s.current) {
		return ""
	}
	v, _ := s.current[index].(string)
	return v
}

func (s *recordedStmt) ColumnBlob(index int) []byte {
	if index >= len(s.current) {
		return nil
	}
	v, _ := s.current[index].([]byte)
	return v
}

func (s *recordedStmt) ColumnBytes(index int) int { return len(s.ColumnBlob(index)) }

func (s *recordedStmt) Close() error { s.closed = true; return nil }

type fakeChatTx struct{}

func (fakeChatTx) Commit() error   { return nil }
func (fakeChatTx) Rollback() error { return nil }

// fakeChatConn records every prepared statement. Queries resolve through the
// optional rowsFor hook, which sees the statement's SQL and binds; statements
// whose SQL contains failOn fail at Step.
type fakeChatConn struct {
	backend string
	caps    db.Capabilities

	executed []*recordedStmt
	rowsFor  func(stmt *recordedStmt) [][]any
	failOn   string

	lastInsertID uint32
	nextInsertID uint32
}

func newFakeChatConn() *fakeChatConn {
	return &fakeChatConn{
		backend: "sqlite",
		caps: db.Capabilities{
			Upsert:    db.UpsertInsertOrIgnore,
			Blob:      db.BlobNative,
			Isolation: db.IsolationSerializableOnly,
		},
	}
}

func (c *fakeChatConn) Prepare(sqlText string) (db.Stmt, error) {
	norm := db.NormalizeNamedParameters(sqlText)
	nameByIndex := make(map[int]string, len(norm.LogicalIndexByName))
	for name, index := range norm.LogicalIndexByName {
		nameByIndex[index] = name
	}

	stmt := &recordedStmt{
		conn:        c,
		sql:         sqlText,
		norm:        norm,
		nameByIndex: nameByIndex,
		ints:        make(map[string]int64),
		texts:       make(map[string]string),
		blobs:       make(map[string][]byte),
	}
	c.executed = append(c.executed, stmt)
	return stmt, nil
}

func (c *fakeChatConn) Begin() (db.Tx, error)         { return fakeChatTx{}, nil }
func (c *fakeChatConn) LastInsertID() uint32          { return c.lastInsertID }
func (c *fakeChatConn) BackendName() string           { return c.backend }
func (c *fakeChatConn) Capabilities() db.Capabilities { return c.caps }
func (c *fakeChatConn) Close() error                  { return nil }

func (c *fakeChatConn) stmtMatching(substr string) *recordedStmt {
	for _, stmt := range c.executed {
		if strings.Contains(stmt.sql, substr) {
			return stmt
		}
	}
	return nil
}

func (c *fakeChatConn) countMatching(substr string) int {
	n := 0
	for _, stmt := range c.executed {
		if strings.Contains(stmt.sql, substr) {
			n++
		}
	}
	return n
}

// seedAvatar plants a cached avatar without touching storage.
func seedAvatar(s *AvatarService, id uint32, name string) *Avatar {
	avatar := &Avatar{service: s, id: id, userID: id, name: name, address: "swg"}
	s.cache = append(s.cache, avatar)
	return avatar
}

// seedRoom registers a room directly, bypassing the create path.
func seedRoom(s *RoomService, roomID uint32, creator *Avatar, attributes uint32) *Room {
	room := &Room{
		service:        s,
		roomID:         roomID,
		creatorID:      creator.ID(),
		creatorName:    creator.Name(),
		creatorAddress: creator.Address(),
		name:           "lobby",
		address:        "swg+lobby",
		attributes:     attributes,
		nodeLevel:      2,
	}
	s.rooms = append(s.rooms, room)
	return room
}
