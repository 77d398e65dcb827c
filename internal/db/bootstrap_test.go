package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mariadbFake(script map[string]*fakeStmt) *fakeConn {
	return &fakeConn{
		backend: "mariadb",
		caps: Capabilities{
			Upsert:    UpsertInsertIgnore,
			Blob:      BlobHexLiteral,
			Isolation: IsolationReadCommitted,
		},
		script: script,
	}
}

func TestValidateSchemaMissingTable(t *testing.T) {
	conn := mariadbFake(map[string]*fakeStmt{
		"information_schema": newFakeStmt("SELECT 1"),
	})

	_, err := ValidateSchema(conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_version table is missing")
	assert.Contains(t, err.Error(), "V001__baseline.sql")
}

func TestValidateSchemaEmptyVersionTable(t *testing.T) {
	conn := mariadbFake(map[string]*fakeStmt{
		"information_schema":  newFakeStmt("SELECT 1", []any{int64(1)}),
		"FROM schema_version": newFakeStmt("SELECT version"),
	})

	_, err := ValidateSchema(conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_version exists but has no rows")
}

func TestValidateSchemaNewerThanBinary(t *testing.T) {
	conn := mariadbFake(map[string]*fakeStmt{
		"information_schema":  newFakeStmt("SELECT 1", []any{int64(1)}),
		"FROM schema_version": newFakeStmt("SELECT version", []any{int64(9)}),
	})

	_, err := ValidateSchema(conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than this binary supports")
}

func TestValidateSchemaAtRequiredVersion(t *testing.T) {
	conn := mariadbFake(map[string]*fakeStmt{
		"information_schema":  newFakeStmt("SELECT 1", []any{int64(1)}),
		"FROM schema_version": newFakeStmt("SELECT version", []any{int64(1)}),
	})

	validation, err := ValidateSchema(conn)
	require.NoError(t, err)
	assert.Equal(t, 1, validation.CurrentVersion)
	assert.Equal(t, RequiredSchemaVersion, validation.RequiredVersion)
	assert.Equal(t, "none", validation.PendingList())
}

func TestValidateSchemaUnknownBackend(t *testing.T) {
	conn := &fakeConn{backend: "oracle"}

	_, err := ValidateSchema(conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database backend")
}

func TestMariadbLiteralRendering(t *testing.T) {
	assert.Equal(t, `'it\'s'`, quoteMariadbString("it's"))
	assert.Equal(t, `'a\\b'`, quoteMariadbString(`a\b`))
	assert.Equal(t, `'line\nbreak'`, quoteMariadbString("line\nbreak"))
	assert.Equal(t, "''", quoteMariadbString(""))

	assert.Equal(t, "X'00FF10'", blobToHexLiteral([]byte{0x00, 0xff, 0x10}))
	assert.Equal(t, "''", blobToHexLiteral(nil))
}

func TestMariadbStmtRender(t *testing.T) {
	stmt := &mariadbStmt{
		norm: NormalizeNamedParameters(
			"UPDATE room SET room_topic = @topic WHERE room_topic <> @topic AND id = @id"),
	}
	stmt.literal = make([]string, len(stmt.norm.PositionsByLogicalIndex))
	stmt.bound = make([]bool, len(stmt.norm.PositionsByLogicalIndex))

	idx, err := stmt.BindParameterIndex("@topic")
	require.NoError(t, err)
	require.NoError(t, stmt.BindText(idx, "general"))
	idx, err = stmt.BindParameterIndex("@id")
	require.NoError(t, err)
	require.NoError(t, stmt.BindInt(idx, 42))

	rendered, err := stmt.render()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE room SET room_topic = 'general' WHERE room_topic <> 'general' AND id = 42", rendered)
}

func TestMariadbStmtRenderRejectsUnbound(t *testing.T) {
	stmt := &mariadbStmt{
		norm: NormalizeNamedParameters("DELETE FROM friend WHERE avatar_id = @avatar_id"),
	}
	stmt.literal = make([]string, 1)
	stmt.bound = make([]bool, 1)

	_, err := stmt.render()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound parameter")
}

func TestIsQuery(t *testing.T) {
	assert.True(t, isQuery("SELECT 1"))
	assert.True(t, isQuery("  select id from avatar"))
	assert.False(t, isQuery("INSERT INTO avatar VALUES (1)"))
	assert.False(t, isQuery("DELETE FROM friend"))
	assert.False(t, isQuery(""))
}
