package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNamedParameters(t *testing.T) {
	norm := NormalizeNamedParameters(
		"SELECT id FROM avatar WHERE name = @name AND address = @address")

	assert.Equal(t, "SELECT id FROM avatar WHERE name = ? AND address = ?", norm.SQL)
	assert.Equal(t, map[string]int{"@name": 0, "@address": 1}, norm.LogicalIndexByName)
	assert.Equal(t, [][]int{{1}, {2}}, norm.PositionsByLogicalIndex)
	assert.Equal(t, []int{0, 1}, norm.LogicalIndexByPosition)
}

func TestNormalizeRepeatedNameSharesLogicalIndex(t *testing.T) {
	norm := NormalizeNamedParameters(
		"UPDATE room SET room_topic = @topic WHERE room_topic <> @topic AND id = @id")

	assert.Equal(t, "UPDATE room SET room_topic = ? WHERE room_topic <> ? AND id = ?", norm.SQL)
	require.Len(t, norm.PositionsByLogicalIndex, 2)
	assert.Equal(t, []int{1, 2}, norm.PositionsByLogicalIndex[0])
	assert.Equal(t, []int{3}, norm.PositionsByLogicalIndex[1])
	assert.Equal(t, []int{0, 0, 1}, norm.LogicalIndexByPosition)
}

func TestNormalizeLogicalIndexesAssignedFirstSeen(t *testing.T) {
	norm := NormalizeNamedParameters("@b @a @b @c @a")

	assert.Equal(t, "? ? ? ? ?", norm.SQL)
	assert.Equal(t, 0, norm.LogicalIndexByName["@b"])
	assert.Equal(t, 1, norm.LogicalIndexByName["@a"])
	assert.Equal(t, 2, norm.LogicalIndexByName["@c"])
	assert.Equal(t, []int{0, 1, 0, 2, 1}, norm.LogicalIndexByPosition)
}

func TestNormalizeWithoutParameters(t *testing.T) {
	norm := NormalizeNamedParameters("SELECT version FROM schema_version LIMIT 1")

	assert.Equal(t, "SELECT version FROM schema_version LIMIT 1", norm.SQL)
	assert.Empty(t, norm.LogicalIndexByName)
	assert.Empty(t, norm.PositionsByLogicalIndex)
	assert.Empty(t, norm.LogicalIndexByPosition)
}

func TestNormalizeNameTerminatesOnNonNameChar(t *testing.T) {
	norm := NormalizeNamedParameters("WHERE a = @left_id AND b IN (@x,@y)")

	assert.Equal(t, "WHERE a = ? AND b IN (?,?)", norm.SQL)
	assert.Equal(t, map[string]int{"@left_id": 0, "@x": 1, "@y": 2}, norm.LogicalIndexByName)
}

func TestNormalizeNameAtEndOfStatement(t *testing.T) {
	norm := NormalizeNamedParameters("DELETE FROM friend WHERE avatar_id = @avatar_id")

	assert.Equal(t, "DELETE FROM friend WHERE avatar_id = ?", norm.SQL)
	assert.Equal(t, [][]int{{1}}, norm.PositionsByLogicalIndex)
}
