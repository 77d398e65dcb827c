package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationgate/internal/db"
)

func TestCreateRoomRegistersTransientRoom(t *testing.T) {
	conn, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")

	room, err := rooms.CreateRoom(creator, "cantina", "no blasters", "", 0, 50, "swg", "swg")
	require.NoError(t, err)

	assert.Equal(t, "swg+cantina", room.Address())
	assert.Equal(t, uint32(2), room.NodeLevel())
	assert.True(t, rooms.RoomExists("swg+cantina"))
	assert.Empty(t, conn.executed)
}

func TestCreateRoomRejectsDuplicateAddress(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")

	_, err := rooms.CreateRoom(creator, "cantina", "", "", 0, 0, "swg", "swg")
	require.NoError(t, err)

	room, err := rooms.CreateRoom(creator, "cantina", "", "", 0, 0, "swg", "swg")
	assert.Nil(t, room)
	assert.True(t, IsResult(err, ResultRoomAlreadyExists))
	assert.Len(t, rooms.rooms, 1)
}

func TestCreateRoomPersistFailureKeepsRoomRegistered(t *testing.T) {
	conn, avatars, rooms := newRoomFixture(t)
	conn.failOn = "INSERT INTO room "
	creator := seedAvatar(avatars, 1, "kael")

	room, err := rooms.CreateRoom(creator, "cantina", "", "", RoomPersistent, 0, "swg", "swg")

	require.NotNil(t, room)
	assert.True(t, IsResult(err, ResultDBFail))
	assert.True(t, rooms.RoomExists("swg+cantina"))
}

func TestCreateRoomPersistsAndAssignsStorageID(t *testing.T) {
	conn, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")

	room, err := rooms.CreateRoom(creator, "cantina", "no blasters", "pw", RoomPersistent, 25, "swg", "swg")
	require.NoError(t, err)

	assert.Equal(t, uint32(1), room.DBID())

	stmt := conn.stmtMatching("INSERT INTO room ")
	require.NotNil(t, stmt)
	assert.Equal(t, "swg+cantina", stmt.texts["@room_address"])
	assert.Equal(t, int64(RoomPersistent), stmt.ints["@room_attributes"])
	assert.Equal(t, int64(25), stmt.ints["@room_max_size"])
}

func TestDestroyRoomRemovesEveryMatchingEntry(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")

	kept := seedRoom(rooms, 100, creator, 0)
	doomed := seedRoom(rooms, 200, creator, 0)
	seedRoom(rooms, 200, creator, 0)

	require.NoError(t, rooms.DestroyRoom(doomed))

	require.Len(t, rooms.rooms, 1)
	assert.Equal(t, kept, rooms.rooms[0])
}

func TestDestroyPersistentRoomDeletesStorageRow(t *testing.T) {
	conn, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")

	room := seedRoom(rooms, 100, creator, RoomPersistent)
	room.dbID = 77

	require.NoError(t, rooms.DestroyRoom(room))

	stmt := conn.stmtMatching("DELETE FROM room WHERE id")
	require.NotNil(t, stmt)
	assert.Equal(t, int64(77), stmt.ints["@id"])
}

func TestLoadRoomsSkipsDuplicateAddresses(t *testing.T) {
	conn, _, rooms := newRoomFixture(t)
	conn.rowsFor = func(stmt *recordedStmt) [][]any {
		if !strings.Contains(stmt.sql, "FROM room WHERE room_address LIKE") {
			return nil
		}
		assert.Equal(t, "swg%", stmt.texts["@pattern"])
		return [][]any{
			{int64(11), int64(1), "kael", "swg", "cantina", "", "", "swg", "swg+cantina", int64(RoomPersistent), int64(0), int64(0), int64(0), int64(2)},
			{int64(12), int64(1), "kael", "swg", "cantina", "", "", "swg", "swg+cantina", int64(RoomPersistent), int64(0), int64(0), int64(0), int64(2)},
		}
	}

	require.NoError(t, rooms.LoadRoomsFromStorage("swg"))

	require.Len(t, rooms.rooms, 1)
	// The first loaded entry wins.
	assert.Equal(t, uint32(11), rooms.rooms[0].DBID())
}

func TestRoleUpsertFollowsBackendCapabilities(t *testing.T) {
	conn, _, rooms := newRoomFixture(t)

	require.NoError(t, rooms.PersistBanned(2, 100))
	assert.NotNil(t, conn.stmtMatching("INSERT OR IGNORE INTO room_ban"))

	mariadb := newFakeChatConn()
	mariadb.backend = "mariadb"
	mariadb.caps = db.Capabilities{
		Upsert:    db.UpsertInsertIgnore,
		Blob:      db.BlobHexLiteral,
		Isolation: db.IsolationReadCommitted,
	}
	rooms = NewRoomService(NewAvatarService(mariadb), mariadb)

	require.NoError(t, rooms.PersistBanned(2, 100))
	assert.NotNil(t, mariadb.stmtMatching("INSERT IGNORE INTO room_ban"))
}

func TestRoomSummariesExcludePrivateRooms(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")

	public := seedRoom(rooms, 100, creator, 0)
	private := seedRoom(rooms, 200, creator, RoomPrivate)
	private.address = "swg+officers"

	summaries := rooms.GetRoomSummaries("swg")
	require.Len(t, summaries, 1)
	assert.Equal(t, public, summaries[0])
}

func TestScrubAvatarClearsEveryRoomList(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	doomed := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, 0)
	room.occupants = []*Avatar{doomed}
	room.administrators = []*Avatar{doomed}
	room.moderators = []*Avatar{doomed}
	room.banned = []*Avatar{doomed}
	room.invited = []*Avatar{doomed}

	rooms.ScrubAvatar(doomed.ID())

	assert.Empty(t, room.occupants)
	assert.Empty(t, room.administrators)
	assert.Empty(t, room.moderators)
	assert.Empty(t, room.banned)
	assert.Empty(t, room.invited)
}

func TestLoadRoleResolvesAvatarsThroughDirectory(t *testing.T) {
	conn, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	moderator := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, RoomPersistent)

	conn.rowsFor = func(stmt *recordedStmt) [][]any {
		if strings.Contains(stmt.sql, "FROM room_moderator") {
			assert.Equal(t, int64(100), stmt.ints["@room_id"])
			return [][]any{{int64(2)}, {int64(99)}}
		}
		return nil
	}

	require.NoError(t, rooms.LoadModerators(room))

	// The dangling id 99 is skipped.
	require.Len(t, room.moderators, 1)
	assert.Equal(t, moderator, room.moderators[0])
}
