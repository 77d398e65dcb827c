package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoomFixture(t *testing.T) (*fakeChatConn, *AvatarService, *RoomService) {
	t.Helper()
	conn := newFakeChatConn()
	avatars := NewAvatarService(conn)
	return conn, avatars, NewRoomService(avatars, conn)
}

func TestEnterRejectsBannedFirst(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	banned := seedAvatar(avatars, 2, "vexa")

	// Full room with a password: the ban still wins.
	room := seedRoom(rooms, 100, creator, 0)
	room.password = "secret"
	room.maxSize = 1
	room.occupants = []*Avatar{creator}
	room.banned = []*Avatar{banned}

	err := room.Enter(banned, "secret")
	assert.True(t, IsResult(err, ResultBannedFromRoom))
}

func TestEnterRejectsFullRoom(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	joiner := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, 0)
	room.maxSize = 1
	room.occupants = []*Avatar{creator}

	err := room.Enter(joiner, "")
	assert.True(t, IsResult(err, ResultRoomFull))
}

func TestEnterRejectsWrongPassword(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	joiner := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, 0)
	room.password = "secret"

	err := room.Enter(joiner, "wrong")
	assert.True(t, IsResult(err, ResultInvalidPassword))

	require.NoError(t, room.Enter(joiner, "secret"))
	assert.True(t, room.IsInRoom(joiner.ID()))
}

func TestInvitedBypassesPassword(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	invited := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, 0)
	room.password = "secret"
	room.invited = []*Avatar{invited}

	require.NoError(t, room.Enter(invited, ""))
	assert.True(t, room.IsInRoom(invited.ID()))
}

func TestModeratorBypassesPassword(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	moderator := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, 0)
	room.password = "secret"
	room.moderators = []*Avatar{moderator}

	require.NoError(t, room.Enter(moderator, ""))
	assert.True(t, room.IsInRoom(moderator.ID()))
}

func TestAddBanKicksOccupant(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	target := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, 0)
	room.occupants = []*Avatar{target}

	require.NoError(t, room.AddBan(creator.ID(), target))

	assert.True(t, room.IsBanned(target.ID()))
	assert.False(t, room.IsInRoom(target.ID()))
}

func TestRoleManagementRequiresCreatorOrAdministrator(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	occupant := seedAvatar(avatars, 2, "vexa")
	target := seedAvatar(avatars, 3, "brill")

	room := seedRoom(rooms, 100, creator, 0)
	room.occupants = []*Avatar{occupant}

	err := room.AddModerator(occupant.ID(), target)
	assert.True(t, IsResult(err, ResultNoPermission))

	err = room.AddBan(occupant.ID(), target)
	assert.True(t, IsResult(err, ResultNoPermission))

	require.NoError(t, room.AddModerator(creator.ID(), target))
	assert.True(t, room.IsModerator(target.ID()))
}

func TestModeratorManagesInvitesButNotAdministrators(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	moderator := seedAvatar(avatars, 2, "vexa")
	target := seedAvatar(avatars, 3, "brill")

	room := seedRoom(rooms, 100, creator, 0)
	room.moderators = []*Avatar{moderator}

	require.NoError(t, room.AddInvite(moderator.ID(), target))
	assert.True(t, room.IsInvited(target.ID()))

	err := room.AddAdministrator(moderator.ID(), target)
	assert.True(t, IsResult(err, ResultNoPermission))
}

func TestKickRequiresModeratorPrivileges(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	occupant := seedAvatar(avatars, 2, "vexa")
	target := seedAvatar(avatars, 3, "brill")

	room := seedRoom(rooms, 100, creator, 0)
	room.occupants = []*Avatar{occupant, target}

	err := room.Kick(occupant.ID(), target.ID())
	assert.True(t, IsResult(err, ResultNoPermission))

	require.NoError(t, room.Kick(creator.ID(), target.ID()))
	assert.False(t, room.IsInRoom(target.ID()))
}

func TestRemoveBanDropsEveryOccurrence(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	doomed := seedAvatar(avatars, 2, "vexa")
	kept := seedAvatar(avatars, 3, "brill")

	room := seedRoom(rooms, 100, creator, 0)
	room.banned = []*Avatar{doomed, kept, doomed}

	require.NoError(t, room.RemoveBan(creator.ID(), doomed.ID()))

	require.Len(t, room.banned, 1)
	assert.Equal(t, kept, room.banned[0])
}

func TestPersistentRoleAddWritesIdempotentUpsert(t *testing.T) {
	conn, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	target := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, RoomPersistent)

	require.NoError(t, room.AddModerator(creator.ID(), target))

	stmt := conn.stmtMatching("INSERT OR IGNORE INTO room_moderator")
	require.NotNil(t, stmt)
	assert.Equal(t, int64(2), stmt.ints["@moderator_avatar_id"])
	assert.Equal(t, int64(100), stmt.ints["@room_id"])
}

func TestTransientRoleAddSkipsStorage(t *testing.T) {
	conn, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	target := seedAvatar(avatars, 2, "vexa")

	room := seedRoom(rooms, 100, creator, 0)

	require.NoError(t, room.AddModerator(creator.ID(), target))
	assert.Empty(t, conn.executed)
}

func TestFullAddressAndNodeLevel(t *testing.T) {
	assert.Equal(t, "swg+lobby", FullAddress("swg", "lobby"))
	assert.Equal(t, uint32(2), addressNodeLevel("swg+lobby"))
	assert.Equal(t, uint32(3), addressNodeLevel("swg+guild+officers"))
}

func TestNextMessageIDIsMonotonic(t *testing.T) {
	_, avatars, rooms := newRoomFixture(t)
	creator := seedAvatar(avatars, 1, "kael")
	room := seedRoom(rooms, 100, creator, 0)

	assert.Equal(t, uint32(1), room.NextMessageID())
	assert.Equal(t, uint32(2), room.NextMessageID())
	assert.Equal(t, uint32(3), room.NextMessageID())
}
