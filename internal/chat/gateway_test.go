package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stationgate/internal/policy"
)

type publishedEvent struct {
	eventType string
	data      map[string]interface{}
}

type recordingPublisher struct {
	events []publishedEvent
}

func (p *recordingPublisher) Publish(eventType string, data interface{}) {
	payload, _ := data.(map[string]interface{})
	p.events = append(p.events, publishedEvent{eventType: eventType, data: payload})
}

func (p *recordingPublisher) eventTypes() []string {
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.eventType)
	}
	return types
}

type gatewayFixture struct {
	conn      *fakeChatConn
	avatars   *AvatarService
	rooms     *RoomService
	publisher *recordingPublisher
	gateway   *Gateway
}

func newGatewayFixture(t *testing.T, engine *policy.Engine) *gatewayFixture {
	t.Helper()

	conn := newFakeChatConn()
	avatars := NewAvatarService(conn)
	rooms := NewRoomService(avatars, conn)
	messages := NewPersistentMessageService(conn)
	publisher := &recordingPublisher{}

	return &gatewayFixture{
		conn:      conn,
		avatars:   avatars,
		rooms:     rooms,
		publisher: publisher,
		gateway:   NewGateway(avatars, rooms, messages, engine, publisher),
	}
}

// blockingPolicy blocks a ban outright: base score 25 with a block threshold
// of 20.
func blockingPolicy(shadow bool) *policy.Engine {
	return policy.NewEngine(policy.Config{
		Enabled:           true,
		ShadowMode:        shadow,
		SoftWarnThreshold: 5,
		ThrottleThreshold: 10,
		BlockThreshold:    20,
	})
}

func TestLoginCreatesMissingAvatarAndPublishes(t *testing.T) {
	fx := newGatewayFixture(t, nil)

	view, err := fx.gateway.Login("kael", "swg", 7, 0, "")
	require.NoError(t, err)

	assert.True(t, view.Online)
	assert.Equal(t, "kael", view.Name)
	assert.NotNil(t, fx.conn.stmtMatching("INSERT INTO avatar"))
	assert.Contains(t, fx.publisher.eventTypes(), "avatar.login")
	assert.Equal(t, 1, fx.gateway.Stats().OnlineAvatars)
}

func TestLogoutUnknownAvatarFails(t *testing.T) {
	fx := newGatewayFixture(t, nil)

	err := fx.gateway.Logout("nobody", "swg")
	assert.True(t, IsResult(err, ResultAvatarNotFound))
	assert.Empty(t, fx.publisher.events)
}

func TestCreateAvatarRejectsDuplicate(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	seedAvatar(fx.avatars, 1, "kael")

	_, err := fx.gateway.CreateAvatar("kael", "swg", 7, 0, "")
	assert.True(t, IsResult(err, ResultAvatarAlreadyExists))
}

func TestDestroyAvatarScrubsRooms(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	creator := seedAvatar(fx.avatars, 1, "kael")
	doomed := seedAvatar(fx.avatars, 2, "vexa")

	room := seedRoom(fx.rooms, 100, creator, 0)
	room.occupants = []*Avatar{doomed}
	room.invited = []*Avatar{doomed}

	require.NoError(t, fx.gateway.DestroyAvatar("vexa", "swg"))

	assert.Empty(t, room.occupants)
	assert.Empty(t, room.invited)
}

func TestContactOpRequiresBothAvatars(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	seedAvatar(fx.avatars, 1, "kael")

	err := fx.gateway.AddFriend("kael", "swg", "nobody", "swg", "")
	assert.True(t, IsResult(err, ResultAvatarNotFound))
}

func TestPolicyBlockStopsBan(t *testing.T) {
	fx := newGatewayFixture(t, blockingPolicy(false))
	creator := seedAvatar(fx.avatars, 1, "kael")
	target := seedAvatar(fx.avatars, 2, "vexa")

	room := seedRoom(fx.rooms, 100, creator, 0)
	room.occupants = []*Avatar{target}

	err := fx.gateway.BanAvatar("swg+lobby", "kael", "swg", "vexa", "swg")

	require.Error(t, err)
	assert.True(t, IsResult(err, ResultNoPermission))
	assert.Contains(t, err.Error(), "blocked by policy")
	assert.False(t, room.IsBanned(target.ID()))
	assert.Contains(t, fx.publisher.eventTypes(), "policy.decision")
}

func TestShadowModeObservesWithoutBlocking(t *testing.T) {
	fx := newGatewayFixture(t, blockingPolicy(true))
	creator := seedAvatar(fx.avatars, 1, "kael")
	target := seedAvatar(fx.avatars, 2, "vexa")

	room := seedRoom(fx.rooms, 100, creator, 0)

	require.NoError(t, fx.gateway.BanAvatar("swg+lobby", "kael", "swg", "vexa", "swg"))

	assert.True(t, room.IsBanned(target.ID()))
	assert.Contains(t, fx.publisher.eventTypes(), "policy.decision")
}

func TestEnterRoomUnknownAddressFails(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	seedAvatar(fx.avatars, 1, "kael")

	err := fx.gateway.EnterRoom("kael", "swg", "swg+nowhere", "")
	assert.True(t, IsResult(err, ResultRoomNotFound))
}

func TestCreateRoomPublishesEvenWhenPersistFails(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	fx.conn.failOn = "INSERT INTO room "
	seedAvatar(fx.avatars, 1, "kael")

	view, err := fx.gateway.CreateRoom("kael", "swg", "cantina", "", "", RoomPersistent, 0, "swg", "swg")

	assert.True(t, IsResult(err, ResultDBFail))
	assert.Equal(t, "swg+cantina", view.Address)
	assert.Contains(t, fx.publisher.eventTypes(), "room.created")

	_, err = fx.gateway.GetRoom("swg+cantina")
	assert.NoError(t, err)
}

func TestDestroyRoomPublishes(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	creator := seedAvatar(fx.avatars, 1, "kael")
	seedRoom(fx.rooms, 100, creator, 0)

	require.NoError(t, fx.gateway.DestroyRoom("swg+lobby"))

	assert.Contains(t, fx.publisher.eventTypes(), "room.destroyed")
	assert.Equal(t, 0, fx.gateway.Stats().Rooms)
}

func TestSendMessageToUnknownAvatarFails(t *testing.T) {
	fx := newGatewayFixture(t, nil)

	_, err := fx.gateway.SendPersistentMessage("nobody", "swg", "kael", "swg",
		"hello", "anyone home", nil, "inbox", "chatter")

	assert.True(t, IsResult(err, ResultAvatarNotFound))
	assert.Nil(t, fx.conn.stmtMatching("INSERT INTO persistent_message"))
}

func TestSendMessageStoresNewMail(t *testing.T) {
	fx := newGatewayFixture(t, nil)
	seedAvatar(fx.avatars, 1, "kael")

	messageID, err := fx.gateway.SendPersistentMessage("kael", "swg", "vexa", "swg",
		"bounty", "meet at the cantina", []uint16{0x1234}, "inbox", "bounty")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), messageID)

	stmt := fx.conn.stmtMatching("INSERT INTO persistent_message")
	require.NotNil(t, stmt)
	assert.Equal(t, int64(StateNew), stmt.ints["@status"])
	assert.Equal(t, int64(1), stmt.ints["@avatar_id"])
}
