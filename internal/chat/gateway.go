package chat

import (
	"sync"
	"time"

	"stationgate/internal/policy"
)

// Publisher receives domain events for the ops stream.
type Publisher interface {
	Publish(eventType string, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

// FriendView is the ops-surface projection of a friend entry.
type FriendView struct {
	AvatarID uint32 `json:"avatar_id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Comment  string `json:"comment"`
}

// AvatarView is the ops-surface projection of a cached avatar.
type AvatarView struct {
	ID         uint32       `json:"id"`
	UserID     uint32       `json:"user_id"`
	Name       string       `json:"name"`
	Address    string       `json:"address"`
	Attributes uint32       `json:"attributes"`
	Online     bool         `json:"online"`
	Friends    []FriendView `json:"friends"`
	IgnoredIDs []uint32     `json:"ignored_ids"`
}

// RoomView is the ops-surface projection of a registered room.
type RoomView struct {
	RoomID           uint32   `json:"room_id"`
	DBID             uint32   `json:"db_id,omitempty"`
	Name             string   `json:"name"`
	Topic            string   `json:"topic"`
	Address          string   `json:"address"`
	CreatorID        uint32   `json:"creator_id"`
	CreatorName      string   `json:"creator_name"`
	Attributes       uint32   `json:"attributes"`
	MaxSize          uint32   `json:"max_size"`
	NodeLevel        uint32   `json:"node_level"`
	OccupantIDs      []uint32 `json:"occupant_ids"`
	AdministratorIDs []uint32 `json:"administrator_ids"`
	ModeratorIDs     []uint32 `json:"moderator_ids"`
	BannedIDs        []uint32 `json:"banned_ids"`
	InvitedIDs       []uint32 `json:"invited_ids"`
}

// Stats is a point-in-time view for the health endpoint.
type Stats struct {
	OnlineAvatars int `json:"online_avatars"`
	Rooms         int `json:"rooms"`
}

// Gateway is the single concurrent entry point over the domain services. The
// services mutate shared containers without internal locking, so every public
// operation runs under one coarse lock and returns value snapshots rather
// than live domain objects.
type Gateway struct {
	mu sync.Mutex

	avatars  *AvatarService
	rooms    *RoomService
	messages *PersistentMessageService
	policy   *policy.Engine

	publisher Publisher
	now       func() time.Time
}

func NewGateway(avatars *AvatarService, rooms *RoomService, messages *PersistentMessageService,
	engine *policy.Engine, publisher Publisher) *Gateway {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Gateway{
		avatars:   avatars,
		rooms:     rooms,
		messages:  messages,
		policy:    engine,
		publisher: publisher,
		now:       time.Now,
	}
}

// LoadRooms primes the room registry from storage.
func (g *Gateway) LoadRooms(baseAddress string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rooms.LoadRoomsFromStorage(baseAddress)
}

// --- Avatars ---

// Login resolves or creates the avatar and marks it online.
func (g *Gateway) Login(name, address string, userID, attributes uint32, loginLocation string) (AvatarView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.avatars.GetAvatar(name, address)
	if err != nil {
		return AvatarView{}, err
	}

	if err := g.enforce(policy.Event{
		Action:       policy.ActionLogin,
		ActorID:      avatarID(avatar),
		ActorAddress: address,
		Target:       name,
		ActorExists:  avatar != nil,
		TargetExists: true,
	}); err != nil {
		return AvatarView{}, err
	}

	if avatar == nil {
		avatar, err = g.avatars.CreateAvatar(name, address, userID, attributes, "")
		if err != nil {
			return AvatarView{}, err
		}
	}

	g.avatars.LoginAvatar(avatar)
	g.publisher.Publish("avatar.login", map[string]interface{}{
		"avatar_id": avatar.ID(),
		"name":      avatar.Name(),
		"address":   avatar.Address(),
	})

	return avatarView(avatar), nil
}

func (g *Gateway) Logout(name, address string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return err
	}

	g.avatars.LogoutAvatar(avatar)
	g.publisher.Publish("avatar.logout", map[string]interface{}{
		"avatar_id": avatar.ID(),
		"name":      avatar.Name(),
		"address":   avatar.Address(),
	})
	return nil
}

func (g *Gateway) CreateAvatar(name, address string, userID, attributes uint32, loginLocation string) (AvatarView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, err := g.avatars.GetAvatar(name, address)
	if err != nil {
		return AvatarView{}, err
	}
	if existing != nil {
		return AvatarView{}, NewResult(ResultAvatarAlreadyExists, "avatar already exists")
	}

	avatar, err := g.avatars.CreateAvatar(name, address, userID, attributes, loginLocation)
	if err != nil {
		return AvatarView{}, err
	}
	return avatarView(avatar), nil
}

// DestroyAvatar removes the avatar from storage, the directory, every cached
// contact list, and every registered room's lists.
func (g *Gateway) DestroyAvatar(name, address string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return err
	}

	id := avatar.ID()
	if err := g.avatars.DestroyAvatar(avatar); err != nil {
		return err
	}
	g.rooms.ScrubAvatar(id)
	return nil
}

func (g *Gateway) GetAvatar(name, address string) (AvatarView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return AvatarView{}, err
	}
	return avatarView(avatar), nil
}

func (g *Gateway) OnlineAvatars() []AvatarView {
	g.mu.Lock()
	defer g.mu.Unlock()

	online := g.avatars.OnlineAvatars()
	views := make([]AvatarView, 0, len(online))
	for _, avatar := range online {
		views = append(views, avatarView(avatar))
	}
	return views
}

// --- Friends and ignores ---

func (g *Gateway) AddFriend(ownerName, ownerAddress, friendName, friendAddress, comment string) error {
	return g.contactOp(ownerName, ownerAddress, friendName, friendAddress,
		func(owner, target *Avatar) error { return owner.AddFriend(target, comment) })
}

func (g *Gateway) RemoveFriend(ownerName, ownerAddress, friendName, friendAddress string) error {
	return g.contactOp(ownerName, ownerAddress, friendName, friendAddress,
		func(owner, target *Avatar) error { return owner.RemoveFriend(target) })
}

func (g *Gateway) UpdateFriendComment(ownerName, ownerAddress, friendName, friendAddress, comment string) error {
	return g.contactOp(ownerName, ownerAddress, friendName, friendAddress,
		func(owner, target *Avatar) error { return owner.UpdateFriendComment(target, comment) })
}

func (g *Gateway) AddIgnore(ownerName, ownerAddress, targetName, targetAddress string) error {
	return g.contactOp(ownerName, ownerAddress, targetName, targetAddress,
		func(owner, target *Avatar) error { return owner.AddIgnore(target) })
}

func (g *Gateway) RemoveIgnore(ownerName, ownerAddress, targetName, targetAddress string) error {
	return g.contactOp(ownerName, ownerAddress, targetName, targetAddress,
		func(owner, target *Avatar) error { return owner.RemoveIgnore(target) })
}

func (g *Gateway) contactOp(ownerName, ownerAddress, targetName, targetAddress string,
	op func(owner, target *Avatar) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	owner, err := g.requireAvatar(ownerName, ownerAddress)
	if err != nil {
		return err
	}
	target, err := g.requireAvatar(targetName, targetAddress)
	if err != nil {
		return err
	}
	return op(owner, target)
}

// --- Rooms ---

// CreateRoom registers a new room. A persistent room whose insert failed is
// still registered; the DBFAIL result is returned alongside the view.
func (g *Gateway) CreateRoom(creatorName, creatorAddress, roomName, roomTopic, roomPassword string,
	roomAttributes, maxRoomSize uint32, baseAddress, srcAddress string) (RoomView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	creator, err := g.requireAvatar(creatorName, creatorAddress)
	if err != nil {
		return RoomView{}, err
	}

	room, err := g.rooms.CreateRoom(creator, roomName, roomTopic, roomPassword,
		roomAttributes, maxRoomSize, baseAddress, srcAddress)
	if room == nil {
		return RoomView{}, err
	}

	g.publisher.Publish("room.created", map[string]interface{}{
		"room_id": room.RoomID(),
		"address": room.Address(),
		"creator": room.CreatorName(),
	})
	return roomView(room), err
}

func (g *Gateway) DestroyRoom(roomAddress string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.rooms.GetRoom(roomAddress)
	if room == nil {
		return NewResult(ResultRoomNotFound, "no room at address "+roomAddress)
	}

	if err := g.rooms.DestroyRoom(room); err != nil {
		return err
	}

	g.publisher.Publish("room.destroyed", map[string]interface{}{
		"room_id": room.RoomID(),
		"address": room.Address(),
	})
	return nil
}

func (g *Gateway) GetRoom(roomAddress string) (RoomView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.rooms.GetRoom(roomAddress)
	if room == nil {
		return RoomView{}, NewResult(ResultRoomNotFound, "no room at address "+roomAddress)
	}
	return roomView(room), nil
}

func (g *Gateway) RoomSummaries(startNode string) []RoomView {
	g.mu.Lock()
	defer g.mu.Unlock()

	rooms := g.rooms.GetRoomSummaries(startNode)
	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, roomView(room))
	}
	return views
}

func (g *Gateway) JoinedRooms(name, address string) ([]RoomView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return nil, err
	}

	rooms := g.rooms.GetJoinedRooms(avatar)
	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, roomView(room))
	}
	return views, nil
}

func (g *Gateway) EnterRoom(name, address, roomAddress, password string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return err
	}
	room := g.rooms.GetRoom(roomAddress)
	if room == nil {
		return NewResult(ResultRoomNotFound, "no room at address "+roomAddress)
	}

	if err := g.enforce(policy.Event{
		Action:       policy.ActionRoomJoin,
		ActorID:      avatar.ID(),
		ActorAddress: avatar.Address(),
		Target:       roomAddress,
		ActorExists:  true,
		TargetExists: true,
	}); err != nil {
		return err
	}

	return room.Enter(avatar, password)
}

func (g *Gateway) LeaveRoom(name, address, roomAddress string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return err
	}
	room := g.rooms.GetRoom(roomAddress)
	if room == nil {
		return NewResult(ResultRoomNotFound, "no room at address "+roomAddress)
	}

	room.Leave(avatar)
	return nil
}

// --- Room roles ---

func (g *Gateway) AddAdministrator(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			return room.AddAdministrator(actor, target)
		})
}

func (g *Gateway) RemoveAdministrator(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			return room.RemoveAdministrator(actor, target.ID())
		})
}

func (g *Gateway) AddModerator(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			return room.AddModerator(actor, target)
		})
}

func (g *Gateway) RemoveModerator(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			return room.RemoveModerator(actor, target.ID())
		})
}

func (g *Gateway) BanAvatar(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			if err := g.enforce(policy.Event{
				Action:       policy.ActionBan,
				ActorID:      actor,
				ActorAddress: actorAddress,
				Target:       targetName,
				ActorExists:  true,
				TargetExists: true,
			}); err != nil {
				return err
			}
			return room.AddBan(actor, target)
		})
}

func (g *Gateway) UnbanAvatar(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			return room.RemoveBan(actor, target.ID())
		})
}

func (g *Gateway) InviteAvatar(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			if err := g.enforce(policy.Event{
				Action:       policy.ActionInvite,
				ActorID:      actor,
				ActorAddress: actorAddress,
				Target:       targetName,
				ActorExists:  true,
				TargetExists: true,
			}); err != nil {
				return err
			}
			return room.AddInvite(actor, target)
		})
}

func (g *Gateway) UninviteAvatar(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			return room.RemoveInvite(actor, target.ID())
		})
}

func (g *Gateway) KickAvatar(roomAddress, actorName, actorAddress, targetName, targetAddress string) error {
	return g.roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress,
		func(room *Room, actor uint32, target *Avatar) error {
			return room.Kick(actor, target.ID())
		})
}

func (g *Gateway) roleOp(roomAddress, actorName, actorAddress, targetName, targetAddress string,
	op func(room *Room, actorID uint32, target *Avatar) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.rooms.GetRoom(roomAddress)
	if room == nil {
		return NewResult(ResultRoomNotFound, "no room at address "+roomAddress)
	}
	actor, err := g.requireAvatar(actorName, actorAddress)
	if err != nil {
		return err
	}
	target, err := g.requireAvatar(targetName, targetAddress)
	if err != nil {
		return err
	}
	return op(room, actor.ID(), target)
}

// --- Mailbox ---

func (g *Gateway) SendPersistentMessage(toName, toAddress, fromName, fromAddress,
	subject, body string, oob []uint16, folder, category string) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	recipient, err := g.avatars.GetAvatar(toName, toAddress)
	if err != nil {
		return 0, err
	}

	if err := g.enforce(policy.Event{
		Action:       policy.ActionMessageSend,
		ActorAddress: fromAddress,
		Target:       toName,
		ActorExists:  true,
		TargetExists: recipient != nil,
		PayloadSize:  len(body),
	}); err != nil {
		return 0, err
	}

	if recipient == nil {
		return 0, NewResult(ResultAvatarNotFound, "no avatar named "+toName+" at "+toAddress)
	}

	message := &PersistentMessage{
		Header: MessageHeader{
			AvatarID:    recipient.ID(),
			FromName:    fromName,
			FromAddress: fromAddress,
			Subject:     subject,
			SentTime:    uint32(g.now().Unix()),
			Status:      StateNew,
			Folder:      folder,
			Category:    category,
		},
		Message: body,
		OOB:     oob,
	}

	if err := g.messages.StoreMessage(message); err != nil {
		return 0, err
	}
	return message.Header.MessageID, nil
}

func (g *Gateway) MailHeaders(name, address string) ([]MessageHeader, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return nil, err
	}
	return g.messages.GetMessageHeaders(avatar.ID())
}

func (g *Gateway) FetchMail(name, address string, messageID uint32) (PersistentMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return PersistentMessage{}, err
	}

	message, err := g.messages.GetMessage(avatar.ID(), messageID)
	if err != nil {
		return PersistentMessage{}, err
	}
	return *message, nil
}

func (g *Gateway) SetMailStatus(name, address string, messageID uint32, status PersistentState) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return err
	}
	return g.messages.UpdateMessageStatus(avatar.ID(), messageID, status)
}

func (g *Gateway) BulkSetMailStatus(name, address, category string, status PersistentState) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	avatar, err := g.requireAvatar(name, address)
	if err != nil {
		return err
	}
	return g.messages.BulkUpdateMessageStatus(avatar.ID(), category, status)
}

// --- Health ---

func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Stats{
		OnlineAvatars: len(g.avatars.OnlineAvatars()),
		Rooms:         len(g.rooms.rooms),
	}
}

// --- Internals ---

func (g *Gateway) requireAvatar(name, address string) (*Avatar, error) {
	avatar, err := g.avatars.GetAvatar(name, address)
	if err != nil {
		return nil, err
	}
	if avatar == nil {
		return nil, NewResult(ResultAvatarNotFound, "no avatar named "+name+" at "+address)
	}
	return avatar, nil
}

// enforce runs the policy engine and publishes its decision. Only Block is
// enforced, and only outside shadow mode; throttling is left to the caller.
func (g *Gateway) enforce(event policy.Event) error {
	if g.policy == nil {
		return nil
	}

	decision := g.policy.Evaluate(event)
	cfg := g.policy.Config()

	if cfg.Enabled && decision.Type != policy.Allow {
		g.publisher.Publish("policy.decision", map[string]interface{}{
			"action":     event.Action.String(),
			"actor_id":   event.ActorID,
			"risk_score": decision.RiskScore,
			"decision":   decision.Type.String(),
			"reason":     decision.Reason,
		})
	}

	if cfg.Enabled && !cfg.ShadowMode && decision.Type == policy.Block {
		return NewResult(ResultNoPermission, "blocked by policy: "+decision.Reason)
	}
	return nil
}

func avatarID(avatar *Avatar) uint32 {
	if avatar == nil {
		return 0
	}
	return avatar.ID()
}

func avatarView(avatar *Avatar) AvatarView {
	view := AvatarView{
		ID:         avatar.ID(),
		UserID:     avatar.UserID(),
		Name:       avatar.Name(),
		Address:    avatar.Address(),
		Attributes: avatar.Attributes(),
		Online:     avatar.IsOnline(),
	}
	for _, contact := range avatar.Friends() {
		view.Friends = append(view.Friends, FriendView{
			AvatarID: contact.Friend.ID(),
			Name:     contact.Friend.Name(),
			Address:  contact.Friend.Address(),
			Comment:  contact.Comment,
		})
	}
	for _, ignored := range avatar.Ignored() {
		view.IgnoredIDs = append(view.IgnoredIDs, ignored.ID())
	}
	return view
}

func roomView(room *Room) RoomView {
	return RoomView{
		RoomID:           room.RoomID(),
		DBID:             room.DBID(),
		Name:             room.Name(),
		Topic:            room.Topic(),
		Address:          room.Address(),
		CreatorID:        room.CreatorID(),
		CreatorName:      room.CreatorName(),
		Attributes:       room.Attributes(),
		MaxSize:          room.MaxSize(),
		NodeLevel:        room.NodeLevel(),
		OccupantIDs:      idsOf(room.Occupants()),
		AdministratorIDs: idsOf(room.Administrators()),
		ModeratorIDs:     idsOf(room.Moderators()),
		BannedIDs:        idsOf(room.Banned()),
		InvitedIDs:       idsOf(room.Invited()),
	}
}

func idsOf(avatars []*Avatar) []uint32 {
	ids := make([]uint32, 0, len(avatars))
	for _, avatar := range avatars {
		ids = append(ids, avatar.ID())
	}
	return ids
}
