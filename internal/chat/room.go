package chat

import "strings"

// Room attribute bits.
const (
	RoomPrivate    uint32 = 1 << 0
	RoomModerated  uint32 = 1 << 1
	RoomPersistent uint32 = 1 << 2
)

// Room is a per-room state machine. Role and membership lists hold non-owning
// avatar references resolved through the directory; an avatar can hold
// several memberships at once (an administrator may also be present).
//
// Authorization matrix for mutating operations: the creator bypasses every
// check; administrators manage administrators, moderators and bans;
// moderators manage invites and kicks; plain occupants only join and leave.
type Room struct {
	service *RoomService

	roomID         uint32
	dbID           uint32
	creatorID      uint32
	creatorName    string
	creatorAddress string
	name           string
	topic          string
	password       string
	attributes     uint32
	maxSize        uint32
	prefix         string
	address        string
	messageID      uint32
	createTime     uint32
	nodeLevel      uint32

	occupants      []*Avatar
	administrators []*Avatar
	moderators     []*Avatar
	banned         []*Avatar
	invited        []*Avatar
}

func (r *Room) RoomID() uint32         { return r.roomID }
func (r *Room) DBID() uint32           { return r.dbID }
func (r *Room) CreatorID() uint32      { return r.creatorID }
func (r *Room) CreatorName() string    { return r.creatorName }
func (r *Room) CreatorAddress() string { return r.creatorAddress }
func (r *Room) Name() string           { return r.name }
func (r *Room) Topic() string          { return r.topic }
func (r *Room) Attributes() uint32     { return r.attributes }
func (r *Room) MaxSize() uint32        { return r.maxSize }
func (r *Room) Prefix() string         { return r.prefix }
func (r *Room) Address() string        { return r.address }
func (r *Room) CreateTime() uint32     { return r.createTime }
func (r *Room) NodeLevel() uint32      { return r.nodeLevel }

func (r *Room) Occupants() []*Avatar      { return r.occupants }
func (r *Room) Administrators() []*Avatar { return r.administrators }
func (r *Room) Moderators() []*Avatar     { return r.moderators }
func (r *Room) Banned() []*Avatar         { return r.banned }
func (r *Room) Invited() []*Avatar        { return r.invited }

func (r *Room) IsPersistent() bool { return r.attributes&RoomPersistent != 0 }
func (r *Room) IsPrivate() bool    { return r.attributes&RoomPrivate != 0 }
func (r *Room) IsModerated() bool  { return r.attributes&RoomModerated != 0 }

func (r *Room) IsInRoom(avatarID uint32) bool  { return containsID(r.occupants, avatarID) }
func (r *Room) IsBanned(avatarID uint32) bool  { return containsID(r.banned, avatarID) }
func (r *Room) IsInvited(avatarID uint32) bool { return containsID(r.invited, avatarID) }

func (r *Room) IsCreator(avatarID uint32) bool { return r.creatorID == avatarID }

func (r *Room) IsAdministrator(avatarID uint32) bool {
	return containsID(r.administrators, avatarID)
}

func (r *Room) IsModerator(avatarID uint32) bool {
	return containsID(r.moderators, avatarID)
}

// NextMessageID advances the per-room message sequence.
func (r *Room) NextMessageID() uint32 {
	r.messageID++
	return r.messageID
}

// Enter admits an avatar. Bans always win; a full room rejects; a password
// room rejects a wrong password unless the avatar is invited or privileged.
func (r *Room) Enter(avatar *Avatar, password string) error {
	if r.IsBanned(avatar.ID()) {
		return NewResult(ResultBannedFromRoom, "avatar is banned from this room")
	}

	if r.maxSize > 0 && uint32(len(r.occupants)) >= r.maxSize {
		return NewResult(ResultRoomFull, "room is at capacity")
	}

	if r.password != "" && r.password != password {
		if !r.IsInvited(avatar.ID()) && !r.isPrivileged(avatar.ID()) {
			return NewResult(ResultInvalidPassword, "room password does not match")
		}
	}

	r.occupants = append(r.occupants, avatar)
	return nil
}

func (r *Room) Leave(avatar *Avatar) {
	r.occupants = removeID(r.occupants, avatar.ID())
}

func (r *Room) AddAdministrator(srcAvatarID uint32, target *Avatar) error {
	if !r.canManageRoles(srcAvatarID) {
		return NewResult(ResultNoPermission, "administrator management requires the creator or an administrator")
	}

	if r.IsPersistent() {
		if err := r.service.PersistAdministrator(target.ID(), r.roomID); err != nil {
			return err
		}
	}

	r.administrators = append(r.administrators, target)
	return nil
}

func (r *Room) RemoveAdministrator(srcAvatarID, targetAvatarID uint32) error {
	if !r.canManageRoles(srcAvatarID) {
		return NewResult(ResultNoPermission, "administrator management requires the creator or an administrator")
	}

	if r.IsPersistent() {
		if err := r.service.DeleteAdministrator(targetAvatarID, r.roomID); err != nil {
			return err
		}
	}

	r.administrators = removeID(r.administrators, targetAvatarID)
	return nil
}

func (r *Room) AddModerator(srcAvatarID uint32, target *Avatar) error {
	if !r.canManageRoles(srcAvatarID) {
		return NewResult(ResultNoPermission, "moderator management requires the creator or an administrator")
	}

	if r.IsPersistent() {
		if err := r.service.PersistModerator(target.ID(), r.roomID); err != nil {
			return err
		}
	}

	r.moderators = append(r.moderators, target)
	return nil
}

func (r *Room) RemoveModerator(srcAvatarID, targetAvatarID uint32) error {
	if !r.canManageRoles(srcAvatarID) {
		return NewResult(ResultNoPermission, "moderator management requires the creator or an administrator")
	}

	if r.IsPersistent() {
		if err := r.service.DeleteModerator(targetAvatarID, r.roomID); err != nil {
			return err
		}
	}

	r.moderators = removeID(r.moderators, targetAvatarID)
	return nil
}

// AddBan records the ban and kicks the target from the room.
func (r *Room) AddBan(srcAvatarID uint32, target *Avatar) error {
	if !r.canManageRoles(srcAvatarID) {
		return NewResult(ResultNoPermission, "ban management requires the creator or an administrator")
	}

	if r.IsPersistent() {
		if err := r.service.PersistBanned(target.ID(), r.roomID); err != nil {
			return err
		}
	}

	r.banned = append(r.banned, target)
	r.occupants = removeID(r.occupants, target.ID())
	return nil
}

func (r *Room) RemoveBan(srcAvatarID, targetAvatarID uint32) error {
	if !r.canManageRoles(srcAvatarID) {
		return NewResult(ResultNoPermission, "ban management requires the creator or an administrator")
	}

	if r.IsPersistent() {
		if err := r.service.DeleteBanned(targetAvatarID, r.roomID); err != nil {
			return err
		}
	}

	r.banned = removeID(r.banned, targetAvatarID)
	return nil
}

func (r *Room) AddInvite(srcAvatarID uint32, target *Avatar) error {
	if !r.canModerate(srcAvatarID) {
		return NewResult(ResultNoPermission, "invites require the creator, an administrator or a moderator")
	}

	if r.IsPersistent() {
		if err := r.service.PersistInvite(target.ID(), r.roomID); err != nil {
			return err
		}
	}

	r.invited = append(r.invited, target)
	return nil
}

func (r *Room) RemoveInvite(srcAvatarID, targetAvatarID uint32) error {
	if !r.canModerate(srcAvatarID) {
		return NewResult(ResultNoPermission, "invites require the creator, an administrator or a moderator")
	}

	if r.IsPersistent() {
		if err := r.service.DeleteInvite(targetAvatarID, r.roomID); err != nil {
			return err
		}
	}

	r.invited = removeID(r.invited, targetAvatarID)
	return nil
}

func (r *Room) Kick(srcAvatarID, targetAvatarID uint32) error {
	if !r.canModerate(srcAvatarID) {
		return NewResult(ResultNoPermission, "kicks require the creator, an administrator or a moderator")
	}

	r.occupants = removeID(r.occupants, targetAvatarID)
	return nil
}

// scrubAvatar removes a destroyed avatar from every list without touching
// storage; the role tables are cleaned separately by the registry.
func (r *Room) scrubAvatar(avatarID uint32) {
	r.occupants = removeID(r.occupants, avatarID)
	r.administrators = removeID(r.administrators, avatarID)
	r.moderators = removeID(r.moderators, avatarID)
	r.banned = removeID(r.banned, avatarID)
	r.invited = removeID(r.invited, avatarID)
}

func (r *Room) canManageRoles(avatarID uint32) bool {
	return r.IsCreator(avatarID) || r.IsAdministrator(avatarID)
}

func (r *Room) canModerate(avatarID uint32) bool {
	return r.IsCreator(avatarID) || r.IsAdministrator(avatarID) || r.IsModerator(avatarID)
}

func (r *Room) isPrivileged(avatarID uint32) bool {
	return r.canModerate(avatarID)
}

// FullAddress joins a base address and room name into the unique room
// address.
func FullAddress(baseAddress, roomName string) string {
	return baseAddress + "+" + roomName
}

func addressNodeLevel(address string) uint32 {
	return uint32(strings.Count(address, "+") + 1)
}

func containsID(avatars []*Avatar, avatarID uint32) bool {
	for _, avatar := range avatars {
		if avatar.ID() == avatarID {
			return true
		}
	}
	return false
}

// removeID filters out every occurrence, not just the first; the lists can
// carry duplicates.
func removeID(avatars []*Avatar, avatarID uint32) []*Avatar {
	kept := avatars[:0]
	for _, avatar := range avatars {
		if avatar.ID() != avatarID {
			kept = append(kept, avatar)
		}
	}
	return kept
}
