package chat

import (
	"log"
	"time"

	"stationgate/internal/db"
)

// RoomService is the authoritative registry of loaded rooms. Room IDs are
// process-local and monotonically increasing; they are never reused while the
// process runs.
type RoomService struct {
	avatars *AvatarService
	conn    db.Conn

	rooms      []*Room
	nextRoomID uint32
}

func NewRoomService(avatars *AvatarService, conn db.Conn) *RoomService {
	return &RoomService{avatars: avatars, conn: conn, nextRoomID: 1}
}

// LoadRoomsFromStorage replaces the registry with the persistent rooms under
// the given base address. A room whose full address is already registered is
// skipped; the first loaded entry wins.
func (s *RoomService) LoadRoomsFromStorage(baseAddress string) error {
	s.rooms = nil

	stmt, err := s.conn.Prepare(
		"SELECT id, creator_id, creator_name, creator_address, room_name, room_topic, " +
			"room_password, room_prefix, room_address, room_attributes, room_max_size, " +
			"room_message_id, created_at, node_level FROM room WHERE room_address LIKE @pattern")
	if err != nil {
		return err
	}
	defer stmt.Close()

	log.Printf("Loading rooms for base address: %s", baseAddress)

	binder := db.NewBinder(stmt)
	binder.Text("@pattern", baseAddress+"%")
	if err := binder.Err(); err != nil {
		return err
	}

	for {
		result, err := stmt.Step()
		if err != nil {
			return err
		}
		if result != db.StepRow {
			break
		}

		room := &Room{
			service:        s,
			roomID:         s.nextRoomID,
			dbID:           uint32(stmt.ColumnInt(0)),
			creatorID:      uint32(stmt.ColumnInt(1)),
			creatorName:    stmt.ColumnText(2),
			creatorAddress: stmt.ColumnText(3),
			name:           stmt.ColumnText(4),
			topic:          stmt.ColumnText(5),
			password:       stmt.ColumnText(6),
			prefix:         stmt.ColumnText(7),
			address:        stmt.ColumnText(8),
			attributes:     uint32(stmt.ColumnInt(9)),
			maxSize:        uint32(stmt.ColumnInt(10)),
			messageID:      uint32(stmt.ColumnInt(11)),
			createTime:     uint32(stmt.ColumnInt(12)),
			nodeLevel:      uint32(stmt.ColumnInt(13)),
		}
		s.nextRoomID++

		if !s.RoomExists(room.Address()) {
			s.rooms = append(s.rooms, room)
		}
	}

	log.Printf("Rooms currently loaded: %d", len(s.rooms))
	return nil
}

// CreateRoom registers a new room under baseAddress. A persistent room whose
// insert fails stays registered and the failure is reported as a DBFAIL
// result; a transient storage fault must not abort the request pipeline.
func (s *RoomService) CreateRoom(creator *Avatar, roomName, roomTopic, roomPassword string,
	roomAttributes, maxRoomSize uint32, baseAddress, srcAddress string) (*Room, error) {
	fullAddress := FullAddress(baseAddress, roomName)

	if s.RoomExists(fullAddress) {
		return nil, NewResult(ResultRoomAlreadyExists, "room already exists")
	}

	log.Printf("Creating room %s@%s with attributes %d", roomName, baseAddress, roomAttributes)

	room := &Room{
		service:        s,
		roomID:         s.nextRoomID,
		creatorID:      creator.ID(),
		creatorName:    creator.Name(),
		creatorAddress: creator.Address(),
		name:           roomName,
		topic:          roomTopic,
		password:       roomPassword,
		attributes:     roomAttributes,
		maxSize:        maxRoomSize,
		prefix:         srcAddress,
		address:        fullAddress,
		createTime:     uint32(time.Now().Unix()),
		nodeLevel:      addressNodeLevel(fullAddress),
	}
	s.nextRoomID++
	s.rooms = append(s.rooms, room)

	if room.IsPersistent() {
		if err := s.persistNewRoom(room); err != nil {
			log.Printf("Persisting room %s failed: %v", fullAddress, err)
			return room, NewResult(ResultDBFail, "room created but could not be persisted")
		}
	}

	return room, nil
}

// DestroyRoom deletes the storage row when persistent and removes every
// registry entry whose room ID matches the target.
func (s *RoomService) DestroyRoom(room *Room) error {
	if room.IsPersistent() {
		if err := s.deleteRoom(room); err != nil {
			return err
		}
	}

	kept := s.rooms[:0]
	for _, tracked := range s.rooms {
		if tracked.RoomID() != room.RoomID() {
			kept = append(kept, tracked)
		}
	}
	s.rooms = kept
	return nil
}

func (s *RoomService) RoomExists(roomAddress string) bool {
	return s.GetRoom(roomAddress) != nil
}

func (s *RoomService) GetRoom(roomAddress string) *Room {
	for _, room := range s.rooms {
		if room.Address() == roomAddress {
			return room
		}
	}
	return nil
}

// GetRoomSummaries lists the non-private rooms under the given address
// prefix.
func (s *RoomService) GetRoomSummaries(startNode string) []*Room {
	var rooms []*Room
	for _, room := range s.rooms {
		if len(room.Address()) >= len(startNode) && room.Address()[:len(startNode)] == startNode {
			if !room.IsPrivate() {
				rooms = append(rooms, room)
			}
		}
	}
	return rooms
}

func (s *RoomService) GetJoinedRooms(avatar *Avatar) []*Room {
	var rooms []*Room
	for _, room := range s.rooms {
		if room.IsInRoom(avatar.ID()) {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// ScrubAvatar removes a destroyed avatar from every registered room's lists.
func (s *RoomService) ScrubAvatar(avatarID uint32) {
	for _, room := range s.rooms {
		room.scrubAvatar(avatarID)
	}
}

func (s *RoomService) persistNewRoom(room *Room) error {
	stmt, err := s.conn.Prepare(
		"INSERT INTO room (creator_id, creator_name, creator_address, room_name, " +
			"room_topic, room_password, room_prefix, room_address, room_attributes, " +
			"room_max_size, room_message_id, created_at, node_level) VALUES (@creator_id, " +
			"@creator_name, @creator_address, @room_name, @room_topic, @room_password, " +
			"@room_prefix, @room_address, @room_attributes, @room_max_size, @room_message_id, " +
			"@created_at, @node_level)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@creator_id", int64(room.creatorID))
	binder.Text("@creator_name", room.creatorName)
	binder.Text("@creator_address", room.creatorAddress)
	binder.Text("@room_name", room.name)
	binder.Text("@room_topic", room.topic)
	binder.Text("@room_password", room.password)
	binder.Text("@room_prefix", room.prefix)
	binder.Text("@room_address", room.address)
	binder.Int("@room_attributes", int64(room.attributes))
	binder.Int("@room_max_size", int64(room.maxSize))
	binder.Int("@room_message_id", int64(room.messageID))
	binder.Int("@created_at", int64(room.createTime))
	binder.Int("@node_level", int64(room.nodeLevel))
	if err := binder.Err(); err != nil {
		return err
	}

	if err := db.ExpectDone(stmt, "insert room"); err != nil {
		return err
	}

	room.dbID = s.conn.LastInsertID()
	return nil
}

func (s *RoomService) deleteRoom(room *Room) error {
	stmt, err := s.conn.Prepare("DELETE FROM room WHERE id = @id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@id", int64(room.dbID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "delete room")
}

// --- Role persistence ---
//
// Role rows are keyed by (role avatar id, room id) with idempotent upserts;
// inserting an existing pair is silently ignored by the backend.

func (s *RoomService) PersistModerator(moderatorID, roomID uint32) error {
	return s.persistRole("room_moderator", "@moderator_avatar_id", moderatorID, roomID)
}

func (s *RoomService) DeleteModerator(moderatorID, roomID uint32) error {
	return s.deleteRole("room_moderator", "@moderator_avatar_id", moderatorID, roomID)
}

func (s *RoomService) PersistAdministrator(administratorID, roomID uint32) error {
	return s.persistRole("room_administrator", "@administrator_avatar_id", administratorID, roomID)
}

func (s *RoomService) DeleteAdministrator(administratorID, roomID uint32) error {
	return s.deleteRole("room_administrator", "@administrator_avatar_id", administratorID, roomID)
}

func (s *RoomService) PersistBanned(bannedID, roomID uint32) error {
	return s.persistRole("room_ban", "@banned_avatar_id", bannedID, roomID)
}

func (s *RoomService) DeleteBanned(bannedID, roomID uint32) error {
	return s.deleteRole("room_ban", "@banned_avatar_id", bannedID, roomID)
}

func (s *RoomService) PersistInvite(invitedID, roomID uint32) error {
	return s.persistRole("room_invite", "@invited_avatar_id", invitedID, roomID)
}

func (s *RoomService) DeleteInvite(invitedID, roomID uint32) error {
	return s.deleteRole("room_invite", "@invited_avatar_id", invitedID, roomID)
}

func (s *RoomService) persistRole(table, avatarParam string, avatarID, roomID uint32) error {
	stmt, err := s.conn.Prepare(
		s.conn.Capabilities().UpsertInto(table) +
			" (" + avatarParam[1:] + ", room_id) VALUES (" + avatarParam + ", @room_id)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int(avatarParam, int64(avatarID))
	binder.Int("@room_id", int64(roomID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "insert "+table)
}

func (s *RoomService) deleteRole(table, avatarParam string, avatarID, roomID uint32) error {
	stmt, err := s.conn.Prepare(
		"DELETE FROM " + table + " WHERE " + avatarParam[1:] + " = " + avatarParam + " AND room_id = @room_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int(avatarParam, int64(avatarID))
	binder.Int("@room_id", int64(roomID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "delete "+table)
}

// --- Role loading ---
//
// Stored role rows are keyed by the process-local room ID assigned when the
// persisting process ran. TODO: key role rows by room.dbID so they survive a
// restart with a different load order.

func (s *RoomService) LoadModerators(room *Room) error {
	return s.loadRole(room, "room_moderator", "moderator_avatar_id", &room.moderators)
}

func (s *RoomService) LoadAdministrators(room *Room) error {
	return s.loadRole(room, "room_administrator", "administrator_avatar_id", &room.administrators)
}

func (s *RoomService) LoadBanned(room *Room) error {
	return s.loadRole(room, "room_ban", "banned_avatar_id", &room.banned)
}

func (s *RoomService) LoadInvited(room *Room) error {
	return s.loadRole(room, "room_invite", "invited_avatar_id", &room.invited)
}

func (s *RoomService) loadRole(room *Room, table, column string, list *[]*Avatar) error {
	stmt, err := s.conn.Prepare(
		"SELECT " + column + " FROM " + table + " WHERE room_id = @room_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@room_id", int64(room.RoomID()))
	if err := binder.Err(); err != nil {
		return err
	}

	var ids []uint32
	for {
		result, err := stmt.Step()
		if err != nil {
			return err
		}
		if result != db.StepRow {
			break
		}
		ids = append(ids, uint32(stmt.ColumnInt(0)))
	}

	for _, id := range ids {
		avatar, err := s.avatars.GetAvatarByID(id)
		if err != nil {
			return err
		}
		if avatar == nil {
			continue
		}
		*list = append(*list, avatar)
	}
	return nil
}
