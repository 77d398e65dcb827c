package chat

import (
	"stationgate/internal/db"
)

// AvatarService is the authoritative directory of loaded avatars. The cache
// is the single source of truth; lookups load lazily from storage, including
// friend and ignore lists, which resolve their referenced avatars back
// through this same directory (reentrant loads).
type AvatarService struct {
	conn db.Conn

	cache  []*Avatar
	online []*Avatar
}

func NewAvatarService(conn db.Conn) *AvatarService {
	return &AvatarService{conn: conn}
}

// GetAvatar returns the cached avatar for (name, address), loading it from
// storage on first use. A missing avatar is (nil, nil), not an error.
func (s *AvatarService) GetAvatar(name, address string) (*Avatar, error) {
	if avatar := s.cachedAvatar(name, address); avatar != nil {
		return avatar, nil
	}

	avatar, err := s.loadStoredAvatar(
		"SELECT id, user_id, name, address, attributes FROM avatar WHERE name = @name AND address = @address",
		func(binder *db.Binder) {
			binder.Text("@name", name)
			binder.Text("@address", address)
		})
	if err != nil || avatar == nil {
		return nil, err
	}
	return s.cacheAndLoadLists(avatar)
}

// GetAvatarByID is the identity-keyed variant of GetAvatar.
func (s *AvatarService) GetAvatarByID(avatarID uint32) (*Avatar, error) {
	if avatar := s.cachedAvatarByID(avatarID); avatar != nil {
		return avatar, nil
	}

	avatar, err := s.loadStoredAvatar(
		"SELECT id, user_id, name, address, attributes FROM avatar WHERE id = @avatar_id",
		func(binder *db.Binder) {
			binder.Int("@avatar_id", int64(avatarID))
		})
	if err != nil || avatar == nil {
		return nil, err
	}
	return s.cacheAndLoadLists(avatar)
}

// CreateAvatar inserts and caches a new avatar. Callers are responsible for
// checking that no avatar with the same (name, address) exists first.
func (s *AvatarService) CreateAvatar(name, address string, userID, attributes uint32, loginLocation string) (*Avatar, error) {
	avatar := &Avatar{
		service:       s,
		userID:        userID,
		name:          name,
		address:       address,
		attributes:    attributes,
		loginLocation: loginLocation,
	}

	if err := s.insertAvatar(avatar); err != nil {
		return nil, err
	}

	s.cache = append(s.cache, avatar)
	return avatar, nil
}

// DestroyAvatar deletes the storage row, clears online state, removes the
// avatar from the cache, and scrubs it from every other cached avatar's
// friend and ignore lists. Room role lists are scrubbed by the room layer.
func (s *AvatarService) DestroyAvatar(avatar *Avatar) error {
	if err := s.deleteAvatar(avatar.ID()); err != nil {
		return err
	}

	s.LogoutAvatar(avatar)
	s.removeCachedAvatar(avatar.ID())
	return s.removeFromAllContactLists(avatar)
}

// LoginAvatar marks the avatar online. Re-adding an already-online avatar is
// a no-op.
func (s *AvatarService) LoginAvatar(avatar *Avatar) {
	avatar.online = true

	if !s.IsOnline(avatar) {
		s.online = append(s.online, avatar)
	}
}

// LogoutAvatar is a no-op when the avatar is already offline.
func (s *AvatarService) LogoutAvatar(avatar *Avatar) {
	if !avatar.online {
		return
	}
	avatar.online = false

	kept := s.online[:0]
	for _, online := range s.online {
		if online.ID() != avatar.ID() {
			kept = append(kept, online)
		}
	}
	s.online = kept
}

func (s *AvatarService) IsOnline(avatar *Avatar) bool {
	for _, online := range s.online {
		if online.ID() == avatar.ID() {
			return true
		}
	}
	return false
}

func (s *AvatarService) OnlineAvatars() []*Avatar { return s.online }

// PersistAvatar writes the avatar's current identity fields back to storage.
func (s *AvatarService) PersistAvatar(avatar *Avatar) error {
	stmt, err := s.conn.Prepare(
		"UPDATE avatar SET user_id = @user_id, name = @name, address = @address, attributes = @attributes WHERE id = @avatar_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@user_id", int64(avatar.UserID()))
	binder.Text("@name", avatar.Name())
	binder.Text("@address", avatar.Address())
	binder.Int("@attributes", int64(avatar.Attributes()))
	binder.Int("@avatar_id", int64(avatar.ID()))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "update avatar")
}

// --- Friend/ignore persistence ---

func (s *AvatarService) PersistFriend(srcAvatarID, destAvatarID uint32, comment string) error {
	stmt, err := s.conn.Prepare(
		"INSERT INTO friend (avatar_id, friend_avatar_id, comment) VALUES (@avatar_id, @friend_avatar_id, @comment)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(srcAvatarID))
	binder.Int("@friend_avatar_id", int64(destAvatarID))
	binder.Text("@comment", comment)
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "insert friend")
}

func (s *AvatarService) DeleteFriend(srcAvatarID, destAvatarID uint32) error {
	stmt, err := s.conn.Prepare(
		"DELETE FROM friend WHERE avatar_id = @avatar_id AND friend_avatar_id = @friend_avatar_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(srcAvatarID))
	binder.Int("@friend_avatar_id", int64(destAvatarID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "delete friend")
}

func (s *AvatarService) PersistFriendComment(srcAvatarID, destAvatarID uint32, comment string) error {
	stmt, err := s.conn.Prepare(
		"UPDATE friend SET comment = @comment WHERE avatar_id = @avatar_id AND friend_avatar_id = @friend_avatar_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Text("@comment", comment)
	binder.Int("@avatar_id", int64(srcAvatarID))
	binder.Int("@friend_avatar_id", int64(destAvatarID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "update friend comment")
}

func (s *AvatarService) PersistIgnore(srcAvatarID, destAvatarID uint32) error {
	stmt, err := s.conn.Prepare(
		"INSERT INTO " + db.IgnoreTable(s.conn) + " (avatar_id, ignore_avatar_id) VALUES (@avatar_id, @ignore_avatar_id)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(srcAvatarID))
	binder.Int("@ignore_avatar_id", int64(destAvatarID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "insert ignore")
}

func (s *AvatarService) DeleteIgnore(srcAvatarID, destAvatarID uint32) error {
	stmt, err := s.conn.Prepare(
		"DELETE FROM " + db.IgnoreTable(s.conn) + " WHERE avatar_id = @avatar_id AND ignore_avatar_id = @ignore_avatar_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(srcAvatarID))
	binder.Int("@ignore_avatar_id", int64(destAvatarID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "delete ignore")
}

// --- Cache internals ---

func (s *AvatarService) cachedAvatar(name, address string) *Avatar {
	for _, avatar := range s.cache {
		if avatar.name == name && avatar.address == address {
			return avatar
		}
	}
	return nil
}

func (s *AvatarService) cachedAvatarByID(avatarID uint32) *Avatar {
	for _, avatar := range s.cache {
		if avatar.id == avatarID {
			return avatar
		}
	}
	return nil
}

func (s *AvatarService) removeCachedAvatar(avatarID uint32) {
	kept := s.cache[:0]
	for _, avatar := range s.cache {
		if avatar.id != avatarID {
			kept = append(kept, avatar)
		}
	}
	s.cache = kept
}

func (s *AvatarService) removeFromAllContactLists(avatar *Avatar) error {
	for _, cached := range s.cache {
		if cached.IsFriend(avatar) {
			if err := cached.RemoveFriend(avatar); err != nil {
				return err
			}
		}
		if cached.IsIgnored(avatar) {
			if err := cached.RemoveIgnore(avatar); err != nil {
				return err
			}
		}
	}
	return nil
}

// cacheAndLoadLists registers a freshly loaded avatar, then loads its friend
// and ignore lists. The avatar is cached before the lists load so reentrant
// lookups (a friend pair referencing each other) terminate.
func (s *AvatarService) cacheAndLoadLists(avatar *Avatar) (*Avatar, error) {
	s.cache = append(s.cache, avatar)

	if err := s.loadFriendList(avatar); err != nil {
		return nil, err
	}
	if err := s.loadIgnoreList(avatar); err != nil {
		return nil, err
	}
	return avatar, nil
}

func (s *AvatarService) loadStoredAvatar(query string, bind func(*db.Binder)) (*Avatar, error) {
	stmt, err := s.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	bind(binder)
	if err := binder.Err(); err != nil {
		return nil, err
	}

	result, err := stmt.Step()
	if err != nil {
		return nil, err
	}
	if result != db.StepRow {
		return nil, nil
	}

	return &Avatar{
		service:    s,
		id:         uint32(stmt.ColumnInt(0)),
		userID:     uint32(stmt.ColumnInt(1)),
		name:       stmt.ColumnText(2),
		address:    stmt.ColumnText(3),
		attributes: uint32(stmt.ColumnInt(4)),
	}, nil
}

func (s *AvatarService) insertAvatar(avatar *Avatar) error {
	stmt, err := s.conn.Prepare(
		"INSERT INTO avatar (user_id, name, address, attributes) VALUES (@user_id, @name, @address, @attributes)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@user_id", int64(avatar.userID))
	binder.Text("@name", avatar.name)
	binder.Text("@address", avatar.address)
	binder.Int("@attributes", int64(avatar.attributes))
	if err := binder.Err(); err != nil {
		return err
	}

	if err := db.ExpectDone(stmt, "insert avatar"); err != nil {
		return err
	}

	avatar.id = s.conn.LastInsertID()
	return nil
}

func (s *AvatarService) deleteAvatar(avatarID uint32) error {
	stmt, err := s.conn.Prepare("DELETE FROM avatar WHERE id = @avatar_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(avatarID))
	if err := binder.Err(); err != nil {
		return err
	}

	return db.ExpectDone(stmt, "delete avatar")
}

func (s *AvatarService) loadFriendList(avatar *Avatar) error {
	stmt, err := s.conn.Prepare(
		"SELECT friend_avatar_id, comment FROM friend WHERE avatar_id = @avatar_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(avatar.ID()))
	if err := binder.Err(); err != nil {
		return err
	}

	type friendRow struct {
		id      uint32
		comment string
	}
	var rows []friendRow
	for {
		result, err := stmt.Step()
		if err != nil {
			return err
		}
		if result != db.StepRow {
			break
		}
		rows = append(rows, friendRow{uint32(stmt.ColumnInt(0)), stmt.ColumnText(1)})
	}

	// Resolve after the result set is drained; resolution may reenter the
	// directory and run its own queries.
	for _, row := range rows {
		friendAvatar, err := s.GetAvatarByID(row.id)
		if err != nil {
			return err
		}
		if friendAvatar == nil {
			continue
		}
		avatar.friends = append(avatar.friends, FriendContact{Friend: friendAvatar, Comment: row.comment})
	}
	return nil
}

func (s *AvatarService) loadIgnoreList(avatar *Avatar) error {
	stmt, err := s.conn.Prepare(
		"SELECT ignore_avatar_id FROM " + db.IgnoreTable(s.conn) + " WHERE avatar_id = @avatar_id")
	if err != nil {
		return err
	}
	defer stmt.Close()

	binder := db.NewBinder(stmt)
	binder.Int("@avatar_id", int64(avatar.ID()))
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
		ignoreAvatar, err := s.GetAvatarByID(id)
		if err != nil {
			return err
		}
		if ignoreAvatar == nil {
			continue
		}
		avatar.ignored = append(avatar.ignored, ignoreAvatar)
	}
	return nil
}
