package chat

// FriendContact pairs a friend reference with the owner's comment for it.
type FriendContact struct {
	Friend  *Avatar
	Comment string
}

// Avatar is a chat identity. Instances are owned by the AvatarService cache;
// no other component constructs or caches them. Friend and ignore mutators
// keep storage and the in-memory lists in sync, persisting first so a storage
// fault leaves the cached state untouched.
type Avatar struct {
	service *AvatarService

	id            uint32
	userID        uint32
	name          string
	address       string
	attributes    uint32
	loginLocation string
	online        bool

	friends []FriendContact
	ignored []*Avatar
}

func (a *Avatar) ID() uint32            { return a.id }
func (a *Avatar) UserID() uint32        { return a.userID }
func (a *Avatar) Name() string          { return a.name }
func (a *Avatar) Address() string       { return a.address }
func (a *Avatar) Attributes() uint32    { return a.attributes }
func (a *Avatar) LoginLocation() string { return a.loginLocation }
func (a *Avatar) IsOnline() bool        { return a.online }

func (a *Avatar) Friends() []FriendContact { return a.friends }
func (a *Avatar) Ignored() []*Avatar       { return a.ignored }

func (a *Avatar) IsFriend(target *Avatar) bool {
	for _, contact := range a.friends {
		if contact.Friend.ID() == target.ID() {
			return true
		}
	}
	return false
}

func (a *Avatar) IsIgnored(target *Avatar) bool {
	for _, ignored := range a.ignored {
		if ignored.ID() == target.ID() {
			return true
		}
	}
	return false
}

func (a *Avatar) AddFriend(target *Avatar, comment string) error {
	if err := a.service.PersistFriend(a.id, target.ID(), comment); err != nil {
		return err
	}
	a.friends = append(a.friends, FriendContact{Friend: target, Comment: comment})
	return nil
}

// RemoveFriend drops every occurrence of the target. The lists are not
// duplicate-free by construction, so removal is a full filter.
func (a *Avatar) RemoveFriend(target *Avatar) error {
	if err := a.service.DeleteFriend(a.id, target.ID()); err != nil {
		return err
	}
	a.dropFriend(target.ID())
	return nil
}

func (a *Avatar) UpdateFriendComment(target *Avatar, comment string) error {
	if err := a.service.PersistFriendComment(a.id, target.ID(), comment); err != nil {
		return err
	}
	for i := range a.friends {
		if a.friends[i].Friend.ID() == target.ID() {
			a.friends[i].Comment = comment
		}
	}
	return nil
}

func (a *Avatar) AddIgnore(target *Avatar) error {
	if err := a.service.PersistIgnore(a.id, target.ID()); err != nil {
		return err
	}
	a.ignored = append(a.ignored, target)
	return nil
}

func (a *Avatar) RemoveIgnore(target *Avatar) error {
	if err := a.service.DeleteIgnore(a.id, target.ID()); err != nil {
		return err
	}
	a.dropIgnore(target.ID())
	return nil
}

func (a *Avatar) dropFriend(targetID uint32) {
	kept := a.friends[:0]
	for _, contact := range a.friends {
		if contact.Friend.ID() != targetID {
			kept = append(kept, contact)
		}
	}
	a.friends = kept
}

func (a *Avatar) dropIgnore(targetID uint32) {
	kept := a.ignored[:0]
	for _, ignored := range a.ignored {
		if ignored.ID() != targetID {
			kept = append(kept, ignored)
		}
	}
	a.ignored = kept
}
