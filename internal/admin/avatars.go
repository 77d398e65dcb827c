package admin

import (
	"net/http"
)

// avatarRef is the (name, address) pair identifying an avatar in requests.
type avatarRef struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func queryRef(w http.ResponseWriter, r *http.Request) (avatarRef, bool) {
	ref := avatarRef{
		Name:    r.URL.Query().Get("name"),
		Address: r.URL.Query().Get("address"),
	}
	if ref.Name == "" || ref.Address == "" {
		errResp(w, http.StatusBadRequest, "name and address are required")
		return avatarRef{}, false
	}
	return ref, true
}

func (h *Handler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	ref, okRef := queryRef(w, r)
	if !okRef {
		return
	}

	view, err := h.gateway.GetAvatar(ref.Name, ref.Address)
	if err != nil {
		domainError(w, err)
		return
	}
	ok(w, view)
}

func (h *Handler) OnlineAvatars(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]interface{}{"avatars": h.gateway.OnlineAvatars()})
}

func (h *Handler) CreateAvatar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		avatarRef
		UserID        uint32 `json:"user_id"`
		Attributes    uint32 `json:"attributes"`
		LoginLocation string `json:"login_location"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Address == "" {
		errResp(w, http.StatusBadRequest, "name and address are required")
		return
	}

	view, err := h.gateway.CreateAvatar(req.Name, req.Address, req.UserID, req.Attributes, req.LoginLocation)
	if err != nil {
		domainError(w, err)
		return
	}
	created(w, view)
}

func (h *Handler) DestroyAvatar(w http.ResponseWriter, r *http.Request) {
	ref, okRef := queryRef(w, r)
	if !okRef {
		return
	}

	if err := h.gateway.DestroyAvatar(ref.Name, ref.Address); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "avatar destroyed"})
}

func (h *Handler) LoginAvatar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		avatarRef
		UserID        uint32 `json:"user_id"`
		Attributes    uint32 `json:"attributes"`
		LoginLocation string `json:"login_location"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.gateway.Login(req.Name, req.Address, req.UserID, req.Attributes, req.LoginLocation)
	if err != nil {
		domainError(w, err)
		return
	}
	ok(w, view)
}

func (h *Handler) LogoutAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRef
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.gateway.Logout(req.Name, req.Address); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "avatar logged out"})
}

// --- Friends and ignores ---

type contactRequest struct {
	OwnerName     string `json:"owner_name"`
	OwnerAddress  string `json:"owner_address"`
	TargetName    string `json:"target_name"`
	TargetAddress string `json:"target_address"`
	Comment       string `json:"comment"`
}

func (h *Handler) contactChange(w http.ResponseWriter, r *http.Request,
	op func(req contactRequest) error) {
	var req contactRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := op(req); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "updated"})
}

func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	h.contactChange(w, r, func(req contactRequest) error {
		return h.gateway.AddFriend(req.OwnerName, req.OwnerAddress, req.TargetName, req.TargetAddress, req.Comment)
	})
}

func (h *Handler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	h.contactChange(w, r, func(req contactRequest) error {
		return h.gateway.RemoveFriend(req.OwnerName, req.OwnerAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) UpdateFriendComment(w http.ResponseWriter, r *http.Request) {
	h.contactChange(w, r, func(req contactRequest) error {
		return h.gateway.UpdateFriendComment(req.OwnerName, req.OwnerAddress, req.TargetName, req.TargetAddress, req.Comment)
	})
}

func (h *Handler) AddIgnore(w http.ResponseWriter, r *http.Request) {
	h.contactChange(w, r, func(req contactRequest) error {
		return h.gateway.AddIgnore(req.OwnerName, req.OwnerAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) RemoveIgnore(w http.ResponseWriter, r *http.Request) {
	h.contactChange(w, r, func(req contactRequest) error {
		return h.gateway.RemoveIgnore(req.OwnerName, req.OwnerAddress, req.TargetName, req.TargetAddress)
	})
}
