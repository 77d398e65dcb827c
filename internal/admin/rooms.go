package admin

import (
	"net/http"

	"stationgate/internal/chat"
)

func (h *Handler) RoomSummaries(w http.ResponseWriter, r *http.Request) {
	node := r.URL.Query().Get("node")
	ok(w, map[string]interface{}{"rooms": h.gateway.RoomSummaries(node)})
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		errResp(w, http.StatusBadRequest, "address is required")
		return
	}

	view, err := h.gateway.GetRoom(address)
	if err != nil {
		domainError(w, err)
		return
	}
	ok(w, view)
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CreatorName    string `json:"creator_name"`
		CreatorAddress string `json:"creator_address"`
		RoomName       string `json:"room_name"`
		RoomTopic      string `json:"room_topic"`
		RoomPassword   string `json:"room_password"`
		RoomAttributes uint32 `json:"room_attributes"`
		MaxRoomSize    uint32 `json:"max_room_size"`
		BaseAddress    string `json:"base_address"`
		SrcAddress     string `json:"src_address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RoomName == "" || req.BaseAddress == "" {
		errResp(w, http.StatusBadRequest, "room_name and base_address are required")
		return
	}

	view, err := h.gateway.CreateRoom(req.CreatorName, req.CreatorAddress, req.RoomName,
		req.RoomTopic, req.RoomPassword, req.RoomAttributes, req.MaxRoomSize,
		req.BaseAddress, req.SrcAddress)
	if err != nil {
		// A DBFAIL still registered the room; report the degraded outcome
		// with the view attached.
		if chat.IsResult(err, chat.ResultDBFail) {
			respond(w, http.StatusBadGateway, map[string]interface{}{
				"error": err.Error(),
				"room":  view,
			})
			return
		}
		domainError(w, err)
		return
	}
	created(w, view)
}

func (h *Handler) DestroyRoom(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		errResp(w, http.StatusBadRequest, "address is required")
		return
	}

	if err := h.gateway.DestroyRoom(address); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "room destroyed"})
}

func (h *Handler) JoinedRooms(w http.ResponseWriter, r *http.Request) {
	ref, okRef := queryRef(w, r)
	if !okRef {
		return
	}

	rooms, err := h.gateway.JoinedRooms(ref.Name, ref.Address)
	if err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]interface{}{"rooms": rooms})
}

func (h *Handler) EnterRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		avatarRef
		RoomAddress string `json:"room_address"`
		Password    string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.gateway.EnterRoom(req.Name, req.Address, req.RoomAddress, req.Password); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "entered"})
}

func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		avatarRef
		RoomAddress string `json:"room_address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.gateway.LeaveRoom(req.Name, req.Address, req.RoomAddress); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "left"})
}

// --- Room roles ---

type roleRequest struct {
	RoomAddress   string `json:"room_address"`
	ActorName     string `json:"actor_name"`
	ActorAddress  string `json:"actor_address"`
	TargetName    string `json:"target_name"`
	TargetAddress string `json:"target_address"`
}

func (h *Handler) roleChange(w http.ResponseWriter, r *http.Request,
	op func(req roleRequest) error) {
	var req roleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := op(req); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "updated"})
}

func (h *Handler) AddAdministrator(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.AddAdministrator(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) RemoveAdministrator(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.RemoveAdministrator(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) AddModerator(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.AddModerator(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) RemoveModerator(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.RemoveModerator(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) BanAvatar(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.BanAvatar(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) UnbanAvatar(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.UnbanAvatar(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) InviteAvatar(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.InviteAvatar(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) UninviteAvatar(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.UninviteAvatar(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}

func (h *Handler) KickAvatar(w http.ResponseWriter, r *http.Request) {
	h.roleChange(w, r, func(req roleRequest) error {
		return h.gateway.KickAvatar(req.RoomAddress, req.ActorName, req.ActorAddress, req.TargetName, req.TargetAddress)
	})
}
