package admin

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stationgate/internal/chat"
)

func messageID(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		errResp(w, http.StatusBadRequest, "invalid message id")
		return 0, false
	}
	return uint32(id), true
}

func (h *Handler) SendMail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToName      string   `json:"to_name"`
		ToAddress   string   `json:"to_address"`
		FromName    string   `json:"from_name"`
		FromAddress string   `json:"from_address"`
		Subject     string   `json:"subject"`
		Message     string   `json:"message"`
		OOB         []uint16 `json:"oob"`
		Folder      string   `json:"folder"`
		Category    string   `json:"category"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ToName == "" || req.ToAddress == "" {
		errResp(w, http.StatusBadRequest, "to_name and to_address are required")
		return
	}

	id, err := h.gateway.SendPersistentMessage(req.ToName, req.ToAddress,
		req.FromName, req.FromAddress, req.Subject, req.Message, req.OOB,
		req.Folder, req.Category)
	if err != nil {
		domainError(w, err)
		return
	}
	created(w, map[string]interface{}{"message_id": id})
}

func (h *Handler) MailHeaders(w http.ResponseWriter, r *http.Request) {
	ref, okRef := queryRef(w, r)
	if !okRef {
		return
	}

	headers, err := h.gateway.MailHeaders(ref.Name, ref.Address)
	if err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]interface{}{"headers": headers})
}

func (h *Handler) FetchMail(w http.ResponseWriter, r *http.Request) {
	ref, okRef := queryRef(w, r)
	if !okRef {
		return
	}
	id, okID := messageID(w, r)
	if !okID {
		return
	}

	message, err := h.gateway.FetchMail(ref.Name, ref.Address, id)
	if err != nil {
		domainError(w, err)
		return
	}
	ok(w, message)
}

func (h *Handler) SetMailStatus(w http.ResponseWriter, r *http.Request) {
	id, okID := messageID(w, r)
	if !okID {
		return
	}

	var req struct {
		avatarRef
		Status uint32 `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.gateway.SetMailStatus(req.Name, req.Address, id, chat.PersistentState(req.Status)); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "status updated"})
}

func (h *Handler) BulkSetMailStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		avatarRef
		Category string `json:"category"`
		Status   uint32 `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.gateway.BulkSetMailStatus(req.Name, req.Address, req.Category, chat.PersistentState(req.Status)); err != nil {
		domainError(w, err)
		return
	}
	ok(w, map[string]string{"message": "status updated"})
}
