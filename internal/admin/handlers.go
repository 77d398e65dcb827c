package admin

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"stationgate/internal/auth"
	"stationgate/internal/chat"
	"stationgate/internal/events"
	mw "stationgate/internal/middleware"
)

// Handler exposes the gateway's domain operations to operators. Every
// endpoint calls through the chat.Gateway façade; handlers never touch the
// domain services directly.
type Handler struct {
	gateway *chat.Gateway
	auth    *auth.Service
	hub     *events.Hub

	adminUser string
	adminHash string
}

func New(gateway *chat.Gateway, authSvc *auth.Service, hub *events.Hub, adminUser, adminHash string) *Handler {
	return &Handler{
		gateway:   gateway,
		auth:      authSvc,
		hub:       hub,
		adminUser: adminUser,
		adminHash: adminHash,
	}
}

// --- Response helpers ---

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func ok(w http.ResponseWriter, data interface{}) {
	respond(w, http.StatusOK, data)
}

func created(w http.ResponseWriter, data interface{}) {
	respond(w, http.StatusCreated, data)
}

func errResp(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		errResp(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

// domainError translates chat results into HTTP statuses. Storage faults are
// logged and reported generically.
func domainError(w http.ResponseWriter, err error) {
	var result *chat.Result
	if errors.As(err, &result) {
		errResp(w, statusForCode(result.Code), result.Error())
		return
	}

	var corruption *chat.CorruptionError
	if errors.As(err, &corruption) {
		log.Printf("corruption detected: %v", err)
		errResp(w, http.StatusInternalServerError, corruption.Error())
		return
	}

	log.Printf("storage error: %v", err)
	errResp(w, http.StatusInternalServerError, "storage failure")
}

func statusForCode(code chat.ResultCode) int {
	switch code {
	case chat.ResultAvatarNotFound, chat.ResultRoomNotFound, chat.ResultMessageNotFound:
		return http.StatusNotFound
	case chat.ResultRoomAlreadyExists, chat.ResultAvatarAlreadyExists, chat.ResultRoomFull:
		return http.StatusConflict
	case chat.ResultNoPermission, chat.ResultBannedFromRoom, chat.ResultInvalidPassword:
		return http.StatusForbidden
	case chat.ResultDBFail:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// --- WebSocket event stream ---

func (h *Handler) EventStream(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetClaims(r)
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.hub.ServeWS(w, r, claims.Operator)
}

// --- Health ---

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.gateway.Stats()
	ok(w, map[string]interface{}{
		"status":         "ok",
		"online_avatars": stats.OnlineAvatars,
		"rooms":          stats.Rooms,
		"subscribers":    h.hub.SubscriberCount(),
	})
}
