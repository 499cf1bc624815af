package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/service"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Handler struct {
	chatSvc *service.ChatService
}

func NewHandler(chat *service.ChatService) *Handler {
	return &Handler{chatSvc: chat}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит доменные ошибки в HTTP-статусы.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotMember), errors.Is(err, domain.ErrNotAdmin), errors.Is(err, domain.ErrAdminRemoval):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrChatNotFound), errors.Is(err, domain.ErrUnknownChatKind), errors.Is(err, domain.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrChatExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrInvalidMembers), errors.Is(err, postgres.ErrInvalidCursor):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("handler."+op, slog.Any("err", err))
		writeJSON(w, status, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func chatIDParam(w http.ResponseWriter, r *http.Request) (domain.ChatID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid chat id"})
		return 0, false
	}
	return domain.ChatID(id), true
}

// GET /chats
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.chatSvc.Inbox(r.Context(), httpmw.UserIDFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, "ListChats", err)
		return
	}
	writeJSON(w, http.StatusOK, toInboxResponse(inbox))
}

// GET /chats/{id}
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	meta, err := h.chatSvc.Metadata(r.Context(), httpmw.UserIDFromCtx(r.Context()), chatID)
	if err != nil {
		writeError(w, r, "GetChat", err)
		return
	}
	writeJSON(w, http.StatusOK, toMetadataResponse(meta))
}

// GET /chats/{id}/messages?cursor=&limit=
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	msgs, next, err := h.chatSvc.History(r.Context(), httpmw.UserIDFromCtx(r.Context()), chatID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, r, "GetChatHistory", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: toMessageItems(msgs), NextCursor: next})
}

// POST /chats/direct
func (h *Handler) CreateDirectChat(w http.ResponseWriter, r *http.Request) {
	var req CreateDirectChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	chatID, err := h.chatSvc.CreateDirect(r.Context(), httpmw.UserIDFromCtx(r.Context()), req.PartnerUsername, req.FirstMessage)
	if err != nil {
		if errors.Is(err, domain.ErrChatExists) && chatID > 0 {
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), ChatID: &chatID})
			return
		}
		writeError(w, r, "CreateDirectChat", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateChatResponse{ChatID: chatID})
}

// POST /chats/group
func (h *Handler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	chatID, err := h.chatSvc.CreateGroup(r.Context(), httpmw.UserIDFromCtx(r.Context()), req.Title, req.Members)
	if err != nil {
		writeError(w, r, "CreateGroupChat", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateChatResponse{ChatID: chatID})
}

// POST /chats/{id}/members
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.chatSvc.UpdateMember(r.Context(), httpmw.UserIDFromCtx(r.Context()), chatID, req.Username, req.Action); err != nil {
		writeError(w, r, "UpdateMember", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
