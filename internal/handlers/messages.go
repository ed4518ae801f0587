package handlers

import (
	"net/http"
	"strconv"

	"github.com/admitportal/apiserver/internal/services"
	"github.com/admitportal/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// MessageHandler provides HTTP handlers for the message board.
type MessageHandler struct {
	messageService *services.MessageService
}

func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// MessageRouter registers message routes. Every route needs a session;
// reading other users' messages and answering them needs the admin role.
func MessageRouter(r chi.Router, messageService *services.MessageService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewMessageHandler(messageService)

	r.Use(authMiddleware)
	r.Post("/", handler.Send)
	r.Get("/mine", handler.Mine)

	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/", handler.List)
		r.Post("/{id}/read", handler.MarkRead)
		r.Post("/{id}/reply", handler.Reply)
		r.Delete("/{id}", handler.Delete)
	})
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	msg, err := h.messageService.Send(r.Context(), user.Username, req.Subject, req.Message, req.MessageType)
	if err != nil {
		writeServiceError(w, err, "failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, messageList(h.messageService.ByUser(r.Context(), user.Username)))
}

// List returns all messages, or only unread ones with ?unread=true.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid unread")
			return
		}
		unreadOnly = parsed
	}
	writeJSON(w, http.StatusOK, messageList(h.messageService.List(r.Context(), unreadOnly)))
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	msg, err := h.messageService.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to update message")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	msg, err := h.messageService.Reply(r.Context(), chi.URLParam(r, "id"), req.Reply)
	if err != nil {
		writeServiceError(w, err, "failed to reply")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.messageService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "failed to delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SendMessageRequest struct {
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
}

type ReplyRequest struct {
	Reply string `json:"reply"`
}

type MessageListResponse struct {
	Items []types.Message `json:"items"`
	Total int             `json:"total"`
}

func messageList(items []types.Message) MessageListResponse {
	return MessageListResponse{Items: items, Total: len(items)}
}
