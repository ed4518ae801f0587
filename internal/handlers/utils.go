package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/admitportal/apiserver/internal/docstore"
	"github.com/admitportal/apiserver/internal/services"
	"github.com/admitportal/apiserver/internal/storage"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// ErrorResponse is a simple error payload. Field names the colliding
// attribute on duplicate errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Healthz reports that the process is serving.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.Username == "" {
		return types.User{}, errors.New("missing user")
	}
	return user, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps service and store errors to a status. Anything
// unrecognised is a 500 carrying fallback, never the internal error text.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var dup *store.DuplicateFieldError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: dup.Error(), Field: dup.Field})
	case errors.Is(err, store.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, store.ErrInvalidCredentials.Error())
	case errors.Is(err, store.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, docstore.ErrNoDocument),
		errors.Is(err, storage.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrDocumentTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrUnknownField),
		errors.Is(err, services.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
