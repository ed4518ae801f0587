package handlers

import (
	"net/http"
	"strings"

	"github.com/admitportal/apiserver/internal/services"
	"github.com/admitportal/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// UserHandler provides HTTP handlers for the user directory.
type UserHandler struct {
	userService *services.UserService
	hasher      services.PasswordHasher
}

func NewUserHandler(userService *services.UserService, hasher services.PasswordHasher) *UserHandler {
	return &UserHandler{userService: userService, hasher: hasher}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, hasher services.PasswordHasher, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService, hasher)

	r.Get("/check", handler.CheckDuplicate)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Patch("/me", handler.UpdateSelf)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", handler.ListUsers)
			r.Get("/{username}", handler.GetUser)
			r.Patch("/{username}", handler.UpdateUser)
			r.Delete("/{username}", handler.DeleteUser)
		})
	})
}

// CheckDuplicate answers whether a unique field value is already taken, so
// registration forms can warn before submitting.
func (h *UserHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	field := strings.TrimSpace(query.Get("field"))
	value := strings.TrimSpace(query.Get("value"))
	if field == "" || value == "" {
		writeError(w, http.StatusBadRequest, "field and value are required")
		return
	}

	dup, err := h.userService.CheckDuplicate(r.Context(), field, value, query.Get("exclude"))
	if err != nil {
		writeServiceError(w, err, "failed to check duplicate")
		return
	}
	writeJSON(w, http.StatusOK, DuplicateResponse{Field: field, Duplicate: dup})
}

// UpdateSelf lets a user edit their own profile. Role changes are ignored.
func (h *UserHandler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var patch types.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	patch.Role = nil

	h.update(w, r, user.Username, patch)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users := h.userService.List(r.Context(), r.URL.Query().Get("role"))
	items := make([]types.User, 0, len(users))
	for _, u := range users {
		items = append(items, u.Public())
	}
	writeJSON(w, http.StatusOK, UserListResponse{Items: items, Total: len(items)})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, err, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch types.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	h.update(w, r, chi.URLParam(r, "username"), patch)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	current, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	username := chi.URLParam(r, "username")
	if username == current.Username {
		writeError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := h.userService.Delete(r.Context(), username); err != nil {
		writeServiceError(w, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// update validates the changed fields and hashes a new password before
// handing the patch to the directory, which stores passwords as given.
func (h *UserHandler) update(w http.ResponseWriter, r *http.Request, username string, patch types.UserPatch) {
	current, err := h.userService.Get(r.Context(), username)
	if err != nil {
		writeServiceError(w, err, "failed to load user")
		return
	}
	if err := services.ValidatePatch(current, patch); err != nil {
		writeServiceError(w, err, "invalid profile")
		return
	}
	if patch.Password != nil && *patch.Password != "" {
		digest, err := h.hasher.Hash(*patch.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to update user")
			return
		}
		patch.Password = &digest
	}

	updated, err := h.userService.Update(r.Context(), username, patch)
	if err != nil {
		writeServiceError(w, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, updated.Public())
}

type DuplicateResponse struct {
	Field     string `json:"field"`
	Duplicate bool   `json:"duplicate"`
}

type UserListResponse struct {
	Items []types.User `json:"items"`
	Total int          `json:"total"`
}
