package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/admitportal/apiserver/internal/services"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// SessionCookie carries the session token in browsers.
const SessionCookie = "session_id"

// AuthHandler provides session authentication endpoints.
type AuthHandler struct {
	userService    *services.UserService
	sessionService *services.SessionService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, sessionService *services.SessionService) *AuthHandler {
	return &AuthHandler{
		userService:    userService,
		sessionService: sessionService,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, sessionService *services.SessionService) {
	handler := NewAuthHandler(userService, sessionService)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces a valid session and injects the user into context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireSession(h.userService, h.sessionService)(next)
}

// RequireAuth constructs session middleware for other routers.
func RequireAuth(userService *services.UserService, sessionService *services.SessionService) func(http.Handler) http.Handler {
	return requireSession(userService, sessionService)
}

func requireSession(userService *services.UserService, sessionService *services.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := sessionService.Validate(r.Context(), sessionToken(r))
			if err != nil {
				if errors.Is(err, store.ErrSessionExpired) {
					writeError(w, http.StatusUnauthorized, "session expired")
					return
				}
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := userService.Get(r.Context(), username)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects users without the admin role. It must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register creates a new applicant account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	if err := services.ValidateProfile(req.user()); err != nil {
		writeServiceError(w, err, "invalid profile")
		return
	}

	user, err := h.userService.Register(r.Context(), req.user(), req.Password)
	if err != nil {
		writeServiceError(w, err, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: user.Public()})
}

// Login verifies credentials, starts a session and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err, "failed to authenticate")
		return
	}

	token, err := h.sessionService.Create(r.Context(), user.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	expires := time.Now().Add(h.sessionService.TTL())
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, ExpiresAt: &expires, User: user.Public()})
}

// Logout ends the current session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionService.Logout(r.Context(), sessionToken(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to logout")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

type RegisterRequest struct {
	Username        string  `json:"username"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirm_password"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	CitizenID       string  `json:"citizen_id"`
	Title           string  `json:"title"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	SchoolName      string  `json:"school_name"`
	GPAX            float64 `json:"gpax"`
	GraduationYear  string  `json:"graduation_year"`
	Program         string  `json:"program"`
	Address         string  `json:"address"`
	ParentName      string  `json:"parent_name"`
	ParentPhone     string  `json:"parent_phone"`
}

func (req RegisterRequest) user() types.User {
	return types.User{
		Username:       req.Username,
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		CitizenID:      strings.TrimSpace(req.CitizenID),
		Title:          req.Title,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		SchoolName:     req.SchoolName,
		GPAX:           req.GPAX,
		GraduationYear: req.GraduationYear,
		Program:        req.Program,
		Address:        req.Address,
		ParentName:     req.ParentName,
		ParentPhone:    req.ParentPhone,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	User      types.User `json:"user"`
}

// sessionToken reads the token from the cookie, a bearer header or the
// session_id query parameter, in that order.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, err := bearerToken(r); err == nil {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get(SessionCookie))
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
