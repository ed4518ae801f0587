package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/admitportal/apiserver/internal/audit"
	"github.com/admitportal/apiserver/internal/docstore"
	"github.com/admitportal/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

const (
	defaultAuditLines = 10
	maxAuditLines     = 1000
)

// AdminHandler serves the administrator dashboard.
type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// AdminRouter registers admin routes; all of them need the admin role.
func AdminRouter(r chi.Router, adminService *services.AdminService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAdminHandler(adminService)

	r.Use(authMiddleware, RequireAdmin)
	r.Get("/stats", handler.Stats)
	r.Get("/backups", handler.ListBackups)
	r.Post("/backups/{name}", handler.CreateBackup)
	r.Get("/audit/{log}", handler.AuditTail)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to gather stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListBackups lists snapshots, optionally of one ?document=.
func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.adminService.Backups(r.URL.Query().Get("document"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []docstore.BackupInfo{}
	}
	writeJSON(w, http.StatusOK, BackupListResponse{Items: backups, Total: len(backups)})
}

func (h *AdminHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	file, err := h.adminService.Backup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err, "failed to create backup")
		return
	}
	writeJSON(w, http.StatusCreated, BackupResponse{File: file})
}

// AuditTail returns the last ?lines= lines of an audit log. The log may be
// named with or without its .log suffix.
func (h *AdminHandler) AuditTail(w http.ResponseWriter, r *http.Request) {
	n := defaultAuditLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid lines")
			return
		}
		n = min(parsed, maxAuditLines)
	}

	file := chi.URLParam(r, "log")
	if !strings.HasSuffix(file, ".log") {
		file += ".log"
	}

	lines, err := h.adminService.AuditTail(file, n)
	if err != nil {
		if errors.Is(err, audit.ErrUnknownLog) {
			writeError(w, http.StatusNotFound, "unknown log")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read log")
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, AuditResponse{Log: file, Lines: lines})
}

type BackupListResponse struct {
	Items []docstore.BackupInfo `json:"items"`
	Total int                   `json:"total"`
}

type BackupResponse struct {
	File string `json:"file"`
}

type AuditResponse struct {
	Log   string   `json:"log"`
	Lines []string `json:"lines"`
}
