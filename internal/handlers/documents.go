package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/admitportal/apiserver/internal/services"
	"github.com/admitportal/apiserver/internal/storage"
	"github.com/admitportal/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	maxMultipartMemory = 32 << 20
	downloadAudience   = "document-download"
)

// DocumentHandler provides upload, listing and download of admission documents.
type DocumentHandler struct {
	documentService *services.DocumentService
	secret          []byte
	linkTTL         time.Duration
}

func NewDocumentHandler(documentService *services.DocumentService, linkSecret string, linkTTL time.Duration) *DocumentHandler {
	if linkTTL <= 0 {
		linkTTL = 15 * time.Minute
	}
	return &DocumentHandler{
		documentService: documentService,
		secret:          []byte(linkSecret),
		linkTTL:         linkTTL,
	}
}

// DocumentRouter registers document routes. Downloads authenticate with the
// signed link token instead of a session.
func DocumentRouter(r chi.Router, handler *DocumentHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/download", handler.Download)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", handler.Upload)
		r.Get("/", handler.ListMine)
		r.Get("/{key}/link", handler.Link)
		r.With(RequireAdmin).Get("/all", handler.ListAll)
		r.With(RequireAdmin).Delete("/{key}", handler.Delete)
	})
}

// Upload stores one batch of documents. The three required types must all
// be present; the name change certificate is optional. Files that fail
// individually are reported without aborting the rest.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	maxBody := int64(len(types.RequiredDocuments)+len(types.OptionalDocuments))*services.MaxDocumentSize + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	for _, docType := range types.RequiredDocuments {
		if len(r.MultipartForm.File[docType]) == 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is required", docType))
			return
		}
	}

	resp := UploadResponse{Uploaded: []types.Document{}, Errors: []UploadError{}}
	for _, docType := range append(append([]string{}, types.RequiredDocuments...), types.OptionalDocuments...) {
		files := r.MultipartForm.File[docType]
		if len(files) == 0 {
			continue
		}
		doc, err := h.store(r, user.Username, docType, files[0])
		if err != nil {
			resp.Errors = append(resp.Errors, UploadError{DocType: docType, Error: uploadErrorMessage(err)})
			continue
		}
		resp.Uploaded = append(resp.Uploaded, doc)
	}

	status := http.StatusCreated
	if len(resp.Uploaded) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (h *DocumentHandler) store(r *http.Request, username, docType string, header *multipart.FileHeader) (types.Document, error) {
	file, err := header.Open()
	if err != nil {
		return types.Document{}, err
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename)))
	}
	return h.documentService.Upload(r.Context(), username, docType, header.Filename, file, header.Size, contentType)
}

func (h *DocumentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	docs, err := h.documentService.ListForUser(r.Context(), user.Username)
	if err != nil {
		writeServiceError(w, err, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Items: docs, Total: len(docs)})
}

func (h *DocumentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documentService.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Items: docs, Total: len(docs)})
}

// Link issues a short-lived download URL for a document the caller owns,
// or any document for administrators.
func (h *DocumentHandler) Link(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	if user.Role != types.RoleAdmin && !h.documentService.Owns(r.Context(), user.Username, key) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	expires := time.Now().Add(h.linkTTL)
	token, err := issueToken(key, h.secret, h.linkTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create link")
		return
	}
	writeJSON(w, http.StatusOK, LinkResponse{
		URL:       "/documents/download?token=" + url.QueryEscape(token),
		ExpiresAt: expires,
	})
}

// Delete removes a stored document. Admin only.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	if err := h.documentService.Delete(r.Context(), user.Username, key); err != nil {
		writeServiceError(w, err, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download streams the document named by a link token.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	key, err := parseTokenSubject(r.URL.Query().Get("token"), h.secret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired link")
		return
	}

	body, err := h.documentService.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open document")
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(key)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": key}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

type UploadError struct {
	DocType string `json:"doc_type"`
	Error   string `json:"error"`
}

type UploadResponse struct {
	Uploaded []types.Document `json:"uploaded"`
	Errors   []UploadError    `json:"errors"`
}

type DocumentListResponse struct {
	Items []types.Document `json:"items"`
	Total int              `json:"total"`
}

type LinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrDocumentTooLarge),
		errors.Is(err, services.ErrUnsupportedType),
		errors.Is(err, services.ErrInvalidInput):
		return err.Error()
	default:
		return "failed to store document"
	}
}

func issueToken(subject string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{downloadAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", errors.New("missing token")
	}
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithAudience(downloadAudience))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}
