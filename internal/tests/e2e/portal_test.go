package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/admitportal/apiserver/config"
	"github.com/admitportal/apiserver/internal/logging"
	"github.com/admitportal/apiserver/internal/server"
)

var baseURL string

func TestMain(m *testing.M) {
	dataDir, err := os.MkdirTemp("", "portal-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Config{
		Data:    config.DataConfig{Dir: dataDir, MaxBackups: 5},
		Session: config.SessionConfig{TTL: 24 * time.Hour},
		Auth: config.AuthConfig{
			PasswordScheme:  "sha256",
			DownloadSecret:  "e2e-link-secret",
			DownloadLinkTTL: time.Minute,
		},
		Admin: config.AdminConfig{
			Username:  "admin",
			Password:  "admin123",
			Email:     "admin@university.ac.th",
			Phone:     "0800000000",
			CitizenID: "1234567890123",
			FirstName: "ผู้ดูแล",
			LastName:  "ระบบ",
		},
		Storage: config.StorageConfig{Backend: "local"},
		MQ:      config.MQConfig{Backend: "memory", Channel: "portal-events"},
	}

	ctx := context.Background()
	portal, err := server.NewPortal(ctx, cfg, logging.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build portal: %v\n", err)
		os.Exit(1)
	}
	if _, err := portal.SeedAdmin(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		os.Exit(1)
	}

	srv := httptest.NewServer(server.NewRouter(portal))
	baseURL = srv.URL

	code := m.Run()

	srv.Close()
	_ = portal.Close()
	_ = os.RemoveAll(dataDir)
	os.Exit(code)
}

func TestPortalLifecycle(t *testing.T) {
	citizenID := withCheckDigit("110170012345")
	applicant := map[string]any{
		"username":         "somchai",
		"password":         "s3cret!",
		"confirm_password": "s3cret!",
		"email":            "somchai@example.com",
		"phone":            "0812345678",
		"citizen_id":       citizenID,
		"title":            "นาย",
		"first_name":       "สมชาย",
		"last_name":        "ใจดี",
		"school_name":      "โรงเรียนบ้านสวน",
		"gpax":             3.45,
		"graduation_year":  "2567",
		"program":          "วิศวกรรมคอมพิวเตอร์",
	}
	if status := doJSON(t, http.MethodPost, "/auth/register", "", applicant, nil); status != http.StatusCreated {
		t.Fatalf("register status %d", status)
	}

	// a second applicant reusing the citizen id is rejected and names the field
	twin := map[string]any{
		"username":   "somying",
		"password":   "other",
		"email":      "somying@example.com",
		"phone":      "0923456789",
		"citizen_id": citizenID,
		"first_name": "สมหญิง",
		"last_name":  "ใจดี",
	}
	var conflict errorResponse
	if status := doJSON(t, http.MethodPost, "/auth/register", "", twin, &conflict); status != http.StatusConflict {
		t.Fatalf("duplicate register status %d", status)
	}
	if conflict.Field != "citizen_id" {
		t.Fatalf("unexpected duplicate field %q", conflict.Field)
	}

	token := login(t, "somchai", "s3cret!")
	adminToken := login(t, "admin", "admin123")

	var me userResponse
	if status := doJSON(t, http.MethodGet, "/auth/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me status %d", status)
	}
	if me.Username != "somchai" || me.Role != "user" || me.Password != "" {
		t.Fatalf("unexpected me payload: %+v", me)
	}

	uploaded := uploadDocuments(t, token)
	if len(uploaded.Uploaded) != 3 || len(uploaded.Errors) != 0 {
		t.Fatalf("unexpected upload result: %+v", uploaded)
	}

	var mine documentList
	if status := doJSON(t, http.MethodGet, "/documents", token, nil, &mine); status != http.StatusOK {
		t.Fatalf("list documents status %d", status)
	}
	if mine.Total != 3 {
		t.Fatalf("expected 3 documents, got %d", mine.Total)
	}
	transcript := ""
	for _, doc := range mine.Items {
		if doc.DocType == "transcript" {
			transcript = doc.Key
		}
	}
	if !strings.HasPrefix(transcript, citizenID+"_") {
		t.Fatalf("unexpected transcript key %q", transcript)
	}

	content := download(t, token, transcript)
	if content != "%PDF-1.4 transcript" {
		t.Fatalf("unexpected document content %q", content)
	}

	var sent messageResponse
	msg := map[string]string{"subject": "ตรวจสอบเอกสาร", "message": "ส่งครบแล้วครับ", "message_type": "document"}
	if status := doJSON(t, http.MethodPost, "/messages", token, msg, &sent); status != http.StatusCreated {
		t.Fatalf("send message status %d", status)
	}

	var unread messageList
	if status := doJSON(t, http.MethodGet, "/messages?unread=true", adminToken, nil, &unread); status != http.StatusOK {
		t.Fatalf("list unread status %d", status)
	}
	if unread.Total != 1 || unread.Items[0].ID != sent.ID {
		t.Fatalf("unexpected unread list: %+v", unread)
	}
	if status := doJSON(t, http.MethodPost, "/messages/"+sent.ID+"/reply", adminToken, map[string]string{"reply": "ได้รับแล้ว"}, nil); status != http.StatusOK {
		t.Fatalf("reply status %d", status)
	}

	var myMessages messageList
	if status := doJSON(t, http.MethodGet, "/messages/mine", token, nil, &myMessages); status != http.StatusOK {
		t.Fatalf("my messages status %d", status)
	}
	if myMessages.Total != 1 || myMessages.Items[0].Reply == nil || *myMessages.Items[0].Reply != "ได้รับแล้ว" || !myMessages.Items[0].IsRead {
		t.Fatalf("reply not visible to sender: %+v", myMessages)
	}

	if status := doJSON(t, http.MethodPatch, "/users/me", token, map[string]any{"school_name": "โรงเรียนใหม่", "role": "admin"}, &me); status != http.StatusOK {
		t.Fatalf("update profile status %d", status)
	}
	if me.Role != "user" {
		t.Fatalf("self update changed role to %q", me.Role)
	}

	badPhone := map[string]any{"phone": "0711111111"}
	if status := doJSON(t, http.MethodPatch, "/users/me", token, badPhone, nil); status != http.StatusBadRequest {
		t.Fatalf("expected malformed phone to be rejected, got %d", status)
	}

	if status := doJSON(t, http.MethodPatch, "/users/me", token, map[string]any{"password": "n3w-s3cret"}, nil); status != http.StatusOK {
		t.Fatalf("change password status %d", status)
	}
	token = login(t, "somchai", "n3w-s3cret")

	var changes auditResponse
	if status := doJSON(t, http.MethodGet, "/admin/audit/profile_changes", adminToken, nil, &changes); status != http.StatusOK {
		t.Fatalf("audit status %d", status)
	}
	if len(changes.Lines) != 1 || !strings.Contains(changes.Lines[0], "school_name: โรงเรียนบ้านสวน -> โรงเรียนใหม่") {
		t.Fatalf("unexpected profile log: %+v", changes.Lines)
	}

	var stats statsResponse
	if status := doJSON(t, http.MethodGet, "/admin/stats", adminToken, nil, &stats); status != http.StatusOK {
		t.Fatalf("stats status %d", status)
	}
	if stats.Applicants != 1 || stats.Documents != 3 || stats.ActiveSessions != 3 || stats.UnreadMessages != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if status := doJSON(t, http.MethodPost, "/admin/backups/users", adminToken, nil, nil); status != http.StatusCreated {
		t.Fatalf("backup status %d", status)
	}

	if status := doJSON(t, http.MethodDelete, "/documents/"+url.PathEscape(transcript), adminToken, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete document status %d", status)
	}
	if status := doJSON(t, http.MethodGet, "/documents", token, nil, &mine); status != http.StatusOK || mine.Total != 2 {
		t.Fatalf("expected 2 documents after delete, got %d (status %d)", mine.Total, status)
	}

	if status := doJSON(t, http.MethodGet, "/admin/stats", token, nil, nil); status != http.StatusForbidden {
		t.Fatalf("applicant reached admin stats with status %d", status)
	}

	if status := doJSON(t, http.MethodPost, "/auth/logout", token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("logout status %d", status)
	}
	if status := doJSON(t, http.MethodGet, "/auth/me", token, nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected logged out token to be rejected, got %d", status)
	}
}

func TestRegister_RejectsMalformedCitizenID(t *testing.T) {
	form := map[string]any{
		"username":   "malee",
		"password":   "pw",
		"email":      "malee@example.com",
		"phone":      "0898765432",
		"citizen_id": "1111111111111",
		"first_name": "มาลี",
		"last_name":  "สุขใจ",
	}
	var resp errorResponse
	if status := doJSON(t, http.MethodPost, "/auth/register", "", form, &resp); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if !strings.Contains(resp.Error, "citizen_id") {
		t.Fatalf("unexpected error %q", resp.Error)
	}
}

func TestLogin_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	var wrong, unknown errorResponse
	wrongStatus := doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "admin", "password": "nope"}, &wrong)
	unknownStatus := doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "ghost", "password": "nope"}, &unknown)

	if wrongStatus != http.StatusUnauthorized || unknownStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected statuses %d / %d", wrongStatus, unknownStatus)
	}
	if wrong.Error != unknown.Error {
		t.Fatalf("responses differ: %q vs %q", wrong.Error, unknown.Error)
	}
}

func TestCheckDuplicate(t *testing.T) {
	var resp struct {
		Duplicate bool `json:"duplicate"`
	}
	if status := doJSON(t, http.MethodGet, "/users/check?field=email&value=admin@university.ac.th", "", nil, &resp); status != http.StatusOK {
		t.Fatalf("check status %d", status)
	}
	if !resp.Duplicate {
		t.Fatalf("expected admin email to be taken")
	}
	if status := doJSON(t, http.MethodGet, "/users/check?field=gpax&value=4", "", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("expected unknown field to be rejected, got %d", status)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

type userResponse struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string `json:"token"`
}

type documentResponse struct {
	Key     string `json:"key"`
	DocType string `json:"doc_type"`
}

type documentList struct {
	Items []documentResponse `json:"items"`
	Total int                `json:"total"`
}

type uploadResponse struct {
	Uploaded []documentResponse `json:"uploaded"`
	Errors   []struct {
		DocType string `json:"doc_type"`
		Error   string `json:"error"`
	} `json:"errors"`
}

type messageResponse struct {
	ID     string  `json:"id"`
	IsRead bool    `json:"is_read"`
	Reply  *string `json:"reply"`
}

type messageList struct {
	Items []messageResponse `json:"items"`
	Total int               `json:"total"`
}

type auditResponse struct {
	Lines []string `json:"lines"`
}

type statsResponse struct {
	Applicants     int `json:"applicants"`
	Documents      int `json:"documents"`
	ActiveSessions int `json:"active_sessions"`
	UnreadMessages int `json:"unread_messages"`
}

func doJSON(t *testing.T, method, path, token string, payload, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func login(t *testing.T, username, password string) string {
	t.Helper()
	var parsed authResponse
	status := doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password}, &parsed)
	if status != http.StatusOK {
		t.Fatalf("login %s status %d", username, status)
	}
	if parsed.Token == "" {
		t.Fatalf("missing token in login response")
	}
	return parsed.Token
}

func uploadDocuments(t *testing.T, token string) uploadResponse {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	files := map[string][2]string{
		"photo":      {"me.png", "\x89PNG photo"},
		"id_card":    {"card.jpg", "JFIF card"},
		"transcript": {"grades.pdf", "%PDF-1.4 transcript"},
	}
	for field, file := range files {
		part, err := writer.CreateFormFile(field, file[0])
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(file[1])); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/documents", &body)
	if err != nil {
		t.Fatalf("build upload: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	return parsed
}

func download(t *testing.T, token, key string) string {
	t.Helper()

	var link struct {
		URL string `json:"url"`
	}
	// keys carry Thai names, so escape the path segment
	path := "/documents/" + url.PathEscape(key) + "/link"
	if status := doJSON(t, http.MethodGet, path, token, nil, &link); status != http.StatusOK {
		t.Fatalf("link status %d", status)
	}

	resp, err := http.Get(baseURL + link.URL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	return string(data)
}

func withCheckDigit(prefix string) string {
	sum := 0
	for i := 0; i < 12; i++ {
		sum += int(prefix[i]-'0') * (13 - i)
	}
	return prefix + strconv.Itoa((11-sum%11)%10)
}
