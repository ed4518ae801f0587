package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/admitportal/apiserver/internal/services"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_Sources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/auth/me?session_id=from-query", nil)
	require.Equal(t, "from-query", sessionToken(r))

	r.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", sessionToken(r))

	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	require.Equal(t, "from-cookie", sessionToken(r))

	empty := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	empty.Header.Set("Authorization", "Basic abc")
	require.Empty(t, sessionToken(empty))
}

func TestWriteServiceError_Statuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   ErrorResponse
	}{
		{&store.DuplicateFieldError{Field: "citizen_id"}, http.StatusConflict, ErrorResponse{Error: "citizen_id already in use", Field: "citizen_id"}},
		{store.ErrInvalidCredentials, http.StatusUnauthorized, ErrorResponse{Error: "invalid username or password"}},
		{fmt.Errorf("lookup: %w", store.ErrNotFound), http.StatusNotFound, ErrorResponse{Error: "not found"}},
		{fmt.Errorf("%w: email required", services.ErrInvalidInput), http.StatusBadRequest, ErrorResponse{Error: "invalid input: email required"}},
		{services.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge, ErrorResponse{Error: services.ErrDocumentTooLarge.Error()}},
		{fmt.Errorf("%w: disk full", store.ErrPersistence), http.StatusInternalServerError, ErrorResponse{Error: "failed"}},
		{errors.New("boom"), http.StatusInternalServerError, ErrorResponse{Error: "failed"}},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tc.err, "failed")
		require.Equal(t, tc.status, rec.Code, tc.err.Error())

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.body, body)
	}
}

func TestDownloadToken_RoundTrip(t *testing.T) {
	secret := []byte("link-secret")
	token, err := issueToken("1101700123451_a-b_photo.png", secret, time.Minute)
	require.NoError(t, err)

	subject, err := parseTokenSubject(token, secret)
	require.NoError(t, err)
	require.Equal(t, "1101700123451_a-b_photo.png", subject)

	_, err = parseTokenSubject(token, []byte("other-secret"))
	require.Error(t, err)

	expired, err := issueToken("k", secret, -time.Minute)
	require.NoError(t, err)
	_, err = parseTokenSubject(expired, secret)
	require.Error(t, err)

	_, err = parseTokenSubject("", secret)
	require.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	cases := map[string]struct {
		user   *types.User
		status int
	}{
		"anonymous": {nil, http.StatusUnauthorized},
		"applicant": {&types.User{Username: "a", Role: types.RoleUser}, http.StatusForbidden},
		"admin":     {&types.User{Username: "admin", Role: types.RoleAdmin}, http.StatusTeapot},
	}
	for name, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		if tc.user != nil {
			r = r.WithContext(withUser(r.Context(), *tc.user))
		}
		rec := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(rec, r)
		require.Equal(t, tc.status, rec.Code, name)
	}
}
