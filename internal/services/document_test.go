package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/admitportal/apiserver/internal/audit"
	"github.com/admitportal/apiserver/internal/storage"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
	"github.com/stretchr/testify/require"
)

func TestDocumentKey(t *testing.T) {
	user := types.User{CitizenID: "1101700123451", FirstName: "Mary Ann", LastName: "Smith"}
	require.Equal(t, "1101700123451_Mary-Ann-Smith_id_card.pdf", DocumentKey(user, types.DocIDCard, ".PDF"))
}

func TestParseDocumentKey(t *testing.T) {
	cases := map[string][2]string{
		"1101700123451_สมชาย-ใจดี_id_card.pdf": {"1101700123451", types.DocIDCard},
		"1101700123451_a-b_name_change.png":    {"1101700123451", types.DocNameChange},
		"1101700123451_a-b_photo.jpg":          {"1101700123451", types.DocPhoto},
		"1101700123451_a-b_passport.jpg":       {"1101700123451", "unknown"},
		"stray.pdf":                            {"unknown", "unknown"},
	}
	for key, want := range cases {
		citizenID, docType := ParseDocumentKey(key)
		require.Equal(t, want[0], citizenID, key)
		require.Equal(t, want[1], docType, key)
	}
}

func TestDocument_UploadAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cid := withCheckDigit("110170012345")
	register(t, f, applicant("a", "a@example.com", "0811111111", cid))
	register(t, f, applicant("b", "b@example.com", "0822222222", withCheckDigit("110000000002")))

	doc, err := f.documents.Upload(ctx, "a", types.DocTranscript, "grades.PDF", strings.NewReader("%PDF-1.4"), 8, "application/pdf")
	require.NoError(t, err)
	require.Equal(t, cid+"_สมชาย-ใจดี_transcript.pdf", doc.Key)

	_, err = f.documents.Upload(ctx, "b", types.DocPhoto, "me.png", bytes.NewReader([]byte{0x89, 'P', 'N', 'G'}), 4, "image/png")
	require.NoError(t, err)

	mine, err := f.documents.ListForUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, types.DocTranscript, mine[0].DocType)
	require.Equal(t, cid, mine[0].CitizenID)

	all, err := f.documents.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.True(t, f.documents.Owns(ctx, "a", doc.Key))
	require.False(t, f.documents.Owns(ctx, "b", doc.Key))

	r, err := f.documents.Open(ctx, doc.Key)
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(content))

	lines := f.auditLines(t, audit.UserChanges)
	require.Contains(t, lines[len(lines)-2], "File uploaded by a: "+doc.Key)
	require.Contains(t, f.events.Types(), EventDocumentUploaded)
}

func TestDocument_UploadRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, applicant("a", "a@example.com", "0811111111", withCheckDigit("110000000001")))

	_, err := f.documents.Upload(ctx, "a", "passport", "p.pdf", strings.NewReader("x"), 1, "")
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.documents.Upload(ctx, "a", types.DocPhoto, "p.gif", strings.NewReader("x"), 1, "")
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.documents.Upload(ctx, "a", types.DocPhoto, "p.jpg", strings.NewReader("x"), MaxDocumentSize+1, "")
	require.ErrorIs(t, err, ErrDocumentTooLarge)

	_, err = f.documents.Upload(ctx, "ghost", types.DocPhoto, "p.jpg", strings.NewReader("x"), 1, "")
	require.ErrorIs(t, err, store.ErrNotFound)

	all, err := f.documents.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestDocument_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	register(t, f, applicant("a", "a@example.com", "0811111111", withCheckDigit("110000000001")))

	doc, err := f.documents.Upload(ctx, "a", types.DocPhoto, "me.jpg", strings.NewReader("jpg"), 3, "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, f.documents.Delete(ctx, "admin", doc.Key))
	mine, err := f.documents.ListForUser(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, mine)

	lines := f.auditLines(t, audit.UserChanges)
	require.Contains(t, lines[len(lines)-1], "File deleted by admin: "+doc.Key)

	require.ErrorIs(t, f.documents.Delete(ctx, "admin", doc.Key), storage.ErrObjectNotFound)
}
