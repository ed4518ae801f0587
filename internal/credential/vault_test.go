package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash_Deterministic(t *testing.T) {
	require.Equal(t, Hash("admin123"), Hash("admin123"))
	require.NotEqual(t, Hash("admin123"), Hash("admin124"))

	// sha256("admin123")
	require.Equal(t, "240be518fabd2724ddb6f04eeb1da5967448d7e831c08c8fa822809f74c720a9", Hash("admin123"))
}

func TestHash_Unicode(t *testing.T) {
	digest := Hash("รหัสผ่าน")
	require.Len(t, digest, 64)
	require.True(t, Verify("รหัสผ่าน", digest))
}

func TestVerify(t *testing.T) {
	digest := Hash("s3cret")
	require.True(t, Verify("s3cret", digest))
	require.False(t, Verify("wrong", digest))
	require.False(t, Verify("s3cret", strings.ToUpper(digest)))
	require.False(t, Verify("s3cret", ""))
}

func TestNewVault(t *testing.T) {
	for _, scheme := range []string{"", "sha256", "SHA256", " bcrypt "} {
		_, err := NewVault(scheme)
		require.NoError(t, err, scheme)
	}
	_, err := NewVault("md5")
	require.Error(t, err)
}

func TestVault_SHA256(t *testing.T) {
	v, err := NewVault("sha256")
	require.NoError(t, err)

	digest, err := v.Hash("pw")
	require.NoError(t, err)
	require.Equal(t, Hash("pw"), digest)
	require.True(t, v.Verify("pw", digest))
	require.False(t, v.Verify("nope", digest))
	require.False(t, v.NeedsRehash(digest))
}

func TestVault_BcryptVerifiesLegacyAndAsksForRehash(t *testing.T) {
	v, err := NewVault("bcrypt")
	require.NoError(t, err)

	digest, err := v.Hash("pw")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(digest, "$2"))
	require.True(t, v.Verify("pw", digest))
	require.False(t, v.Verify("nope", digest))
	require.False(t, v.NeedsRehash(digest))

	legacy := Hash("pw")
	require.True(t, v.Verify("pw", legacy))
	require.True(t, v.NeedsRehash(legacy))
}

func TestVault_SHA256StillVerifiesBcrypt(t *testing.T) {
	b, err := NewVault("bcrypt")
	require.NoError(t, err)
	digest, err := b.Hash("pw")
	require.NoError(t, err)

	v, err := NewVault("sha256")
	require.NoError(t, err)
	require.True(t, v.Verify("pw", digest))
	require.True(t, v.NeedsRehash(digest))
}
