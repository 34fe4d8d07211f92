package credstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() Profile {
	return Profile{
		Name:        "prod",
		URL:         "https://leader.example.com",
		AuthType:    AuthBearer,
		BearerToken: "super-secret-token-value",
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	p := testProfile()
	require.NoError(t, s.Put(p))

	got, err := s.Get("prod")
	require.NoError(t, err)
	assert.Equal(t, &p, got)
}

func TestPutReplaces(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	p := testProfile()
	require.NoError(t, s.Put(p))
	p.BearerToken = "rotated-token"
	require.NoError(t, s.Put(p))

	got, err := s.Get("prod")
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", got.BearerToken)
}

func TestDeleteThenGetNotFound(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(testProfile()))
	require.NoError(t, s.Delete("prod"))

	_, err = s.Get("prod")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("prod"), ErrNotFound)
}

func TestListSorted(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		p := testProfile()
		p.Name = name
		require.NoError(t, s.Put(p))
	}

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestSecretsNeverOnDiskInPlaintext(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(testProfile()))

	data, err := os.ReadFile(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "super-secret-token-value"))
	assert.False(t, strings.Contains(string(data), "leader.example.com"))
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(testProfile()))

	for _, name := range []string{"credentials.enc", "credentials.key"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), name)
	}
}

func TestKeyPersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Put(testProfile()))

	s2, err := Open(dir)
	require.NoError(t, err)
	got, err := s2.Get("prod")
	require.NoError(t, err)
	assert.Equal(t, "super-secret-token-value", got.BearerToken)
	assert.Equal(t, s1.ExportKey(), s2.ExportKey())
}

func TestProfileValidation(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	p := testProfile()
	p.BearerToken = ""
	assert.Error(t, s.Put(p))

	p = testProfile()
	p.AuthType = AuthOAuth
	assert.Error(t, s.Put(p))

	p.OAuthClientID = "cid"
	p.OAuthClientSecret = "csecret"
	p.BearerToken = ""
	assert.NoError(t, s.Put(p))
}
