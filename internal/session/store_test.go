package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"odinbots/internal/domain"
)

func testRecord(bot domain.BotName) domain.SessionRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.SessionRecord{
		Version:     domain.SessionRecordVersion,
		BotName:     bot,
		Address:     "addr-" + domain.Address(bot),
		Principal:   "principal-" + domain.Principal(bot),
		BearerToken: "bearer-" + string(bot),
		SessionSeed: []byte("0123456789abcdef0123456789abcdef"),
		Delegation: domain.DelegationChain{
			PublicKey: []byte("user-public-key"),
			Delegations: []domain.SignedDelegation{{
				Delegation: domain.DelegationLink{Pubkey: []byte("session-key"), Expiration: now.Add(time.Hour).UnixNano()},
				Signature:  []byte("sig"),
			}},
		},
		IssuedAt:  now,
		Lifetime:  time.Hour,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := NewFileStore(t.TempDir(), "prd")
	rec := testRecord("alpha")

	require.NoError(t, s.Save(rec))
	got, ok, err := s.Load("alpha")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestFileStoreMissing(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	_, ok, err := s.Load("ghost")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStorePathNetworkSuffix(t *testing.T) {
	require.Equal(t, filepath.Join("d", "session_alpha.json"), NewFileStore("d", "prd").Path("alpha"))
	require.Equal(t, filepath.Join("d", "session_alpha.json"), NewFileStore("d", "").Path("alpha"))
	require.Equal(t, filepath.Join("d", "session_alpha_testing.json"), NewFileStore("d", "testing").Path("alpha"))
	require.Equal(t, filepath.Join("d", "session_a%20b.json"), NewFileStore("d", "").Path("a b"))
	// "a b" and "a_b" are distinct bots and must map to distinct files.
	require.NotEqual(t, NewFileStore("d", "").Path("a b"), NewFileStore("d", "").Path("a_b"))
}

func TestFileStoreDistinctNamesDistinctRecords(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	require.NoError(t, s.Save(testRecord("a b")))
	require.NoError(t, s.Save(testRecord("a_b")))

	spaced, ok, err := s.Load("a b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.BotName("a b"), spaced.BotName)

	underscored, ok, err := s.Load("a_b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.BotName("a_b"), underscored.BotName)
	require.NotEqual(t, spaced.BearerToken, underscored.BearerToken)
}

func TestFileStoreCorruptJSON(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, "")
	require.NoError(t, os.WriteFile(s.Path("alpha"), []byte("{not json"), 0o600))

	_, _, err := s.Load("alpha")
	require.ErrorIs(t, err, domain.ErrCorruptSessionRecord)
}

func TestFileStoreIncompleteRecord(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	rec := testRecord("alpha")
	rec.BearerToken = ""
	require.NoError(t, s.Save(rec))

	_, _, err := s.Load("alpha")
	require.ErrorIs(t, err, domain.ErrCorruptSessionRecord)
}

func TestFileStoreNameMismatch(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, "")
	rec := testRecord("alpha")
	require.NoError(t, s.Save(rec))

	// The file claims alpha but is loaded as beta.
	require.NoError(t, os.Rename(s.Path("alpha"), s.Path("beta")))
	_, _, err := s.Load("beta")
	require.ErrorIs(t, err, domain.ErrCorruptSessionRecord)
}

func TestFileStoreVersionMismatch(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	rec := testRecord("alpha")
	rec.Version = 99
	require.NoError(t, s.Save(rec))

	_, _, err := s.Load("alpha")
	require.ErrorIs(t, err, domain.ErrCorruptSessionRecord)
}

func TestFileStoreDelete(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	require.NoError(t, s.Save(testRecord("alpha")))
	require.NoError(t, s.Delete("alpha"))
	require.NoError(t, s.Delete("alpha"))

	_, ok, err := s.Load("alpha")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStorePermissions(t *testing.T) {
	s := NewFileStore(t.TempDir(), "")
	require.NoError(t, s.Save(testRecord("alpha")))

	info, err := os.Stat(s.Path("alpha"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRecordExpiryUsesLifetime(t *testing.T) {
	rec := testRecord("alpha")
	// ExpiresAt lies in the future; the lifetime window is authoritative.
	rec.ExpiresAt = rec.IssuedAt.Add(100 * time.Hour)

	require.False(t, rec.Expired(rec.IssuedAt.Add(59*time.Minute)))
	require.True(t, rec.Expired(rec.IssuedAt.Add(time.Hour)))
	require.True(t, rec.Expired(rec.IssuedAt.Add(2*time.Hour)))
}
