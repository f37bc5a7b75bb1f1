package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/config"
	"github.com/zalando/go-keyring"
)

type stubAuth struct {
	calls []string
	token string
	err   error
}

func (a *stubAuth) DeviceToken(_ context.Context, clientHint, pin string) (string, error) {
	a.calls = append(a.calls, clientHint+"/"+pin)
	if a.err != nil {
		return "", a.err
	}
	return a.token, nil
}

func newTestStore(t *testing.T, auth Authenticator) (*Store, config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir(), "teleport")
	return NewStore(paths, auth, nil), paths
}

func TestLoadOrCreateIdentity_CreatesOnce(t *testing.T) {
	store, paths := newTestStore(t, &stubAuth{})
	assert.False(t, store.HasIdentity())

	first, err := store.LoadOrCreateIdentity()
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.True(t, store.HasIdentity())

	data, err := os.ReadFile(paths.IdentityFile)
	require.NoError(t, err)
	assert.Equal(t, first, string(data))

	store.newID = func() string { return "should-not-be-used" }
	second, err := store.LoadOrCreateIdentity()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreateIdentity_TrimsExisting(t *testing.T) {
	store, paths := newTestStore(t, &stubAuth{})
	require.NoError(t, os.WriteFile(paths.IdentityFile, []byte("  hint-123\r\n"), 0600))

	id, err := store.LoadOrCreateIdentity()
	require.NoError(t, err)
	assert.Equal(t, "hint-123", id)
}

func TestLoadOrCreateIdentity_EmptyFileIsNotReplaced(t *testing.T) {
	store, paths := newTestStore(t, &stubAuth{})
	require.NoError(t, os.WriteFile(paths.IdentityFile, []byte("\n"), 0600))

	_, err := store.LoadOrCreateIdentity()
	require.Error(t, err)

	data, err := os.ReadFile(paths.IdentityFile)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(data))
}

func TestLoadOrCreateIdentity_CreatesDataDir(t *testing.T) {
	paths := config.NewPaths(filepath.Join(t.TempDir(), "nested", "AmpliFiTeleport"), "teleport")
	store := NewStore(paths, &stubAuth{}, nil)

	_, err := store.LoadOrCreateIdentity()
	require.NoError(t, err)
	assert.FileExists(t, paths.IdentityFile)
}

func TestExchangePIN(t *testing.T) {
	auth := &stubAuth{token: "tok-1"}
	store, paths := newTestStore(t, auth)

	token, err := store.ExchangePIN(context.Background(), "hint", " ABCDE ")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, []string{"hint/ABCDE"}, auth.calls)

	got, err := store.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)
	assert.FileExists(t, paths.TokenFile)

	auth.token = "tok-2"
	_, err = store.ExchangePIN(context.Background(), "hint", "FGHIJ")
	require.NoError(t, err)
	got, err = store.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got, "a new PIN replaces the token")
}

func TestExchangePIN_FailureKeepsToken(t *testing.T) {
	auth := &stubAuth{token: "tok-1"}
	store, _ := newTestStore(t, auth)

	_, err := store.ExchangePIN(context.Background(), "hint", "ABCDE")
	require.NoError(t, err)

	auth.err = errors.New("invalid pin")
	_, err = store.ExchangePIN(context.Background(), "hint", "ZZZZZ")
	assert.ErrorIs(t, err, common.ErrAuth)

	got, err := store.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)
}

func TestExchangePIN_RequiresIdentityAndPIN(t *testing.T) {
	auth := &stubAuth{token: "tok"}
	store, _ := newTestStore(t, auth)

	_, err := store.ExchangePIN(context.Background(), "", "ABCDE")
	assert.ErrorIs(t, err, common.ErrAuth)

	_, err = store.ExchangePIN(context.Background(), "hint", "   ")
	assert.ErrorIs(t, err, common.ErrPinRequired)

	assert.Empty(t, auth.calls)
}

func TestLoadToken_NotFound(t *testing.T) {
	store, paths := newTestStore(t, &stubAuth{})

	_, err := store.LoadToken()
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.False(t, store.HasToken())

	require.NoError(t, os.WriteFile(paths.TokenFile, []byte("  \n"), 0600))
	_, err = store.LoadToken()
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestClear(t *testing.T) {
	store, paths := newTestStore(t, &stubAuth{token: "tok"})

	_, err := store.LoadOrCreateIdentity()
	require.NoError(t, err)
	_, err = store.ExchangePIN(context.Background(), "hint", "ABCDE")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(paths.ConfigFile, []byte("[Interface]\n"), 0600))

	require.NoError(t, store.Clear())
	for _, path := range paths.Artifacts() {
		assert.NoFileExists(t, path)
	}

	require.NoError(t, store.Clear(), "clear is idempotent")
}

func TestClear_ReportsRemainingArtifacts(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}

	store, paths := newTestStore(t, &stubAuth{token: "tok"})
	_, err := store.LoadOrCreateIdentity()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(paths.ConfigFile, []byte("[Interface]\n"), 0600))

	require.NoError(t, os.Chmod(paths.Dir, 0500))
	t.Cleanup(func() { _ = os.Chmod(paths.Dir, 0700) })

	err = store.Clear()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPartialArtifactDeletion)

	var delErr *common.DeletionError
	require.ErrorAs(t, err, &delErr)
	assert.ElementsMatch(t, []string{paths.IdentityFile, paths.ConfigFile}, delErr.Remaining)
}

func TestKeyringVault(t *testing.T) {
	keyring.MockInit()
	paths := config.NewPaths(t.TempDir(), "teleport")
	// A token file left behind by the file backend is removed on clear.
	require.NoError(t, os.WriteFile(paths.TokenFile, []byte("old"), 0600))

	store := NewStore(paths, &stubAuth{token: "tok-k"}, NewVault(common.CredentialBackendKeyring, paths))

	_, err := store.ExchangePIN(context.Background(), "hint", "ABCDE")
	require.NoError(t, err)

	got, err := store.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-k", got)

	require.NoError(t, store.Clear())
	assert.False(t, store.HasToken())
	assert.NoFileExists(t, paths.TokenFile)
}

func TestNewVault_DefaultsToFile(t *testing.T) {
	paths := config.NewPaths(t.TempDir(), "teleport")
	v := NewVault(common.CredentialBackendFile, paths)
	assert.Equal(t, paths.TokenFile, v.Location())
}
