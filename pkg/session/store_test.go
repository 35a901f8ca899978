package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PravicaInc/walletify-go/pkg/hub"
)

func sampleData() *SessionData {
	d := NewSessionData()
	d.TransitKey = "abcd"
	d.Etags["notes.txt"] = "etag-1"
	d.UserData = &UserData{
		AppPrivateKey: "key",
		HubURL:        "https://hub.example",
		GaiaHubConfig: &hub.Config{Address: "1abc", Server: "https://hub.example", Token: "t"},
	}
	return d
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	empty, err := store.GetSessionData(ctx)
	require.NoError(t, err)
	assert.Equal(t, DataVersion, empty.Version)
	assert.Nil(t, empty.UserData)
	assert.NotNil(t, empty.Etags)

	require.NoError(t, store.SetSessionData(ctx, sampleData()))
	got, err := store.GetSessionData(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleData(), got)

	// Mutating a returned record does not touch the store.
	got.Etags["notes.txt"] = "changed"
	again, err := store.GetSessionData(ctx)
	require.NoError(t, err)
	assert.Equal(t, "etag-1", again.Etags["notes.txt"])

	require.NoError(t, store.DeleteSessionData(ctx))
	gone, err := store.GetSessionData(ctx)
	require.NoError(t, err)
	assert.Nil(t, gone.UserData)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestPebbleStore(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenPebbleStore(dir)
	require.NoError(t, err)
	testStore(t, store)

	require.NoError(t, store.SetSessionData(context.Background(), sampleData()))
	require.NoError(t, store.Close())

	reopened, err := OpenPebbleStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetSessionData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "etag-1", got.Etags["notes.txt"])
	assert.Equal(t, "1abc", got.UserData.GaiaHubConfig.Address)
}

func TestSessionDataClone(t *testing.T) {
	d := sampleData()
	c := d.Clone()
	c.Etags["x"] = "y"
	c.UserData.HubURL = "other"
	assert.NotContains(t, d.Etags, "x")
	assert.Equal(t, "https://hub.example", d.UserData.HubURL)

	etag, ok := d.Etag("notes.txt")
	assert.True(t, ok)
	assert.Equal(t, "etag-1", etag)
	_, ok = d.Etag("missing")
	assert.False(t, ok)
}
