package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PravicaInc/walletify-go/pkg/encryption"
	"github.com/PravicaInc/walletify-go/pkg/hub"
	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/profile"
	"github.com/PravicaInc/walletify-go/pkg/storage"
)

func TestGetFileContents_DecodesByContentType(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	jsonEtag := f.hub.Put(f.address, "a.json", []byte(`{"x":1}`), "application/json")
	f.hub.Put(f.address, "b.bin", []byte{0xff, 0x00}, "application/octet-stream")
	f.hub.Put(f.address, "c", []byte("untyped"), "")

	fc, err := f.st.GetFileContents(ctx, "a.json", "", "", "", false)
	require.NoError(t, err)
	assert.True(t, fc.Text)
	assert.Equal(t, `{"x":1}`, fc.String())
	assert.Equal(t, jsonEtag, fc.Etag)
	etag, _ := f.etag(t, "a.json")
	assert.Equal(t, jsonEtag, etag)

	fc, err = f.st.GetFileContents(ctx, "b.bin", "", "", "", false)
	require.NoError(t, err)
	assert.False(t, fc.Text)
	assert.Equal(t, []byte{0xff, 0x00}, fc.Data)

	fc, err = f.st.GetFileContents(ctx, "b.bin", "", "", "", true)
	require.NoError(t, err)
	assert.True(t, fc.Text)

	fc, err = f.st.GetFileContents(ctx, "c", "", "", "", false)
	require.NoError(t, err)
	assert.True(t, fc.Text)
}

func TestGetFileContents_Missing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.st.GetFileContents(context.Background(), "nope.txt", "", "", "", false)
	var readErr *hub.RemoteReadError
	require.ErrorAs(t, err, &readErr)
	assert.Contains(t, readErr.URL, "/nope.txt")
	assert.ErrorIs(t, err, hub.ErrNotFound)
}

func TestGetFileURL(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	u, err := f.st.GetFileURL(ctx, "x.txt", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, f.hub.ReadPrefix()+f.address+"/x.txt", u)

	_, err = f.st.GetFileURL(ctx, "x.txt", "", "bob.id", "")
	require.Error(t, err)
}

// otherUser seeds a second bucket and a profile listing it for the app.
func otherUser(t *testing.T, f *fixture) (string, string, storage.Profiles) {
	t.Helper()
	key, err := keys.GeneratePrivateKey()
	require.NoError(t, err)
	address, err := keys.PrivateKeyToAddress(key)
	require.NoError(t, err)
	bucket := f.hub.ReadPrefix() + address
	profiles := profilesFunc(func(_ context.Context, username, lookupURL string) (profile.Profile, error) {
		if username != "bob.id" {
			return nil, profile.ErrNameNotFound
		}
		assert.Equal(t, "https://stacks-node-api.mainnet.stacks.co/v1/names", lookupURL)
		return profile.Profile{"apps": map[string]any{"https://app.example": bucket}}, nil
	})
	return key, address, profiles
}

func TestGetFile_OtherUser(t *testing.T) {
	f := newFixture(t, nil)
	key, address, profiles := otherUser(t, f)
	f.st = storage.New(f.sess, hub.NewClient(5*time.Second), profiles)
	ctx := context.Background()

	sig, err := encryption.SignECDSA(key, []byte("from bob"))
	require.NoError(t, err)
	sigJSON, err := json.Marshal(sig)
	require.NoError(t, err)
	f.hub.Put(address, "pub.txt", []byte("from bob"), "text/plain")
	f.hub.Put(address, "pub.txt.sig", sigJSON, "application/json")

	u, err := f.st.GetFileURL(ctx, "pub.txt", "", "bob.id", "")
	require.NoError(t, err)
	assert.Equal(t, f.hub.ReadPrefix()+address+"/pub.txt", u)

	fc, err := f.st.GetFile(ctx, "pub.txt", storage.WithDecrypt(false), storage.WithVerify(true), storage.FromUser("bob.id", "", ""))
	require.NoError(t, err)
	assert.Equal(t, "from bob", fc.String())

	// Signed by the reader instead of bob.
	mine, err := encryption.SignECDSA(f.appKey, []byte("from bob"))
	require.NoError(t, err)
	mineJSON, err := json.Marshal(mine)
	require.NoError(t, err)
	f.hub.Put(address, "pub.txt.sig", mineJSON, "application/json")
	_, err = f.st.GetFile(ctx, "pub.txt", storage.WithDecrypt(false), storage.WithVerify(true), storage.FromUser("bob.id", "", ""))
	var verr *storage.SignatureVerificationError
	require.ErrorAs(t, err, &verr)

	_, err = f.st.GetFile(ctx, "pub.txt", storage.WithDecrypt(false), storage.FromUser("bob.id", "https://other.example", ""))
	require.ErrorIs(t, err, storage.ErrAppBucketNotFound)
}

func TestGetFile_VerifiesDetachedSignature(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	verified := []storage.GetFileOption{storage.WithDecrypt(false), storage.WithVerify(true)}

	_, err := f.st.PutFile(ctx, "pub.txt", "signed text", storage.WithEncrypt(false), storage.WithSign(true))
	require.NoError(t, err)
	fc, err := f.st.GetFile(ctx, "pub.txt", verified...)
	require.NoError(t, err)
	assert.Equal(t, "signed text", fc.String())
	assert.True(t, fc.Text)

	f.hub.Put(f.address, "pub.txt", []byte("tampered"), "text/plain")
	_, err = f.st.GetFile(ctx, "pub.txt", verified...)
	var verr *storage.SignatureVerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pub.txt", verr.Path)

	f.hub.Put(f.address, "unsigned.txt", []byte("x"), "text/plain")
	_, err = f.st.GetFile(ctx, "unsigned.txt", verified...)
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, hub.ErrNotFound)
}

func TestGetFile_VerifiesSignedEnvelope(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.st.PutFile(ctx, "both.txt", "sealed and signed", storage.WithSign(true))
	require.NoError(t, err)
	fc, err := f.st.GetFile(ctx, "both.txt", storage.WithVerify(true))
	require.NoError(t, err)
	assert.Equal(t, "sealed and signed", fc.String())

	// Without verification the outer envelope is not a plain cipher object.
	_, err = f.st.GetFile(ctx, "both.txt")
	require.Error(t, err)

	intruder, err := keys.GeneratePrivateKey()
	require.NoError(t, err)
	appPub, err := keys.PublicKeyFromPrivate(f.appKey)
	require.NoError(t, err)
	forged, err := encryption.EncryptContent([]byte("forged"), encryption.EncryptOptions{
		PublicKey:  appPub,
		PrivateKey: intruder,
		Sign:       true,
		WasString:  true,
	})
	require.NoError(t, err)
	f.hub.Put(f.address, "both.txt", []byte(forged), "application/json")

	_, err = f.st.GetFile(ctx, "both.txt", storage.WithVerify(true))
	var verr *storage.SignatureVerificationError
	require.ErrorAs(t, err, &verr)

	_, err = f.st.PutFile(ctx, "plain-sealed.txt", "no signature")
	require.NoError(t, err)
	_, err = f.st.GetFile(ctx, "plain-sealed.txt", storage.WithVerify(true))
	require.ErrorAs(t, err, &verr)
}

func TestDeleteFile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.st.PutFile(ctx, "gone.txt", "bye", storage.WithEncrypt(false))
	require.NoError(t, err)
	require.NoError(t, f.st.DeleteFile(ctx, "gone.txt"))
	_, ok := f.hub.File(f.address, "gone.txt")
	assert.False(t, ok)
	_, ok = f.etag(t, "gone.txt")
	assert.False(t, ok)

	err = f.st.DeleteFile(ctx, "gone.txt")
	require.ErrorIs(t, err, hub.ErrNotFound)

	_, err = f.st.PutFile(ctx, "signed.txt", "x", storage.WithEncrypt(false), storage.WithSign(true))
	require.NoError(t, err)
	require.NoError(t, f.st.DeleteFile(ctx, "signed.txt", storage.WasSigned()))
	_, ok = f.hub.File(f.address, "signed.txt.sig")
	assert.False(t, ok)
}

func TestDeleteFile_EtagGuard(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.st.PutFile(ctx, "race.txt", "v1", storage.WithEncrypt(false))
	require.NoError(t, err)
	f.hub.Put(f.address, "race.txt", []byte("v2 elsewhere"), "text/plain")

	err = f.st.DeleteFile(ctx, "race.txt")
	require.ErrorIs(t, err, hub.ErrPreconditionFailed)
	_, ok := f.hub.File(f.address, "race.txt")
	assert.True(t, ok)

	require.NoError(t, f.st.DeleteFile(ctx, "race.txt", storage.DeleteWithoutEtagCheck()))
	_, ok = f.hub.File(f.address, "race.txt")
	assert.False(t, ok)
}

func TestDeleteFile_RetriesExpiredToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.st.PutFile(ctx, "d.txt", "x", storage.WithEncrypt(false))
	require.NoError(t, err)
	f.hub.ExpireTokens()

	require.NoError(t, f.st.DeleteFile(ctx, "d.txt"))
	assert.Equal(t, 2, f.hub.Connects())
}

func TestListFiles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		f.hub.Put(f.address, name, []byte(name), "text/plain")
	}

	var names []string
	count, err := f.st.ListFiles(ctx, func(name string) bool {
		names = append(names, name)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names)

	count, err = f.st.ListFiles(ctx, func(string) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	f.hub.ExpireTokens()
	count, err = f.st.ListFiles(ctx, func(string) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestListFiles_Empty(t *testing.T) {
	f := newFixture(t, nil)
	count, err := f.st.ListFiles(context.Background(), func(string) bool {
		t.Fatal("no files expected")
		return false
	})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIsRecoverable(t *testing.T) {
	for status, want := range map[int]bool{
		401: true, 409: true, 500: true, 503: true, 599: true,
		400: false, 403: false, 404: false, 412: false, 413: false,
	} {
		err := &hub.RemoteWriteError{Path: "p", Hub: hub.NewHubError(status, nil)}
		assert.Equal(t, want, storage.IsRecoverable(err), "status %d", status)
	}
	assert.False(t, storage.IsRecoverable(errors.New("network down")))
	assert.False(t, storage.IsRecoverable(nil))
}
