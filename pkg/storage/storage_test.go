package storage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PravicaInc/walletify-go/internal/testutil/hubtest"
	"github.com/PravicaInc/walletify-go/pkg/config"
	"github.com/PravicaInc/walletify-go/pkg/content"
	"github.com/PravicaInc/walletify-go/pkg/encryption"
	"github.com/PravicaInc/walletify-go/pkg/hub"
	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/profile"
	"github.com/PravicaInc/walletify-go/pkg/session"
	"github.com/PravicaInc/walletify-go/pkg/storage"
)

type profilesFunc func(ctx context.Context, username, lookupURL string) (profile.Profile, error)

func (f profilesFunc) Lookup(ctx context.Context, username, lookupURL string) (profile.Profile, error) {
	return f(ctx, username, lookupURL)
}

type fixture struct {
	hub     *hubtest.Hub
	sess    *session.UserSession
	st      *storage.Storage
	appKey  string
	address string
}

func newFixture(t *testing.T, profiles storage.Profiles) *fixture {
	t.Helper()
	h := hubtest.New(t)
	cfg := &config.Config{AppDomain: "https://app.example"}
	require.NoError(t, cfg.Validate())
	sess := session.New(cfg, session.NewMemoryStore(), nil)

	appKey, err := keys.GeneratePrivateKey()
	require.NoError(t, err)
	address, err := keys.PrivateKeyToAddress(appKey)
	require.NoError(t, err)
	require.NoError(t, sess.Update(context.Background(), func(d *session.SessionData) error {
		d.UserData = &session.UserData{AppPrivateKey: appKey, HubURL: h.URL()}
		return nil
	}))

	return &fixture{
		hub:     h,
		sess:    sess,
		st:      storage.New(sess, hub.NewClient(5*time.Second), profiles),
		appKey:  appKey,
		address: address,
	}
}

func (f *fixture) etag(t *testing.T, path string) (string, bool) {
	t.Helper()
	data, err := f.sess.Data(context.Background())
	require.NoError(t, err)
	return data.Etag(path)
}

func TestHubConnectionIsCached(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cfg, err := f.st.GetOrSetLocalHubConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.address, cfg.Address)
	assert.Equal(t, f.hub.URL(), cfg.Server)

	again, err := f.st.GetOrSetLocalHubConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg.Token, again.Token)
	assert.Equal(t, 1, f.hub.Connects())

	ud, err := f.sess.LoadUserData(ctx)
	require.NoError(t, err)
	require.NotNil(t, ud.GaiaHubConfig)
	assert.Equal(t, cfg.Address, ud.GaiaHubConfig.Address)

	_, err = f.st.SetLocalHubConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.hub.Connects())
}

func TestMissingUserData(t *testing.T) {
	cfg := &config.Config{AppDomain: "https://app.example"}
	require.NoError(t, cfg.Validate())
	sess := session.New(cfg, session.NewMemoryStore(), nil)
	st := storage.New(sess, hub.NewClient(time.Second), nil)

	_, err := st.GetOrSetLocalHubConnection(context.Background())
	require.ErrorIs(t, err, session.ErrMissingUserData)
	_, err = st.PutFile(context.Background(), "a.txt", "x")
	require.ErrorIs(t, err, session.ErrMissingUserData)
}

func TestPutFile_PlainTooLarge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.hub.SetMaxUploadMegabytes(0.001)
	cfg, err := f.st.GetOrSetLocalHubConnection(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1048), cfg.MaxUploadBytes())

	_, err = f.st.PutFile(ctx, "big.bin", make([]byte, 2000), storage.WithEncrypt(false))
	var tooLarge *storage.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.False(t, tooLarge.Encrypted)
	assert.Equal(t, int64(2000), tooLarge.Size)
	assert.Equal(t, int64(1048), tooLarge.MaxBytes)
	assert.ErrorIs(t, err, hub.ErrPayloadTooLarge)
	assert.Equal(t, 0, f.hub.Stores())
	assert.Equal(t, 1, f.hub.Connects())
}

func TestPutFile_ProjectedEncryptedSize(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.hub.SetMaxUploadMegabytes(0.001)

	// 600 bytes fit in plain form but not once hex encoded in an envelope.
	_, err := f.st.PutFile(ctx, "big.txt", strings.Repeat("a", 600))
	var tooLarge *storage.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.True(t, tooLarge.Encrypted)
	want, err := encryption.EstimatedJSONLength(600, true, false, encryption.EncodingHex)
	require.NoError(t, err)
	assert.Equal(t, want, tooLarge.Size)
	assert.Equal(t, 0, f.hub.Stores())

	out, err := f.st.PutFile(ctx, "small.txt", strings.Repeat("a", 100))
	require.NoError(t, err)
	assert.NotEmpty(t, out.Etag)
	stored, ok := f.hub.File(f.address, "small.txt")
	require.True(t, ok)
	projected, err := encryption.EstimatedJSONLength(100, true, false, encryption.EncodingHex)
	require.NoError(t, err)
	assert.Equal(t, projected, int64(len(stored.Data)))
	assert.Equal(t, "application/json", stored.ContentType)
}

func TestPutFile_EtagUpdates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.st.PutFile(ctx, "notes.txt", "v1", storage.WithEncrypt(false))
	require.NoError(t, err)
	etag, ok := f.etag(t, "notes.txt")
	require.True(t, ok)
	assert.Equal(t, first.Etag, etag)

	second, err := f.st.PutFile(ctx, "notes.txt", "v2", storage.WithEncrypt(false))
	require.NoError(t, err)
	assert.NotEqual(t, first.Etag, second.Etag)
	etag, _ = f.etag(t, "notes.txt")
	assert.Equal(t, second.Etag, etag)

	stored, _ := f.hub.File(f.address, "notes.txt")
	assert.Equal(t, "v2", string(stored.Data))
	assert.Equal(t, content.TextContentType, stored.ContentType)
	assert.Equal(t, f.hub.ReadPrefix()+f.address+"/notes.txt", second.PublicURL)
}

func TestPutFile_EtagConflicts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Another device wrote a file this session has never seen.
	f.hub.Put(f.address, "shared.txt", []byte("theirs"), "text/plain")
	_, err := f.st.PutFile(ctx, "shared.txt", "mine", storage.WithEncrypt(false))
	require.ErrorIs(t, err, hub.ErrPreconditionFailed)
	var writeErr *hub.RemoteWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "shared.txt", writeErr.Path)
	assert.Equal(t, 1, f.hub.StoreCalls("shared.txt"))

	// A stale etag is rejected too.
	_, err = f.st.PutFile(ctx, "own.txt", "v1", storage.WithEncrypt(false))
	require.NoError(t, err)
	f.hub.Put(f.address, "own.txt", []byte("concurrent"), "text/plain")
	_, err = f.st.PutFile(ctx, "own.txt", "v2", storage.WithEncrypt(false))
	require.ErrorIs(t, err, hub.ErrPreconditionFailed)

	out, err := f.st.PutFile(ctx, "own.txt", "v3", storage.WithEncrypt(false), storage.WithoutEtagCheck())
	require.NoError(t, err)
	stored, _ := f.hub.File(f.address, "own.txt")
	assert.Equal(t, "v3", string(stored.Data))
	etag, _ := f.etag(t, "own.txt")
	assert.Equal(t, out.Etag, etag)
}

func TestPutFile_RetriesRecoverableOnce(t *testing.T) {
	tests := []struct {
		name   string
		inject func(h *hubtest.Hub)
	}{
		{"conflict", func(h *hubtest.Hub) { h.FailStores(nil, http.StatusConflict, 1) }},
		{"server error", func(h *hubtest.Hub) { h.FailStores(nil, http.StatusBadGateway, 1) }},
		{"expired token", func(h *hubtest.Hub) { h.ExpireTokens() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			_, err := f.st.GetOrSetLocalHubConnection(ctx)
			require.NoError(t, err)
			tt.inject(f.hub)

			out, err := f.st.PutFile(ctx, "r.txt", "retry me")
			require.NoError(t, err)
			assert.Equal(t, 2, f.hub.StoreCalls("r.txt"))
			assert.Equal(t, 2, f.hub.Connects())

			stored, ok := f.hub.File(f.address, "r.txt")
			require.True(t, ok)
			assert.Equal(t, stored.Etag, out.Etag)
			etag, _ := f.etag(t, "r.txt")
			assert.Equal(t, out.Etag, etag)
		})
	}
}

func TestPutFile_SecondFailurePropagates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.hub.FailStores(nil, http.StatusInternalServerError, 2)

	_, err := f.st.PutFile(ctx, "r.txt", "x")
	var hubErr *hub.HubError
	require.ErrorAs(t, err, &hubErr)
	assert.Equal(t, http.StatusInternalServerError, hubErr.StatusCode)
	assert.Equal(t, 2, f.hub.StoreCalls("r.txt"))
	_, ok := f.etag(t, "r.txt")
	assert.False(t, ok)
}

func TestPutFile_ForbiddenIsNotRetried(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.hub.FailStores(nil, http.StatusForbidden, 1)

	_, err := f.st.PutFile(ctx, "f.txt", "x")
	var writeErr *hub.RemoteWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, http.StatusForbidden, writeErr.Hub.StatusCode)
	assert.Equal(t, 1, f.hub.StoreCalls("f.txt"))
	assert.Equal(t, 1, f.hub.Connects())
}

func TestPutFile_SignedDualUpload(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.st.PutFile(ctx, "pub.txt", "hello", storage.WithEncrypt(false), storage.WithSign(true))
	require.NoError(t, err)

	stored, ok := f.hub.File(f.address, "pub.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(stored.Data))
	assert.Equal(t, out.Etag, stored.Etag)

	sigFile, ok := f.hub.File(f.address, "pub.txt"+storage.SignatureSuffix)
	require.True(t, ok)
	assert.Equal(t, "application/json", sigFile.ContentType)
	var sig encryption.SignatureObject
	require.NoError(t, json.Unmarshal(sigFile.Data, &sig))
	appPub, err := keys.PublicKeyFromPrivate(f.appKey)
	require.NoError(t, err)
	assert.Equal(t, appPub, sig.PublicKey)
	assert.True(t, encryption.VerifyECDSA([]byte("hello"), sig.PublicKey, sig.Signature))

	etag, _ := f.etag(t, "pub.txt")
	assert.Equal(t, out.Etag, etag)

	// The signature is rewritten on updates.
	_, err = f.st.PutFile(ctx, "pub.txt", "hello again", storage.WithEncrypt(false), storage.WithSign(true))
	require.NoError(t, err)
	sigFile, _ = f.hub.File(f.address, "pub.txt"+storage.SignatureSuffix)
	require.NoError(t, json.Unmarshal(sigFile.Data, &sig))
	assert.True(t, encryption.VerifyECDSA([]byte("hello again"), sig.PublicKey, sig.Signature))
}

func TestPutFile_SignedWithExplicitKey(t *testing.T) {
	f := newFixture(t, nil)
	signer, err := keys.GeneratePrivateKey()
	require.NoError(t, err)
	signerPub, err := keys.PublicKeyFromPrivate(signer)
	require.NoError(t, err)

	_, err = f.st.PutFile(context.Background(), "pub.bin", []byte{1, 2, 3}, storage.WithEncrypt(false), storage.WithSignKey(signer))
	require.NoError(t, err)
	sigFile, ok := f.hub.File(f.address, "pub.bin.sig")
	require.True(t, ok)
	var sig encryption.SignatureObject
	require.NoError(t, json.Unmarshal(sigFile.Data, &sig))
	assert.Equal(t, signerPub, sig.PublicKey)
	assert.True(t, encryption.VerifyECDSA([]byte{1, 2, 3}, signerPub, sig.Signature))
}

func TestPutFile_SignatureFailureCommitsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.hub.FailStores(func(p string) bool { return strings.HasSuffix(p, storage.SignatureSuffix) }, http.StatusForbidden, 1)

	_, err := f.st.PutFile(context.Background(), "pub.txt", "hello", storage.WithEncrypt(false), storage.WithSign(true))
	var writeErr *hub.RemoteWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "pub.txt.sig", writeErr.Path)
	_, ok := f.etag(t, "pub.txt")
	assert.False(t, ok)
}

func TestPutFile_EncryptedRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.st.PutFile(ctx, "secret.txt", "top secret")
	require.NoError(t, err)
	stored, _ := f.hub.File(f.address, "secret.txt")
	assert.NotContains(t, string(stored.Data), "top secret")

	fc, err := f.st.GetFile(ctx, "secret.txt")
	require.NoError(t, err)
	assert.True(t, fc.Text)
	assert.Equal(t, "top secret", fc.String())

	_, err = f.st.PutFile(ctx, "secret.bin", []byte{0, 1, 2}, storage.WithCipherTextEncoding(encryption.EncodingBase64))
	require.NoError(t, err)
	fc, err = f.st.GetFile(ctx, "secret.bin")
	require.NoError(t, err)
	assert.False(t, fc.Text)
	assert.Equal(t, []byte{0, 1, 2}, fc.Data)
}

func TestPutFile_EncryptToOtherKey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	recipient, err := keys.GeneratePrivateKey()
	require.NoError(t, err)
	recipientPub, err := keys.PublicKeyFromPrivate(recipient)
	require.NoError(t, err)

	_, err = f.st.PutFile(ctx, "for-bob.txt", "hi bob", storage.WithEncryptKey(recipientPub))
	require.NoError(t, err)

	_, err = f.st.GetFile(ctx, "for-bob.txt")
	require.ErrorIs(t, err, encryption.ErrMACMismatch)

	fc, err := f.st.GetFile(ctx, "for-bob.txt", storage.WithDecryptKey(recipient))
	require.NoError(t, err)
	assert.Equal(t, "hi bob", fc.String())
}

func TestPutFile_StreamsBlobs(t *testing.T) {
	f := newFixture(t, nil)
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a":1}`), 0o600))
	blob, err := content.FileBlob(path, "")
	require.NoError(t, err)

	_, err = f.st.PutFile(context.Background(), "doc.json", blob, storage.WithEncrypt(false))
	require.NoError(t, err)
	stored, _ := f.hub.File(f.address, "doc.json")
	assert.Equal(t, `{"a":1}`, string(stored.Data))
	assert.Equal(t, "application/json", stored.ContentType)
}

func TestPutFile_LegacyHub(t *testing.T) {
	f := newFixture(t, nil)
	f.hub.SetLegacyAuth(true)

	_, err := f.st.PutFile(context.Background(), "legacy.txt", "ok", storage.WithEncrypt(false))
	require.NoError(t, err)
	_, ok := f.hub.File(f.address, "legacy.txt")
	assert.True(t, ok)
}

func TestPutFile_UnsupportedContent(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.st.PutFile(context.Background(), "x", 42)
	require.Error(t, err)
	assert.Equal(t, 0, f.hub.Stores())
}
