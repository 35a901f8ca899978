package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PravicaInc/walletify-go/pkg/content"
	"github.com/PravicaInc/walletify-go/pkg/encryption"
	"github.com/PravicaInc/walletify-go/pkg/hub"
	"github.com/PravicaInc/walletify-go/pkg/keys"
)

const jsonContentType = "application/json"

// UploadOutcome is where a written file can be read and its new etag.
type UploadOutcome struct {
	PublicURL string
	Etag      string
}

// uploadTarget carries the etag guard of one PutFile call.
type uploadTarget struct {
	path       string
	newFile    bool
	etag       string
	ignoreEtag bool
}

func (t uploadTarget) request(body []byte, contentType string) hub.UploadRequest {
	return hub.UploadRequest{
		Path:          t.path,
		Body:          bytes.NewReader(body),
		ContentLength: int64(len(body)),
		ContentType:   contentType,
		NewFile:       t.newFile,
		Etag:          t.etag,
		IgnoreEtag:    t.ignoreEtag,
	}
}

// uploadStrategy is one of plainUpload, sealedUpload or signedUpload. It is
// prepared once per PutFile call and may run twice.
type uploadStrategy interface {
	upload(ctx context.Context, h Hub, cfg *hub.Config, t uploadTarget) (*hub.WriteResponse, error)
}

// plainUpload streams the content unmodified.
type plainUpload struct {
	loader *content.Loader
}

func (u plainUpload) upload(ctx context.Context, h Hub, cfg *hub.Config, t uploadTarget) (*hub.WriteResponse, error) {
	body, err := u.loader.Open()
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return h.Upload(ctx, cfg, hub.UploadRequest{
		Path:          t.path,
		Body:          body,
		ContentLength: u.loader.ByteLength(),
		ContentType:   u.loader.ContentType(),
		NewFile:       t.newFile,
		Etag:          t.etag,
		IgnoreEtag:    t.ignoreEtag,
	})
}

// sealedUpload writes an encrypted, optionally signed, envelope.
type sealedUpload struct {
	envelope []byte
}

func (u sealedUpload) upload(ctx context.Context, h Hub, cfg *hub.Config, t uploadTarget) (*hub.WriteResponse, error) {
	return h.Upload(ctx, cfg, t.request(u.envelope, jsonContentType))
}

// signedUpload writes the content and its detached signature concurrently.
// Both must succeed; the content upload is the outcome.
type signedUpload struct {
	data        []byte
	contentType string
	signature   []byte
}

func (u signedUpload) upload(ctx context.Context, h Hub, cfg *hub.Config, t uploadTarget) (*hub.WriteResponse, error) {
	var primary *hub.WriteResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := h.Upload(gctx, cfg, t.request(u.data, u.contentType))
		if err != nil {
			return err
		}
		primary = resp
		return nil
	})
	g.Go(func() error {
		sigTarget := uploadTarget{path: t.path + SignatureSuffix, ignoreEtag: true}
		_, err := h.Upload(gctx, cfg, sigTarget.request(u.signature, jsonContentType))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return primary, nil
}

// PutFile stores data at path on the signed-in user's hub.
//
// Parameters:
//   - path: file name inside the app bucket.
//   - data: a string, []byte, *bytes.Buffer, content.Blob or *content.Loader.
//   - opts: see PutFileOptions for defaults.
//
// Oversized content fails with *PayloadTooLargeError before any upload.
// A file with an etag on record is written as an update guarded by
// If-Match, any other file as a new file. A recoverable hub error (see
// IsRecoverable) is retried once with a fresh hub connection.
func (s *Storage) PutFile(ctx context.Context, path string, data any, opts ...PutFileOption) (*UploadOutcome, error) {
	o := defaultPutFileOptions()
	for _, opt := range opts {
		opt(&o)
	}

	loader, ok := data.(*content.Loader)
	if !ok {
		var err error
		if loader, err = content.New(data, o.ContentType); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Upload)
	defer cancel()

	cfg, err := s.GetOrSetLocalHubConnection(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkSize(cfg.MaxUploadBytes(), loader, &o); err != nil {
		zap.L().Error("Upload rejected", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	sessionData, ud, err := s.userData(ctx)
	if err != nil {
		return nil, err
	}
	target := uploadTarget{path: path, newFile: true, ignoreEtag: o.DangerouslyIgnoreEtag}
	if !o.DangerouslyIgnoreEtag {
		if etag, ok := sessionData.Etag(path); ok {
			target.newFile = false
			target.etag = etag
		}
	}

	strategy, err := prepareUpload(ctx, loader, &o, ud.AppPrivateKey)
	if err != nil {
		return nil, err
	}

	var out *hub.WriteResponse
	err = s.withHubRetry(ctx, "put "+path, cfg, func(ctx context.Context, cfg *hub.Config) error {
		resp, err := strategy.upload(ctx, s.hub, cfg, target)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Etag != "" && commitsEtag(strategy, o.DangerouslyIgnoreEtag) {
		if err := s.commitEtag(ctx, path, out.Etag); err != nil {
			return nil, err
		}
	}
	return &UploadOutcome{PublicURL: out.PublicURL, Etag: out.Etag}, nil
}

// checkSize rejects content over maxBytes. Encrypted content is measured by
// its projected envelope length so nothing is encrypted in vain.
func checkSize(maxBytes int64, loader *content.Loader, o *PutFileOptions) error {
	if maxBytes <= 0 {
		return nil
	}
	if !o.Encrypt.Enabled {
		if loader.ByteLength() > maxBytes {
			return &PayloadTooLargeError{MaxBytes: maxBytes, Size: loader.ByteLength()}
		}
		return nil
	}
	projected, err := encryption.EstimatedJSONLength(loader.ByteLength(), loader.WasString(), o.Sign.Enabled, o.CipherTextEncoding)
	if err != nil {
		return err
	}
	if projected > maxBytes {
		return &PayloadTooLargeError{MaxBytes: maxBytes, Size: projected, Encrypted: true}
	}
	return nil
}

// prepareUpload picks the strategy for (encrypt, sign) and performs the
// loading, signing and encryption it needs.
func prepareUpload(ctx context.Context, loader *content.Loader, o *PutFileOptions, appKey string) (uploadStrategy, error) {
	switch {
	case !o.Encrypt.Enabled && !o.Sign.Enabled:
		return plainUpload{loader: loader}, nil

	case !o.Encrypt.Enabled:
		body, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		signingKey := o.Sign.Key
		if signingKey == "" {
			signingKey = appKey
		}
		sig, err := encryption.SignECDSA(signingKey, body)
		if err != nil {
			return nil, fmt.Errorf("sign: %w", err)
		}
		sigJSON, err := json.Marshal(sig)
		if err != nil {
			return nil, err
		}
		return signedUpload{data: body, contentType: loader.ContentType(), signature: sigJSON}, nil

	default:
		publicKey, err := sealingKey(o, appKey)
		if err != nil {
			return nil, err
		}
		body, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		envelope, err := encryption.EncryptContent(body, encryption.EncryptOptions{
			PublicKey:          publicKey,
			PrivateKey:         appKey,
			Sign:               o.Sign.Enabled,
			SigningKey:         o.Sign.Key,
			WasString:          loader.WasString(),
			CipherTextEncoding: o.CipherTextEncoding,
		})
		if err != nil {
			return nil, fmt.Errorf("encrypt: %w", err)
		}
		return sealedUpload{envelope: []byte(envelope)}, nil
	}
}

// sealingKey is the explicit encryption key, else the public key of the
// explicit signing key, else the app public key.
func sealingKey(o *PutFileOptions, appKey string) (string, error) {
	switch {
	case o.Encrypt.Key != "":
		return o.Encrypt.Key, nil
	case o.Sign.Key != "":
		return keys.PublicKeyFromPrivate(o.Sign.Key)
	default:
		return keys.PublicKeyFromPrivate(appKey)
	}
}

// commitsEtag reports whether a successful upload records its etag. The
// dual upload skips it when etag checks are off.
func commitsEtag(strategy uploadStrategy, ignoreEtag bool) bool {
	if _, dual := strategy.(signedUpload); dual {
		return !ignoreEtag
	}
	return true
}
