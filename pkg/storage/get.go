package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/PravicaInc/walletify-go/pkg/content"
	"github.com/PravicaInc/walletify-go/pkg/encryption"
	"github.com/PravicaInc/walletify-go/pkg/hub"
	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/profile"
)

// FileContents is a file read from a hub. Text is set when the body should
// be treated as a string.
type FileContents struct {
	Data        []byte
	Text        bool
	ContentType string
	Etag        string
}

func (f *FileContents) String() string { return string(f.Data) }

// GetFileURL returns the read URL of path. With a username the URL comes
// from the app bucket listed in that user's profile; otherwise from the
// signed-in user's hub connection. An empty app is the configured app domain.
func (s *Storage) GetFileURL(ctx context.Context, path, app, username, zoneFileLookupURL string) (string, error) {
	if username == "" {
		cfg, err := s.GetOrSetLocalHubConnection(ctx)
		if err != nil {
			return "", err
		}
		return cfg.ReadURL(path), nil
	}

	if s.profiles == nil {
		return "", fmt.Errorf("read %s of %s: no profile lookup configured", path, username)
	}
	if app == "" {
		app = s.session.Config().AppDomain
	}
	if zoneFileLookupURL == "" {
		zoneFileLookupURL = s.session.Config().NameLookupURL()
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.timeouts.Lookup)
	defer cancel()
	p, err := s.profiles.Lookup(lookupCtx, username, zoneFileLookupURL)
	if err != nil {
		return "", err
	}
	bucket, ok := p.Apps()[app]
	if !ok || bucket == "" {
		return "", fmt.Errorf("%w: %s for %s", ErrAppBucketNotFound, app, username)
	}
	if !strings.HasSuffix(bucket, "/") {
		bucket += "/"
	}
	return bucket + path, nil
}

// GetFileContents reads path and records the returned etag. The body is
// text when forceText is set or the content type is absent, textual or
// JSON; otherwise raw bytes. A non-2xx answer is a *hub.RemoteReadError.
func (s *Storage) GetFileContents(ctx context.Context, path, app, username, zoneFileLookupURL string, forceText bool) (*FileContents, error) {
	readURL, err := s.GetFileURL(ctx, path, app, username, zoneFileLookupURL)
	if err != nil {
		return nil, err
	}
	resp, err := s.hub.Read(ctx, readURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, &hub.RemoteReadError{URL: readURL, Hub: hub.NewHubError(resp.StatusCode, resp.Body)}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	etag := resp.Header.Get("ETag")
	if etag != "" {
		if err := s.commitEtag(ctx, path, etag); err != nil {
			return nil, err
		}
	}
	return &FileContents{
		Data:        resp.Body,
		Text:        forceText || content.IsText(contentType),
		ContentType: contentType,
		Etag:        etag,
	}, nil
}

// GetFile reads path and, per opts, verifies its signature and decrypts it.
//
// Without verification an encrypted file is decrypted with the explicit key
// or the app key. With verification of a plain file the detached signature
// at path + SignatureSuffix is fetched alongside it; with verification of an
// encrypted file the signature is read from the envelope. Either way the
// signer must be the reading user's app key or, for another user's file,
// the address of that user's app bucket. Failures are *SignatureVerificationError.
func (s *Storage) GetFile(ctx context.Context, path string, opts ...GetFileOption) (*FileContents, error) {
	o := GetFileOptions{Decrypt: KeySetting{Enabled: true}}
	for _, opt := range opts {
		opt(&o)
	}

	switch {
	case !o.Verify:
		fc, err := s.GetFileContents(ctx, path, o.App, o.Username, o.ZoneFileLookupURL, o.Decrypt.Enabled)
		if err != nil || !o.Decrypt.Enabled {
			return fc, err
		}
		return s.decrypt(ctx, fc, fc.String(), &o)

	case !o.Decrypt.Enabled:
		return s.getVerifiedPlain(ctx, path, &o)

	default:
		fc, err := s.GetFileContents(ctx, path, o.App, o.Username, o.ZoneFileLookupURL, true)
		if err != nil {
			return nil, err
		}
		env, err := encryption.ParseSignedEnvelope(fc.String())
		if err != nil {
			return nil, &SignatureVerificationError{Path: path, Reason: "file is not a signed envelope", Err: err}
		}
		if err := s.verifySigner(ctx, path, env.PublicKey, &o); err != nil {
			return nil, err
		}
		if !encryption.VerifyECDSA([]byte(env.CipherText), env.PublicKey, env.Signature) {
			return nil, &SignatureVerificationError{Path: path, Reason: "contents do not match ECDSA signature"}
		}
		return s.decrypt(ctx, fc, env.CipherText, &o)
	}
}

func (s *Storage) decrypt(ctx context.Context, fc *FileContents, envelope string, o *GetFileOptions) (*FileContents, error) {
	privateKey := o.Decrypt.Key
	if privateKey == "" {
		_, ud, err := s.userData(ctx)
		if err != nil {
			return nil, err
		}
		privateKey = ud.AppPrivateKey
	}
	plain, wasString, err := encryption.DecryptContent(envelope, privateKey)
	if err != nil {
		return nil, err
	}
	return &FileContents{Data: plain, Text: wasString, ContentType: fc.ContentType, Etag: fc.Etag}, nil
}

func (s *Storage) getVerifiedPlain(ctx context.Context, path string, o *GetFileOptions) (*FileContents, error) {
	var fc, sigFile *FileContents
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fc, err = s.GetFileContents(gctx, path, o.App, o.Username, o.ZoneFileLookupURL, false)
		return err
	})
	g.Go(func() error {
		var err error
		sigFile, err = s.GetFileContents(gctx, path+SignatureSuffix, o.App, o.Username, o.ZoneFileLookupURL, true)
		if errors.Is(err, hub.ErrNotFound) {
			return &SignatureVerificationError{Path: path, Reason: "failed to obtain signature for file", Err: err}
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var sig encryption.SignatureObject
	if err := json.Unmarshal(sigFile.Data, &sig); err != nil {
		return nil, &SignatureVerificationError{Path: path, Reason: "malformed signature file", Err: err}
	}
	if err := s.verifySigner(ctx, path, sig.PublicKey, o); err != nil {
		return nil, err
	}
	if !encryption.VerifyECDSA(fc.Data, sig.PublicKey, sig.Signature) {
		return nil, &SignatureVerificationError{Path: path, Reason: "contents do not match ECDSA signature"}
	}
	return fc, nil
}

// verifySigner checks that publicKey belongs to the expected signer: the
// app key of the reading user, or the address owning the other user's app
// bucket.
func (s *Storage) verifySigner(ctx context.Context, path, publicKey string, o *GetFileOptions) error {
	signerAddress, err := keys.PublicKeyToAddress(publicKey)
	if err != nil {
		return &SignatureVerificationError{Path: path, Reason: "invalid signer public key", Err: err}
	}

	var expected string
	if o.Username == "" {
		_, ud, err := s.userData(ctx)
		if err != nil {
			return err
		}
		if expected, err = keys.PrivateKeyToAddress(ud.AppPrivateKey); err != nil {
			return err
		}
	} else {
		bucketURL, err := s.GetFileURL(ctx, "", o.App, o.Username, o.ZoneFileLookupURL)
		if err != nil {
			return err
		}
		if expected = bucketAddress(bucketURL); expected == "" {
			return &SignatureVerificationError{Path: path, Reason: "no address in bucket URL " + bucketURL}
		}
	}

	if !profile.OwnerMatches(expected, signerAddress) {
		return &SignatureVerificationError{
			Path:   path,
			Reason: fmt.Sprintf("signer %s is not the expected address %s", signerAddress, expected),
		}
	}
	return nil
}

// bucketAddress is the last path segment of a bucket URL such as
// https://gaia.example/hub/1Abc/.
func bucketAddress(bucketURL string) string {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return ""
	}
	trimmed := strings.TrimRight(u.Path, "/")
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}
