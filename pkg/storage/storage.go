package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/PravicaInc/walletify-go/pkg/config"
	"github.com/PravicaInc/walletify-go/pkg/hub"
	"github.com/PravicaInc/walletify-go/pkg/profile"
	"github.com/PravicaInc/walletify-go/pkg/session"
)

// SignatureSuffix names the detached signature written next to a file that
// is signed but not encrypted.
const SignatureSuffix = ".sig"

// Session is the part of a user session storage needs: the app config, the
// session record and its single update point.
type Session interface {
	Config() *config.Config
	Data(ctx context.Context) (*session.SessionData, error)
	Update(ctx context.Context, fn func(*session.SessionData) error) error
}

// Hub speaks the storage hub protocol. hub.Client is the HTTP
// implementation.
type Hub interface {
	Connect(ctx context.Context, req hub.ConnectRequest) (*hub.Config, error)
	Upload(ctx context.Context, cfg *hub.Config, req hub.UploadRequest) (*hub.WriteResponse, error)
	Read(ctx context.Context, url string) (*hub.ReadResponse, error)
	Delete(ctx context.Context, cfg *hub.Config, req hub.DeleteRequest) error
	List(ctx context.Context, cfg *hub.Config, page *string) (*hub.ListResponse, error)
}

// Profiles resolves other users' profiles. profile.Client implements it.
type Profiles interface {
	Lookup(ctx context.Context, username, lookupURL string) (profile.Profile, error)
}

// Storage reads and writes the signed-in user's files on their hub.
type Storage struct {
	session  Session
	hub      Hub
	profiles Profiles
	timeouts config.Timeouts
}

// New composes a Storage. profiles may be nil when reads of other users'
// files are not needed.
func New(sess Session, h Hub, profiles Profiles) *Storage {
	return &Storage{
		session:  sess,
		hub:      h,
		profiles: profiles,
		timeouts: sess.Config().Timeouts.WithDefaults(),
	}
}

// PayloadTooLargeError reports content over the hub's upload limit. Size is
// the projected envelope length when Encrypted is set.
type PayloadTooLargeError struct {
	MaxBytes  int64
	Size      int64
	Encrypted bool
}

func (e *PayloadTooLargeError) Error() string {
	msg := fmt.Sprintf("the max file upload size for this hub is %d bytes, the given content is %d bytes", e.MaxBytes, e.Size)
	if e.Encrypted {
		msg += " after encryption"
	}
	return msg
}

// Is matches hub.ErrPayloadTooLarge.
func (e *PayloadTooLargeError) Is(target error) bool {
	return target == hub.ErrPayloadTooLarge
}

// SignatureVerificationError is a signed file whose signature or signer
// does not check out.
type SignatureVerificationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SignatureVerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verify %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("verify %q: %s", e.Path, e.Reason)
}

func (e *SignatureVerificationError) Unwrap() error { return e.Err }

// ErrAppBucketNotFound means a user's profile lists no bucket for the app.
var ErrAppBucketNotFound = errors.New("storage: app bucket not found in profile")

// IsRecoverable reports whether err carries a hub status worth one retry
// against a fresh connection: 401, 409 or any 5xx.
func IsRecoverable(err error) bool {
	var hubErr *hub.HubError
	if !errors.As(err, &hubErr) {
		return false
	}
	switch code := hubErr.StatusCode; {
	case code == http.StatusUnauthorized, code == http.StatusConflict:
		return true
	case code >= 500 && code <= 599:
		return true
	}
	return false
}

// userData loads the signed-in user or fails with session.ErrMissingUserData.
func (s *Storage) userData(ctx context.Context) (*session.SessionData, *session.UserData, error) {
	data, err := s.session.Data(ctx)
	if err != nil {
		return nil, nil, err
	}
	if data.UserData == nil {
		return nil, nil, session.ErrMissingUserData
	}
	return data, data.UserData, nil
}

// GetOrSetLocalHubConnection returns the cached hub connection of the
// signed-in user, connecting when none is cached.
func (s *Storage) GetOrSetLocalHubConnection(ctx context.Context) (*hub.Config, error) {
	_, ud, err := s.userData(ctx)
	if err != nil {
		return nil, err
	}
	if ud.GaiaHubConfig != nil {
		return ud.GaiaHubConfig, nil
	}
	return s.SetLocalHubConnection(ctx)
}

// SetLocalHubConnection connects to the user's hub and persists the new
// connection in the session, replacing any cached one.
func (s *Storage) SetLocalHubConnection(ctx context.Context) (*hub.Config, error) {
	_, ud, err := s.userData(ctx)
	if err != nil {
		return nil, err
	}
	hubURL := ud.HubURL
	if hubURL == "" {
		hubURL = s.session.Config().HubURL
	}
	if hubURL == "" {
		hubURL = config.DefaultHubURL
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.timeouts.HubConnect)
	defer cancel()
	cfg, err := s.hub.Connect(connectCtx, hub.ConnectRequest{
		HubURL:           hubURL,
		PrivateKey:       ud.AppPrivateKey,
		AssociationToken: ud.GaiaAssociationToken,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to hub %s: %w", hubURL, err)
	}

	err = s.session.Update(ctx, func(d *session.SessionData) error {
		if d.UserData == nil {
			return session.ErrMissingUserData
		}
		if d.UserData.HubURL == "" {
			d.UserData.HubURL = hubURL
		}
		d.UserData.GaiaHubConfig = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Debug("Hub connection set", zap.String("hub", cfg.Server), zap.String("address", cfg.Address))
	return cfg, nil
}

// withHubRetry runs fn with cfg and, when it fails with a recoverable
// error, once more with a freshly resolved connection. The error of the
// last attempt is returned unchanged.
func (s *Storage) withHubRetry(ctx context.Context, op string, cfg *hub.Config, fn func(ctx context.Context, cfg *hub.Config) error) error {
	backoff := retry.WithMaxRetries(1, retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	}))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			fresh, err := s.SetLocalHubConnection(ctx)
			if err != nil {
				return err
			}
			cfg = fresh
		}
		attempt++
		err := fn(ctx, cfg)
		if err == nil || !IsRecoverable(err) {
			return err
		}
		if attempt == 1 {
			zap.L().Warn("Possible recoverable hub error, retrying", zap.String("op", op), zap.Error(err))
		}
		return retry.RetryableError(err)
	})
}

// commitEtag records etag for path, or drops the entry when etag is empty.
func (s *Storage) commitEtag(ctx context.Context, path, etag string) error {
	return s.session.Update(ctx, func(d *session.SessionData) error {
		if d.Etags == nil {
			d.Etags = map[string]string{}
		}
		if etag == "" {
			delete(d.Etags, path)
		} else {
			d.Etags[path] = etag
		}
		return nil
	})
}
