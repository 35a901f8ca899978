package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PravicaInc/walletify-go/pkg/config"
	"github.com/PravicaInc/walletify-go/pkg/encryption"
	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/profile"
	"github.com/PravicaInc/walletify-go/pkg/token"
)

// AuthRequestVersion is the auth protocol version requested from wallets.
const AuthRequestVersion = "1.3.1"

// UserSession owns the session record of one app user.
type UserSession struct {
	cfg      *config.Config
	store    Store
	profiles *profile.Client

	mu sync.Mutex
}

// New returns a session backed by store. cfg must already be validated.
func New(cfg *config.Config, store Store, profiles *profile.Client) *UserSession {
	return &UserSession{cfg: cfg, store: store, profiles: profiles}
}

// Config returns the app configuration.
func (s *UserSession) Config() *config.Config { return s.cfg }

// Data reads the current record.
func (s *UserSession) Data(ctx context.Context) (*SessionData, error) {
	return s.store.GetSessionData(ctx)
}

// Update is the single write path of the record: it reads, applies fn and
// persists under the session lock. Nothing is written when fn fails.
func (s *UserSession) Update(ctx context.Context, fn func(*SessionData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.store.GetSessionData(ctx)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return s.store.SetSessionData(ctx, data)
}

// IsUserSignedIn reports whether user data is stored.
func (s *UserSession) IsUserSignedIn(ctx context.Context) (bool, error) {
	data, err := s.store.GetSessionData(ctx)
	if err != nil {
		return false, err
	}
	return data.UserData != nil, nil
}

// LoadUserData returns the signed-in user or ErrMissingUserData.
func (s *UserSession) LoadUserData(ctx context.Context) (*UserData, error) {
	data, err := s.store.GetSessionData(ctx)
	if err != nil {
		return nil, err
	}
	if data.UserData == nil {
		return nil, ErrMissingUserData
	}
	return data.UserData, nil
}

// SignUserOut deletes the whole record.
func (s *UserSession) SignUserOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	zap.L().Debug("Signing user out")
	return s.store.DeleteSessionData(ctx)
}

// GenerateAndStoreTransitKey creates the key the wallet encrypts the app
// private key to.
func (s *UserSession) GenerateAndStoreTransitKey(ctx context.Context) (string, error) {
	transitKey, err := keys.GeneratePrivateKey()
	if err != nil {
		return "", err
	}
	err = s.Update(ctx, func(d *SessionData) error {
		d.TransitKey = transitKey
		return nil
	})
	if err != nil {
		return "", err
	}
	return transitKey, nil
}

// AuthRequestPayload is the token sent to the wallet to start sign-in.
type AuthRequestPayload struct {
	Jti                 string   `json:"jti"`
	Iat                 int64    `json:"iat"`
	Exp                 int64    `json:"exp"`
	Iss                 string   `json:"iss"`
	PublicKeys          []string `json:"public_keys"`
	DomainName          string   `json:"domain_name"`
	ManifestURI         string   `json:"manifest_uri"`
	RedirectURI         string   `json:"redirect_uri"`
	Version             string   `json:"version"`
	DoNotIncludeProfile bool     `json:"do_not_include_profile"`
	SupportsHubURL      bool     `json:"supports_hub_url"`
	Scopes              []string `json:"scopes"`
}

// MakeAuthRequest signs an auth request with transitKey.
func (s *UserSession) MakeAuthRequest(transitKey, redirectURI, manifestURI string, scopes []string, appDomain string) (string, error) {
	publicKey, err := keys.PublicKeyFromPrivate(transitKey)
	if err != nil {
		return "", err
	}
	address, err := keys.PublicKeyToAddress(publicKey)
	if err != nil {
		return "", err
	}
	now := time.Now()
	return token.Sign(AuthRequestPayload{
		Jti:                 uuid.NewString(),
		Iat:                 now.Unix(),
		Exp:                 now.Add(time.Hour).Unix(),
		Iss:                 keys.MakeDIDFromAddress(address),
		PublicKeys:          []string{publicKey},
		DomainName:          appDomain,
		ManifestURI:         manifestURI,
		RedirectURI:         redirectURI,
		Version:             AuthRequestVersion,
		DoNotIncludeProfile: true,
		SupportsHubURL:      true,
		Scopes:              scopes,
	}, transitKey)
}

// GenerateAuthURL stores a fresh transit key and returns the wallet link
// that starts sign-in.
func (s *UserSession) GenerateAuthURL(ctx context.Context) (string, error) {
	transitKey, err := s.GenerateAndStoreTransitKey(ctx)
	if err != nil {
		return "", err
	}
	tok, err := s.MakeAuthRequest(transitKey, s.cfg.RedirectURI(), s.cfg.ManifestURI(), s.cfg.Scopes, s.cfg.AppDomain)
	if err != nil {
		return "", err
	}
	return s.cfg.DownloadURL + "?token=" + tok, nil
}

// EncryptContent encrypts with opts, defaulting the key to the app key.
func (s *UserSession) EncryptContent(ctx context.Context, content []byte, opts encryption.EncryptOptions) (string, error) {
	if opts.PrivateKey == "" {
		ud, err := s.LoadUserData(ctx)
		if err != nil {
			return "", err
		}
		opts.PrivateKey = ud.AppPrivateKey
	}
	return encryption.EncryptContent(content, opts)
}

// DecryptContent decrypts with privateKey, defaulting to the app key.
func (s *UserSession) DecryptContent(ctx context.Context, content, privateKey string) ([]byte, bool, error) {
	if privateKey == "" {
		ud, err := s.LoadUserData(ctx)
		if err != nil {
			return nil, false, err
		}
		privateKey = ud.AppPrivateKey
	}
	return encryption.DecryptContent(content, privateKey)
}
