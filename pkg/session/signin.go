package session

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"github.com/blang/semver/v4"
	"go.uber.org/zap"

	"github.com/PravicaInc/walletify-go/pkg/config"
	"github.com/PravicaInc/walletify-go/pkg/encryption"
	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/profile"
	"github.com/PravicaInc/walletify-go/pkg/token"
)

// AuthResponsePayload is the token the wallet returns after sign-in.
type AuthResponsePayload struct {
	Jti              string          `json:"jti"`
	Iat              float64         `json:"iat"`
	Exp              float64         `json:"exp"`
	Iss              string          `json:"iss"`
	PrivateKey       string          `json:"private_key"`
	PublicKeys       []string        `json:"public_keys"`
	Profile          profile.Profile `json:"profile"`
	ProfileURL       string          `json:"profile_url,omitempty"`
	Username         string          `json:"username"`
	Email            string          `json:"email,omitempty"`
	CoreToken        string          `json:"core_token,omitempty"`
	HubURL           string          `json:"hubUrl,omitempty"`
	AssociationToken string          `json:"associationToken,omitempty"`
	BlockstackAPIURL string          `json:"blockstackAPIUrl,omitempty"`
	Version          string          `json:"version"`
}

// isLaterVersion reports v1 >= v2. An empty v1 is 0.0.0.
func isLaterVersion(v1, v2 string) bool {
	if v1 == "" {
		v1 = "0.0.0"
	}
	a, err := semver.ParseTolerant(v1)
	if err != nil {
		return false
	}
	b, err := semver.ParseTolerant(v2)
	if err != nil {
		return false
	}
	return a.GTE(b)
}

func loginFailed(reason string, err error) error {
	return &LoginFailedError{Reason: reason, Err: err}
}

// verifyAuthResponse checks the signature, time claims, that the signing key
// owns the issuer DID, and that it owns the username when one is claimed.
func (s *UserSession) verifyAuthResponse(ctx context.Context, tok string, payload *AuthResponsePayload, lookupURLs []string) error {
	if len(payload.PublicKeys) != 1 {
		return fmt.Errorf("expected exactly one public key, got %d", len(payload.PublicKeys))
	}
	publicKey := payload.PublicKeys[0]
	if _, err := token.Verify(tok, publicKey); err != nil {
		return err
	}

	issuerAddress, ok := keys.AddressFromDID(payload.Iss)
	if !ok {
		return fmt.Errorf("unsupported issuer %q", payload.Iss)
	}
	keyAddress, err := keys.PublicKeyToAddress(publicKey)
	if err != nil {
		return err
	}
	if !profile.OwnerMatches(keyAddress, issuerAddress) {
		return fmt.Errorf("public key does not match issuer %s", payload.Iss)
	}

	if payload.Username == "" {
		return nil
	}
	if s.profiles == nil {
		return fmt.Errorf("cannot verify username %s without a name lookup client", payload.Username)
	}
	info, err := s.profiles.LookupNameFallback(ctx, payload.Username, lookupURLs)
	if err != nil {
		return err
	}
	if !profile.OwnerMatches(info.Address, issuerAddress) {
		return fmt.Errorf("username %s is owned by %s", payload.Username, info.Address)
	}
	return nil
}

func (s *UserSession) lookupURLs() []string {
	primary := s.cfg.NameLookupURL()
	urls := []string{primary}
	for _, u := range config.FallbackNameLookupURLs {
		if u != primary && !slices.Contains(urls, u) {
			urls = append(urls, u)
		}
	}
	return urls
}

// HandlePendingSignIn verifies an auth response token and stores the user
// it describes.
func (s *UserSession) HandlePendingSignIn(ctx context.Context, authResponseToken string) (*UserData, error) {
	data, err := s.store.GetSessionData(ctx)
	if err != nil {
		return nil, err
	}
	if data.UserData != nil {
		return nil, loginFailed("existing user session found", nil)
	}

	var payload AuthResponsePayload
	if err := token.DecodeInto(authResponseToken, &payload); err != nil {
		return nil, loginFailed("malformed authentication response", err)
	}
	if err := s.verifyAuthResponse(ctx, authResponseToken, &payload, s.lookupURLs()); err != nil {
		return nil, loginFailed("invalid authentication response", err)
	}

	appPrivateKey := payload.PrivateKey
	coreSessionToken := payload.CoreToken
	if isLaterVersion(payload.Version, "1.1.0") {
		if data.TransitKey == "" {
			return nil, loginFailed("authenticating with protocol > 1.1.0 requires transit key, and none found", nil)
		}
		if payload.PrivateKey != "" {
			decrypted, err := encryption.DecryptPrivateKey(data.TransitKey, payload.PrivateKey)
			if err != nil {
				zap.L().Warn("Failed decryption of appPrivateKey, will try to use as given", zap.Error(err))
				if _, perr := keys.ParsePrivateKey(payload.PrivateKey); perr != nil {
					return nil, loginFailed("failed decrypting appPrivateKey, usually means that the transit key has changed during login", err)
				}
			} else {
				appPrivateKey = decrypted
			}
		}
		if coreSessionToken != "" {
			decrypted, err := encryption.DecryptPrivateKey(data.TransitKey, coreSessionToken)
			if err != nil {
				zap.L().Warn("Failed decryption of coreSessionToken, will try to use as given", zap.Error(err))
			} else {
				coreSessionToken = decrypted
			}
		}
	}

	hubURL := config.DefaultHubURL
	if isLaterVersion(payload.Version, "1.2.0") && payload.HubURL != "" {
		hubURL = payload.HubURL
	}
	var associationToken string
	if isLaterVersion(payload.Version, "1.3.0") {
		associationToken = payload.AssociationToken
	}

	identityAddress, _ := keys.AddressFromDID(payload.Iss)
	ud := &UserData{
		Username:             payload.Username,
		Email:                payload.Email,
		DecentralizedID:      payload.Iss,
		IdentityAddress:      identityAddress,
		AppPrivateKey:        appPrivateKey,
		CoreSessionToken:     coreSessionToken,
		AuthResponseToken:    authResponseToken,
		HubURL:               hubURL,
		CoreNode:             payload.BlockstackAPIURL,
		GaiaAssociationToken: associationToken,
		Profile:              payload.Profile,
	}
	if ud.Profile == nil && payload.ProfileURL != "" {
		if s.profiles == nil {
			ud.Profile = profile.DefaultProfile()
		} else {
			p, err := s.profiles.FetchProfile(ctx, payload.ProfileURL)
			if err != nil {
				return nil, fmt.Errorf("fetch profile: %w", err)
			}
			ud.Profile = p
		}
	}

	err = s.Update(ctx, func(d *SessionData) error {
		if d.UserData != nil {
			return loginFailed("existing user session found", nil)
		}
		d.UserData = ud
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("User signed in",
		zap.String("did", ud.DecentralizedID),
		zap.String("username", ud.Username),
		zap.String("hub", ud.HubURL))
	return ud, nil
}

// ParameterByName returns the query parameter name of rawURL.
func ParameterByName(name, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Query().Get(name), nil
}

// AuthResponseFromURL extracts the authResponse parameter of the redirect
// URL the wallet opened.
func AuthResponseFromURL(rawURL string) (string, error) {
	return ParameterByName("authResponse", rawURL)
}
