package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PravicaInc/walletify-go/pkg/hub"
	"github.com/PravicaInc/walletify-go/pkg/profile"
)

// DataVersion is written into new session records.
const DataVersion = "1.0.0"

// ErrMissingUserData is returned by operations that need a signed-in user.
var ErrMissingUserData = errors.New("no user data found, did the user sign in?")

// LoginFailedError is a rejected authentication response.
type LoginFailedError struct {
	Reason string
	Err    error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %v", e.Reason, e.Err)
	}
	return "login failed: " + e.Reason
}

func (e *LoginFailedError) Unwrap() error { return e.Err }

// UserData is the signed-in user.
type UserData struct {
	Username             string          `json:"username,omitempty"`
	Email                string          `json:"email,omitempty"`
	DecentralizedID      string          `json:"decentralizedID"`
	IdentityAddress      string          `json:"identityAddress"`
	AppPrivateKey        string          `json:"appPrivateKey"`
	CoreSessionToken     string          `json:"coreSessionToken,omitempty"`
	AuthResponseToken    string          `json:"authResponseToken"`
	HubURL               string          `json:"hubUrl"`
	CoreNode             string          `json:"coreNode,omitempty"`
	GaiaAssociationToken string          `json:"gaiaAssociationToken,omitempty"`
	Profile              profile.Profile `json:"profile,omitempty"`
	GaiaHubConfig        *hub.Config     `json:"gaiaHubConfig,omitempty"`
}

// SessionData is the persisted session record.
type SessionData struct {
	Version    string            `json:"version"`
	UserData   *UserData         `json:"userData,omitempty"`
	TransitKey string            `json:"transitKey,omitempty"`
	Etags      map[string]string `json:"etags,omitempty"`
}

// NewSessionData returns an empty record.
func NewSessionData() *SessionData {
	return &SessionData{Version: DataVersion, Etags: map[string]string{}}
}

// Clone returns a deep copy.
func (d *SessionData) Clone() *SessionData {
	raw, err := json.Marshal(d)
	if err != nil {
		// Every field is JSON-safe.
		panic(err)
	}
	out, err := decodeSessionData(raw)
	if err != nil {
		panic(err)
	}
	return out
}

// Etag returns the etag on record for path.
func (d *SessionData) Etag(path string) (string, bool) {
	etag, ok := d.Etags[path]
	return etag, ok && etag != ""
}

func decodeSessionData(raw []byte) (*SessionData, error) {
	d := NewSessionData()
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	if d.Etags == nil {
		d.Etags = map[string]string{}
	}
	return d, nil
}
