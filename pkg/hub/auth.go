package hub

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PravicaInc/walletify-go/pkg/encryption"
	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/token"
)

// TokenPrefix marks v1 auth tokens.
const TokenPrefix = "v1:"

// Scope restricts what a hub token may write.
type Scope struct {
	Scope  string `json:"scope"`
	Domain string `json:"domain"`
}

// AuthClaims is the payload of a v1 hub auth token.
type AuthClaims struct {
	GaiaChallenge    string  `json:"gaiaChallenge"`
	HubURL           string  `json:"hubUrl"`
	Iss              string  `json:"iss"`
	Salt             string  `json:"salt"`
	AssociationToken string  `json:"associationToken,omitempty"`
	Scopes           []Scope `json:"scopes,omitempty"`
}

type legacyToken struct {
	PublicKey string `json:"publickey"`
	Signature string `json:"signature"`
}

// supportsV1 reports whether the hub's latest_auth_version is v1 or later.
func supportsV1(latest string) bool {
	if latest == "" {
		return false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(latest), "v"))
	return err == nil && n >= 1
}

// makeAuthToken builds the bearer token for info's challenge.
func makeAuthToken(info *Info, privateKey, hubURL, associationToken string, scopes []Scope) (string, error) {
	publicKey, err := keys.PublicKeyFromPrivate(privateKey)
	if err != nil {
		return "", err
	}
	if !supportsV1(info.LatestAuthVersion) {
		sig, err := encryption.SignECDSA(privateKey, []byte(info.ChallengeText))
		if err != nil {
			return "", err
		}
		raw, err := json.Marshal(legacyToken{PublicKey: publicKey, Signature: sig.Signature})
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	tok, err := token.Sign(AuthClaims{
		GaiaChallenge:    info.ChallengeText,
		HubURL:           hubURL,
		Iss:              publicKey,
		Salt:             hex.EncodeToString(salt),
		AssociationToken: associationToken,
		Scopes:           scopes,
	}, privateKey)
	if err != nil {
		return "", err
	}
	return TokenPrefix + tok, nil
}

// ParseAuthToken decodes a v1 token without verifying it. Hub fakes use it
// to match tokens to the challenge they were issued for.
func ParseAuthToken(bearer string) (*AuthClaims, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(bearer, "bearer "), TokenPrefix)
	var claims AuthClaims
	if err := token.DecodeInto(raw, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}
