// Package profile resolves BNS names to their owner address and signed
// profile document.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/token"
)

var (
	ErrNameNotFound   = errors.New("profile: name not found")
	ErrNoProfileToken = errors.New("profile: no profile token")
	ErrIssuerMismatch = errors.New("profile: token issuer does not match owner")
)

// Profile is a schema.org Person document.
type Profile map[string]any

// DefaultProfile is used when a profile cannot be fetched.
func DefaultProfile() Profile {
	return Profile{"@type": "Person", "@context": "http://schema.org"}
}

// Apps maps app origins to the gaia read prefix the user publishes for them.
func (p Profile) Apps() map[string]string {
	out := map[string]string{}
	raw, ok := p["apps"].(map[string]any)
	if !ok {
		return out
	}
	for origin, v := range raw {
		if s, ok := v.(string); ok {
			out[origin] = s
		}
	}
	return out
}

// NameInfo is the BNS name record.
type NameInfo struct {
	Address  string `json:"address"`
	Zonefile string `json:"zonefile"`
	Status   string `json:"status,omitempty"`
}

// Client talks to BNS lookup endpoints and gaia read URLs.
type Client struct {
	http *http.Client
}

// NewClient returns a client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// NewClientWithHTTP wraps an existing HTTP client.
func NewClientWithHTTP(c *http.Client) *Client {
	return &Client{http: c}
}

func (c *Client) get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// LookupName fetches {lookupURL}/{username}.
func (c *Client) LookupName(ctx context.Context, username, lookupURL string) (*NameInfo, error) {
	url := strings.TrimRight(lookupURL, "/") + "/" + username
	status, body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", username, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNameNotFound, username)
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("lookup %s: status %d", username, status)
	}
	var info NameInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("lookup %s: decode: %w", username, err)
	}
	return &info, nil
}

// LookupNameFallback tries each lookup URL in order and returns the first
// answer.
func (c *Client) LookupNameFallback(ctx context.Context, username string, lookupURLs []string) (*NameInfo, error) {
	var errs []error
	for _, u := range lookupURLs {
		info, err := c.LookupName(ctx, username, u)
		if err == nil {
			return info, nil
		}
		zap.L().Debug("Name lookup failed", zap.String("url", u), zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("lookup %s: no lookup URLs", username)
	}
	return nil, errors.Join(errs...)
}

var uriRecord = regexp.MustCompile(`(?m)^\S+\s+(?:\d+\s+)?(?:IN\s+)?URI\s+\d+\s+\d+\s+"([^"]+)"`)

// ZoneFileProfileURL returns the token file URL from the first URI record.
func ZoneFileProfileURL(zonefile string) (string, error) {
	m := uriRecord.FindStringSubmatch(zonefile)
	if m == nil {
		return "", fmt.Errorf("%w: zone file has no URI record", ErrNoProfileToken)
	}
	url := m[1]
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url, nil
}

// Lookup resolves username to its verified profile.
func (c *Client) Lookup(ctx context.Context, username, lookupURL string) (Profile, error) {
	info, err := c.LookupName(ctx, username, lookupURL)
	if err != nil {
		return nil, err
	}
	url, err := ZoneFileProfileURL(info.Zonefile)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, url, info.Address)
}

// FetchProfile reads the token file at profileURL. A non-2xx answer yields
// DefaultProfile.
func (c *Client) FetchProfile(ctx context.Context, profileURL string) (Profile, error) {
	p, err := c.fetch(ctx, profileURL, "")
	if errors.Is(err, errProfileStatus) {
		return DefaultProfile(), nil
	}
	return p, err
}

var errProfileStatus = errors.New("profile: unexpected status")

func (c *Client) fetch(ctx context.Context, url, owner string) (Profile, error) {
	status, body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("%w %d from %s", errProfileStatus, status, url)
	}
	var records []struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("fetch profile: decode: %w", err)
	}
	if len(records) == 0 || records[0].Token == "" {
		return nil, ErrNoProfileToken
	}
	return ExtractProfile(records[0].Token, owner)
}

type profileClaims struct {
	Issuer struct {
		PublicKey string `json:"publicKey"`
	} `json:"issuer"`
	Claim Profile `json:"claim"`
}

// ExtractProfile verifies a profile token with its issuer key and returns
// the claim. A non-empty publicKeyOrAddress must name the issuer.
func ExtractProfile(tok, publicKeyOrAddress string) (Profile, error) {
	var claims profileClaims
	if err := token.DecodeInto(tok, &claims); err != nil {
		return nil, err
	}
	issuer := claims.Issuer.PublicKey
	if issuer == "" {
		return nil, fmt.Errorf("%w: token has no issuer key", token.ErrInvalidToken)
	}
	// Profile tokens carry ISO-8601 iat/exp, so only the signature is checked.
	if err := token.VerifySignature(tok, issuer); err != nil {
		return nil, err
	}
	if publicKeyOrAddress != "" && !issuedBy(issuer, publicKeyOrAddress) {
		return nil, ErrIssuerMismatch
	}
	if claims.Claim == nil {
		return Profile{}, nil
	}
	return claims.Claim, nil
}

// issuedBy reports whether issuer (hex public key) is the given public key
// or hashes to the given address.
func issuedBy(issuer, publicKeyOrAddress string) bool {
	if want, err := keys.ParsePublicKey(publicKeyOrAddress); err == nil {
		got, err := keys.ParsePublicKey(issuer)
		return err == nil && got.Equal(want)
	}
	pub, err := keys.ParsePublicKey(issuer)
	if err != nil {
		return false
	}
	want, err := keys.AddressHash160(publicKeyOrAddress)
	if err != nil {
		return false
	}
	return bytes.Equal(keys.PublicKeyHash160(pub), want)
}

// OwnerMatches reports whether address (c32 or base58) has the same hash160
// as the issuer address of a DID.
func OwnerMatches(ownerAddress, issuerAddress string) bool {
	a, err := keys.AddressHash160(ownerAddress)
	if err != nil {
		return false
	}
	b, err := keys.AddressHash160(issuerAddress)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}
