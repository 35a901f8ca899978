// Package token signs and verifies the ES256K JSON web tokens used for
// authentication requests, responses, profiles and hub auth.
package token

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"

	"github.com/PravicaInc/walletify-go/pkg/keys"
)

// Algorithm is the JOSE name of ECDSA over secp256k1 with SHA-256.
const Algorithm = "ES256K"

var ErrInvalidToken = errors.New("invalid token")

// signingMethodES256K signs with a compact 64-byte R||S signature.
type signingMethodES256K struct{}

// SigningMethodES256K is registered with jwt under Algorithm.
var SigningMethodES256K jwt.SigningMethod = &signingMethodES256K{}

func init() {
	jwt.RegisterSigningMethod(Algorithm, func() jwt.SigningMethod { return SigningMethodES256K })
}

func (m *signingMethodES256K) Alg() string { return Algorithm }

func (m *signingMethodES256K) Sign(signingString string, key interface{}) ([]byte, error) {
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	digest := sha256.Sum256([]byte(signingString))
	sig, err := crypto.Sign(digest[:], priv)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}

func (m *signingMethodES256K) Verify(signingString string, sig []byte, key interface{}) error {
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	if len(sig) != 64 {
		return jwt.ErrSignatureInvalid
	}
	digest := sha256.Sum256([]byte(signingString))
	if !crypto.VerifySignature(keys.CompressedPublicKey(pub), digest[:], sig) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}

func toClaims(payload any) (jwt.MapClaims, error) {
	if claims, ok := payload.(jwt.MapClaims); ok {
		return claims, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode token payload: %w", err)
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("token payload must be a JSON object: %w", err)
	}
	return claims, nil
}

// Sign encodes payload as claims and signs it with the hex private key.
func Sign(payload any, privateKey string) (string, error) {
	key, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	claims, err := toClaims(payload)
	if err != nil {
		return "", err
	}
	return jwt.NewWithClaims(SigningMethodES256K, claims).SignedString(key)
}

// Decode returns the claims of a token without checking its signature.
func Decode(tok string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// DecodeInto unmarshals the payload segment of tok into v without checking
// its signature.
func DecodeInto(tok string, v any) error {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidToken, len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

// Verify checks the token signature against the hex public key, and its
// exp and iat claims when present.
func Verify(tok string, publicKey string) (jwt.MapClaims, error) {
	pub, err := keys.ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	},
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifySignature checks only the token signature, for tokens whose time
// claims are not numeric dates.
func VerifySignature(tok string, publicKey string) error {
	pub, err := keys.ParsePublicKey(publicKey)
	if err != nil {
		return err
	}
	_, err = jwt.Parse(tok, func(*jwt.Token) (interface{}, error) {
		return pub, nil
	},
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
