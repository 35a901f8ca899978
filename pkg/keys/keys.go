// Package keys holds secp256k1 key helpers shared by sessions, storage and
// transaction requests: hex key parsing, compressed public keys, hash160,
// base58check and c32check addresses, and DID strings.
package keys

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // hash160 is defined over RIPEMD-160
)

const (
	// compressedSuffix marks a private key whose public key is used compressed.
	compressedSuffix = "01"

	didBtcAddrPrefix   = "did:btc-addr:"
	didEcdsaPubPrefix  = "did:ecdsa-pub:"
	privateKeyHexBytes = 32
)

// ErrInvalidKey is returned for keys that are not valid secp256k1 keys.
var ErrInvalidKey = errors.New("invalid secp256k1 key")

// ParsePrivateKey parses a hex-encoded secp256k1 private key. Both the bare
// 64 hex form and the 66 hex form carrying the "01" compression suffix are
// accepted, with or without a 0x prefix.
func ParsePrivateKey(privateKey string) (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	if len(raw) == 2*privateKeyHexBytes+len(compressedSuffix) && strings.HasSuffix(raw, compressedSuffix) {
		raw = raw[:2*privateKeyHexBytes]
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// PrivateKeyHex returns the 64 hex character encoding of key.
func PrivateKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}

// GeneratePrivateKey creates a fresh random key, hex encoded. It is used for
// short-lived transit keys.
func GeneratePrivateKey() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}
	return PrivateKeyHex(key), nil
}

// PublicKeyHex returns the compressed (33 byte) public key of key, hex encoded.
func PublicKeyHex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey))
}

// PublicKeyFromPrivate derives the compressed public key hex of a hex private key.
func PublicKeyFromPrivate(privateKey string) (string, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return PublicKeyHex(key), nil
}

// ParsePublicKey parses a compressed or uncompressed hex public key.
func ParsePublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	switch len(raw) {
	case 33:
		pub, err := crypto.DecompressPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return pub, nil
	case 65:
		pub, err := crypto.UnmarshalPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("%w: public key is %d bytes", ErrInvalidKey, len(raw))
	}
}

// CompressedPublicKey returns the 33 byte encoding of pub.
func CompressedPublicKey(pub *ecdsa.PublicKey) []byte {
	return crypto.CompressPubkey(pub)
}

// Hash160 computes RIPEMD160(SHA256(data)).
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// PublicKeyHash160 returns the hash160 of the compressed encoding of pub.
func PublicKeyHash160(pub *ecdsa.PublicKey) []byte {
	return Hash160(CompressedPublicKey(pub))
}

// PublicKeyToAddress returns the mainnet base58check P2PKH address of a hex
// public key. Uncompressed keys are hashed in compressed form.
func PublicKeyToAddress(publicKey string) (string, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	return B58Address(BitcoinP2PKH, PublicKeyHash160(pub)), nil
}

// PrivateKeyToAddress returns the base58check address of a hex private key.
func PrivateKeyToAddress(privateKey string) (string, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	return B58Address(BitcoinP2PKH, PublicKeyHash160(&key.PublicKey)), nil
}

// MakeDIDFromAddress builds a did:btc-addr identifier.
func MakeDIDFromAddress(address string) string {
	return didBtcAddrPrefix + address
}

// MakeDIDFromPublicKey builds a did:ecdsa-pub identifier.
func MakeDIDFromPublicKey(publicKey string) string {
	return didEcdsaPubPrefix + publicKey
}

// AddressFromDID extracts the address named by a DID. did:btc-addr yields the
// embedded address, did:ecdsa-pub the address of the embedded key.
func AddressFromDID(did string) (string, bool) {
	switch {
	case strings.HasPrefix(did, didBtcAddrPrefix):
		addr := strings.TrimPrefix(did, didBtcAddrPrefix)
		return addr, addr != ""
	case strings.HasPrefix(did, didEcdsaPubPrefix):
		addr, err := PublicKeyToAddress(strings.TrimPrefix(did, didEcdsaPubPrefix))
		if err != nil {
			return "", false
		}
		return addr, true
	default:
		return "", false
	}
}
