package encryption

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/PravicaInc/walletify-go/pkg/keys"
)

// SignatureObject is a detached signature: DER signature and compressed
// public key, both hex.
type SignatureObject struct {
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
}

// SignedCipherObject wraps a JSON CipherObject with a signature over it.
type SignedCipherObject struct {
	Signature  string `json:"signature"`
	PublicKey  string `json:"publicKey"`
	CipherText string `json:"cipherText"`
}

// EncryptOptions configures EncryptContent.
type EncryptOptions struct {
	// PublicKey receives the content. Derived from PrivateKey when empty.
	PublicKey string
	// PrivateKey is the caller's app key, used for signing unless SigningKey is set.
	PrivateKey string
	// Sign wraps the envelope in a SignedCipherObject.
	Sign bool
	// SigningKey overrides PrivateKey for signing.
	SigningKey string
	// WasString is recorded in the envelope so readers can restore text.
	WasString bool
	// CipherTextEncoding defaults to hex.
	CipherTextEncoding Encoding
}

// SignECDSA signs SHA-256(content) with the hex private key.
func SignECDSA(privateKey string, content []byte) (*SignatureObject, error) {
	priv, err := toSecp(privateKey)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(content)
	sig := ecdsa.Sign(priv, digest[:])
	return &SignatureObject{
		Signature: hex.EncodeToString(sig.Serialize()),
		PublicKey: hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}, nil
}

// VerifyECDSA reports whether signature (DER hex) is a valid signature of
// SHA-256(content) by publicKey.
func VerifyECDSA(content []byte, publicKey, signature string) bool {
	pub, _, err := parseSecpPub(publicKey)
	if err != nil {
		return false
	}
	raw, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(raw)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(content)
	return sig.Verify(digest[:], pub)
}

// EncryptContent produces the JSON envelope stored on the hub.
func EncryptContent(content []byte, opts EncryptOptions) (string, error) {
	publicKey := opts.PublicKey
	if publicKey == "" {
		if opts.PrivateKey == "" {
			return "", errors.New("encrypt: either a public or a private key is required")
		}
		pub, err := keys.PublicKeyFromPrivate(opts.PrivateKey)
		if err != nil {
			return "", err
		}
		publicKey = pub
	}

	obj, err := EncryptECIES(publicKey, content, opts.WasString, opts.CipherTextEncoding)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	if !opts.Sign {
		return string(payload), nil
	}

	signingKey := opts.SigningKey
	if signingKey == "" {
		signingKey = opts.PrivateKey
	}
	if signingKey == "" {
		return "", errors.New("encrypt: signing requested without a private key")
	}
	sig, err := SignECDSA(signingKey, payload)
	if err != nil {
		return "", err
	}
	signed, err := json.Marshal(SignedCipherObject{
		Signature:  sig.Signature,
		PublicKey:  sig.PublicKey,
		CipherText: string(payload),
	})
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// DecryptContent opens a JSON CipherObject envelope. The returned flag tells
// whether the plaintext was text when it was encrypted.
func DecryptContent(content string, privateKey string) ([]byte, bool, error) {
	var obj CipherObject
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	plain, err := DecryptECIES(privateKey, &obj)
	if err != nil {
		return nil, false, err
	}
	return plain, obj.WasString, nil
}

// ParseSignedEnvelope decodes a SignedCipherObject without verifying it.
func ParseSignedEnvelope(content string) (*SignedCipherObject, error) {
	var signed SignedCipherObject
	if err := json.Unmarshal([]byte(content), &signed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if signed.Signature == "" || signed.PublicKey == "" || signed.CipherText == "" {
		return nil, fmt.Errorf("%w: incomplete signed envelope", ErrInvalidEnvelope)
	}
	return &signed, nil
}

// EncryptPrivateKey encrypts a private key to a transit public key. The
// result is the hex of the JSON envelope.
func EncryptPrivateKey(publicKey, privateKey string) (string, error) {
	obj, err := EncryptECIES(publicKey, []byte(privateKey), true, EncodingHex)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(payload), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey with the transit private key.
func DecryptPrivateKey(privateKey, hexedEncrypted string) (string, error) {
	payload, err := hex.DecodeString(hexedEncrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	plain, _, err := DecryptContent(string(payload), privateKey)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
