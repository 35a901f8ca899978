// Package encryption implements the content envelope used on storage hubs:
// ECIES over secp256k1 (ECDH, SHA-512 key split, AES-256-CBC, HMAC-SHA256),
// optional signed envelopes, detached SHA-256/DER ECDSA signatures, and the
// projected envelope size used for upload limits.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/PravicaInc/walletify-go/pkg/keys"
)

// Encoding selects how the cipher text is written into the envelope.
type Encoding string

const (
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
)

var (
	// ErrMACMismatch is returned when the envelope MAC does not verify.
	ErrMACMismatch = errors.New("failure in MAC check")
	// ErrInvalidEnvelope is returned for malformed envelopes.
	ErrInvalidEnvelope = errors.New("invalid cipher envelope")
)

// CipherObject is the JSON envelope of ECIES-encrypted content.
type CipherObject struct {
	IV                 string   `json:"iv"`
	EphemeralPK        string   `json:"ephemeralPK"`
	CipherText         string   `json:"cipherText"`
	Mac                string   `json:"mac"`
	WasString          bool     `json:"wasString"`
	CipherTextEncoding Encoding `json:"cipherTextEncoding,omitempty"`
}

func (e Encoding) validate() error {
	switch e {
	case EncodingHex, EncodingBase64:
		return nil
	default:
		return fmt.Errorf("unsupported cipher text encoding %q", e)
	}
}

func toSecp(privateKey string) (*secp256k1.PrivateKey, error) {
	key, err := keys.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return secp256k1.PrivKeyFromBytes(crypto.FromECDSA(key)), nil
}

func parseSecpPub(publicKey string) (*secp256k1.PublicKey, []byte, error) {
	raw, err := hex.DecodeString(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", keys.ErrInvalidKey, err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", keys.ErrInvalidKey, err)
	}
	return pub, raw, nil
}

// sharedKeys splits SHA-512 of the ECDH x coordinate into the AES and HMAC keys.
func sharedKeys(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) (encKey, macKey []byte) {
	digest := sha512.Sum512(secp256k1.GenerateSharedSecret(priv, pub))
	return digest[:32], digest[32:]
}

func macOf(key []byte, parts ...[]byte) []byte {
	m := hmac.New(sha256.New, key)
	for _, p := range parts {
		m.Write(p)
	}
	return m.Sum(nil)
}

// EncryptECIES encrypts content to the hex public key.
func EncryptECIES(publicKey string, content []byte, wasString bool, encoding Encoding) (*CipherObject, error) {
	if encoding == "" {
		encoding = EncodingHex
	}
	if err := encoding.validate(); err != nil {
		return nil, err
	}
	pub, _, err := parseSecpPub(publicKey)
	if err != nil {
		return nil, err
	}
	ephemeral, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	encKey, macKey := sharedKeys(ephemeral, pub)

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	cipherText := pkcs7Pad(content, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(cipherText, cipherText)

	ephemeralPK := ephemeral.PubKey().SerializeCompressed()
	mac := macOf(macKey, iv, ephemeralPK, cipherText)

	obj := &CipherObject{
		IV:          hex.EncodeToString(iv),
		EphemeralPK: hex.EncodeToString(ephemeralPK),
		Mac:         hex.EncodeToString(mac),
		WasString:   wasString,
	}
	if encoding == EncodingBase64 {
		obj.CipherText = base64.StdEncoding.EncodeToString(cipherText)
		obj.CipherTextEncoding = EncodingBase64
	} else {
		obj.CipherText = hex.EncodeToString(cipherText)
	}
	return obj, nil
}

// DecryptECIES opens obj with the hex private key.
func DecryptECIES(privateKey string, obj *CipherObject) ([]byte, error) {
	priv, err := toSecp(privateKey)
	if err != nil {
		return nil, err
	}
	ephemeral, ephemeralPK, err := parseSecpPub(obj.EphemeralPK)
	if err != nil {
		return nil, err
	}
	iv, err := hex.DecodeString(obj.IV)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("%w: bad iv", ErrInvalidEnvelope)
	}
	mac, err := hex.DecodeString(obj.Mac)
	if err != nil {
		return nil, fmt.Errorf("%w: bad mac", ErrInvalidEnvelope)
	}

	var cipherText []byte
	if obj.CipherTextEncoding == EncodingBase64 {
		cipherText, err = base64.StdEncoding.DecodeString(obj.CipherText)
	} else {
		cipherText, err = hex.DecodeString(obj.CipherText)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bad cipher text: %v", ErrInvalidEnvelope, err)
	}
	if len(cipherText) == 0 || len(cipherText)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: cipher text length %d", ErrInvalidEnvelope, len(cipherText))
	}

	encKey, macKey := sharedKeys(priv, ephemeral)
	if !hmac.Equal(mac, macOf(macKey, iv, ephemeralPK, cipherText)) {
		return nil, ErrMACMismatch
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, cipherText)
	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrInvalidEnvelope)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidEnvelope)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidEnvelope)
		}
	}
	return data[:len(data)-n], nil
}
