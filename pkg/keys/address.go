package keys

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mr-tron/base58"
)

// Address version bytes.
const (
	BitcoinP2PKH        byte = 0
	BitcoinP2SH         byte = 5
	BitcoinTestnetP2PKH byte = 111
	BitcoinTestnetP2SH  byte = 196

	StacksMainnetSingleSig byte = 22
	StacksMainnetMultiSig  byte = 20
	StacksTestnetSingleSig byte = 26
	StacksTestnetMultiSig  byte = 21
)

const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ErrInvalidAddress is returned for malformed or mistyped addresses.
var ErrInvalidAddress = errors.New("invalid address")

var (
	stacksToBitcoin = map[byte]byte{
		StacksMainnetSingleSig: BitcoinP2PKH,
		StacksMainnetMultiSig:  BitcoinP2SH,
		StacksTestnetSingleSig: BitcoinTestnetP2PKH,
		StacksTestnetMultiSig:  BitcoinTestnetP2SH,
	}
	bitcoinToStacks = map[byte]byte{
		BitcoinP2PKH:        StacksMainnetSingleSig,
		BitcoinP2SH:         StacksMainnetMultiSig,
		BitcoinTestnetP2PKH: StacksTestnetSingleSig,
		BitcoinTestnetP2SH:  StacksTestnetMultiSig,
	}
)

func checksum(version byte, payload []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, payload...))
	second := sha256.Sum256(first[:])
	return second[:4]
}

// B58Address encodes hash160 as a base58check address with the given version.
func B58Address(version byte, hash160 []byte) string {
	buf := make([]byte, 0, 1+len(hash160)+4)
	buf = append(buf, version)
	buf = append(buf, hash160...)
	buf = append(buf, checksum(version, hash160)...)
	return base58.Encode(buf)
}

// ParseB58Address decodes a base58check address into version and hash160.
func ParseB58Address(address string) (byte, []byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 25 {
		return 0, nil, fmt.Errorf("%w: expected 25 bytes, got %d", ErrInvalidAddress, len(raw))
	}
	version, payload, sum := raw[0], raw[1:21], raw[21:]
	if !bytes.Equal(checksum(version, payload), sum) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return version, payload, nil
}

// c32Encode converts data to Crockford-style base32, keeping one '0' per
// leading zero byte.
func c32Encode(data []byte) string {
	value := new(big.Int).SetBytes(data)
	base := big.NewInt(32)
	mod := new(big.Int)
	var out []byte
	for value.Sign() > 0 {
		value.DivMod(value, base, mod)
		out = append(out, c32Alphabet[mod.Int64()])
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, c32Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func c32Normalize(s string) string {
	s = strings.ToUpper(s)
	return strings.NewReplacer("O", "0", "L", "1", "I", "1").Replace(s)
}

func c32Decode(s string) ([]byte, error) {
	s = c32Normalize(s)
	zeros := 0
	for zeros < len(s) && s[zeros] == c32Alphabet[0] {
		zeros++
	}
	value := new(big.Int)
	base := big.NewInt(32)
	for i := zeros; i < len(s); i++ {
		idx := strings.IndexByte(c32Alphabet, s[i])
		if idx < 0 {
			return nil, fmt.Errorf("%w: invalid c32 character %q", ErrInvalidAddress, s[i])
		}
		value.Mul(value, base)
		value.Add(value, big.NewInt(int64(idx)))
	}
	return append(make([]byte, zeros), value.Bytes()...), nil
}

// C32Address encodes hash160 as a Stacks c32check address ("S" + version + data).
func C32Address(version byte, hash160 []byte) (string, error) {
	if int(version) >= len(c32Alphabet) {
		return "", fmt.Errorf("%w: version %d out of range", ErrInvalidAddress, version)
	}
	payload := append(append([]byte{}, hash160...), checksum(version, hash160)...)
	return "S" + string(c32Alphabet[version]) + c32Encode(payload), nil
}

// ParseC32Address decodes a Stacks c32check address into version and hash160.
func ParseC32Address(address string) (byte, []byte, error) {
	if len(address) < 3 || (address[0] != 'S' && address[0] != 's') {
		return 0, nil, fmt.Errorf("%w: %q is not a c32 address", ErrInvalidAddress, address)
	}
	body := c32Normalize(address[1:])
	version := strings.IndexByte(c32Alphabet, body[0])
	if version < 0 {
		return 0, nil, fmt.Errorf("%w: invalid version character", ErrInvalidAddress)
	}
	raw, err := c32Decode(body[1:])
	if err != nil {
		return 0, nil, err
	}
	if len(raw) != 24 {
		return 0, nil, fmt.Errorf("%w: expected 24 bytes, got %d", ErrInvalidAddress, len(raw))
	}
	payload, sum := raw[:20], raw[20:]
	if !bytes.Equal(checksum(byte(version), payload), sum) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return byte(version), payload, nil
}

// B58ToC32 converts a base58check address to its Stacks form.
func B58ToC32(address string) (string, error) {
	version, hash, err := ParseB58Address(address)
	if err != nil {
		return "", err
	}
	if v, ok := bitcoinToStacks[version]; ok {
		version = v
	}
	return C32Address(version, hash)
}

// C32ToB58 converts a Stacks address to its base58check form.
func C32ToB58(address string) (string, error) {
	version, hash, err := ParseC32Address(address)
	if err != nil {
		return "", err
	}
	if v, ok := stacksToBitcoin[version]; ok {
		version = v
	}
	return B58Address(version, hash), nil
}

// AddressHash160 returns the hash160 named by either a Stacks c32 or a
// base58check address.
func AddressHash160(address string) ([]byte, error) {
	if strings.HasPrefix(address, "S") {
		if _, hash, err := ParseC32Address(address); err == nil {
			return hash, nil
		}
	}
	_, hash, err := ParseB58Address(address)
	return hash, err
}
