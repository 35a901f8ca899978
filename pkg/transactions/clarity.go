package transactions

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PravicaInc/walletify-go/pkg/keys"
)

// ClarityType is the wire type id of a Clarity value.
type ClarityType byte

const (
	ClarityInt               ClarityType = 0x00
	ClarityUInt              ClarityType = 0x01
	ClarityBuffer            ClarityType = 0x02
	ClarityBoolTrue          ClarityType = 0x03
	ClarityBoolFalse         ClarityType = 0x04
	ClarityPrincipalStandard ClarityType = 0x05
	ClarityPrincipalContract ClarityType = 0x06
	ClarityResponseOk        ClarityType = 0x07
	ClarityResponseErr       ClarityType = 0x08
	ClarityOptionalNone      ClarityType = 0x09
	ClarityOptionalSome      ClarityType = 0x0a
	ClarityList              ClarityType = 0x0b
	ClarityTuple             ClarityType = 0x0c
	ClarityStringASCII       ClarityType = 0x0d
	ClarityStringUTF8        ClarityType = 0x0e
)

const maxNameLength = 128

var (
	ErrValueOutOfRange = errors.New("clarity: value out of range")
	ErrInvalidName     = errors.New("clarity: invalid name")

	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	maxUInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	two128     = new(big.Int).Lsh(big.NewInt(1), 128)
)

// ClarityValue serializes to the consensus encoding of a Clarity value.
type ClarityValue interface {
	Serialize() ([]byte, error)
}

// SerializeHex returns the hex encoding of v, or v itself for HexValue.
func SerializeHex(v ClarityValue) (string, error) {
	if h, ok := v.(HexValue); ok {
		return string(h), nil
	}
	b, err := v.Serialize()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HexValue is an already serialized value, passed through unchanged.
type HexValue string

func (h HexValue) Serialize() ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(string(h), "0x"))
}

// IntCV is a signed 128-bit integer.
type IntCV struct{ Value *big.Int }

// Int wraps an int64.
func Int(v int64) IntCV { return IntCV{Value: big.NewInt(v)} }

func (v IntCV) Serialize() ([]byte, error) {
	if v.Value == nil || v.Value.Cmp(minInt128) < 0 || v.Value.Cmp(maxInt128) > 0 {
		return nil, fmt.Errorf("%w: int %v", ErrValueOutOfRange, v.Value)
	}
	n := new(big.Int).Set(v.Value)
	if n.Sign() < 0 {
		n.Add(n, two128)
	}
	return append([]byte{byte(ClarityInt)}, n.FillBytes(make([]byte, 16))...), nil
}

// UIntCV is an unsigned 128-bit integer.
type UIntCV struct{ Value *big.Int }

// UInt wraps a uint64.
func UInt(v uint64) UIntCV { return UIntCV{Value: new(big.Int).SetUint64(v)} }

func (v UIntCV) Serialize() ([]byte, error) {
	if v.Value == nil || v.Value.Sign() < 0 || v.Value.Cmp(maxUInt128) > 0 {
		return nil, fmt.Errorf("%w: uint %v", ErrValueOutOfRange, v.Value)
	}
	return append([]byte{byte(ClarityUInt)}, v.Value.FillBytes(make([]byte, 16))...), nil
}

func withLength(t ClarityType, data []byte) []byte {
	out := make([]byte, 5, 5+len(data))
	out[0] = byte(t)
	binary.BigEndian.PutUint32(out[1:], uint32(len(data)))
	return append(out, data...)
}

// BufferCV is a byte buffer.
type BufferCV []byte

func (v BufferCV) Serialize() ([]byte, error) { return withLength(ClarityBuffer, v), nil }

// BoolCV is true or false.
type BoolCV bool

func (v BoolCV) Serialize() ([]byte, error) {
	if v {
		return []byte{byte(ClarityBoolTrue)}, nil
	}
	return []byte{byte(ClarityBoolFalse)}, nil
}

// StringASCIICV is an ASCII string.
type StringASCIICV string

func (v StringASCIICV) Serialize() ([]byte, error) {
	for i := 0; i < len(v); i++ {
		if v[i] > 0x7f {
			return nil, fmt.Errorf("%w: non-ascii string", ErrValueOutOfRange)
		}
	}
	return withLength(ClarityStringASCII, []byte(v)), nil
}

// StringUTF8CV is a UTF-8 string.
type StringUTF8CV string

func (v StringUTF8CV) Serialize() ([]byte, error) {
	if !utf8.ValidString(string(v)) {
		return nil, fmt.Errorf("%w: invalid utf-8", ErrValueOutOfRange)
	}
	return withLength(ClarityStringUTF8, []byte(v)), nil
}

// StandardPrincipalCV is an account principal.
type StandardPrincipalCV struct {
	Version byte
	Hash160 []byte
}

// ContractPrincipalCV is a contract principal.
type ContractPrincipalCV struct {
	Address      StandardPrincipalCV
	ContractName string
}

// Principal parses "SP..." or "SP....contract-name".
func Principal(principal string) (ClarityValue, error) {
	addr, name, isContract := strings.Cut(principal, ".")
	version, hash, err := keys.ParseC32Address(addr)
	if err != nil {
		return nil, err
	}
	std := StandardPrincipalCV{Version: version, Hash160: hash}
	if !isContract {
		return std, nil
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	return ContractPrincipalCV{Address: std, ContractName: name}, nil
}

func checkName(name string) error {
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (v StandardPrincipalCV) address() ([]byte, error) {
	if len(v.Hash160) != 20 {
		return nil, fmt.Errorf("%w: hash160 must be 20 bytes", ErrValueOutOfRange)
	}
	return append([]byte{v.Version}, v.Hash160...), nil
}

func (v StandardPrincipalCV) Serialize() ([]byte, error) {
	addr, err := v.address()
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(ClarityPrincipalStandard)}, addr...), nil
}

func (v ContractPrincipalCV) Serialize() ([]byte, error) {
	addr, err := v.Address.address()
	if err != nil {
		return nil, err
	}
	if err := checkName(v.ContractName); err != nil {
		return nil, err
	}
	out := append([]byte{byte(ClarityPrincipalContract)}, addr...)
	out = append(out, byte(len(v.ContractName)))
	return append(out, v.ContractName...), nil
}

func wrap(t ClarityType, inner ClarityValue) ([]byte, error) {
	b, err := inner.Serialize()
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(t)}, b...), nil
}

// NoneCV is an empty optional.
type NoneCV struct{}

func (NoneCV) Serialize() ([]byte, error) { return []byte{byte(ClarityOptionalNone)}, nil }

// SomeCV is a present optional.
type SomeCV struct{ Value ClarityValue }

func (v SomeCV) Serialize() ([]byte, error) { return wrap(ClarityOptionalSome, v.Value) }

// ResponseOkCV is an ok response.
type ResponseOkCV struct{ Value ClarityValue }

func (v ResponseOkCV) Serialize() ([]byte, error) { return wrap(ClarityResponseOk, v.Value) }

// ResponseErrCV is an err response.
type ResponseErrCV struct{ Value ClarityValue }

func (v ResponseErrCV) Serialize() ([]byte, error) { return wrap(ClarityResponseErr, v.Value) }

// ListCV is a list of values.
type ListCV []ClarityValue

func (v ListCV) Serialize() ([]byte, error) {
	out := make([]byte, 5)
	out[0] = byte(ClarityList)
	binary.BigEndian.PutUint32(out[1:], uint32(len(v)))
	for _, item := range v {
		b, err := item.Serialize()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// TupleCV maps field names to values. Fields serialize in name order.
type TupleCV map[string]ClarityValue

func (v TupleCV) Serialize() ([]byte, error) {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]byte, 5)
	out[0] = byte(ClarityTuple)
	binary.BigEndian.PutUint32(out[1:], uint32(len(v)))
	for _, name := range names {
		if err := checkName(name); err != nil {
			return nil, err
		}
		b, err := v[name].Serialize()
		if err != nil {
			return nil, err
		}
		out = append(out, byte(len(name)))
		out = append(out, name...)
		out = append(out, b...)
	}
	return out, nil
}
