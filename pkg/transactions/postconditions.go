package transactions

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/PravicaInc/walletify-go/pkg/keys"
)

type postConditionType byte

const (
	postConditionSTX         postConditionType = 0x00
	postConditionFungible    postConditionType = 0x01
	postConditionNonFungible postConditionType = 0x02
)

type principalType byte

const (
	principalOrigin   principalType = 0x01
	principalStandard principalType = 0x02
	principalContract principalType = 0x03
)

// FungibleConditionCode compares an amount sent against the condition.
type FungibleConditionCode byte

const (
	Equal        FungibleConditionCode = 0x01
	Greater      FungibleConditionCode = 0x02
	GreaterEqual FungibleConditionCode = 0x03
	Less         FungibleConditionCode = 0x04
	LessEqual    FungibleConditionCode = 0x05
)

// NonFungibleConditionCode states whether an asset leaves the principal.
type NonFungibleConditionCode byte

const (
	DoesNotOwn NonFungibleConditionCode = 0x10
	Owns       NonFungibleConditionCode = 0x11
)

// PostCondition serializes to the consensus encoding of a post condition.
type PostCondition interface {
	Serialize() ([]byte, error)
}

// SerializePostConditionHex returns the hex encoding of pc, or pc itself for
// HexPostCondition.
func SerializePostConditionHex(pc PostCondition) (string, error) {
	if h, ok := pc.(HexPostCondition); ok {
		return string(h), nil
	}
	b, err := pc.Serialize()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HexPostCondition is an already serialized post condition.
type HexPostCondition string

func (h HexPostCondition) Serialize() ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(string(h), "0x"))
}

// PostConditionPrincipal is whose balance a post condition constrains.
// The zero value is the transaction origin.
type PostConditionPrincipal struct {
	Address      string
	ContractName string
}

// Origin is the transaction sender.
func Origin() PostConditionPrincipal { return PostConditionPrincipal{} }

// StandardPrincipal is an account address.
func StandardPrincipal(address string) PostConditionPrincipal {
	return PostConditionPrincipal{Address: address}
}

// ContractPrincipal is a contract.
func ContractPrincipal(address, contractName string) PostConditionPrincipal {
	return PostConditionPrincipal{Address: address, ContractName: contractName}
}

func serializeAddress(address string) ([]byte, error) {
	version, hash, err := keys.ParseC32Address(address)
	if err != nil {
		return nil, err
	}
	return append([]byte{version}, hash...), nil
}

func lpString(s string) ([]byte, error) {
	if err := checkName(s); err != nil {
		return nil, err
	}
	return append([]byte{byte(len(s))}, s...), nil
}

func (p PostConditionPrincipal) serialize() ([]byte, error) {
	if p.Address == "" {
		return []byte{byte(principalOrigin)}, nil
	}
	addr, err := serializeAddress(p.Address)
	if err != nil {
		return nil, err
	}
	if p.ContractName == "" {
		return append([]byte{byte(principalStandard)}, addr...), nil
	}
	name, err := lpString(p.ContractName)
	if err != nil {
		return nil, err
	}
	out := append([]byte{byte(principalContract)}, addr...)
	return append(out, name...), nil
}

// AssetInfo names a token: contract address, contract name, asset name.
type AssetInfo struct {
	Address      string
	ContractName string
	AssetName    string
}

func (a AssetInfo) serialize() ([]byte, error) {
	out, err := serializeAddress(a.Address)
	if err != nil {
		return nil, err
	}
	for _, s := range []string{a.ContractName, a.AssetName} {
		b, err := lpString(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func amountBytes(amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() < 0 || !amount.IsUint64() {
		return nil, fmt.Errorf("%w: post condition amount %v", ErrValueOutOfRange, amount)
	}
	return binary.BigEndian.AppendUint64(nil, amount.Uint64()), nil
}

// STXPostCondition constrains the STX sent by Principal.
type STXPostCondition struct {
	Principal PostConditionPrincipal
	Code      FungibleConditionCode
	Amount    *big.Int
}

func (pc STXPostCondition) Serialize() ([]byte, error) {
	principal, err := pc.Principal.serialize()
	if err != nil {
		return nil, err
	}
	amount, err := amountBytes(pc.Amount)
	if err != nil {
		return nil, err
	}
	out := append([]byte{byte(postConditionSTX)}, principal...)
	out = append(out, byte(pc.Code))
	return append(out, amount...), nil
}

// FungiblePostCondition constrains a fungible token sent by Principal.
type FungiblePostCondition struct {
	Principal PostConditionPrincipal
	Code      FungibleConditionCode
	Amount    *big.Int
	Asset     AssetInfo
}

func (pc FungiblePostCondition) Serialize() ([]byte, error) {
	principal, err := pc.Principal.serialize()
	if err != nil {
		return nil, err
	}
	asset, err := pc.Asset.serialize()
	if err != nil {
		return nil, err
	}
	amount, err := amountBytes(pc.Amount)
	if err != nil {
		return nil, err
	}
	out := append([]byte{byte(postConditionFungible)}, principal...)
	out = append(out, asset...)
	out = append(out, byte(pc.Code))
	return append(out, amount...), nil
}

// NonFungiblePostCondition constrains ownership of one NFT.
type NonFungiblePostCondition struct {
	Principal PostConditionPrincipal
	Code      NonFungibleConditionCode
	Asset     AssetInfo
	AssetName ClarityValue
}

func (pc NonFungiblePostCondition) Serialize() ([]byte, error) {
	principal, err := pc.Principal.serialize()
	if err != nil {
		return nil, err
	}
	asset, err := pc.Asset.serialize()
	if err != nil {
		return nil, err
	}
	if pc.AssetName == nil {
		return nil, fmt.Errorf("%w: missing NFT asset name", ErrValueOutOfRange)
	}
	name, err := pc.AssetName.Serialize()
	if err != nil {
		return nil, err
	}
	out := append([]byte{byte(postConditionNonFungible)}, principal...)
	out = append(out, asset...)
	out = append(out, name...)
	return append(out, byte(pc.Code)), nil
}
