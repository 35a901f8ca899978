// Package transactions builds the signed transaction-request tokens handed
// to the wallet app through deep links: contract calls, contract deploys,
// STX transfers and message signatures. It also serializes the Clarity
// values and post conditions those requests carry.
package transactions

import (
	"errors"
	"math/big"

	"github.com/PravicaInc/walletify-go/pkg/config"
	"github.com/PravicaInc/walletify-go/pkg/token"
)

// TxType is the request kind the wallet dispatches on.
type TxType string

const (
	ContractCall   TxType = "contract_call"
	ContractDeploy TxType = "smart_contract"
	STXTransfer    TxType = "token_transfer"
	SignMessage    TxType = "sign_message"
)

// AnchorMode selects which blocks may include the transaction.
type AnchorMode uint8

const (
	AnchorOnChainOnly  AnchorMode = 1
	AnchorOffChainOnly AnchorMode = 2
	AnchorAny          AnchorMode = 3
)

// PostConditionMode says whether transfers not covered by post conditions
// are allowed.
type PostConditionMode uint8

const (
	PostConditionAllow PostConditionMode = 1
	PostConditionDeny  PostConditionMode = 2
)

// AppDetails is shown by the wallet when asking for approval.
type AppDetails struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// TxOptions are the fields every request may carry.
type TxOptions struct {
	AppDetails        *AppDetails
	PostConditionMode PostConditionMode
	PostConditions    []PostCondition
	Network           *config.Network
	AnchorMode        AnchorMode
	Attachment        string
	Metadata          map[string]any
	// Fee is the fee in micro-STX as a decimal string.
	Fee string
	// StxAddress suggests the account the wallet should sign with.
	StxAddress string
	Sponsored  bool
}

// ContractCallOptions describes a contract-call request.
type ContractCallOptions struct {
	TxOptions
	ContractAddress string
	ContractName    string
	FunctionName    string
	FunctionArgs    []ClarityValue
}

// ContractDeployOptions describes a contract-deploy request.
type ContractDeployOptions struct {
	TxOptions
	ContractName string
	CodeBody     string
}

// STXTransferOptions describes an STX transfer request.
type STXTransferOptions struct {
	TxOptions
	Recipient string
	// Amount in micro-STX.
	Amount *big.Int
	Memo   string
}

// SignatureRequestOptions asks the wallet to sign a message.
type SignatureRequestOptions struct {
	TxOptions
	Message string
}

// Payload is the part of a request token shared by every TxType.
type Payload struct {
	TxType            TxType            `json:"txType"`
	PublicKey         string            `json:"publicKey"`
	RedirectURI       string            `json:"redirect_uri"`
	AppDetails        *AppDetails       `json:"appDetails,omitempty"`
	PostConditionMode PostConditionMode `json:"postConditionMode,omitempty"`
	PostConditions    []string          `json:"postConditions,omitempty"`
	Network           *config.Network   `json:"network,omitempty"`
	AnchorMode        AnchorMode        `json:"anchorMode,omitempty"`
	Attachment        string            `json:"attachment,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
	Fee               string            `json:"fee,omitempty"`
	StxAddress        string            `json:"stxAddress,omitempty"`
	Sponsored         bool              `json:"sponsored,omitempty"`
}

type ContractCallPayload struct {
	Payload
	ContractAddress string   `json:"contractAddress"`
	ContractName    string   `json:"contractName"`
	FunctionName    string   `json:"functionName"`
	FunctionArgs    []string `json:"functionArgs"`
}

type ContractDeployPayload struct {
	Payload
	ContractName string `json:"contractName"`
	CodeBody     string `json:"codeBody"`
}

type STXTransferPayload struct {
	Payload
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo,omitempty"`
}

type SignaturePayload struct {
	Payload
	Message string `json:"message"`
}

// Requester identifies who asks and where the wallet answers.
type Requester struct {
	PublicKey   string
	RedirectURI string
}

func newPayload(txType TxType, opts TxOptions, r Requester) (Payload, error) {
	p := Payload{
		TxType:            txType,
		PublicKey:         r.PublicKey,
		RedirectURI:       r.RedirectURI,
		AppDetails:        opts.AppDetails,
		PostConditionMode: opts.PostConditionMode,
		Network:           opts.Network,
		AnchorMode:        opts.AnchorMode,
		Attachment:        opts.Attachment,
		Metadata:          opts.Metadata,
		Fee:               opts.Fee,
		StxAddress:        opts.StxAddress,
		Sponsored:         opts.Sponsored,
	}
	for _, pc := range opts.PostConditions {
		h, err := SerializePostConditionHex(pc)
		if err != nil {
			return Payload{}, err
		}
		p.PostConditions = append(p.PostConditions, h)
	}
	return p, nil
}

// NewContractCallPayload hex-serializes the function arguments.
func NewContractCallPayload(opts ContractCallOptions, r Requester) (*ContractCallPayload, error) {
	base, err := newPayload(ContractCall, opts.TxOptions, r)
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, len(opts.FunctionArgs))
	for _, arg := range opts.FunctionArgs {
		h, err := SerializeHex(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, h)
	}
	return &ContractCallPayload{
		Payload:         base,
		ContractAddress: opts.ContractAddress,
		ContractName:    opts.ContractName,
		FunctionName:    opts.FunctionName,
		FunctionArgs:    args,
	}, nil
}

func NewContractDeployPayload(opts ContractDeployOptions, r Requester) (*ContractDeployPayload, error) {
	base, err := newPayload(ContractDeploy, opts.TxOptions, r)
	if err != nil {
		return nil, err
	}
	return &ContractDeployPayload{Payload: base, ContractName: opts.ContractName, CodeBody: opts.CodeBody}, nil
}

// NewSTXTransferPayload writes the amount as a base-10 string.
func NewSTXTransferPayload(opts STXTransferOptions, r Requester) (*STXTransferPayload, error) {
	if opts.Amount == nil || opts.Amount.Sign() < 0 {
		return nil, errors.New("stx transfer: amount must be non-negative")
	}
	base, err := newPayload(STXTransfer, opts.TxOptions, r)
	if err != nil {
		return nil, err
	}
	return &STXTransferPayload{
		Payload:   base,
		Recipient: opts.Recipient,
		Amount:    opts.Amount.Text(10),
		Memo:      opts.Memo,
	}, nil
}

func NewSignaturePayload(opts SignatureRequestOptions, r Requester) (*SignaturePayload, error) {
	base, err := newPayload(SignMessage, opts.TxOptions, r)
	if err != nil {
		return nil, err
	}
	return &SignaturePayload{Payload: base, Message: opts.Message}, nil
}

// SignPayload signs any request payload into an ES256K token.
func SignPayload(payload any, privateKey string) (string, error) {
	return token.Sign(payload, privateKey)
}
