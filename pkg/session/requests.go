package session

import (
	"context"

	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/transactions"
)

// requester returns the app key and the identity the wallet answers to.
func (s *UserSession) requester(ctx context.Context) (string, transactions.Requester, error) {
	ud, err := s.LoadUserData(ctx)
	if err != nil {
		return "", transactions.Requester{}, err
	}
	publicKey, err := keys.PublicKeyFromPrivate(ud.AppPrivateKey)
	if err != nil {
		return "", transactions.Requester{}, err
	}
	return ud.AppPrivateKey, transactions.Requester{PublicKey: publicKey, RedirectURI: s.cfg.RedirectURI()}, nil
}

func (s *UserSession) requestURL(payload any, privateKey string) (string, error) {
	tok, err := transactions.SignPayload(payload, privateKey)
	if err != nil {
		return "", err
	}
	return s.cfg.DownloadURL + "?request=" + tok, nil
}

// MakeSTXTransferURL returns the wallet link asking for an STX transfer.
func (s *UserSession) MakeSTXTransferURL(ctx context.Context, opts transactions.STXTransferOptions) (string, error) {
	priv, req, err := s.requester(ctx)
	if err != nil {
		return "", err
	}
	payload, err := transactions.NewSTXTransferPayload(opts, req)
	if err != nil {
		return "", err
	}
	return s.requestURL(payload, priv)
}

// MakeContractCallURL returns the wallet link asking for a contract call.
func (s *UserSession) MakeContractCallURL(ctx context.Context, opts transactions.ContractCallOptions) (string, error) {
	priv, req, err := s.requester(ctx)
	if err != nil {
		return "", err
	}
	payload, err := transactions.NewContractCallPayload(opts, req)
	if err != nil {
		return "", err
	}
	return s.requestURL(payload, priv)
}

// MakeContractDeployURL returns the wallet link asking for a deploy.
func (s *UserSession) MakeContractDeployURL(ctx context.Context, opts transactions.ContractDeployOptions) (string, error) {
	priv, req, err := s.requester(ctx)
	if err != nil {
		return "", err
	}
	payload, err := transactions.NewContractDeployPayload(opts, req)
	if err != nil {
		return "", err
	}
	return s.requestURL(payload, priv)
}

// MakeSignatureRequestURL returns the wallet link asking to sign a message.
func (s *UserSession) MakeSignatureRequestURL(ctx context.Context, opts transactions.SignatureRequestOptions) (string, error) {
	priv, req, err := s.requester(ctx)
	if err != nil {
		return "", err
	}
	payload, err := transactions.NewSignaturePayload(opts, req)
	if err != nil {
		return "", err
	}
	return s.requestURL(payload, priv)
}
