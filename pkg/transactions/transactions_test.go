package transactions

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PravicaInc/walletify-go/pkg/keys"
	"github.com/PravicaInc/walletify-go/pkg/token"
)

const (
	testAddress = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
	testHash    = "a46ff88886c2ef9762d970b4d2c63678835bd39d"
)

func serialized(t *testing.T, v ClarityValue) string {
	t.Helper()
	h, err := SerializeHex(v)
	require.NoError(t, err)
	return h
}

func TestClaritySerialization(t *testing.T) {
	contract, err := Principal(testAddress + ".hello")
	require.NoError(t, err)
	standard, err := Principal(testAddress)
	require.NoError(t, err)

	cases := []struct {
		name  string
		value ClarityValue
		want  string
	}{
		{"int", Int(1), "0000000000000000000000000000000001"},
		{"negative int", Int(-1), "00ffffffffffffffffffffffffffffffff"},
		{"uint", UInt(1), "0100000000000000000000000000000001"},
		{"buffer", BufferCV{0xab}, "0200000001ab"},
		{"true", BoolCV(true), "03"},
		{"false", BoolCV(false), "04"},
		{"standard principal", standard, "0516" + testHash},
		{"contract principal", contract, "0616" + testHash + "0568656c6c6f"},
		{"ok", ResponseOkCV{Value: BoolCV(true)}, "0703"},
		{"err", ResponseErrCV{Value: UInt(0)}, "080100000000000000000000000000000000"},
		{"none", NoneCV{}, "09"},
		{"some", SomeCV{Value: BoolCV(false)}, "0a04"},
		{"list", ListCV{BoolCV(true), BoolCV(false)}, "0b000000020304"},
		{"tuple", TupleCV{"b": BoolCV(true), "a": BoolCV(false)}, "0c00000002016104016203"},
		{"ascii", StringASCIICV("hi"), "0d000000026869"},
		{"utf8", StringUTF8CV("é"), "0e00000002c3a9"},
		{"hex passthrough", HexValue("0301"), "0301"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, serialized(t, tc.value))
		})
	}
}

func TestClarityRanges(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 127)
	_, err := IntCV{Value: tooBig}.Serialize()
	require.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = UIntCV{Value: big.NewInt(-1)}.Serialize()
	require.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = StringASCIICV("é").Serialize()
	require.ErrorIs(t, err, ErrValueOutOfRange)

	_, err = Principal("not-an-address")
	require.Error(t, err)
}

func TestPostConditionSerialization(t *testing.T) {
	stx := STXPostCondition{Principal: StandardPrincipal(testAddress), Code: Equal, Amount: big.NewInt(1000)}
	h, err := SerializePostConditionHex(stx)
	require.NoError(t, err)
	assert.Equal(t, "00"+"02"+"16"+testHash+"01"+"00000000000003e8", h)

	origin := STXPostCondition{Principal: Origin(), Code: LessEqual, Amount: big.NewInt(1)}
	h, err = SerializePostConditionHex(origin)
	require.NoError(t, err)
	assert.Equal(t, "00"+"01"+"05"+"0000000000000001", h)

	asset := AssetInfo{Address: testAddress, ContractName: "tok", AssetName: "t"}
	ft := FungiblePostCondition{Principal: ContractPrincipal(testAddress, "vault"), Code: GreaterEqual, Amount: big.NewInt(2), Asset: asset}
	h, err = SerializePostConditionHex(ft)
	require.NoError(t, err)
	assetHex := "16" + testHash + "03" + hex.EncodeToString([]byte("tok")) + "01" + hex.EncodeToString([]byte("t"))
	assert.Equal(t, "01"+"03"+"16"+testHash+"05"+hex.EncodeToString([]byte("vault"))+assetHex+"03"+"0000000000000002", h)

	nft := NonFungiblePostCondition{Principal: Origin(), Code: DoesNotOwn, Asset: asset, AssetName: UInt(7)}
	h, err = SerializePostConditionHex(nft)
	require.NoError(t, err)
	assert.Equal(t, "02"+"01"+assetHex+"0100000000000000000000000000000007"+"10", h)

	h, err = SerializePostConditionHex(HexPostCondition("beef"))
	require.NoError(t, err)
	assert.Equal(t, "beef", h)

	_, err = STXPostCondition{Principal: Origin(), Code: Equal, Amount: big.NewInt(-5)}.Serialize()
	require.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestPayloadTokens(t *testing.T) {
	priv, err := keys.GeneratePrivateKey()
	require.NoError(t, err)
	pub, err := keys.PublicKeyFromPrivate(priv)
	require.NoError(t, err)
	req := Requester{PublicKey: pub, RedirectURI: "https://app.example/"}

	call, err := NewContractCallPayload(ContractCallOptions{
		TxOptions: TxOptions{
			PostConditionMode: PostConditionDeny,
			PostConditions:    []PostCondition{HexPostCondition("00")},
			AnchorMode:        AnchorAny,
		},
		ContractAddress: testAddress,
		ContractName:    "counter",
		FunctionName:    "increment",
		FunctionArgs:    []ClarityValue{UInt(1), HexValue("03")},
	}, req)
	require.NoError(t, err)

	tok, err := SignPayload(call, priv)
	require.NoError(t, err)
	claims, err := token.Verify(tok, pub)
	require.NoError(t, err)

	assert.Equal(t, "contract_call", claims["txType"])
	assert.Equal(t, pub, claims["publicKey"])
	assert.Equal(t, "https://app.example/", claims["redirect_uri"])
	assert.Equal(t, []any{"0100000000000000000000000000000001", "03"}, claims["functionArgs"])
	assert.Equal(t, []any{"00"}, claims["postConditions"])
	assert.Equal(t, float64(2), claims["postConditionMode"])
	assert.NotContains(t, claims, "appDetails")

	transfer, err := NewSTXTransferPayload(STXTransferOptions{
		TxOptions: TxOptions{AppDetails: &AppDetails{Name: "App", Icon: "icon.png"}},
		Recipient: testAddress,
		Amount:    new(big.Int).SetUint64(1_000_000_000_000_000_000),
		Memo:      "hi",
	}, req)
	require.NoError(t, err)
	tok, err = SignPayload(transfer, priv)
	require.NoError(t, err)

	var decoded STXTransferPayload
	require.NoError(t, token.DecodeInto(tok, &decoded))
	assert.Equal(t, STXTransfer, decoded.TxType)
	assert.Equal(t, "1000000000000000000", decoded.Amount)
	assert.Equal(t, "App", decoded.AppDetails.Name)

	_, err = NewSTXTransferPayload(STXTransferOptions{Recipient: testAddress}, req)
	require.Error(t, err)

	deploy, err := NewContractDeployPayload(ContractDeployOptions{ContractName: "c", CodeBody: "(define-data-var x int 0)"}, req)
	require.NoError(t, err)
	assert.Equal(t, ContractDeploy, deploy.TxType)

	sig, err := NewSignaturePayload(SignatureRequestOptions{Message: "hello"}, req)
	require.NoError(t, err)
	assert.Equal(t, SignMessage, sig.TxType)
}
