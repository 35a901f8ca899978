package encryption

import (
	"encoding/json"
	"strings"
)

const (
	ivHexLength          = 2 * 16
	ephemeralPKHexLength = 2 * 33
	macHexLength         = 2 * 32
	// DER signatures are at most 72 bytes.
	maxSignatureHexLength = 2 * 72
	publicKeyHexLength    = 2 * 33
)

func aesCBCOutputLength(n int64) int64 {
	return (n/16 + 1) * 16
}

func base64OutputLength(n int64) int64 {
	return 4 * ((n + 2) / 3)
}

// EstimatedJSONLength projects the length of the envelope EncryptContent
// would produce for contentLength bytes, without encrypting anything. The
// projection is exact for unsigned envelopes and an upper bound for signed
// ones.
func EstimatedJSONLength(contentLength int64, wasString, sign bool, encoding Encoding) (int64, error) {
	if encoding == "" {
		encoding = EncodingHex
	}
	if err := encoding.validate(); err != nil {
		return 0, err
	}

	shell := CipherObject{WasString: wasString}
	if encoding == EncodingBase64 {
		shell.CipherTextEncoding = EncodingBase64
	}
	shellJSON, err := json.Marshal(shell)
	if err != nil {
		return 0, err
	}

	cipherTextLength := aesCBCOutputLength(contentLength)
	var encodedLength int64
	if encoding == EncodingBase64 {
		encodedLength = base64OutputLength(cipherTextLength)
	} else {
		encodedLength = 2 * cipherTextLength
	}

	payloadLength := int64(len(shellJSON)) + ivHexLength + ephemeralPKHexLength + macHexLength + encodedLength
	if !sign {
		return payloadLength, nil
	}

	signedShell, err := json.Marshal(SignedCipherObject{})
	if err != nil {
		return 0, err
	}
	// The payload is embedded as a JSON string; only its quotes get escaped.
	escapes := int64(strings.Count(string(shellJSON), `"`))
	return int64(len(signedShell)) + maxSignatureHexLength + publicKeyHexLength + payloadLength + escapes, nil
}
