package storage

import "github.com/PravicaInc/walletify-go/pkg/encryption"

// KeySetting toggles encryption or signing. Key optionally overrides the
// app key: a public key for encryption, a private key for signing and
// decryption.
type KeySetting struct {
	Enabled bool
	Key     string
}

// PutFileOptions controls PutFile. Defaults: encrypt with the app key, no
// signature, hex cipher text, etag checking on.
type PutFileOptions struct {
	Encrypt               KeySetting
	Sign                  KeySetting
	CipherTextEncoding    encryption.Encoding
	ContentType           string
	DangerouslyIgnoreEtag bool
}

// PutFileOption mutates PutFileOptions.
type PutFileOption func(*PutFileOptions)

func defaultPutFileOptions() PutFileOptions {
	return PutFileOptions{
		Encrypt:            KeySetting{Enabled: true},
		CipherTextEncoding: encryption.EncodingHex,
	}
}

// WithEncrypt turns encryption on or off.
func WithEncrypt(enabled bool) PutFileOption {
	return func(o *PutFileOptions) { o.Encrypt = KeySetting{Enabled: enabled} }
}

// WithEncryptKey encrypts to publicKey instead of the app key.
func WithEncryptKey(publicKey string) PutFileOption {
	return func(o *PutFileOptions) { o.Encrypt = KeySetting{Enabled: true, Key: publicKey} }
}

// WithSign turns signing with the app key on or off.
func WithSign(enabled bool) PutFileOption {
	return func(o *PutFileOptions) { o.Sign = KeySetting{Enabled: enabled} }
}

// WithSignKey signs with privateKey instead of the app key.
func WithSignKey(privateKey string) PutFileOption {
	return func(o *PutFileOptions) { o.Sign = KeySetting{Enabled: true, Key: privateKey} }
}

// WithCipherTextEncoding picks the encoding of encrypted envelopes.
func WithCipherTextEncoding(enc encryption.Encoding) PutFileOption {
	return func(o *PutFileOptions) { o.CipherTextEncoding = enc }
}

// WithContentType overrides the content type of plain and signed uploads.
func WithContentType(contentType string) PutFileOption {
	return func(o *PutFileOptions) { o.ContentType = contentType }
}

// WithoutEtagCheck writes without If-Match or If-None-Match.
func WithoutEtagCheck() PutFileOption {
	return func(o *PutFileOptions) { o.DangerouslyIgnoreEtag = true }
}

// GetFileOptions controls GetFile. Defaults: decrypt with the app key, no
// signature check, the configured app, the signed-in user.
type GetFileOptions struct {
	Decrypt           KeySetting
	Verify            bool
	App               string
	Username          string
	ZoneFileLookupURL string
}

// GetFileOption mutates GetFileOptions.
type GetFileOption func(*GetFileOptions)

// WithDecrypt turns decryption on or off.
func WithDecrypt(enabled bool) GetFileOption {
	return func(o *GetFileOptions) { o.Decrypt = KeySetting{Enabled: enabled} }
}

// WithDecryptKey decrypts with privateKey instead of the app key.
func WithDecryptKey(privateKey string) GetFileOption {
	return func(o *GetFileOptions) { o.Decrypt = KeySetting{Enabled: true, Key: privateKey} }
}

// WithVerify checks the file's signature.
func WithVerify(enabled bool) GetFileOption {
	return func(o *GetFileOptions) { o.Verify = enabled }
}

// FromUser reads username's bucket for app instead of the signed-in
// user's. An empty app means the configured app domain; an empty
// lookupURL the configured name lookup endpoint.
func FromUser(username, app, lookupURL string) GetFileOption {
	return func(o *GetFileOptions) {
		o.Username = username
		o.App = app
		o.ZoneFileLookupURL = lookupURL
	}
}

// DeleteFileOptions controls DeleteFile.
type DeleteFileOptions struct {
	// WasSigned also deletes the detached signature.
	WasSigned             bool
	DangerouslyIgnoreEtag bool
}

// DeleteFileOption mutates DeleteFileOptions.
type DeleteFileOption func(*DeleteFileOptions)

// WasSigned also deletes path + SignatureSuffix.
func WasSigned() DeleteFileOption {
	return func(o *DeleteFileOptions) { o.WasSigned = true }
}

// DeleteWithoutEtagCheck deletes without If-Match.
func DeleteWithoutEtagCheck() DeleteFileOption {
	return func(o *DeleteFileOptions) { o.DangerouslyIgnoreEtag = true }
}
