// Package storage reads and writes a signed-in user's files on their
// storage hub.
//
// Storage composes a session (for the app key, the cached hub connection
// and the per-path etags), a hub client and, for reads of other users'
// files, a profile lookup:
//
//	st := storage.New(userSession, hub.NewClient(30*time.Second), profile.NewClient(20*time.Second))
//
// # Writing files
//
// PutFile encrypts with the app key by default:
//
//	out, err := st.PutFile(ctx, "notes.json", `{"a":1}`)
//
// Options pick one of three upload strategies:
//
//   - encrypt (default), optionally with WithSign: one upload of a JSON
//     envelope, signed inside when requested;
//   - WithEncrypt(false) + WithSign(true): the content and a detached
//     signature at path + ".sig", uploaded concurrently;
//   - WithEncrypt(false): the content as is, streamed from its source.
//
// Size is checked against the hub's max_file_upload_size_megabytes before
// anything is uploaded, using the projected envelope size for encrypted
// content. Failures are *PayloadTooLargeError.
//
// # Etags
//
// Every confirmed write and read records the file's etag in the session.
// The next write of that path is sent with If-Match; a path without an etag
// is written with If-None-Match: *. WithoutEtagCheck disables both.
//
// # Retry
//
// A hub answer of 401, 409 or 5xx (IsRecoverable) makes PutFile, DeleteFile
// and ListFiles reconnect to the hub once and repeat the whole operation.
// Any other failure, or a failed repeat, is returned as is.
//
// # Reading files
//
//	fc, err := st.GetFile(ctx, "notes.json")                              // decrypt
//	fc, err := st.GetFile(ctx, "pub.txt", storage.WithDecrypt(false), storage.WithVerify(true))
//	fc, err := st.GetFile(ctx, "pub.txt", storage.WithDecrypt(false), storage.FromUser("alice.id", "", ""))
//
// Reads of hub errors are *hub.RemoteReadError; failed signature checks are
// *SignatureVerificationError.
package storage
