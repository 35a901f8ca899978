// Package session manages the signed-in user of an app.
//
// A UserSession owns one SessionData record in a Store: the user, the
// transit key used during sign-in, the cached hub connection and the etag of
// every file the app wrote or read. All writes go through Update, which
// serializes read-modify-write within a process. Across processes sharing a
// store the last writer wins.
//
// Sign-in is two steps. GenerateAuthURL stores a transit key and returns the
// wallet link carrying a signed auth request; HandlePendingSignIn verifies
// the wallet's response, decrypts the app private key with the transit key
// and stores the user. The Make*URL methods build signed transaction
// requests for the same wallet.
package session
