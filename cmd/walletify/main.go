// Command walletify drives the SDK from a shell: it prints sign-in and
// transaction links, completes sign-in from an auth response and manages the
// signed-in user's hub files.
//
// The session is kept in --session-dir (default ~/.walletify/session) so
// commands run one after another share it.
package main

import (
	"os"

	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		_ = zap.L().Sync()
		os.Exit(1)
	}
}
