// Package sdk provides the high-level entry point for apps that sign users in
// with the companion wallet and keep their files on a storage hub.
//
// # Quick Start
//
//	import (
//		"github.com/PravicaInc/walletify-go/pkg/config"
//		"github.com/PravicaInc/walletify-go/pkg/sdk"
//	)
//
//	func main() {
//		cfg := &config.Config{
//			AppDomain:  "https://app.example.com",
//			SessionDir: "/var/lib/myapp/session",
//		}
//
//		w, err := sdk.NewSDK(cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer w.Close()
//
//		// Send the user to the wallet.
//		link, err := w.Session().GenerateAuthURL(ctx)
//
//		// Later, with the authResponse the wallet redirected back with:
//		user, err := w.Session().HandlePendingSignIn(ctx, authResponse)
//
//		// Store and read encrypted files.
//		_, err = w.Storage().PutFile(ctx, "todo.json", `["milk"]`)
//		fc, err := w.Storage().GetFile(ctx, "todo.json")
//	}
//
// # Architecture
//
//   - session: sign-in, the persisted session record, deep-link builders
//   - storage: hub uploads and reads with etags, encryption and signatures
//   - hub: the storage hub wire protocol
//   - profile: BNS name and profile resolution
//   - transactions: contract call, deploy, STX transfer and message signing
//     payloads
//
// # Configuration
//
// Required configuration fields:
//   - AppDomain: origin of the app, used for redirect and manifest URIs
//
// Optional fields:
//   - HubURL: hub used when the wallet names none
//   - DownloadURL: base of the wallet deep links
//   - CoreNode / Network: name lookup endpoint and network for transactions
//   - SessionDir: directory of the durable session store
//   - Debug: enable verbose logging
//   - Timeouts: custom timeout configuration
//
// config.Load reads the same fields from a YAML or JSON file and WALLETIFY_*
// environment variables.
//
// # Logging
//
// The package installs a console zap logger as the global logger at init.
// Debug switches it to debug level. Replace it with zap.ReplaceGlobals.
//
// # Resource Management
//
// Close releases the durable session store. Only one process may hold a
// given SessionDir open at a time.
package sdk
