// Package config provides configuration management for the walletify SDK.
//
// This package defines the Config structure that controls SDK behavior:
// the app identity presented to the wallet, storage hub and name lookup
// endpoints, the Stacks network, deep-link base URL, session persistence and
// timeouts.
//
// # Basic Configuration
//
// The minimum required configuration is the app domain:
//
//	cfg := &config.Config{
//		AppDomain: "https://app.example.com",
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Validate() will:
//   - Set DefaultHubURL, DefaultDownloadURL and DefaultManifestPath if empty
//   - Request the store_write scope when no scopes are given
//   - Set the network to Mainnet if not provided
//   - Return an error if AppDomain is empty
//
// # Redirect and Manifest
//
// The redirect and manifest URIs sent in authentication requests are built
// from AppDomain:
//
//	cfg.RedirectPath = "/callback"
//	cfg.RedirectURI() // https://app.example.com/callback
//	cfg.ManifestURI() // https://app.example.com/manifest.json
//
// # Network Selection
//
// Two predefined networks are available:
//
//	config.Mainnet - Stacks mainnet (version 0x00, chain ID 0x00000001)
//	config.Testnet - Stacks testnet (version 0x80, chain ID 0x80000000)
//
// The network's BNSLookupURL is used for name lookups during sign-in unless
// CoreNode overrides it.
//
// # Session Persistence
//
// When SessionDir is set, sdk.New opens a pebble database there and keeps the
// signed-in session across restarts. Without it sessions live in memory.
//
// # Timeouts
//
//	cfg.Timeouts = config.Timeouts{
//		HTTP:       30 * time.Second,  // single hub/profile request
//		HubConnect: 15 * time.Second,  // hub_info lookup and token creation
//		Upload:     120 * time.Second, // whole PutFile call including retry
//		Lookup:     20 * time.Second,  // name and profile resolution
//	}
//
// Zero values are replaced with defaults via WithDefaults().
//
// # Loading From Files
//
// Load reads YAML or JSON and overlays WALLETIFY_* environment variables:
//
//	cfg, err := config.Load("walletify.yaml")
//
//	# walletify.yaml
//	app_domain: https://app.example.com
//	hub_url: https://hub.example.com
//	session_dir: /var/lib/walletify
//	timeouts:
//	  http: 10s
//
// # Thread Safety
//
// Config instances should be created once and not modified after passing to
// sdk.New(). The Config is read-only during SDK operations.
package config
