// Package config defines the runtime configuration for the SDK: the app
// identity used in authentication requests, storage hub and name lookup
// endpoints, the Stacks network, deep-link base URL, session persistence
// and operation timeouts. It also provides validation and defaulting helpers.
package config

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultHubURL is the storage hub used when the user did not pick one.
	DefaultHubURL = "https://hub.blockstack.org"
	// DefaultDownloadURL is the companion wallet deep-link entry point.
	DefaultDownloadURL = "https://wiseapp.id/download"
	// DefaultManifestPath is appended to AppDomain to build the manifest URI.
	DefaultManifestPath = "/manifest.json"
	// NameLookupPath is the BNS names endpoint relative to a core node.
	NameLookupPath = "/v1/names"
)

// Config holds all SDK settings required to build sessions and storage clients.
// Use Validate to fill implicit defaults and to check for required fields.
type Config struct {
	// AppDomain is the origin of the app, e.g. "https://app.example.com" (required).
	AppDomain string `json:"app_domain" yaml:"app_domain" mapstructure:"app_domain"`
	// RedirectPath is appended to AppDomain to build the redirect URI.
	RedirectPath string `json:"redirect_path" yaml:"redirect_path" mapstructure:"redirect_path"`
	// ManifestPath is appended to AppDomain to build the manifest URI.
	// Default: /manifest.json
	ManifestPath string `json:"manifest_path" yaml:"manifest_path" mapstructure:"manifest_path"`
	// Scopes requested during sign-in. Default: store_write.
	Scopes []string `json:"scopes" yaml:"scopes" mapstructure:"scopes"`
	// CoreNode overrides the network BNS lookup endpoint.
	CoreNode string `json:"core_node" yaml:"core_node" mapstructure:"core_node"`
	// HubURL is the storage hub used for users whose auth response carries none.
	// Default: https://hub.blockstack.org
	HubURL string `json:"hub_url" yaml:"hub_url" mapstructure:"hub_url"`
	// DownloadURL is the base of the generated deep links.
	// Default: https://wiseapp.id/download
	DownloadURL string `json:"download_url" yaml:"download_url" mapstructure:"download_url"`
	// Network selects the Stacks network embedded in transaction requests.
	Network Network `json:"network" yaml:"network" mapstructure:"network"`
	// SessionDir enables the durable pebble session store when set.
	SessionDir string `json:"session_dir" yaml:"session_dir" mapstructure:"session_dir"`
	// Debug enables verbose logging.
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`
	// Timeouts configures per-operation timeouts. See Timeouts.WithDefaults for defaults.
	Timeouts Timeouts `json:"timeouts" yaml:"timeouts" mapstructure:"timeouts"`
}

// Network describes a Stacks network. Version is the transaction version
// byte, ChainID the chain identifier; both are informational for the wallet.
type Network struct {
	Version      uint8  `json:"version" yaml:"version" mapstructure:"version"`
	ChainID      uint32 `json:"chainId" yaml:"chain_id" mapstructure:"chain_id"`
	CoreAPIURL   string `json:"coreApiUrl" yaml:"core_api_url" mapstructure:"core_api_url"`
	BNSLookupURL string `json:"bnsLookupUrl" yaml:"bns_lookup_url" mapstructure:"bns_lookup_url"`
}

// Mainnet is the predefined Stacks mainnet.
var Mainnet = Network{
	Version:      0x00,
	ChainID:      0x00000001,
	CoreAPIURL:   "https://stacks-node-api.mainnet.stacks.co",
	BNSLookupURL: "https://stacks-node-api.mainnet.stacks.co",
}

// Testnet is the predefined Stacks testnet.
var Testnet = Network{
	Version:      0x80,
	ChainID:      0x80000000,
	CoreAPIURL:   "https://stacks-node-api.testnet.stacks.co",
	BNSLookupURL: "https://stacks-node-api.testnet.stacks.co",
}

// FallbackNameLookupURLs are tried when the configured core node cannot
// resolve a name during sign-in.
var FallbackNameLookupURLs = []string{
	"https://stacks-node-api.stacks.co" + NameLookupPath,
	"https://registrar.stacks.co" + NameLookupPath,
}

// Timeouts controls SDK operation deadlines.
// Zero values will be replaced by sane defaults in WithDefaults.
type Timeouts struct {
	HTTP       time.Duration `json:"http" yaml:"http" mapstructure:"http"`                   // any single hub/profile request
	HubConnect time.Duration `json:"hub_connect" yaml:"hub_connect" mapstructure:"hub_connect"` // hub_info + token
	Upload     time.Duration `json:"upload" yaml:"upload" mapstructure:"upload"`               // whole PutFile incl. retry
	Lookup     time.Duration `json:"lookup" yaml:"lookup" mapstructure:"lookup"`               // name/profile resolution
}

// Validate normalizes the configuration by applying implicit defaults for
// HubURL, DownloadURL, ManifestPath, Scopes and Network (defaults to
// Mainnet) and verifies that AppDomain is provided.
func (c *Config) Validate() error {
	if c.AppDomain == "" {
		return errors.New("app domain is required")
	}
	c.AppDomain = strings.TrimRight(c.AppDomain, "/")

	if c.HubURL == "" {
		c.HubURL = DefaultHubURL
	}

	if c.DownloadURL == "" {
		c.DownloadURL = DefaultDownloadURL
	}

	if c.ManifestPath == "" {
		c.ManifestPath = DefaultManifestPath
	}

	if len(c.Scopes) == 0 {
		c.Scopes = []string{"store_write"}
	}

	if c.Network.CoreAPIURL == "" {
		c.Network = Mainnet
	}

	return nil
}

// RedirectURI is where the wallet sends the user back to after signing.
func (c *Config) RedirectURI() string {
	return c.AppDomain + c.RedirectPath
}

// ManifestURI is the URL of the app manifest.
func (c *Config) ManifestURI() string {
	return c.AppDomain + c.ManifestPath
}

// NameLookupURL returns the BNS names endpoint, preferring CoreNode over the
// network default.
func (c *Config) NameLookupURL() string {
	coreNode := c.CoreNode
	if coreNode == "" {
		coreNode = c.Network.BNSLookupURL
	}
	if coreNode == "" {
		coreNode = Mainnet.BNSLookupURL
	}
	return strings.TrimRight(coreNode, "/") + NameLookupPath
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	HTTP:       30s
//	HubConnect: 15s
//	Upload:     120s
//	Lookup:     20s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.HTTP == 0 {
		tt.HTTP = 30 * time.Second
	}
	if tt.HubConnect == 0 {
		tt.HubConnect = 15 * time.Second
	}
	if tt.Upload == 0 {
		tt.Upload = 120 * time.Second
	}
	if tt.Lookup == 0 {
		tt.Lookup = 20 * time.Second
	}
	return tt
}
