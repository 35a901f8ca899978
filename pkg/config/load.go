package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. WALLETIFY_HUB_URL or WALLETIFY_TIMEOUTS_HTTP.
const EnvPrefix = "WALLETIFY"

// Load reads a YAML or JSON configuration file (format picked from the
// extension), overlays WALLETIFY_* environment variables and validates the
// result. An empty path loads from the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env values for keys viper already knows about.
	for _, key := range []string{
		"app_domain", "redirect_path", "manifest_path", "scopes", "core_node",
		"hub_url", "download_url", "session_dir", "debug",
		"timeouts.http", "timeouts.hub_connect", "timeouts.upload", "timeouts.lookup",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Timeouts = cfg.Timeouts.WithDefaults()
	return cfg, nil
}
