package govee

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

const DefaultBaseURL = "https://developer-api.govee.com/v1"

type Config struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.APIKey, util.PrefixConfig(prefix, "api-key"), "", "The Govee developer API key")
	f.StringVar(&cfg.BaseURL, util.PrefixConfig(prefix, "base-url"), DefaultBaseURL, "The base URL of the Govee developer API")
}
