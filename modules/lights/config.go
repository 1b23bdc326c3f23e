package lights

import (
	"flag"
	"time"

	"github.com/zachfi/zkit/pkg/util"

	"github.com/zachfi/govee/pkg/govee"
)

type Config struct {
	Govee govee.Config `yaml:"govee,omitempty"`

	// PollInterval enables exporting device state as metrics.  Zero disables
	// polling.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	PurgeAfter   time.Duration `yaml:"purge_after,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.Govee.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "govee"), f)
	f.DurationVar(&cfg.PollInterval, util.PrefixConfig(prefix, "poll-interval"), 0, "The interval at which device state is polled and exported, 0 disables polling")
	f.DurationVar(&cfg.PurgeAfter, util.PrefixConfig(prefix, "purge-after"), 15*time.Minute, "Remove state series of devices not seen for this long")
}
