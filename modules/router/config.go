package router

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

type Config struct {
	Prefix            string `yaml:"prefix,omitempty"`
	ReportConcurrency uint   `yaml:"report_concurrency,omitempty"`
	QueueSize         int    `yaml:"queue_size,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Prefix, util.PrefixConfig(prefix, "prefix"), "govee", "The MQTT topic prefix for commands and state")
	f.UintVar(&cfg.ReportConcurrency, util.PrefixConfig(prefix, "concurrency"), 10, "The number of route jobs to run at a time")
	f.IntVar(&cfg.QueueSize, util.PrefixConfig(prefix, "queue-size"), 1000, "The number of messages to buffer before dropping")
}
