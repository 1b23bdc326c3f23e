package app

import (
	"flag"
	"os"
	"path/filepath"
	"reflect"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/server"
	"github.com/pkg/errors"
	ztrace "github.com/zachfi/zkit/pkg/tracing"
	"github.com/zachfi/zkit/pkg/util"
	"gopkg.in/yaml.v2"

	"github.com/zachfi/govee/modules/lights"
	"github.com/zachfi/govee/modules/mqttclient"
	"github.com/zachfi/govee/modules/router"
)

type Config struct {
	Target string `yaml:"target"`

	Tracing ztrace.Config `yaml:"tracing,omitempty"`

	Server server.Config `yaml:"server,omitempty"`

	Lights lights.Config     `yaml:"lights"`
	MQTT   mqttclient.Config `yaml:"mqttclient"`
	Router router.Config     `yaml:"router"`
}

func NewDefaultConfig() *Config {
	defaultConfig := &Config{}
	defaultFS := flag.NewFlagSet("", flag.PanicOnError)
	defaultConfig.RegisterFlagsAndApplyDefaults("", defaultFS)
	return defaultConfig
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.Target = All
	f.StringVar(&c.Target, "target", All, "target module")
	c.Tracing.RegisterFlagsAndApplyDefaults("tracing", f)

	flagext.DefaultValues(&c.Server)
	c.Server.LogLevel.RegisterFlags(f)

	f.IntVar(&c.Server.HTTPListenPort, "server.http-listen-port", 8080, "HTTP server listen port.")
	f.IntVar(&c.Server.GRPCListenPort, "server.grpc-listen-port", 9095, "gRPC server listen port.")

	c.Lights.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "lights"), f)
	c.MQTT.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "mqttclient"), f)
	c.Router.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "router"), f)
}

// LoadFile overlays the YAML file onto c.  Keys the config does not know are
// an error.
func (c *Config) LoadFile(file string) error {
	filename, _ := filepath.Abs(file)

	buff, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", filename)
	}

	if err := yaml.UnmarshalStrict(buff, c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", filename)
	}

	return nil
}

// yamlMarshalUnmarshal round trips v through YAML so that two configs can be
// compared key by key.
func yamlMarshalUnmarshal(v any) (map[any]any, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}

	out := make(map[any]any)
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// diffConfig returns the values of actual which differ from defaults.
func diffConfig(defaults, actual map[any]any) (map[any]any, error) {
	output := make(map[any]any)

	for key, value := range actual {
		defaultValue, ok := defaults[key]
		if !ok {
			output[key] = value
			continue
		}

		switch v := value.(type) {
		case map[any]any:
			dv, ok := defaultValue.(map[any]any)
			if !ok {
				return nil, errors.Errorf("type mismatch for key %v", key)
			}

			sub, err := diffConfig(dv, v)
			if err != nil {
				return nil, err
			}

			if len(sub) > 0 {
				output[key] = sub
			}
		default:
			if !reflect.DeepEqual(defaultValue, value) {
				output[key] = value
			}
		}
	}

	return output, nil
}
