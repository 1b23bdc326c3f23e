/*
Copyright 2022.
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/common/version"
	"github.com/zachfi/zkit/pkg/tracing"

	"github.com/zachfi/govee/cmd/app"
)

const (
	appName = "govee"

	configFileOption = "config.file"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel.String())); err != nil {
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logger.Info("starting", "app", appName, "version", version.Version, "revision", version.Revision)

	shutdownTracer, err := tracing.InstallOpenTelemetryTracer(
		&cfg.Tracing,
		logger,
		appName,
		version.Info(),
	)
	if err != nil {
		logger.Error("failed initializing tracer", "err", err)
		os.Exit(1)
	}
	defer shutdownTracer()

	a, err := app.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create app", "err", err)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		logger.Error("failed to run app", "err", err)
		os.Exit(1)
	}
}

// loadConfig applies defaults, then the file named by -config.file, then the
// remaining flags.
func loadConfig(args []string) (*app.Config, error) {
	var configFile string

	// -config.file may appear anywhere among flags this set does not know, so
	// keep parsing from each position until the args run out.
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")
	for rest := args; len(rest) > 0; rest = rest[1:] {
		_ = fs.Parse(rest)
	}

	config := &app.Config{}
	config.RegisterFlagsAndApplyDefaults("", flag.CommandLine)

	if configFile != "" {
		if err := config.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	flagext.IgnoredFlag(flag.CommandLine, configFileOption, "Configuration file to load")
	if err := flag.CommandLine.Parse(args); err != nil {
		return nil, err
	}

	return config, nil
}
