package commands

import (
	"fmt"
	"time"

	"carcheck/internal/telemetry"
	"carcheck/lib/configutil"

	"dario.cat/mergo"
)

const configName = "carcheck.json5"

const (
	envHttpProxy   = "CARCHECK_HTTP_PROXY"
	envHttpsProxy  = "CARCHECK_HTTPS_PROXY"
	envDestination = "CARCHECK_DESTINATION"
)

type Config struct {
	// BaseUrl of the lookup service, defaults to the public site.
	BaseUrl     string `json:"base_url"`
	Destination string `json:"destination"`
	HttpProxy   string `json:"http_proxy"`
	HttpsProxy  string `json:"https_proxy"`
	// Timeout is a duration string like "30s", empty means no timeout.
	Timeout string `json:"timeout"`
	// ImageFilename replaces <registration>.png, "{reg}" is substituted.
	ImageFilename string `json:"image_filename"`
	// PlaceholderPath points to a different "image not found" reference image.
	PlaceholderPath string `json:"placeholder_path"`
	// DumpHttp is a directory every request/response pair is written to.
	DumpHttp  string           `json:"dump_http"`
	Telemetry telemetry.Config `json:"telemetry"`
}

func defaultConfig() Config {
	return Config{
		Destination: "output/",
	}
}

func (c Config) ParseTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", c.Timeout)
	}
	return timeout, nil
}

func envConfig(lookup func(string) (string, bool)) Config {
	var out Config
	if value, ok := lookup(envHttpProxy); ok {
		out.HttpProxy = value
	}
	if value, ok := lookup(envHttpsProxy); ok {
		out.HttpsProxy = value
	}
	if value, ok := lookup(envDestination); ok {
		out.Destination = value
	}
	return out
}

// resolveConfig layers the configuration sources, later ones win for every
// field they set: defaults, config file, environment, command line.
func resolveConfig(path string, lookupEnv func(string) (string, bool), flags Config) (Config, error) {
	out := defaultConfig()

	file, err := configutil.Load[Config](path, configName)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	for _, layer := range []Config{file, envConfig(lookupEnv), flags} {
		err = mergo.Merge(&out, layer, mergo.WithOverride)
		if err != nil {
			return Config{}, err
		}
	}
	return out, nil
}
