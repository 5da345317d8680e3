package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "BOOKMARKD_"

// LoadWithFile reads configPath, applies BOOKMARKD_* overrides, fills in
// defaults and validates the result. An empty configPath means
// ~/.config/bookmarkd/config.yaml; a missing file is not an error.
//
// The file must live under ~/.config/bookmarkd or /etc/bookmarkd, be
// readable by its owner only (0600 or 0400) and stay under 1MB.
//
// Environment names are split on the first underscore after the prefix:
//
//	BOOKMARKD_SERVER_HTTP_PORT     -> server.http_port
//	BOOKMARKD_CLEANING_DELETE_RATE -> cleaning.delete_rate
func LoadWithFile(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(userConfigDir(home), "config.yaml")
	}

	k := koanf.New(".")
	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyDefaults(&cfg, home)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func envKey(name string) string {
	section, field, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
	if !ok {
		return section
	}
	return section + "." + field
}

func applyDefaults(cfg *Config, home string) {
	setDefault(&cfg.Server.Host, "localhost")
	setDefault(&cfg.Server.Port, DefaultHTTPPort)
	setDefault(&cfg.Server.ShutdownTimeout, Duration(DefaultShutdownTimeout))

	dir := userConfigDir(home)
	setDefault(&cfg.Settings.Path, filepath.Join(dir, "settings.yaml"))
	setDefault(&cfg.Places.Path, filepath.Join(dir, "places.db"))

	setDefault(&cfg.NATS.SubjectPrefix, DefaultSubjectPrefix)

	// a rate without a burst would never admit a delete
	if cfg.Cleaning.DeleteRate > 0 {
		setDefault(&cfg.Cleaning.DeleteBurst, 1)
	}
	setDefault(&cfg.Cleaning.HistoryMaxResults, DefaultHistoryMaxResults)

	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "json")
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}
