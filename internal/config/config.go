// Package config loads conductor's CLI configuration.
//
// Settings come from ~/.conductor/config.yaml, overridable per key through
// CONDUCTOR_* environment variables (CONDUCTOR_DB, CONDUCTOR_TIMEZONE,
// CONDUCTOR_ACTOR, CONDUCTOR_NOTIFY). A missing config file is not an error;
// defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/cityops/conductor/internal/timeutil"
)

// Config holds the resolved CLI settings.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string
	// Timezone is the IANA name of the reference timezone that
	// operator-entered wall-clock times are interpreted in.
	Timezone string
	// Actor is the default actor recorded on actions when --actor is not
	// given.
	Actor string
	// Notify enables stage-entry notification dispatch.
	Notify bool
}

// DefaultDir returns the conductor config directory, ~/.conductor.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conductor"
	}
	return filepath.Join(home, ".conductor")
}

// Load reads configuration from path. An empty path means the default
// location; a missing file at the default location is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("db", filepath.Join(DefaultDir(), "conductor.db"))
	v.SetDefault("timezone", timeutil.DefaultZone)
	v.SetDefault("actor", currentUser())
	v.SetDefault("notify", true)

	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(DefaultDir(), "config.yaml")
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return &Config{
		DBPath:   v.GetString("db"),
		Timezone: v.GetString("timezone"),
		Actor:    v.GetString("actor"),
		Notify:   v.GetBool("notify"),
	}, nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}
