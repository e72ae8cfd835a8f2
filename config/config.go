// Package config loads the application configuration from a TOML file.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Index    IndexConfig    `toml:"index"`
	Cache    CacheConfig    `toml:"cache"`
	Server   ServerConfig   `toml:"server"`
}

// SpotifyConfig holds the client-credentials pair for the Spotify Web API.
// Environment variables SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET override
// the file values.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type IndexConfig struct {
	Path string `toml:"path"`
}

// CacheConfig locates the on-disk response cache for the MusicBrainz client.
type CacheConfig struct {
	Dir string `toml:"dir"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Load reads and parses a TOML configuration file, applying environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if bs, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(bs, config); err != nil {
			return nil, fmt.Errorf("error parsing config file '%s': %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("error reading config file '%s': %w", path, err)
	}

	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		config.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		config.Spotify.ClientSecret = v
	}
	return config, nil
}

// Default returns the configuration from the embedded example file.
func Default() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("bad embedded default config: %v", err))
	}
	return &config
}

// WriteExample writes the example configuration to path, refusing to
// overwrite an existing file.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("error writing config file '%s': %w", path, err)
	}
	return nil
}
