package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/MegaGrindStone/deepseek-chat/internal/services"
	"gopkg.in/yaml.v3"
)

const defaultPort = "8080"

type config struct {
	Port           string     `yaml:"port"`
	BaseURL        string     `yaml:"baseURL"`
	Model          string     `yaml:"model"`
	Stream         bool       `yaml:"stream"`
	LogLevel       slog.Level `yaml:"logLevel"`
	AllowedOrigins []string   `yaml:"allowedOrigins"`
}

func defaultConfig() config {
	return config{
		Port:     defaultPort,
		BaseURL:  services.DefaultBaseURL,
		Model:    services.DefaultModel,
		Stream:   true,
		LogLevel: slog.LevelInfo,
	}
}

// UnmarshalYAML fills c from value, keeping the defaults for the keys that are absent.
func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port           string   `yaml:"port"`
		BaseURL        string   `yaml:"baseURL"`
		Model          string   `yaml:"model"`
		Stream         *bool    `yaml:"stream"`
		LogLevel       string   `yaml:"logLevel"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	*c = defaultConfig()

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.BaseURL != "" {
		u, err := url.Parse(rawConfig.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid baseURL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid baseURL %q: scheme must be http or https", rawConfig.BaseURL)
		}
		c.BaseURL = rawConfig.BaseURL
	}
	if rawConfig.Model != "" {
		c.Model = rawConfig.Model
	}
	if rawConfig.Stream != nil {
		c.Stream = *rawConfig.Stream
	}
	if rawConfig.LogLevel != "" {
		if err := c.LogLevel.UnmarshalText([]byte(rawConfig.LogLevel)); err != nil {
			return fmt.Errorf("invalid logLevel: %w", err)
		}
	}
	c.AllowedOrigins = rawConfig.AllowedOrigins

	return nil
}

func configPath() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "deepseekchat", "config.yaml"), nil
}

// loadConfig reads the config file at path. A missing file yields the defaults.
func loadConfig(path string) (config, error) {
	cfgFile, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaultConfig(), nil
	}
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := defaultConfig()
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		// An empty file decodes to io.EOF and leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}
