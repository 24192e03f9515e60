package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the serialctl configuration file.
type Config struct {
	Port            string `yaml:"port"`
	Baud            int    `yaml:"baud"`
	Driver          string `yaml:"driver"` // native or termios
	BootLibraryPath string `yaml:"boot_library_path"`
	Delimiter       string `yaml:"delimiter"`
	LogLevel        string `yaml:"log_level"`
	OutputFormat    string `yaml:"output"`
}

// DefaultConfig is used for every field the file leaves empty.
func DefaultConfig() *Config {
	return &Config{
		Baud:         9600,
		Driver:       "native",
		Delimiter:    "\r\n",
		LogLevel:     "warn",
		OutputFormat: "table",
	}
}

// DefaultConfigPath is ~/.config/serialctl/config.yaml or the platform
// equivalent.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "serialctl", "config.yaml")
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
