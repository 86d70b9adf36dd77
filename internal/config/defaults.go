package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults holds sender emails and a default format read from, and
// written to, an on-disk defaults.yaml file. The CLI does not load it;
// its flags take their values from the command line only.
type Defaults struct {
	SenderEmails []string `yaml:"sender_emails"`
	Format       string   `yaml:"format,omitempty"`
}

// GetConfigDir returns the XDG-compliant config directory for Postsack.
func GetConfigDir() (string, error) {
	if override := os.Getenv("POSTSACK_CONFIG_DIR"); override != "" {
		return override, nil
	}
	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "postsack"), nil
}

// LoadDefaults loads the defaults file, returning an empty Defaults if
// none exists yet.
func LoadDefaults() (*Defaults, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "defaults.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Defaults{}, nil
		}
		return nil, fmt.Errorf("failed to read defaults: %w", err)
	}

	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse defaults: %w", err)
	}
	return &d, nil
}

// Save writes d to the defaults file, creating the config directory if
// needed.
func (d *Defaults) Save() error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, "defaults.yaml")

	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write defaults: %w", err)
	}
	return nil
}
