// Package config persists user settings between runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pdfnight/pdfnight/theme"
)

// Settings is what survives between runs: the folder the quick-scan button
// goes to, the preferred theme, and how many files convert at once.
type Settings struct {
	QuickScanPath string `yaml:"quick_scan_path"`
	Theme         string `yaml:"theme"`
	Workers       int    `yaml:"workers"`
}

// Defaults returns the settings used before anything is saved.
func Defaults() Settings {
	return Settings{
		Theme:   theme.Default,
		Workers: 4,
	}
}

// Path returns the settings file location under the user config directory.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "pdfnight", "settings.yaml"), nil
}

// Load reads the settings file, returning defaults when it does not exist.
func Load() (Settings, error) {
	path, err := Path()
	if err != nil {
		return Defaults(), err
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from an explicit path.
func LoadFrom(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("parse settings: %w", err)
	}
	if s.Theme == "" {
		s.Theme = theme.Default
	}
	if s.Workers < 1 {
		s.Workers = Defaults().Workers
	}
	return s, nil
}

// Save writes the settings file, creating the directory as needed.
func Save(s Settings) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(path, s)
}

// SaveTo writes settings to an explicit path.
func SaveTo(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
