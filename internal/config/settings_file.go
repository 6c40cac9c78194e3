package config

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/viper"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

// LoadSettingsFile reads a YAML, JSON or TOML settings document. Keys are
// matched case-insensitively.
func LoadSettingsFile(path string) (domain.Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return domain.Settings{}, fmt.Errorf("reading settings %s: %w", path, err)
	}

	data, err := json.Marshal(v.AllSettings())
	if err != nil {
		return domain.Settings{}, fmt.Errorf("encoding settings %s: %w", path, err)
	}
	settings, err := domain.ParseSettings(data)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return settings, nil
}
