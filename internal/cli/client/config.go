package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GlobalConfig is the per-user client state stored in config.json
type GlobalConfig struct {
	APIURL     string `json:"api_url,omitempty"`
	AdminToken string `json:"admin_token,omitempty"`
	// SessionID is the conversation that "ask" continues until "clear" or --new.
	SessionID string `json:"session_id,omitempty"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "coursechat"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads and parses the global config.json file.
// Returns nil config (not error) if file doesn't exist
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.json with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// updateGlobalConfig loads the config (or an empty one), applies fn and saves it.
func updateGlobalConfig(fn func(c *GlobalConfig)) error {
	config, err := LoadGlobalConfig()
	if err != nil {
		return err
	}
	if config == nil {
		config = &GlobalConfig{}
	}
	fn(config)
	return SaveGlobalConfig(config)
}

// SavedSessionID returns the session the next question continues, or "" for a new one.
func SavedSessionID() string {
	config, err := LoadGlobalConfig()
	if err != nil || config == nil {
		return ""
	}
	return config.SessionID
}

// SaveSessionID remembers the session for the next question.
func SaveSessionID(sessionID string) error {
	return updateGlobalConfig(func(c *GlobalConfig) { c.SessionID = sessionID })
}

// Source says where a setting came from
type Source string

const (
	SourceFlag         Source = "flag"
	SourceEnv          Source = "env"
	SourceGlobalConfig Source = "global_config"
	SourceDefault      Source = "default"
)

// resolveSetting picks the first non-empty value in the order flag, env, global config, default.
func resolveSetting(flagValue, envName, configValue, defaultValue string) (string, Source) {
	if flagValue != "" {
		return flagValue, SourceFlag
	}
	if v := os.Getenv(envName); v != "" {
		return v, SourceEnv
	}
	if configValue != "" {
		return configValue, SourceGlobalConfig
	}
	return defaultValue, SourceDefault
}
