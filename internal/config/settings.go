package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UserSettings represents persistent user preferences
type UserSettings struct {
	// Local working directories mounted into the tile toolchain
	ImageDir  string `json:"imageDir"`
	TileDir   string `json:"tileDir"`
	ScriptDir string `json:"scriptDir"`

	// Submission defaults
	DefaultModel          string `json:"defaultModel"`
	DefaultInvocationMode string `json:"defaultInvocationMode"` // "SM_ENDPOINT" or "HTTP_ENDPOINT"
	AssumedRole           string `json:"assumedRole,omitempty"`

	// Tiling defaults sent with each processing request
	TileSize        int    `json:"tileSize"`
	TileOverlap     int    `json:"tileOverlap"`
	TileFormat      string `json:"tileFormat"`
	TileCompression string `json:"tileCompression"`

	// UI preferences
	Theme           string `json:"theme"` // "light", "dark", "system"
	ShowCoordinates bool   `json:"showCoordinates"`
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, "detection-desktop")

	return &UserSettings{
		ImageDir:              filepath.Join(baseDir, "images"),
		TileDir:               filepath.Join(baseDir, "tiles"),
		ScriptDir:             filepath.Join(baseDir, "scripts"),
		DefaultModel:          "aircraft",
		DefaultInvocationMode: "SM_ENDPOINT",
		TileSize:              512,
		TileOverlap:           32,
		TileFormat:            "GTIFF",
		TileCompression:       "NONE",
		Theme:                 "system",
		ShowCoordinates:       false,
	}
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	baseDir := filepath.Join(homeDir, ".detection-desktop", "settings")
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk
func LoadSettings() (*UserSettings, error) {
	settingsPath := GetSettingsPath()

	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any missing fields
	defaults := DefaultSettings()
	if settings.ImageDir == "" {
		settings.ImageDir = defaults.ImageDir
	}
	if settings.TileDir == "" {
		settings.TileDir = defaults.TileDir
	}
	if settings.ScriptDir == "" {
		settings.ScriptDir = defaults.ScriptDir
	}
	if settings.DefaultModel == "" {
		settings.DefaultModel = defaults.DefaultModel
	}
	if settings.DefaultInvocationMode == "" {
		settings.DefaultInvocationMode = defaults.DefaultInvocationMode
	}
	if settings.TileSize == 0 {
		settings.TileSize = defaults.TileSize
	}
	if settings.TileFormat == "" {
		settings.TileFormat = defaults.TileFormat
	}
	if settings.TileCompression == "" {
		settings.TileCompression = defaults.TileCompression
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}

	return &settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	settingsPath := GetSettingsPath()

	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// ValidateSettings checks a settings update before it is applied
func ValidateSettings(settings *UserSettings) error {
	if settings.ImageDir == "" {
		return fmt.Errorf("image directory is required")
	}
	if settings.TileDir == "" {
		return fmt.Errorf("tile directory is required")
	}

	validModes := map[string]bool{
		"SM_ENDPOINT":   true,
		"HTTP_ENDPOINT": true,
	}
	if settings.DefaultInvocationMode != "" && !validModes[settings.DefaultInvocationMode] {
		return fmt.Errorf("invalid invocation mode: %s (must be SM_ENDPOINT or HTTP_ENDPOINT)", settings.DefaultInvocationMode)
	}

	if settings.TileSize < 0 || settings.TileOverlap < 0 {
		return fmt.Errorf("tile size and overlap must be non-negative")
	}

	return nil
}
