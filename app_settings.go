package main

import (
	"fmt"
	"log"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"detection-desktop/internal/config"
)

// GetSettings returns the current user settings
func (a *App) GetSettings() *config.UserSettings {
	return a.settings
}

// UpdateSettings validates and persists a settings update
func (a *App) UpdateSettings(settings config.UserSettings) error {
	if err := config.ValidateSettings(&settings); err != nil {
		return err
	}

	if err := config.SaveSettings(&settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	a.settings = &settings
	log.Printf("Settings saved to: %s", config.GetSettingsPath())

	a.emit("settings-updated", a.settings)
	return nil
}

// SelectImageFolder opens a native directory picker for the image directory
func (a *App) SelectImageFolder() (string, error) {
	dir, err := wailsRuntime.OpenDirectoryDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:            "Select Image Folder",
		DefaultDirectory: a.settings.ImageDir,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open directory dialog: %w", err)
	}
	return dir, nil
}
