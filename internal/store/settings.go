package store

import (
	"touche/internal/codec"
	"touche/internal/models"
	"touche/internal/storage"
)

// SettingsKey is the storage key of the user preferences.
const SettingsKey = "touche:settings"

// Settings holds the user preferences.
type Settings struct {
	*Persistent[models.Settings]
}

// NewSettings opens the preferences on medium.
func NewSettings(medium storage.Storage, opts ...Option) *Settings {
	c := codec.New(buildOptions(opts).now)
	return &Settings{
		Persistent: NewPersistent(medium, SettingsKey, c.DecodeSettings, models.DefaultSettings, opts...),
	}
}

// ToggleShowCompleted flips whether done tasks are listed.
func (s *Settings) ToggleShowCompleted() {
	s.Update(func(v models.Settings) models.Settings {
		v.ShowCompleted = !v.ShowCompleted
		return v
	})
}

// ToggleSkipDeleteConfirmation flips whether deletions ask for confirmation.
func (s *Settings) ToggleSkipDeleteConfirmation() {
	s.Update(func(v models.Settings) models.Settings {
		v.SkipDeleteConfirmation = !v.SkipDeleteConfirmation
		return v
	})
}

// ToggleHidePageTitle flips whether the page title is hidden.
func (s *Settings) ToggleHidePageTitle() {
	s.Update(func(v models.Settings) models.Settings {
		v.HidePageTitle = !v.HidePageTitle
		return v
	})
}
