package models

// Settings is the flat set of user preferences.
type Settings struct {
	ShowCompleted          bool `json:"showCompleted"`
	SkipDeleteConfirmation bool `json:"skipDeleteConfirmation"`
	HidePageTitle          bool `json:"hidePageTitle"`
}

// DefaultSettings returns the preferences used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		ShowCompleted:          true,
		SkipDeleteConfirmation: false,
		HidePageTitle:          false,
	}
}
