package domain

// Settings is the persisted caller state: toggles and profile selections.
type Settings struct {
	Toggles          Toggles  `json:"toggles"`
	SelectedProfiles []string `json:"selectedProfiles"`
	AutorunProfiles  []string `json:"autorunProfiles"`
	AutoStart        bool     `json:"autoStart"`
	StartMinimized   bool     `json:"startMinimized"`
}

// DefaultSettings mirrors a fresh install.
func DefaultSettings() Settings {
	return Settings{
		StartMinimized: true,
	}
}
