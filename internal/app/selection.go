package app

import (
	"context"

	"go.uber.org/zap"

	"zapretd/internal/domain"
)

func (a *App) requireSettings(op string) error {
	if a.settings == nil {
		return domain.E(domain.CodeFailedPrecond, op, "settings store not opened", domain.ErrSettingsClosed)
	}
	return nil
}

// Settings returns the persisted settings.
func (a *App) Settings() (domain.Settings, error) {
	if err := a.requireSettings("app.settings"); err != nil {
		return domain.Settings{}, err
	}
	return a.settings.Load()
}

// SelectedProfiles resolves the saved selection against the profile tree.
// Saved paths that no longer exist are dropped.
func (a *App) SelectedProfiles(ctx context.Context) ([]domain.Profile, domain.Toggles, error) {
	current, err := a.Settings()
	if err != nil {
		return nil, domain.Toggles{}, err
	}
	out := make([]domain.Profile, 0, len(current.SelectedProfiles))
	for _, path := range current.SelectedProfiles {
		profile, ok := a.profiles.Lookup(ctx, path)
		if !ok {
			a.logger.Warn("saved profile no longer exists", zap.String("path", path))
			continue
		}
		out = append(out, profile)
	}
	return out, current.Toggles, nil
}

// SaveSelection persists the profiles and toggles of a start request, keeping
// every other saved field.
func (a *App) SaveSelection(selected []domain.Profile, toggles domain.Toggles) error {
	current, err := a.Settings()
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(selected))
	for _, profile := range selected {
		paths = append(paths, profile.FilePath)
	}
	current.SelectedProfiles = paths
	current.Toggles = toggles
	return a.settings.Save(current)
}
