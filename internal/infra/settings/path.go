package settings

import (
	"path/filepath"
	"strings"

	"zapretd/internal/domain"
)

// ResolvePath places a relative settings path under the app root.
func ResolvePath(root string, configured string) string {
	trimmed := strings.TrimSpace(configured)
	if trimmed == "" {
		trimmed = domain.DefaultSettingsFileName
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Join(root, trimmed)
}
