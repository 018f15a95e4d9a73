package materialize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"zapretd/internal/domain"
	"zapretd/internal/infra/profiles"
	"zapretd/internal/infra/telemetry"
)

const (
	scratchDirMode  = 0o755
	scratchFileMode = 0o644
)

// Materializer resolves a profile plus toggles into the file the worker reads
// its arguments from, writing rewritten copies into a scratch directory.
type Materializer struct {
	scratchDir string
	logger     *zap.Logger
}

func New(scratchDir string, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		scratchDir: scratchDir,
		logger:     logger.Named("materialize"),
	}
}

// ScratchDir returns the directory holding materialized copies.
func (m *Materializer) ScratchDir() string {
	return m.scratchDir
}

// ScratchPath is the deterministic scratch file for a profile.
func (m *Materializer) ScratchPath(profile domain.Profile) string {
	return filepath.Join(m.scratchDir, fmt.Sprintf("dynamic_%s%s", profile.FileName, domain.DefaultProfileExtension))
}

// Materialize returns the path the worker arguments should be read from. The
// profile's own path is returned untouched unless a toggle applies to its category.
func (m *Materializer) Materialize(profile domain.Profile, toggles domain.Toggles) (string, error) {
	if !toggles.AnyAddressSet() || !toggles.AppliesTo(profile.Category) {
		return profile.FilePath, nil
	}

	content, ok := profiles.ReadContent(profile.FilePath)
	if !ok || content == "" {
		return profile.FilePath, nil
	}

	rewritten := Rewrite(content, domain.HostlistMarker)

	if err := os.MkdirAll(m.scratchDir, scratchDirMode); err != nil {
		return profile.FilePath, fmt.Errorf("create scratch dir: %w", err)
	}
	path := m.ScratchPath(profile)
	if err := os.WriteFile(path, []byte(rewritten), scratchFileMode); err != nil {
		return profile.FilePath, fmt.Errorf("write scratch file: %w", err)
	}

	m.logger.Debug("profile materialized",
		telemetry.ProfileField(profile),
		telemetry.CategoryField(profile.Category),
		zap.String("path", path),
	)
	return path, nil
}

// Rewrite trims every line and excises marker and its value wherever it appears.
func Rewrite(content string, marker string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.Contains(trimmed, marker) {
			trimmed = RemoveParameter(trimmed, marker)
		}
		lines[i] = trimmed
	}
	return strings.Join(lines, "\n")
}

// RemoveParameter removes the first occurrence of marker and its value from line.
// A value opening with a double quote runs to the closing quote; otherwise it runs
// to the next whitespace.
func RemoveParameter(line string, marker string) string {
	start := strings.Index(line, marker)
	if start == -1 {
		return line
	}
	end := start + len(marker)

	if end < len(line) && line[end] == '"' {
		closing := strings.IndexByte(line[end+1:], '"')
		if closing == -1 {
			end = len(line)
		} else {
			end = end + 1 + closing + 1
		}
	} else {
		for end < len(line) && !isSpace(line[end]) {
			end++
		}
	}

	return strings.TrimSpace(line[:start] + line[end:])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	}
	return false
}

// PurgeScratch removes the scratch directory. Failures are logged, never returned.
func (m *Materializer) PurgeScratch() {
	if m.scratchDir == "" {
		return
	}
	if err := os.RemoveAll(m.scratchDir); err != nil {
		m.logger.Warn("scratch purge failed",
			telemetry.EventField(telemetry.EventScratchPurge),
			zap.String("dir", m.scratchDir),
			zap.Error(err),
		)
	}
}
