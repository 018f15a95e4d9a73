package profiles

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"zapretd/internal/domain"
)

// Store lists profile files from a category-organized directory tree.
type Store struct {
	root   string
	ext    string
	logger *zap.Logger
}

func NewStore(root string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		root:   root,
		ext:    domain.DefaultProfileExtension,
		logger: logger.Named("profiles"),
	}
}

// Root returns the profiles directory.
func (s *Store) Root() string {
	return s.root
}

// ListAll returns every profile, category by category in enumeration order.
func (s *Store) ListAll(ctx context.Context) []domain.Profile {
	var out []domain.Profile
	for _, category := range domain.Categories() {
		if ctx.Err() != nil {
			return out
		}
		out = append(out, s.ListForCategory(ctx, category)...)
	}
	return out
}

// ListForCategory returns the category's profiles sorted by path. A missing or
// unreadable folder yields an empty slice.
func (s *Store) ListForCategory(ctx context.Context, category domain.Category) []domain.Profile {
	dir := filepath.Join(s.root, category.FolderName())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("read category folder failed",
				zap.String("dir", dir),
				zap.Error(err),
			)
		}
		return []domain.Profile{}
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), s.ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	out := make([]domain.Profile, 0, len(paths))
	for _, path := range paths {
		base := filepath.Base(path)
		fileName := strings.TrimSuffix(base, filepath.Ext(base))
		out = append(out, domain.Profile{
			Name:     FormatName(fileName),
			FileName: fileName,
			FilePath: path,
			Category: category,
		})
	}
	return out
}

// Lookup resolves a remembered profile path back to its Profile.
func (s *Store) Lookup(ctx context.Context, path string) (domain.Profile, bool) {
	want := filepath.Clean(path)
	if abs, err := filepath.Abs(want); err == nil {
		want = abs
	}
	for _, profile := range s.ListAll(ctx) {
		if filepath.Clean(profile.FilePath) == want {
			return profile, true
		}
	}
	return domain.Profile{}, false
}

// ReadContent returns the file content, or false when it is missing or unreadable.
func (s *Store) ReadContent(path string) (string, bool) {
	return ReadContent(path)
}

func ReadContent(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// FormatName turns a file base name into a display name.
func FormatName(fileName string) string {
	return strings.NewReplacer("_", " ", "-", " ").Replace(fileName)
}

// ParseArguments drops blank and comment lines and joins the rest with single spaces.
func ParseArguments(content string) string {
	lines := strings.Split(content, "\n")
	args := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, domain.CommentPrefix) {
			continue
		}
		args = append(args, trimmed)
	}
	return strings.Join(args, " ")
}
