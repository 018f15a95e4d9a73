package domain

import (
	"fmt"
	"strings"
)

// Category groups profiles and fixes their startup priority.
type Category int

const (
	CategoryDiscord Category = iota
	CategoryYouTubeTwitch
	CategoryGaming
	CategoryUniversal
)

const unknownCategoryPriority = 99

var categoryOrder = []Category{
	CategoryDiscord,
	CategoryYouTubeTwitch,
	CategoryGaming,
	CategoryUniversal,
}

// Categories returns every category in enumeration order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// DisplayName returns the human readable category name.
func (c Category) DisplayName() string {
	switch c {
	case CategoryDiscord:
		return "Discord"
	case CategoryYouTubeTwitch:
		return "YouTube & Twitch"
	case CategoryGaming:
		return "Gaming"
	case CategoryUniversal:
		return "Universal"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// FolderName returns the on-disk folder holding the category's profiles.
func (c Category) FolderName() string {
	switch c {
	case CategoryDiscord:
		return "discord"
	case CategoryYouTubeTwitch:
		return "youtube_twitch"
	case CategoryGaming:
		return "gaming"
	case CategoryUniversal:
		return "universal"
	default:
		return strings.ToLower(c.String())
	}
}

// Priority orders worker startup; lower starts earlier.
func (c Category) Priority() int {
	switch c {
	case CategoryDiscord:
		return 1
	case CategoryYouTubeTwitch:
		return 2
	case CategoryGaming:
		return 3
	case CategoryUniversal:
		return 4
	default:
		return unknownCategoryPriority
	}
}

func (c Category) String() string {
	switch c {
	case CategoryDiscord:
		return "discord"
	case CategoryYouTubeTwitch:
		return "youtube_twitch"
	case CategoryGaming:
		return "gaming"
	case CategoryUniversal:
		return "universal"
	default:
		return fmt.Sprintf("category_%d", int(c))
	}
}

// ParseCategory accepts a folder name or a display name, case-insensitively.
func ParseCategory(value string) (Category, error) {
	needle := strings.TrimSpace(value)
	for _, c := range categoryOrder {
		if strings.EqualFold(needle, c.FolderName()) || strings.EqualFold(needle, c.DisplayName()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, value)
}
