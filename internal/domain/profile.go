package domain

// Profile is a file-backed argument set for one worker invocation.
// Identity is FilePath.
type Profile struct {
	Name     string
	FileName string
	FilePath string
	Category Category
}

// DisplayName falls back to the file name when no formatted name is set.
func (p Profile) DisplayName() string {
	if p.Name == "" {
		return p.FileName
	}
	return p.Name
}

func (p Profile) String() string {
	return p.DisplayName()
}

// Toggles are the runtime options supplied with each start request.
type Toggles struct {
	GlobalAddressSet bool `json:"globalAddressSet"`
	GamingAddressSet bool `json:"gamingAddressSet"`
	ShowWindow       bool `json:"showWindow"`
}

// AnyAddressSet reports whether either address-set mode is enabled.
func (t Toggles) AnyAddressSet() bool {
	return t.GlobalAddressSet || t.GamingAddressSet
}

// AppliesTo reports whether the toggles rewrite profiles of the given category.
// Gaming consults only the gaming toggle; every other category consults only the
// global toggle, so enabling both is well defined.
func (t Toggles) AppliesTo(category Category) bool {
	if category == CategoryGaming {
		return t.GamingAddressSet
	}
	return t.GlobalAddressSet
}
