package domain

import "fmt"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("unsupported theme %q", s)
	}
}

// Preferences belong to the active profile and survive logout.
type Preferences struct {
	Theme         Theme `json:"theme"`
	VoiceEnabled  bool  `json:"voiceEnabled"`
	Notifications bool  `json:"notifications"`
	AutoRefresh   bool  `json:"autoRefresh"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Theme:         ThemeLight,
		VoiceEnabled:  true,
		Notifications: true,
		AutoRefresh:   true,
	}
}

// PreferencesPatch is a partial preferences update; nil fields are kept.
type PreferencesPatch struct {
	Theme         *Theme `json:"theme,omitempty"`
	VoiceEnabled  *bool  `json:"voiceEnabled,omitempty"`
	Notifications *bool  `json:"notifications,omitempty"`
	AutoRefresh   *bool  `json:"autoRefresh,omitempty"`
}

func (p Preferences) Apply(patch PreferencesPatch) Preferences {
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if patch.VoiceEnabled != nil {
		p.VoiceEnabled = *patch.VoiceEnabled
	}
	if patch.Notifications != nil {
		p.Notifications = *patch.Notifications
	}
	if patch.AutoRefresh != nil {
		p.AutoRefresh = *patch.AutoRefresh
	}
	return p
}
