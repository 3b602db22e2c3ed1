package model

// HomeDisplayMode controls how much of each counter the home view renders.
type HomeDisplayMode string

const (
	HomeDisplayFull    HomeDisplayMode = "full"
	HomeDisplayLess    HomeDisplayMode = "less"
	HomeDisplayMinimal HomeDisplayMode = "minimal"
)

// ParseHomeDisplayMode maps unknown values to HomeDisplayFull.
func ParseHomeDisplayMode(s string) (HomeDisplayMode, bool) {
	switch m := HomeDisplayMode(s); m {
	case HomeDisplayFull, HomeDisplayLess, HomeDisplayMinimal:
		return m, true
	default:
		return HomeDisplayFull, false
	}
}

// Settings are the persisted display preferences.
type Settings struct {
	ShowProbability         bool            `json:"showProbability"`
	ShowHomeCounterControls bool            `json:"showHomeCounterControls"`
	HomeCounterDisplayMode  HomeDisplayMode `json:"homeCounterDisplayMode"`
	ShowHomeProbability     bool            `json:"showHomeProbability"`
}

// DefaultSettings returns the preferences used on first run.
func DefaultSettings() Settings {
	return Settings{
		ShowProbability:         true,
		ShowHomeCounterControls: true,
		HomeCounterDisplayMode:  HomeDisplayFull,
		ShowHomeProbability:     true,
	}
}

// SettingsPatch carries optional updates; nil fields are left alone.
type SettingsPatch struct {
	ShowProbability         *bool   `json:"showProbability,omitempty"`
	ShowHomeCounterControls *bool   `json:"showHomeCounterControls,omitempty"`
	HomeCounterDisplayMode  *string `json:"homeCounterDisplayMode,omitempty"`
	ShowHomeProbability     *bool   `json:"showHomeProbability,omitempty"`
}

// Apply returns s with the patch applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.ShowProbability != nil {
		s.ShowProbability = *p.ShowProbability
	}
	if p.ShowHomeCounterControls != nil {
		s.ShowHomeCounterControls = *p.ShowHomeCounterControls
	}
	if p.HomeCounterDisplayMode != nil {
		s.HomeCounterDisplayMode, _ = ParseHomeDisplayMode(*p.HomeCounterDisplayMode)
	}
	if p.ShowHomeProbability != nil {
		s.ShowHomeProbability = *p.ShowHomeProbability
	}
	return s
}
