package counter

// Storage keys for persisted state.
const (
	KeyCounters                = "shinyCounter_counters"
	KeySelectedCounter         = "shinyCounter_selectedCounter"
	KeyHomeCounters            = "shinyCounter_homeCounters"
	KeyShowProbability         = "shinyCounter_showProbability"
	KeyShowHomeCounterControls = "shinyCounter_showHomeCounterControls"
	KeyHomeCounterDisplayMode  = "shinyCounter_homeCounterDisplayMode"
	KeyShowHomeProbability     = "shinyCounter_showHomeProbability"
)
