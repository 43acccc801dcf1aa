package models

// NavigationLoading is the Navigation.State value reported while a page
// navigation is in flight.
const NavigationLoading = "loading"

// Navigation is the ambient navigation status supplied by the host.
type Navigation struct {
	State  string
	Search string
}

// Searching reports whether a navigation carrying a search query is loading.
func (n Navigation) Searching() bool {
	return n.State == NavigationLoading && n.Search != ""
}

// QuickLink is a shortcut to another city's page.
type QuickLink struct {
	City string
	Href string
}

// ViewModel is what the page template renders.
type ViewModel struct {
	Title       string
	Description string

	// Query is the raw q parameter used to prefill the search box.
	Query string
	// City is the resolved city sent upstream.
	City string

	Temperature float64
	Location    string
	Country     string
	Condition   string
	IconURL     string
	Conditions  []string

	QuickLinks []QuickLink
	Searching  bool

	Snapshot WeatherSnapshot
}
