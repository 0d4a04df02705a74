package templates

// DefaultFooterNote is shown in the shared layout when a page does not supply custom text.
const DefaultFooterNote = "Every page on Wanderweb is written by a language model the moment you ask for it. Nothing here is real."

// FlavorView is a flavor entry rendered on the landing page.
type FlavorView struct {
	ID          string
	Name        string
	Description string
	Examples    []string
	Selected    bool
}

// HomePageData contains dynamic values rendered on the landing page.
type HomePageData struct {
	Title       string
	Tagline     string
	Flavors     []FlavorView
	HasAPIKey   bool
	FooterNote  string
	SettingsURL string
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Title       string
	StatusLabel string
	Message     string
	Hint        string
	HintURL     string
}
