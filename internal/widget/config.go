package widget

// Config is the constructor-time configuration of a widget. Zero fields fall
// back to Defaults, except APIURL: an empty endpoint is reported to the user
// as a configuration error when they send a message.
type Config struct {
	PrimaryColor   string `json:"primaryColor"`
	CompanyName    string `json:"companyName"`
	LogoURL        string `json:"logoUrl"`
	WelcomeMessage string `json:"welcomeMessage"`
	APIURL         string `json:"apiUrl"`
	Container      string `json:"container"`
}

var Defaults = Config{
	PrimaryColor:   "#5B8DEF",
	CompanyName:    "Support",
	WelcomeMessage: "Hello! How can we help?",
	Container:      "body",
}

// Merge returns c with empty fields taken from Defaults.
func (c Config) Merge() Config {
	if c.PrimaryColor == "" {
		c.PrimaryColor = Defaults.PrimaryColor
	}
	if c.CompanyName == "" {
		c.CompanyName = Defaults.CompanyName
	}
	if c.LogoURL == "" {
		c.LogoURL = Defaults.LogoURL
	}
	if c.WelcomeMessage == "" {
		c.WelcomeMessage = Defaults.WelcomeMessage
	}
	if c.Container == "" {
		c.Container = Defaults.Container
	}
	return c
}
