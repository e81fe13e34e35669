package levels

// Config holds the HTTP module settings.
type Config struct {
	// InternalToken guards /api/internal/*. An empty token disables those
	// endpoints: every call answers 401.
	InternalToken string `env:"INTERNAL_API_TOKEN"`
	UserHeader    string `env:"USER_HEADER" envDefault:"X-User-ID"`
	DraftsPath    string `env:"DRAFTS_PATH" envDefault:"/drafts"`
}
