package level

import "time"

// Config tunes publishing side effects.
type Config struct {
	SiteURL            string        `env:"SITE_URL" envDefault:"http://localhost:3000"`
	DiscordChannel     string        `env:"DISCORD_LEVELS_CHANNEL" envDefault:"levels"`
	RevalidateURL      string        `env:"REVALIDATE_URL"`
	FollowerPushSpread time.Duration `env:"FOLLOWER_PUSH_SPREAD" envDefault:"10m"`
	RecalcSpread       time.Duration `env:"RECALC_SPREAD" envDefault:"1h"`
	ImagePrefix        string        `env:"LEVEL_IMAGE_PREFIX" envDefault:"levels"`
	ImageSize          int           `env:"LEVEL_IMAGE_SIZE" envDefault:"256"`
}

// DefaultConfig mirrors the envDefault values.
func DefaultConfig() Config {
	return Config{
		SiteURL:            "http://localhost:3000",
		DiscordChannel:     "levels",
		FollowerPushSpread: 10 * time.Minute,
		RecalcSpread:       time.Hour,
		ImagePrefix:        "levels",
		ImageSize:          256,
	}
}
