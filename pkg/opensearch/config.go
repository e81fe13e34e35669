package opensearch

// Config holds OpenSearch connection parameters. An empty address list
// disables indexing.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES" envSeparator:","`
	Username     string   `env:"OPENSEARCH_USERNAME"`
	Password     string   `env:"OPENSEARCH_PASSWORD"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
	LevelIndex   string   `env:"OPENSEARCH_LEVEL_INDEX" envDefault:"levels"`
}

// Enabled reports whether at least one address is configured.
func (c Config) Enabled() bool {
	return len(c.Addresses) > 0
}
