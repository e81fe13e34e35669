package notify

// Config locates the outbound endpoints.
type Config struct {
	PushGatewayURL    string `env:"PUSH_GATEWAY_URL"`
	PushGatewaySecret string `env:"PUSH_GATEWAY_SECRET"`
	// DiscordWebhooks maps channel names to webhook URLs:
	// DISCORD_WEBHOOKS=levels=https://discord.com/api/webhooks/...,ops=...
	DiscordWebhooks map[string]string `env:"DISCORD_WEBHOOKS" envSeparator:"," envKeyValSeparator:"="`
	UserAgent       string            `env:"NOTIFY_USER_AGENT" envDefault:"levelqueue-notify/1.0"`
}
