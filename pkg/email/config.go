package email

// Config holds email delivery settings. Without Postmark tokens New falls
// back to DevSender writing into DevOutputDir.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@levelqueue.local"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@levelqueue.local"`
	DevOutputDir         string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}

// PostmarkEnabled reports whether both Postmark tokens are configured.
func (c Config) PostmarkEnabled() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
