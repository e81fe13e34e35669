package jobs

import "github.com/dmitrymomot/levelqueue/pkg/queue"

const (
	TypePublishLevel             queue.MessageType = "PUBLISH_LEVEL"
	TypePushNotification         queue.MessageType = "PUSH_NOTIFICATION"
	TypeEmailNotification        queue.MessageType = "EMAIL_NOTIFICATION"
	TypeFetch                    queue.MessageType = "FETCH"
	TypeRefreshIndexCalculations queue.MessageType = "REFRESH_INDEX_CALCULATIONS"
	TypeCalcPlayAttempts         queue.MessageType = "CALC_PLAY_ATTEMPTS"
	TypeRefreshAchievements      queue.MessageType = "REFRESH_ACHIEVEMENTS"
	TypeCalcCreatorCounts        queue.MessageType = "CALC_CREATOR_COUNTS"
	TypeGenLevelImage            queue.MessageType = "GEN_LEVEL_IMAGE"
	TypeDiscordNotification      queue.MessageType = "DISCORD_NOTIFICATION"
)

// AllTypes lists every message type the platform produces.
var AllTypes = []queue.MessageType{
	TypePublishLevel,
	TypePushNotification,
	TypeEmailNotification,
	TypeFetch,
	TypeRefreshIndexCalculations,
	TypeCalcPlayAttempts,
	TypeRefreshAchievements,
	TypeCalcCreatorCounts,
	TypeGenLevelImage,
	TypeDiscordNotification,
}

// LevelPayload targets a single level.
type LevelPayload struct {
	LevelID string `json:"levelId"`
}

// UserPayload targets a single user.
type UserPayload struct {
	UserID string `json:"userId"`
}

// EmailPayload is delivered to the user's address on file.
type EmailPayload struct {
	UserID   string `json:"userId"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Category string `json:"category,omitempty"`
}

// PushPayload is delivered to every device the user registered.
type PushPayload struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url,omitempty"`
}

// DiscordPayload is posted to a configured channel webhook.
type DiscordPayload struct {
	Channel string `json:"channel"`
	Content string `json:"content"`
}

// FetchPayload describes an outbound HTTP call.
type FetchPayload struct {
	URL    string            `json:"url"`
	Method string            `json:"method,omitempty"`
	Body   string            `json:"body,omitempty"`
	Header map[string]string `json:"header,omitempty"`
}
