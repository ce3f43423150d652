package config

// Constants defining default values for application configuration
const (
	DefaultKeywordsCSVPath = "./keywords.csv"
	DefaultDBPath          = "./leads.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultInterval    = 5  // Minutes between scan cycles
	DefaultFreshHours  = 24 // Window for the "fresh leads" listing
	DefaultFetchLimit  = 20 // Posts per listing request
	DefaultSubreddits  = "reactnative+iosprogramming+androiddev"
	DefaultUserAgent   = "leadscout/1.0"
	DefaultHTTPTimeout = 15 // Seconds for outbound notifier/AI calls

	DefaultAIBaseURL = "http://localhost:11434/v1"
	DefaultAIModel   = "gemma3"

	DefaultLogLevel = "debug"
)
