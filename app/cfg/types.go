package cfg

import "time"

type Cfg struct {
	// HTTP server configuration
	Port         string
	APIAccessKey string

	// Storage configuration
	DBPath       string
	SettingsFile string

	// Platform configuration
	GraphAPIURL     string
	GraphAPIVersion string
	HTTPTimeout     time.Duration
	PostCutoff      time.Time

	// Generation provider configuration
	GeminiAPIKey      string
	GeminiModel       string
	AIRequestInterval time.Duration
	AIRequestBurst    int

	// Scheduling configuration
	ScheduleTimezone *time.Location
	DailyCooldown    time.Duration

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
