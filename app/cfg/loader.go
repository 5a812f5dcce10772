package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

const cutoffLayout = "2006-01-02"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// HTTP server configuration
	Port         string `long:"port" env:"PORT" default:"8000" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the admin endpoints (optional)"`

	// Storage configuration
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./data/replybot.db" description:"SQLite database file for the reply ledger"`
	SettingsFile string `long:"settings-file" env:"SETTINGS_FILE" default:"./settings.yml" description:"YAML file with presets, blacklist and instructions"`

	// Platform configuration
	GraphAPIURL     string `long:"graph-api-url" env:"GRAPH_API_URL" default:"https://graph.facebook.com" description:"Graph API base URL"`
	GraphAPIVersion string `long:"graph-api-version" env:"GRAPH_API_VERSION" default:"v22.0" description:"Graph API version"`
	HTTPTimeout     int    `long:"http-timeout" env:"HTTP_TIMEOUT" default:"30" description:"Timeout for a single external call in seconds"`
	PostCutoff      string `long:"post-cutoff" env:"POST_CUTOFF" default:"2025-03-01" description:"Posts created before this date (YYYY-MM-DD, UTC) are never processed"`

	// Generation provider configuration
	GeminiAPIKey      string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key"`
	GeminiModel       string `long:"gemini-model" env:"GEMINI_MODEL" default:"gemini-2.0-flash" description:"Gemini model name"`
	AIRequestInterval int    `long:"ai-request-interval" env:"AI_REQUEST_INTERVAL" default:"2" description:"Minimum seconds between generation calls"`
	AIRequestBurst    int    `long:"ai-request-burst" env:"AI_REQUEST_BURST" default:"1" description:"Generation calls allowed in a burst"`

	// Scheduling configuration
	ScheduleTimezone string `long:"schedule-timezone" env:"SCHEDULE_TIMEZONE" default:"Asia/Dhaka" description:"Timezone for daily start times"`
	DailyCooldown    int    `long:"daily-cooldown" env:"DAILY_COOLDOWN" default:"60" description:"Seconds a daily job waits after a failed run"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"ReplyBot/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for log timestamps (e.g., UTC, Asia/Dhaka)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// LoadEnv loads .env files into the process environment. Missing files are skipped.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			slog.Warn("Failed to load env file", "file", file, "error", err)
			continue
		}
		slog.Debug("Loaded env file", "file", file)
	}
}

func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg, err := build(raw)
	if err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func build(raw rawCfg) (*Cfg, error) {
	cutoff, err := time.Parse(cutoffLayout, raw.PostCutoff)
	if err != nil {
		return nil, fmt.Errorf("invalid post cutoff %q: %w", raw.PostCutoff, err)
	}

	scheduleLoc, err := time.LoadLocation(raw.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", raw.ScheduleTimezone, err)
	}

	if raw.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("http timeout must be positive")
	}
	if raw.AIRequestInterval < 0 || raw.DailyCooldown < 0 {
		return nil, fmt.Errorf("ai request interval and daily cooldown must be non-negative")
	}

	return &Cfg{
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		DBPath:            raw.DBPath,
		SettingsFile:      raw.SettingsFile,
		GraphAPIURL:       raw.GraphAPIURL,
		GraphAPIVersion:   raw.GraphAPIVersion,
		HTTPTimeout:       time.Duration(raw.HTTPTimeout) * time.Second,
		PostCutoff:        cutoff,
		GeminiAPIKey:      raw.GeminiAPIKey,
		GeminiModel:       raw.GeminiModel,
		AIRequestInterval: time.Duration(raw.AIRequestInterval) * time.Second,
		AIRequestBurst:    max(raw.AIRequestBurst, 1),
		ScheduleTimezone:  scheduleLoc,
		DailyCooldown:     time.Duration(raw.DailyCooldown) * time.Second,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
