package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Channel selection values.
const (
	ChannelCloud = "cloud" // WhatsApp Business Cloud API
	ChannelWeb   = "web"   // WhatsApp Web session automation
)

// Snapshot provider selection values.
const (
	ProviderAPI     = "api"     // render-service screenshot API
	ProviderBrowser = "browser" // local headless browser
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TargetURL       string
	MicrolinkAPIURL string
	Provider        string
	Channel         string

	// WhatsApp Business Cloud API credentials (required for the cloud channel)
	PhoneNumberID string
	AccessToken   string

	Recipients   []string
	CaptionTitle string

	WindowStart string
	WindowEnd   string
	Timezone    string

	TickInterval time.Duration
	SendDelay    time.Duration
	CacheTTL     time.Duration

	QualityProfile      string
	PlausiblePastDays   int
	PlausibleFutureDays int

	CacheDir string

	PairingListenAddr   string
	PairingPollAttempts int
	PairingPollInterval time.Duration
	StepTimeout         time.Duration
	ChromeHeadless      bool

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TargetURL = getEnv("TARGET_URL", "https://patnahighcourt.gov.in/causelist/auin/view/4079/0/CLIST")
	cfg.MicrolinkAPIURL = getEnv("MICROLINK_API_URL", "https://api.microlink.io/")

	cfg.Provider = strings.ToLower(getEnv("SNAPSHOT_PROVIDER", ProviderAPI))
	if cfg.Provider != ProviderAPI && cfg.Provider != ProviderBrowser {
		return nil, fmt.Errorf("invalid SNAPSHOT_PROVIDER %q (want %q or %q)", cfg.Provider, ProviderAPI, ProviderBrowser)
	}

	cfg.Channel = strings.ToLower(getEnv("CHANNEL", ChannelCloud))
	if cfg.Channel != ChannelCloud && cfg.Channel != ChannelWeb {
		return nil, fmt.Errorf("invalid CHANNEL %q (want %q or %q)", cfg.Channel, ChannelCloud, ChannelWeb)
	}

	cfg.PhoneNumberID = os.Getenv("PHONE_NUMBER_ID")
	cfg.AccessToken = os.Getenv("ACCESS_TOKEN")
	if cfg.Channel == ChannelCloud {
		if cfg.PhoneNumberID == "" {
			return nil, fmt.Errorf("PHONE_NUMBER_ID is not set")
		}
		if cfg.AccessToken == "" {
			return nil, fmt.Errorf("ACCESS_TOKEN is not set")
		}
	}

	recipients := os.Getenv("RECIPIENT_NUMBERS")
	if recipients == "" {
		return nil, fmt.Errorf("RECIPIENT_NUMBERS is not set")
	}
	for _, r := range strings.Split(recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			cfg.Recipients = append(cfg.Recipients, r)
		}
	}
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("RECIPIENT_NUMBERS contains no recipients")
	}

	cfg.CaptionTitle = getEnv("CAPTION_TITLE", "Patna High Court Cause List")

	cfg.WindowStart = getEnv("WINDOW_START", "20:00")
	cfg.WindowEnd = getEnv("WINDOW_END", "23:30")
	cfg.Timezone = getEnv("TIMEZONE", "Asia/Kolkata")

	if cfg.TickInterval, err = getDuration("TICK_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SendDelay, err = getDuration("SEND_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}

	cfg.QualityProfile = getEnv("QUALITY_PROFILE", "medium")

	if cfg.PlausiblePastDays, err = getInt("PLAUSIBLE_PAST_DAYS", 60); err != nil {
		return nil, err
	}
	if cfg.PlausibleFutureDays, err = getInt("PLAUSIBLE_FUTURE_DAYS", 30); err != nil {
		return nil, err
	}

	cfg.CacheDir = getEnv("CACHE_DIR", "cache")

	cfg.PairingListenAddr = getEnv("PAIRING_LISTEN_ADDR", ":8066")
	if cfg.PairingPollAttempts, err = getInt("PAIRING_POLL_ATTEMPTS", 60); err != nil {
		return nil, err
	}
	if cfg.PairingPollInterval, err = getDuration("PAIRING_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.StepTimeout, err = getDuration("STEP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ChromeHeadless, err = getBool("CHROME_HEADLESS", true); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
