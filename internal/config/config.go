package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPrompt is the motion description sent with the initial image.
const DefaultPrompt = "Animate this image. Make the panda wave its hand gently and blink its eyes. " +
	"The grass and leaves in the background should sway subtly in a gentle breeze. " +
	"The clouds should drift slowly across the sky."

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string

	// Source image shown at startup and used as generation input
	InitialImageURL string
	FetchTimeout    time.Duration
	AnimationPrompt string

	// Gemini API
	GeminiAPIKey      string
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL

	// Veo generation
	VeoModel        string
	VeoResolution   string
	VeoAspectRatio  string
	VeoPollInterval time.Duration
	VeoTimeout      time.Duration // 0 disables the deadline
	DownloadTimeout time.Duration

	// Database (optional animation history)
	DatabaseURL string

	// Kafka (optional animation events)
	KafkaBrokers     []string
	KafkaTopicEvents string

	// S3/Storage (optional media archive)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3PublicURL    string
	S3PresignTTL   time.Duration
	ArchiveEnabled bool

	// Access control for mutating routes
	AdminTokenHash       string // bcrypt hash; empty leaves routes open
	AnimateRatePerMinute int
	AnimateRateBurst     int
	LoadingMessagePeriod time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		InitialImageURL: getEnv("INITIAL_IMAGE_URL", "https://i.imgur.com/6c2zYTg.jpeg"),
		FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		AnimationPrompt: getEnv("ANIMATION_PROMPT", DefaultPrompt),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", getEnv("API_KEY", "")),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),

		VeoModel:        getEnv("VEO_MODEL", "veo-3.1-fast-generate-preview"),
		VeoResolution:   getEnv("VEO_RESOLUTION", "720p"),
		VeoAspectRatio:  getEnv("VEO_ASPECT_RATIO", "9:16"),
		VeoPollInterval: clampMinDuration(getEnvDuration("VEO_POLL_INTERVAL", 10*time.Second), time.Second),
		VeoTimeout:      getEnvDuration("VEO_TIMEOUT", 10*time.Minute),
		DownloadTimeout: getEnvDuration("DOWNLOAD_TIMEOUT", 2*time.Minute),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers:     getEnvList("KAFKA_BROKERS"),
		KafkaTopicEvents: getEnv("KAFKA_TOPIC_EVENTS", "animator.events.v1"),

		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3PublicURL:    getEnv("S3_PUBLIC_URL", ""),
		S3PresignTTL:   getEnvDuration("S3_PRESIGN_TTL", 15*time.Minute),
		ArchiveEnabled: getEnvBool("ARCHIVE_ENABLED", false),

		AdminTokenHash:       getEnv("ADMIN_TOKEN_HASH", ""),
		AnimateRatePerMinute: clampMin(getEnvInt("ANIMATE_RATE_PER_MINUTE", 6), 0), // 0 disables limiting
		AnimateRateBurst:     clampMin(getEnvInt("ANIMATE_RATE_BURST", 2), 1),
		LoadingMessagePeriod: getEnvDuration("LOADING_MESSAGE_PERIOD", 3*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable. Unset yields nil so optional
// integrations stay disabled.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func clampMinDuration(v, min time.Duration) time.Duration {
	if v < min {
		return min
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
