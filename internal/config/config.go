package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Provider names the model service backing page generation.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Config holds runtime configuration values for the Wanderweb server.
type Config struct {
	DBPath         string
	DBBusyTimeout  time.Duration
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxIdle  time.Duration
	DBConnMaxLife  time.Duration

	ServerPort    int
	LogLevel      string
	Environment   string
	SentryDSN     string
	ShutdownGrace time.Duration

	LLMProvider Provider
	LLMEndpoint string
	LLMModel    string
	LLMAPIKey   string
	LLMTimeout  time.Duration

	DefaultFlavor  string
	EnabledFlavors []string
	FlavorsPath    string

	RateLimitRPS   float64
	RateLimitBurst int
	RateLimitTTL   time.Duration
}

const (
	defaultDBPath         = "./data/wanderweb.db"
	defaultDBBusyTimeout  = 5 * time.Second
	defaultDBMaxOpenConns = 4
	defaultDBMaxIdleConns = 4
	defaultDBConnMaxIdle  = 5 * time.Minute
	defaultDBConnMaxLife  = time.Hour
	defaultServerPort     = 8080
	defaultLogLevel       = "info"
	defaultEnvironment    = "development"
	defaultShutdownGrace  = 10 * time.Second
	defaultProvider       = ProviderGemini
	defaultGeminiModel    = "gemini-2.0-flash"
	defaultLLMTimeout     = 8 * time.Second
	defaultFlavor         = "classic"
	defaultRateLimitRPS   = 1.0
	defaultRateLimitBurst = 5
	defaultRateLimitTTL   = 10 * time.Minute
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		Environment:   getEnv("ENV", defaultEnvironment),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		LLMEndpoint:   strings.TrimSpace(os.Getenv("LLM_ENDPOINT")),
		LLMAPIKey:     strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		DefaultFlavor: strings.ToLower(strings.TrimSpace(getEnv("DEFAULT_FLAVOR", defaultFlavor))),
		FlavorsPath:   strings.TrimSpace(os.Getenv("FLAVORS_PATH")),
	}

	port, err := intEnv("SERVER_PORT", defaultServerPort)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, eris.Errorf("invalid SERVER_PORT value: %d", port)
	}
	cfg.ServerPort = port

	provider := Provider(strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", string(defaultProvider)))))
	switch provider {
	case ProviderGemini, ProviderOpenAI:
		cfg.LLMProvider = provider
	default:
		return nil, eris.Errorf("invalid LLM_PROVIDER value: %s", provider)
	}

	cfg.LLMModel = strings.TrimSpace(os.Getenv("LLM_MODEL"))
	if cfg.LLMModel == "" && cfg.LLMProvider == ProviderGemini {
		cfg.LLMModel = defaultGeminiModel
	}
	if cfg.LLMModel == "" {
		return nil, eris.New("LLM_MODEL is required for the openai provider")
	}

	if cfg.LLMTimeout, err = durationEnv("LLM_TIMEOUT", defaultLLMTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace, err = durationEnv("SHUTDOWN_GRACE", defaultShutdownGrace); err != nil {
		return nil, err
	}
	if cfg.RateLimitTTL, err = durationEnv("RATE_LIMIT_TTL", defaultRateLimitTTL); err != nil {
		return nil, err
	}

	if cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", defaultRateLimitBurst); err != nil {
		return nil, err
	}

	if err := loadDatabaseSettings(cfg); err != nil {
		return nil, err
	}

	rpsValue := getEnv("RATE_LIMIT_RPS", strconv.FormatFloat(defaultRateLimitRPS, 'f', -1, 64))
	rps, err := strconv.ParseFloat(rpsValue, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid RATE_LIMIT_RPS value: %s", rpsValue)
	}
	cfg.RateLimitRPS = rps

	if raw := strings.TrimSpace(os.Getenv("ENABLED_FLAVORS")); raw != "" {
		flavors, err := parseList(raw)
		if err != nil {
			return nil, eris.Wrap(err, "parsing ENABLED_FLAVORS")
		}
		cfg.EnabledFlavors = flavors
	}

	return cfg, nil
}

func loadDatabaseSettings(cfg *Config) error {
	var err error
	if cfg.DBBusyTimeout, err = durationEnv("DB_BUSY_TIMEOUT", defaultDBBusyTimeout); err != nil {
		return err
	}
	if cfg.DBConnMaxIdle, err = durationEnv("DB_CONN_MAX_IDLE", defaultDBConnMaxIdle); err != nil {
		return err
	}
	if cfg.DBConnMaxLife, err = durationEnv("DB_CONN_MAX_LIFETIME", defaultDBConnMaxLife); err != nil {
		return err
	}
	if cfg.DBMaxOpenConns, err = positiveIntEnv("DB_MAX_OPEN_CONNS", defaultDBMaxOpenConns); err != nil {
		return err
	}
	if cfg.DBMaxIdleConns, err = positiveIntEnv("DB_MAX_IDLE_CONNS", defaultDBMaxIdleConns); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	value := getEnv(key, strconv.Itoa(fallback))
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	return parsed, nil
}

func positiveIntEnv(key string, fallback int) (int, error) {
	parsed, err := intEnv(key, fallback)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, eris.Errorf("invalid %s value: %d must be positive", key, parsed)
	}
	return parsed, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := getEnv(key, fallback.String())
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	if parsed < 0 {
		return 0, eris.Errorf("invalid %s value: %s must not be negative", key, value)
	}
	return parsed, nil
}

// parseList accepts a JSON array of strings, an object with a `flavors` field, or a comma separated list.
func parseList(raw string) ([]string, error) {
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
		var arrayInput []string
		if err := json.Unmarshal([]byte(raw), &arrayInput); err == nil {
			return normaliseList(arrayInput)
		}

		var objectInput struct {
			Flavors []string `json:"flavors"`
		}
		if err := json.Unmarshal([]byte(raw), &objectInput); err != nil {
			return nil, eris.Wrap(err, "decoding JSON")
		}
		return normaliseList(objectInput.Flavors)
	}

	return normaliseList(strings.Split(raw, ","))
}

func normaliseList(items []string) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.ToLower(strings.TrimSpace(item)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("list is empty")
	}
	return out, nil
}
