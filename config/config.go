package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/praveenbiet/elephant/internal/auth/password"
	"github.com/praveenbiet/elephant/pkg/constant"
)

// Config is loaded once at startup and read-only afterwards; it is safe for
// concurrent reads from any number of request handlers.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DBURL string

	AccessTokenSecret    string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	ResetTokenTTL        time.Duration
	VerificationTokenTTL time.Duration

	BcryptCost               int
	RequireEmailVerification bool
	FrontendBaseURL          string

	PasswordPolicy password.Policy

	KafkaBrokers []string
	KafkaTopic   string

	MailAPIURL    string
	MailAPIKey    string
	MailFromEmail string
	MailFromName  string
}

func Load() *Config {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	policy := password.DefaultPolicy()
	policy.MinLength = getEnvAsInt("PASSWORD_MIN_LENGTH", policy.MinLength)
	policy.MaxLength = getEnvAsInt("PASSWORD_MAX_LENGTH", policy.MaxLength)
	policy.RequireUppercase = getEnvAsBool("PASSWORD_REQUIRE_UPPERCASE", policy.RequireUppercase)
	policy.RequireLowercase = getEnvAsBool("PASSWORD_REQUIRE_LOWERCASE", policy.RequireLowercase)
	policy.RequireDigit = getEnvAsBool("PASSWORD_REQUIRE_DIGIT", policy.RequireDigit)
	policy.RequireSpecialChar = getEnvAsBool("PASSWORD_REQUIRE_SPECIAL_CHAR", policy.RequireSpecialChar)
	policy.DisallowCommonPasswords = getEnvAsBool("PASSWORD_DISALLOW_COMMON", policy.DisallowCommonPasswords)
	policy.DisallowUsernameInPassword = getEnvAsBool("PASSWORD_DISALLOW_USERNAME", policy.DisallowUsernameInPassword)
	policy.MaxRepeatedChars = getEnvAsInt("PASSWORD_MAX_REPEATED_CHARS", policy.MaxRepeatedChars)
	policy.PasswordHistoryCount = getEnvAsInt("PASSWORD_HISTORY_COUNT", policy.PasswordHistoryCount)
	if err := policy.Validate(); err != nil {
		log.Fatalf("Invalid password policy: %v", err)
	}

	return &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBURL: mustGetEnv("DB_URL"),

		AccessTokenSecret:    mustGetEnv("ACCESS_TOKEN_SECRET"),
		AccessTokenTTL:       getEnvAsDuration("ACCESS_TOKEN_TTL", constant.DefaultAccessTokenTTL),
		RefreshTokenTTL:      getEnvAsDuration("REFRESH_TOKEN_TTL", constant.DefaultRefreshTokenTTL),
		ResetTokenTTL:        getEnvAsDuration("RESET_TOKEN_TTL", constant.DefaultResetTokenTTL),
		VerificationTokenTTL: getEnvAsDuration("VERIFICATION_TOKEN_TTL", constant.DefaultVerificationTokenTTL),

		BcryptCost:               getEnvAsInt("BCRYPT_COST", 0),
		RequireEmailVerification: getEnvAsBool("REQUIRE_EMAIL_VERIFICATION", true),
		FrontendBaseURL:          getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),

		PasswordPolicy: policy,

		KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "users"),

		MailAPIURL:    getEnv("MAIL_API_URL", ""),
		MailAPIKey:    getEnv("MAIL_API_KEY", ""),
		MailFromEmail: getEnv("MAIL_FROM_EMAIL", "noreply@example.com"),
		MailFromName:  getEnv("MAIL_FROM_NAME", "E-Learning Platform"),
	}
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func mustGetEnv(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Fatalf("Missing required environment variable: %s", key)
	return ""
}

func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %t", key, defaultVal)
		return defaultVal
	}
	return val
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %s", key, defaultVal)
		return defaultVal
	}
	return val
}

func getEnvAsSlice(key string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return nil
	}
	parts := strings.Split(valStr, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
