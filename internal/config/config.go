package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"

	"github.com/joho/godotenv" // optional .env file for local development
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; durations accept time.ParseDuration syntax.
type Config struct {
	Env    string // application environment ("development", "production")
	Port   string // HTTP port to listen on
	LogFmt string // "json" or "text"

	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	DBAutoMigrate bool   // create tables on startup

	JWTSecret         string        // secret used to sign handshake and session tokens
	TokenIssuer       string        // iss claim
	SessionAudience   string        // aud claim of session tokens
	HandshakeAudience string        // aud claim of handshake tokens
	HandshakeTTL      time.Duration // lifetime of a handshake
	SessionTTL        time.Duration // lifetime of a session without remember-me
	RememberMeTTL     time.Duration // lifetime of a remember-me session
	IdleTimeout       time.Duration // max gap between two validations of a session
	TouchInterval     time.Duration // min gap between two last_access_at writes (0 = every time)
	BcryptCost        int           // bcrypt cost for password hashing

	DashboardOrigins []string // allowed Origin values for state-changing requests

	AMQPURL string // RabbitMQ connection string for notifications

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	SMTPFrom     string
	SMTPFromName string
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool { return c.Env == "production" }

// Load reads configuration values from the environment, after merging in a
// .env file when one exists. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // a missing .env is fine; real env always wins

	return Config{
		Env:    must("APP_ENV"),
		Port:   must("APP_PORT"),
		LogFmt: envStr("LOG_FORMAT", "json"),

		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		DBAutoMigrate: envBool("DB_AUTO_MIGRATE", true),

		JWTSecret:         must("JWT_SECRET"),
		TokenIssuer:       envStr("SESSION_TOKEN_ISSUER", "metavr-backend"),
		SessionAudience:   envStr("SESSION_TOKEN_AUDIENCE", "metavr-dashboard"),
		HandshakeAudience: envStr("HANDSHAKE_TOKEN_AUDIENCE", "metavr-handshake"),
		HandshakeTTL:      envDur("HANDSHAKE_TTL", 60*time.Second),
		SessionTTL:        envDur("SESSION_TTL", 12*time.Hour),
		RememberMeTTL:     envDur("REMEMBER_ME_TTL", 7*24*time.Hour),
		IdleTimeout:       envDur("SESSION_IDLE_TIMEOUT", 6*time.Hour),
		TouchInterval:     envDur("SESSION_TOUCH_INTERVAL", 0),
		BcryptCost:        envInt("BCRYPT_COST", 10),

		DashboardOrigins: splitList(os.Getenv("DASHBOARD_ORIGIN")),

		AMQPURL: amqpURL(),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPass:     os.Getenv("SMTP_PASS"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		SMTPFromName: envStr("SMTP_FROM_NAME", "MetaVR"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func amqpURL() string {
	if u := os.Getenv("RABBITMQ_URL"); u != "" {
		return u
	}
	return os.Getenv("AMQP_URL")
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
