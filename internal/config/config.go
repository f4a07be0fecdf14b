package config // package config loads application configuration from environment variables

import (
	"log"     // log reports configuration errors before the zap logger exists
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings normalizes enum-like values
	"time"    // time holds the timeout settings

	"github.com/joho/godotenv" // godotenv loads a local .env file when present
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Timeouts are parsed with time.ParseDuration
// (e.g. "3s", "500ms").
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	LogLevel string // zap level: debug, info, warn, error

	BotToken       string // Telegram Bot API token
	OperatorChatID int64  // the single chat allowed to confirm/cancel bookings
	WebhookSecret  string // expected X-Telegram-Bot-Api-Secret-Token header (empty disables the check)
	WebhookPath    string // route the Telegram webhook is mounted on

	StoreDriver    string        // redis, mysql or memory
	KeyPrefix      string        // namespace for every store key
	SessionTTL     time.Duration // idle timeout of a conversation
	StoreTimeout   time.Duration // bound on each store call
	NotifyTimeout  time.Duration // bound on each outbound Bot API call
	WebhookTimeout time.Duration // bound on one whole webhook delivery
	LockTTL        time.Duration // lifetime of a per-booking decision lock, never below WebhookTimeout

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	RabbitURL      string        // AMQP URL for the audit queue (empty disables publishing)
	PublishTimeout time.Duration // bound on one audit publish
	AuditEnabled   bool          // run the in-process audit consumer
	AuditLogPath   string        // file the audit consumer appends to

	JWTSecret    string // secret used to sign operator API tokens
	AccessTTLMin int    // access token time-to-live in minutes
	OperatorHash string // bcrypt hash of the operator API password (empty disables login)
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when it
// exists.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // a missing .env is normal outside local development

	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),                    // environment (dev/test/prod)
		Port:           envStr("APP_PORT", "8080"),                  // port to bind the HTTP server
		LogLevel:       envStr("LOG_LEVEL", "info"),                 // logger verbosity
		BotToken:       must("BOT_TOKEN"),                           // Bot API token
		OperatorChatID: mustInt64("OPERATOR_CHAT_ID"),               // operator identity
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),                 // empty allowed
		WebhookPath:    envStr("WEBHOOK_PATH", "/telegram/webhook"), // webhook route
		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", DriverRedis)),
		KeyPrefix:      envStr("KEY_PREFIX", "farm"),                 // key namespace
		SessionTTL:     envDur("SESSION_TTL", 30*time.Minute),        // conversation idle timeout
		StoreTimeout:   envDur("STORE_TIMEOUT", 3*time.Second),       // per store call
		NotifyTimeout:  envDur("NOTIFY_TIMEOUT", 5*time.Second),      // per Bot API call
		WebhookTimeout: envDur("WEBHOOK_TIMEOUT", 20*time.Second),    // per delivery
		LockTTL:        envDur("DECISION_LOCK_TTL", 30*time.Second),  // per-booking decision lock
		RabbitURL:      os.Getenv("RABBITMQ_URL"),                    // optional
		PublishTimeout: envDur("PUBLISH_TIMEOUT", 3*time.Second),     // per audit publish
		AuditEnabled:   envBool("AUDIT_ENABLED", false),              // audit consumer switch
		AuditLogPath:   envStr("AUDIT_LOG_PATH", "logs/booking.log"), // audit file
		JWTSecret:      envStr("JWT_SECRET", ""),                     // operator API signing key
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),           // token lifetime
		OperatorHash:   os.Getenv("OPERATOR_PASSWORD_HASH"),          // bcrypt hash
	}

	switch cfg.StoreDriver {
	case DriverRedis, DriverMemory:
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")      // database user
		cfg.DBPass = os.Getenv("DB_PASS") // database password (empty allowed)
		cfg.DBHost = must("DB_HOST")      // database host
		cfg.DBPort = must("DB_PORT")      // database port
		cfg.DBName = must("DB_NAME")      // database name
	default:
		log.Fatalf("invalid STORE_DRIVER: %q (want redis, mysql or memory)", cfg.StoreDriver)
	}

	if cfg.OperatorHash != "" && cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is required when OPERATOR_PASSWORD_HASH is set")
	}
	return cfg.withLockTTLFloor()
}

// withLockTTLFloor raises LockTTL to WebhookTimeout: a decision lock must
// outlive the delivery that holds it.
func (c Config) withLockTTLFloor() Config {
	if c.LockTTL < c.WebhookTimeout {
		log.Printf("DECISION_LOCK_TTL %s is below WEBHOOK_TIMEOUT %s; using %s", c.LockTTL, c.WebhookTimeout, c.WebhookTimeout)
		c.LockTTL = c.WebhookTimeout
	}
	return c
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt64 is like must() but converts the retrieved string into an int64.
// Telegram chat ids do not fit in 32 bits, hence the width.
func mustInt64(key string) int64 {
	s := must(key)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
