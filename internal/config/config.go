package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"
	_ "time/tzdata" // IANA zones for APP_TIMEZONE on hosts without zoneinfo

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBMaxOpenConns int
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// Location is the zone slot dates and times of day are entered in.
	Location *time.Location
	// CancellationWindow is how long before a session a booking can still
	// be cancelled.
	CancellationWindow time.Duration
	// DefaultRecurrenceWeeks is used when a weekly request omits weeks.
	DefaultRecurrenceWeeks int
	RequestTimeout         time.Duration
	ShutdownTimeout        time.Duration
}

// LoadDotEnv reads .env (or the files named) into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	LoadDotEnv()
	return Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 10),

		Location:               mustLocation("APP_TIMEZONE", "UTC"),
		CancellationWindow:     envDur("CANCELLATION_WINDOW", 24*time.Hour),
		DefaultRecurrenceWeeks: envInt("DEFAULT_RECURRENCE_WEEKS", 12),
		RequestTimeout:         envDur("REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout:        envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
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

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// mustLocation resolves an IANA zone name. An unknown zone is fatal: slot
// times entered in the wrong zone cannot be repaired later.
func mustLocation(key, def string) *time.Location {
	name := envStr(key, def)
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Fatalf("invalid time zone for %s: %q: %v", key, name, err)
	}
	return loc
}
