package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"ksl-notify/models"
)

// Config holds the full process configuration. It is assembled once from
// flags, the .env file, and environment variables, and is immutable after
// the poll loop starts.
type Config struct {
	// Email is both the sending and the receiving address.
	Email      string `validate:"required,email"`
	Password   string `validate:"required"`
	SMTPServer string `validate:"required,hostname_port"`

	IntervalMinutes int    `validate:"gte=1"`
	EmailExceptions int    `validate:"gte=1"`
	LogFile         string
	LogLevel        string `validate:"oneof=debug info warn warning error"`

	Engine                string `validate:"oneof=http browser"`
	ChromeBin             string
	RequestTimeoutSeconds int `validate:"gte=1"`

	ArchiveCSVPath  string
	ArchiveToDB     bool
	PostgresHost    string
	PostgresPort    string
	PostgresUser    string
	PostgresPass    string
	PostgresDB      string
	PostgresSSLMode string

	queries []models.Query
}

// Load parses flags and the environment into a Config. Interactive
// fallbacks (email/password prompts) and validation happen later in main,
// after the caller has had a chance to fill the gaps.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		Password:        os.Getenv("KSL_EMAIL_PASS"),
		PostgresHost:    getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:    getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:    getEnv("POSTGRES_USER", "ksl"),
		PostgresPass:    getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:      getEnv("POSTGRES_DB", "ksl_notify"),
		PostgresSSLMode: getEnv("POSTGRES_SSLMODE", "disable"),
	}

	var filters models.Query
	var searchesPath string

	fs := flag.NewFlagSet("ksl-notify", flag.ContinueOnError)
	fs.StringVar(&cfg.Email, "email", os.Getenv("KSL_EMAIL"),
		"email address from which to both send and receive")
	fs.StringVar(&cfg.SMTPServer, "smtpserver", os.Getenv("KSL_SMTP"),
		"email SMTP server:port, unneeded for gmail, outlook, hotmail, yahoo, or comcast")
	fs.IntVar(&cfg.IntervalMinutes, "t", 10, "number of minutes to wait between searches")
	fs.IntVar(&cfg.IntervalMinutes, "time", 10, "number of minutes to wait between searches")
	fs.StringVar(&cfg.LogFile, "l", "", "file to log output to, defaults to stdout")
	fs.StringVar(&cfg.LogFile, "logfile", "", "file to log output to, defaults to stdout")
	fs.StringVar(&cfg.LogLevel, "loglevel", "info", "choose level: debug, info, warning")
	fs.IntVar(&cfg.EmailExceptions, "e", 5, "number of repeated exceptions before sending alert emails")
	fs.IntVar(&cfg.EmailExceptions, "emailexceptions", 5, "number of repeated exceptions before sending alert emails")

	fs.StringVar(&filters.Category, "c", "", "category to apply to search results")
	fs.StringVar(&filters.Category, "category", "", "category to apply to search results")
	fs.StringVar(&filters.SubCategory, "u", "", "subcategory to apply to search results")
	fs.StringVar(&filters.SubCategory, "subcategory", "", "subcategory to apply to search results")
	fs.IntVar(&filters.MinPrice, "m", 0, "minimum dollar amount to include in search results")
	fs.IntVar(&filters.MinPrice, "min-price", 0, "minimum dollar amount to include in search results")
	fs.IntVar(&filters.MaxPrice, "M", 0, "maximum dollar amount to include in search results")
	fs.IntVar(&filters.MaxPrice, "max-price", 0, "maximum dollar amount to include in search results")
	fs.StringVar(&filters.Zip, "z", "", "ZIP code around which to center search results")
	fs.StringVar(&filters.Zip, "zip", "", "ZIP code around which to center search results")
	fs.StringVar(&filters.City, "city", "", "city around which to center search results")
	fs.StringVar(&filters.State, "state", "", "state (abbr, like UT) around which to center search results")
	fs.IntVar(&filters.Miles, "d", 0, "maximum distance in miles from ZIP code center")
	fs.IntVar(&filters.Miles, "miles", 0, "maximum distance in miles from ZIP code center")
	fs.IntVar(&filters.PerPage, "n", 0, "number of results to include in search results")
	fs.IntVar(&filters.PerPage, "perpage", 0, "number of results to include in search results")
	fs.BoolVar(&filters.SortOldestFirst, "r", false, "sort search results oldest to newest")
	fs.BoolVar(&filters.SortOldestFirst, "reverse", false, "sort search results oldest to newest")
	fs.BoolVar(&filters.IncludeSold, "s", false, "also return results for sold items")
	fs.BoolVar(&filters.IncludeSold, "sold", false, "also return results for sold items")

	fs.StringVar(&searchesPath, "searches", "", "YAML file of saved searches with per-query filters")
	fs.StringVar(&cfg.Engine, "engine", "http", "page fetch engine: http or browser")
	fs.StringVar(&cfg.ChromeBin, "chrome-bin", getEnv("CHROME_BIN", ""), "Chrome/Chromium binary for the browser engine")
	fs.IntVar(&cfg.RequestTimeoutSeconds, "request-timeout", 30, "per-request timeout in seconds")
	fs.StringVar(&cfg.ArchiveCSVPath, "archive-csv", getEnv("ARCHIVE_CSV_PATH", ""), "CSV file to append reported listings to")
	fs.BoolVar(&cfg.ArchiveToDB, "archive-db", getEnvBool("ARCHIVE_TO_DB", false), "archive reported listings to PostgreSQL (POSTGRES_* env vars)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	queries, err := buildQueries(fs.Args(), filters, searchesPath)
	if err != nil {
		return nil, err
	}
	cfg.queries = queries

	return cfg, nil
}

// Queries returns the saved searches the poll loop will watch.
func (c *Config) Queries() []models.Query {
	return c.queries
}

// QueryKeys returns the keyword of every configured query.
func (c *Config) QueryKeys() []string {
	keys := make([]string, 0, len(c.queries))
	for _, q := range c.queries {
		keys = append(keys, q.Keyword)
	}
	return keys
}

// Validate checks the assembled configuration. Call after interactive
// fallbacks have filled Email, Password, and SMTPServer.
func (c *Config) Validate() error {
	if len(c.queries) == 0 {
		return fmt.Errorf("config: no search queries configured")
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string for the archive sink.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPass +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// buildQueries resolves the saved searches, in priority order: the YAML
// searches file, then KSL_QUERY* environment variables, then positional
// arguments. Env- and flag-based queries all share the one flag filter set;
// only the YAML file can vary filters per query.
func buildQueries(positional []string, filters models.Query, searchesPath string) ([]models.Query, error) {
	if searchesPath != "" {
		return loadSearches(searchesPath)
	}

	keywords := envQueries()
	if len(keywords) == 0 {
		keywords = positional
	}

	queries := make([]models.Query, 0, len(keywords))
	for _, kw := range keywords {
		q := filters
		q.Keyword = kw
		queries = append(queries, q)
	}
	return queries, nil
}

// envQueries collects the value of every KSL_QUERY* environment variable.
func envQueries() []string {
	var keywords []string
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, "KSL_QUERY") && v != "" {
			keywords = append(keywords, v)
		}
	}
	return keywords
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
