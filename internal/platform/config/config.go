package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration. Everything comes from the
// environment (optionally seeded from a .env file) so main stays lean.
type Server struct {
	Addr          string
	AdminSecret   string
	SessionSecret string
	DatabaseURL   string

	// ExpandedArchive switches the decoy build artifact from the safe default
	// to the larger demo sizing. ArchiveChunks overrides the chunk count and
	// is clamped by the decoy package regardless of what is configured here.
	ExpandedArchive bool
	ArchiveChunks   int

	// LogFile enables rotating file output when set.
	LogFile string
}

// FromEnv builds a Server config from environment variables. A missing .env
// file is not an error; explicit environment always wins over file values.
func FromEnv() Server {
	_ = godotenv.Load()

	return Server{
		Addr:            getenv("MIRAGE_ADDR", ":9093"),
		AdminSecret:     getenv("MIRAGE_ADMIN_SECRET", "please_change_me"),
		SessionSecret:   getenv("MIRAGE_SESSION_SECRET", "dev-session-secret-change-in-production"),
		DatabaseURL:     getenv("DATABASE_URL", "file:data/mirage.db"),
		ExpandedArchive: os.Getenv("MIRAGE_EXPANDED_ARCHIVE") == "true",
		ArchiveChunks:   getint("MIRAGE_ARCHIVE_CHUNKS", 0),
		LogFile:         os.Getenv("MIRAGE_LOG_FILE"),
	}
}

// UsingDefaultSecrets reports whether the process still runs with development
// secrets so startup can log a loud warning.
func (s Server) UsingDefaultSecrets() bool {
	return s.AdminSecret == "please_change_me" ||
		s.SessionSecret == "dev-session-secret-change-in-production"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
