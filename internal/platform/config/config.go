package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. The Networked flag is read once
// at startup and passed explicitly into component constructors; nothing reads
// it from ambient global state after that.
type Config struct {
	Addr          string
	Networked     bool
	JWTSigningKey string

	// AdminEmails is the normalized (lower-cased) admin allow-list.
	AdminEmails []string

	// DatabaseURL selects the relational backing store. Required in
	// networked mode.
	DatabaseURL string

	// RedisURL, when set, backs rate-limit buckets with a shared store.
	RedisURL string

	RateLimit       int
	RateLimitWindow time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("PHI_GATEWAY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	networked := os.Getenv("NETWORKED_MODE") == "true"

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" && !networked {
		// Local mode tokens never leave the machine. Networked mode gets
		// no default: main refuses to start without a real key.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	limit := 30
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT")); err == nil && v > 0 {
		limit = v
	}
	window := time.Minute
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); err == nil && v > 0 {
		window = time.Duration(v) * time.Second
	}

	return Config{
		Addr:            addr,
		Networked:       networked,
		JWTSigningKey:   jwtSigningKey,
		AdminEmails:     parseAdminEmails(os.Getenv("ADMIN_EMAILS")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RateLimit:       limit,
		RateLimitWindow: window,
	}
}

// parseAdminEmails splits a comma-separated allow-list, dropping empty entries
// and lower-casing the rest so membership checks are case-insensitive.
func parseAdminEmails(raw string) []string {
	var emails []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			emails = append(emails, part)
		}
	}
	return emails
}
