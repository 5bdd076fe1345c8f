// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	AdminKey     string

	// IdentitySecret enables bearer-token identity instead of X-User-ID.
	IdentitySecret string

	// RedisURL selects the Redis job store; empty keeps jobs in memory.
	RedisURL    string
	ClockOffset time.Duration
	JobTTL      time.Duration
	JobWorkers  int
	MailDelay   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	SiteURL      string

	AbstainLabel string

	// ProfileFields maps logical profile fields to user_profile meta keys.
	ProfileFields   map[string]string
	SensitiveFields []string
}

// ParseFlags validates flags and fills defaults
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var (
		clockOffset, jobTTL, mailDelay string
		profileFields, sensitive       string
	)

	fs := flag.NewFlagSet("orgvote", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for job state")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminKey, "admin-key", "", "Admin API key (prefer env)")
	fs.StringVar(&cfg.IdentitySecret, "identity-secret", "", "HS256 secret for caller tokens (prefer env)")

	// Runtime tuning
	fs.StringVar(&clockOffset, "clock-offset", "", "Voting clock offset, e.g. 2h or -30m")
	fs.StringVar(&jobTTL, "job-ttl", "", "Batch job state TTL")
	fs.IntVar(&cfg.JobWorkers, "workers", -1, "Background job workers (0 disables)")
	fs.StringVar(&mailDelay, "mail-delay", "", "Delay between invitation batches")

	// Mail
	fs.StringVar(&cfg.SMTPHost, "smtp-host", "", "SMTP host (empty logs mail instead)")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", 0, "SMTP port")
	fs.StringVar(&cfg.MailFrom, "mail-from", "", "Sender address")
	fs.StringVar(&cfg.SiteURL, "site-url", "", "Public site URL used in mail links")

	// Content
	fs.StringVar(&cfg.AbstainLabel, "abstain-label", "", "Label of the automatic abstain answer")
	fs.StringVar(&profileFields, "profile-fields", "", "Profile field mapping, e.g. city=billing_city")
	fs.StringVar(&sensitive, "sensitive-fields", "", "Comma-separated sensitive profile fields")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		port, err := envInt("PORT", 3318)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = envString("DATABASE_TYPE", "sqlite")
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	// Secrets - admin key MUST be provided
	if cfg.AdminKey == "" {
		cfg.AdminKey = os.Getenv("ADMIN_KEY")
	}
	if cfg.AdminKey == "" {
		return Config{}, errors.New("ADMIN_KEY required")
	}
	if cfg.IdentitySecret == "" {
		cfg.IdentitySecret = os.Getenv("IDENTITY_SECRET")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	var err error
	if cfg.ClockOffset, err = parseDuration(clockOffset, "CLOCK_OFFSET", 0); err != nil {
		return Config{}, err
	}
	if cfg.JobTTL, err = parseDuration(jobTTL, "JOB_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.JobTTL <= 0 {
		return Config{}, errors.New("JOB_TTL must be positive")
	}
	if cfg.MailDelay, err = parseDuration(mailDelay, "MAIL_DELAY", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.JobWorkers < 0 {
		if cfg.JobWorkers, err = envInt("JOB_WORKERS", 0); err != nil {
			return Config{}, err
		}
	}

	if cfg.SMTPHost == "" {
		cfg.SMTPHost = os.Getenv("SMTP_HOST")
	}
	if cfg.SMTPPort == 0 {
		if cfg.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
			return Config{}, err
		}
	}
	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	if cfg.MailFrom == "" {
		cfg.MailFrom = envString("MAIL_FROM", "no-reply@localhost")
	}
	if cfg.SiteURL == "" {
		cfg.SiteURL = envString("SITE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port))
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	if cfg.AbstainLabel == "" {
		cfg.AbstainLabel = envString("ABSTAIN_LABEL", "Abstain")
	}

	if profileFields == "" {
		profileFields = os.Getenv("PROFILE_FIELDS")
	}
	if cfg.ProfileFields, err = ParseFieldMap(profileFields); err != nil {
		return Config{}, err
	}
	if sensitive == "" {
		sensitive = envString("SENSITIVE_FIELDS", "phone,email")
	}
	cfg.SensitiveFields = splitList(sensitive)

	return cfg, nil
}

// ParseFieldMap parses "logical=meta_key,..." into a map. Whitespace
// around names is ignored.
func ParseFieldMap(s string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, pair := range splitList(s) {
		logical, key, ok := strings.Cut(pair, "=")
		logical, key = strings.TrimSpace(logical), strings.TrimSpace(key)
		if !ok || logical == "" || key == "" {
			return nil, fmt.Errorf("invalid profile field mapping %q", pair)
		}
		fields[logical] = key
	}
	return fields, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}

func parseDuration(flagValue, key string, def time.Duration) (time.Duration, error) {
	v := flagValue
	if v == "" {
		v = os.Getenv(key)
	}
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
