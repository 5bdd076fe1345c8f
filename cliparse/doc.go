// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

main loads a .env file with godotenv before calling ParseFlags, so
values from the file behave like ordinary environment variables.

# CLI Flags and Environment Variables

Flags fall back to environment variables:

	PORT             → -p               (default 3318)
	DATABASE_URL     → -d               (required)
	DATABASE_TYPE    → -t               (sqlite | postgres, default sqlite)
	ADMIN_KEY        → -admin-key       (required)
	IDENTITY_SECRET  → -identity-secret (enables bearer tokens)
	REDIS_URL        → -redis           (empty keeps jobs in memory)
	CLOCK_OFFSET     → -clock-offset    (Go duration)
	JOB_TTL          → -job-ttl         (default 1h)
	JOB_WORKERS      → -workers         (default 0)
	MAIL_DELAY       → -mail-delay      (default 2s)
	SMTP_HOST        → -smtp-host
	SMTP_PORT        → -smtp-port       (default 587)
	MAIL_FROM        → -mail-from
	SITE_URL         → -site-url
	ABSTAIN_LABEL    → -abstain-label   (default "Abstain")
	PROFILE_FIELDS   → -profile-fields  (logical=meta_key,...)
	SENSITIVE_FIELDS → -sensitive-fields (default phone,email)

SMTP_USER and SMTP_PASSWORD are read from the environment only.

CLI flags take precedence over environment variables.

# Example

	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)
	// ...
*/
package cliparse
