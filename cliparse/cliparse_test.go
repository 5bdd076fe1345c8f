// cliparse/cliparse_test.go
package cliparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_EnvVars(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("ADMIN_KEY", "test-key")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("CLOCK_OFFSET", "-2h")
	t.Setenv("PROFILE_FIELDS", "city=billing_city, phone=billing_phone")

	cfg, err := ParseFlags([]string{})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, 30*time.Minute, cfg.JobTTL)
	assert.Equal(t, -2*time.Hour, cfg.ClockOffset)
	assert.Equal(t, "billing_city", cfg.ProfileFields["city"])
	assert.Equal(t, "billing_phone", cfg.ProfileFields["phone"])
}

func TestParseFlags_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("ADMIN_KEY", "k")

	cfg, err := ParseFlags([]string{})
	require.NoError(t, err)

	assert.Equal(t, 3318, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, time.Hour, cfg.JobTTL)
	assert.Zero(t, cfg.JobWorkers, "workers disabled")
	assert.Equal(t, "Abstain", cfg.AbstainLabel)
	assert.Len(t, cfg.SensitiveFields, 2)
}

func TestParseFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JOB_WORKERS", "4")

	cfg, err := ParseFlags([]string{"-p", "8080", "-d", "file:test.db", "-admin-key", "s1", "-workers", "0"})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port, "CLI overrides env")
	assert.Zero(t, cfg.JobWorkers, "CLI overrides env")
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing database", map[string]string{"ADMIN_KEY": "k"}, nil},
		{"missing admin key", map[string]string{"DATABASE_URL": "file:x.db"}, nil},
		{"bad port", map[string]string{"DATABASE_URL": "file:x.db", "ADMIN_KEY": "k", "PORT": "abc"}, nil},
		{"bad db type", map[string]string{"DATABASE_URL": "file:x.db", "ADMIN_KEY": "k", "DATABASE_TYPE": "mysql"}, nil},
		{"bad ttl", map[string]string{"DATABASE_URL": "file:x.db", "ADMIN_KEY": "k", "JOB_TTL": "soon"}, nil},
		{"bad field map", map[string]string{"DATABASE_URL": "file:x.db", "ADMIN_KEY": "k", "PROFILE_FIELDS": "city"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"PORT", "DATABASE_URL", "DATABASE_TYPE", "ADMIN_KEY", "JOB_TTL", "PROFILE_FIELDS"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := ParseFlags(tt.args)
			assert.Error(t, err)
		})
	}
}
