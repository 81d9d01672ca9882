package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "attendance-service", cfg.Service.Name)
	assert.Equal(t, "8080", cfg.Service.Port)
	assert.Equal(t, 15*time.Minute, cfg.GetTokenTTLDuration())
	assert.False(t, cfg.Attendance.RequireAllFactors)
	assert.True(t, cfg.Database.Migrate)
}

func TestValidate_RequiresSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")

	cfg := Load()
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresPositiveTTL(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("TOKEN_TTL_MINUTES", "0")

	cfg := Load()
	assert.Error(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	t.Run("prefers DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
		cfg := Load()
		assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DatabaseDSN())
	})

	t.Run("builds from parts", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("DB_HOST", "dbhost")
		t.Setenv("DB_NAME", "attend")
		t.Setenv("DB_USER", "svc")
		t.Setenv("DB_PASSWORD", "pw")
		cfg := Load()
		assert.Equal(t, "postgres://svc:pw@dbhost:5432/attend?sslmode=disable", cfg.DatabaseDSN())
	})
}
