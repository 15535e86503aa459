package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "academic_programs", cfg.Database.Name)
	assert.Equal(t, 2, cfg.Notifications.Workers)
	assert.Equal(t, 2*time.Second, cfg.Notifications.RetryDelay)
	assert.Equal(t, 15*time.Minute, cfg.Directory.CacheTTL)
	assert.True(t, cfg.Timeline.ExportEnabled)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("NOTIFICATIONS_WORKERS", 0)
	v.Set("DIRECTORY_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, 1, cfg.Notifications.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Directory.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		v := viper.New()
		setDefaults(v)
		return fromViper(v)
	}

	cfg := base()
	cfg.Env = EnvProduction
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET must be set in production")

	cfg = base()
	cfg.Port = 0
	cfg.APIPrefix = "api"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "PORT 0 out of range")
	assert.ErrorContains(t, err, "API_PREFIX must start with /")

	cfg = base()
	cfg.JWT.Secret = ""
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET is required")
}
