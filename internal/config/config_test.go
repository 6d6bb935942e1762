package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("API_URL", "http://localhost:8000/")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://project.supabase.co", cfg.Auth.URL)
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, time.Minute, cfg.Query.StaleTime)
	assert.Equal(t, 1, cfg.Query.Retry)
	assert.Equal(t, "console_session", cfg.Session.CookieName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_PUBLISHABLE_KEY", "publishable")
	t.Setenv("API_URL", "http://api")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("QUERY_STALE_TIME", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("SESSION_COOKIE_SECURE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "publishable", cfg.Auth.AnonKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, 30*time.Second, cfg.Query.StaleTime)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Session.Secure)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 3000},
			Cache:   CacheConfig{Type: "memory"},
			Auth:    AuthConfig{URL: "https://auth", AnonKey: "key"},
			API:     APIConfig{BaseURL: "http://api"},
			Session: SessionConfig{TTL: time.Hour},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing auth url", func(c *Config) { c.Auth.URL = "" }},
		{"missing anon key", func(c *Config) { c.Auth.AnonKey = "" }},
		{"missing api url", func(c *Config) { c.API.BaseURL = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }},
		{"negative retry", func(c *Config) { c.Query.Retry = -1 }},
		{"zero session ttl", func(c *Config) { c.Session.TTL = 0 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
