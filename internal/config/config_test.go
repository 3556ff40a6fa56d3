package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "student_management", cfg.MongoDatabase)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 10*time.Minute, cfg.OTPSweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.RecoverySessionTTL)
	assert.Equal(t, "log", cfg.MailProvider)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.False(t, cfg.CookieSecure)
	assert.False(t, cfg.IsProd())
}

func TestLoad_MissingSecretFails(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MONGO_URI", "")
	t.Setenv("OTP_TTL_MINUTES", "abc")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "MONGO_URI")
	assert.Contains(t, err.Error(), "OTP_TTL_MINUTES")
}

func TestLoad_Prod(t *testing.T) {
	t.Run("short secret rejected", func(t *testing.T) {
		setRequired(t)
		t.Setenv("APP_ENV", "prod")
		t.Setenv("MAIL_PROVIDER", "resend")
		t.Setenv("RESEND_API_KEY", "re_123")
		t.Setenv("MAIL_FROM", "portal@example.edu")

		_, err := Load()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 bytes")
	})

	t.Run("log mailer rejected", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
		t.Setenv("MONGO_URI", "mongodb://db:27017")
		t.Setenv("APP_ENV", "prod")
		t.Setenv("MAIL_PROVIDER", "log")

		_, err := Load()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "MAIL_PROVIDER=log")
	})

	t.Run("secure cookies by default", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
		t.Setenv("MONGO_URI", "mongodb://db:27017")
		t.Setenv("APP_ENV", "prod")
		t.Setenv("MAIL_PROVIDER", "smtp")
		t.Setenv("SMTP_HOST", "smtp.gmail.com")
		t.Setenv("SMTP_USER", "portal@gmail.com")
		t.Setenv("SMTP_PASS", "app-password")

		cfg, err := Load()

		require.NoError(t, err)
		assert.True(t, cfg.CookieSecure)
		assert.Equal(t, "portal@gmail.com", cfg.MailFrom)
	})
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("OTP_TTL_MINUTES", "2")
	t.Setenv("OTP_SWEEP_INTERVAL", "30s")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 30*time.Second, cfg.OTPSweepInterval)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("OTP_TTL_MINUTES", "0")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTP_TTL_MINUTES must be positive")
}

func TestLoad_CORSOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://portal.example.edu,,")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:5173", "https://portal.example.edu"}, cfg.CORSOrigins)
}
