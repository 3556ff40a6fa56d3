// Package config loads runtime settings from the environment and owns the
// MongoDB connection shared by the repositories.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	minProdSecretLen = 32
)

// Config holds runtime settings for the portal.
type Config struct {
	Env         string
	HTTPAddr    string
	CORSOrigins []string

	JWTSecret    string
	CookieSecure bool

	MongoURI      string
	MongoDatabase string

	OTPTTL             time.Duration
	OTPSweepInterval   time.Duration
	RecoverySessionTTL time.Duration

	MailProvider string // log | smtp | resend
	MailFrom     string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	ResendAPIKey string

	DefaultAdminPassword string

	LogLevel  string
	SentryDSN string
	Release   string
}

// Load reads the environment. It reports every problem at once and fails
// when the token signing secret is missing, so the process never runs with
// a fallback key.
func Load() (*Config, error) {
	var errs []error

	env := strings.ToLower(getenv("APP_ENV", EnvDev))
	cfg := &Config{
		Env:                  env,
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		CORSOrigins:          getlist("CORS_ORIGINS"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDatabase:        getenv("MONGO_DATABASE", "student_management"),
		MailProvider:         strings.ToLower(getenv("MAIL_PROVIDER", "log")),
		MailFrom:             os.Getenv("MAIL_FROM"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPUser:             os.Getenv("SMTP_USER"),
		SMTPPass:             os.Getenv("SMTP_PASS"),
		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		DefaultAdminPassword: os.Getenv("DEFAULT_ADMIN_PASSWORD"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		Release:              os.Getenv("RELEASE"),
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if env == EnvProd && len(cfg.JWTSecret) < minProdSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes in prod", minProdSecretLen))
	}
	if cfg.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}

	ttlMinutes, err := getint("OTP_TTL_MINUTES", 5)
	if err != nil {
		errs = append(errs, err)
	} else if ttlMinutes <= 0 {
		errs = append(errs, fmt.Errorf("OTP_TTL_MINUTES must be positive, got %d", ttlMinutes))
	}
	cfg.OTPTTL = time.Duration(ttlMinutes) * time.Minute

	if cfg.OTPSweepInterval, err = getduration("OTP_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.RecoverySessionTTL, err = getduration("RECOVERY_SESSION_TTL", 15*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.SMTPPort, err = getint("SMTP_PORT", 587); err != nil {
		errs = append(errs, err)
	}
	if cfg.CookieSecure, err = getbool("COOKIE_SECURE", env == EnvProd); err != nil {
		errs = append(errs, err)
	}

	switch cfg.MailProvider {
	case "log":
		if env == EnvProd {
			errs = append(errs, errors.New("MAIL_PROVIDER=log is not allowed in prod"))
		}
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPUser == "" || cfg.SMTPPass == "" {
			errs = append(errs, errors.New("SMTP_HOST, SMTP_USER and SMTP_PASS are required for MAIL_PROVIDER=smtp"))
		}
		if cfg.MailFrom == "" {
			cfg.MailFrom = cfg.SMTPUser
		}
	case "resend":
		if cfg.ResendAPIKey == "" || cfg.MailFrom == "" {
			errs = append(errs, errors.New("RESEND_API_KEY and MAIL_FROM are required for MAIL_PROVIDER=resend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// IsProd reports whether the portal runs in production mode.
func (c *Config) IsProd() bool { return c.Env == EnvProd }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getlist(k string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(k), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getbool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

func getduration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return def, fmt.Errorf("%s must be positive, got %s", k, v)
	}
	return d, nil
}
