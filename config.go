package main

import (
	"os"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/pkg/errors"
)

const defaultFormRelayURL = "https://formspree.io/f/xanpkrap"

// Config holds everything the site reads from the environment. Values from a
// local .env file are already in the environment via godotenv/autoload.
type Config struct {
	Port               string
	Mode               string
	LogLevel           string
	FormRelayURL       string
	DBPath             string
	ContentPath        string
	ResumePath         string
	ResumeDownloadName string
	SessionKey         []byte
	AdminUsername      string
	AdminPassword      string
	VisitorRetention   time.Duration

	// devCredentials is set when the admin login fell back to defaults.
	devCredentials bool
}

// LoadConfig reads the configuration from the environment, applying the
// development defaults the site has always shipped with.
func LoadConfig() (cfg Config, err error) {
	cfg = Config{
		Port:               envOr("PORT", "8080"),
		Mode:               envOr("GIN_MODE", "debug"),
		LogLevel:           strings.ToLower(envOr("LOG_LEVEL", "info")),
		FormRelayURL:       envOr("FORM_RELAY_URL", defaultFormRelayURL),
		DBPath:             envOr("DB_PATH", "folio.db"),
		ContentPath:        os.Getenv("CONTENT_PATH"),
		ResumePath:         envOr("RESUME_PATH", "static/resume.pdf"),
		ResumeDownloadName: envOr("RESUME_DOWNLOAD_NAME", "Suraj_S_Pillai_Flutter_Developer_Resume.pdf"),
		AdminUsername:      os.Getenv("ADMIN_USERNAME"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		VisitorRetention:   365 * 24 * time.Hour,
	}

	if raw := os.Getenv("VISITOR_RETENTION"); raw != "" {
		cfg.VisitorRetention, err = time.ParseDuration(raw)
		if err != nil {
			err = errors.Wrapf(err, "invalid VISITOR_RETENTION %q", raw)
			return cfg, err
		}
	}

	if key := os.Getenv("SESSION_KEY"); key != "" {
		if len(key) < 32 {
			err = errors.New("SESSION_KEY must be at least 32 bytes")
			return cfg, err
		}
		cfg.SessionKey = []byte(key)
	} else {
		// Sessions will not survive a restart, which is fine for a portfolio.
		cfg.SessionKey = securecookie.GenerateRandomKey(32)
	}

	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		cfg.devCredentials = true
		if cfg.AdminUsername == "" {
			cfg.AdminUsername = "admin"
		}
		if cfg.AdminPassword == "" {
			cfg.AdminPassword = "admin123"
		}
	}

	switch cfg.Mode {
	case "debug", "release", "test":
	default:
		err = errors.Errorf("GIN_MODE must be debug, release or test, got %q", cfg.Mode)
		return cfg, err
	}

	if !strings.HasPrefix(cfg.FormRelayURL, "http://") && !strings.HasPrefix(cfg.FormRelayURL, "https://") {
		err = errors.Errorf("FORM_RELAY_URL must be an http(s) URL, got %q", cfg.FormRelayURL)
		return cfg, err
	}

	return cfg, err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
