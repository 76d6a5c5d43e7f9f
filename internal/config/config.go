package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Mode string

// DevAuthSecret signs tokens in offline mode when AUTH_HMAC_SECRET is unset.
const DevAuthSecret = "supersecret-dev-key"

var ErrNoAuthSecret = errors.New("AUTH_HMAC_SECRET must be set in online mode")

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string

	DBDriver string
	DBDSN    string

	AuthSecret string
	TokenTTL   time.Duration

	BlobDriver   string // fs|supabase|none
	BlobBasePath string // for fs
	SupabaseURL  string
	SupabaseKey  string
	BucketName   string

	CORSOrigins []string

	LogLevel  string
	LogPretty bool

	// StoreTimeout bounds every persistence call made by the exam engine.
	StoreTimeout time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("MODE", string(ModeOffline))
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SITE_ID", "examportal")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("BLOB_DRIVER", "fs")
	v.SetDefault("BLOB_BASE_PATH", "./data")
	v.SetDefault("BUCKET_NAME", "reports")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_TIMEOUT", "5s")
}

// FromEnv loads an optional .env file, then reads the process environment.
// Variables already set in the environment win over the file.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
	v := viper.New()
	v.AutomaticEnv()
	return load(v)
}

func load(v *viper.Viper) Config {
	defaults(v)
	mode := Mode(strings.ToLower(v.GetString("MODE")))
	if mode != ModeOnline {
		mode = ModeOffline
	}
	pretty := mode == ModeOffline
	if v.IsSet("LOG_PRETTY") {
		pretty = v.GetBool("LOG_PRETTY")
	}
	corsDefault := "http://localhost:3000,http://localhost:5173"
	if mode == ModeOnline {
		corsDefault = ""
	}

	secret := v.GetString("AUTH_HMAC_SECRET")
	if secret == "" && mode == ModeOffline {
		secret = DevAuthSecret
	}

	cfg := Config{
		Mode:         mode,
		HTTPAddr:     v.GetString("HTTP_ADDR"),
		SiteID:       v.GetString("SITE_ID"),
		DBDriver:     v.GetString("DB_DRIVER"),
		DBDSN:        v.GetString("DB_DSN"),
		AuthSecret:   secret,
		TokenTTL:     durationOr(v, "TOKEN_TTL", 12*time.Hour),
		BlobDriver:   strings.ToLower(v.GetString("BLOB_DRIVER")),
		BlobBasePath: v.GetString("BLOB_BASE_PATH"),
		SupabaseURL:  v.GetString("SUPABASE_URL"),
		SupabaseKey:  v.GetString("SUPABASE_KEY"),
		BucketName:   v.GetString("BUCKET_NAME"),
		CORSOrigins:  csv(stringOr(v, "CORS_ORIGINS", corsDefault)),
		LogLevel:     v.GetString("LOG_LEVEL"),
		LogPretty:    pretty,
		StoreTimeout: durationOr(v, "STORE_TIMEOUT", 5*time.Second),
	}
	return cfg
}

// Validate reports settings the server must not start with.
func (c Config) Validate() error {
	if c.Mode == ModeOnline && (strings.TrimSpace(c.AuthSecret) == "" || c.AuthSecret == DevAuthSecret) {
		return ErrNoAuthSecret
	}
	return nil
}

func stringOr(v *viper.Viper, k, def string) string {
	if s := v.GetString(k); s != "" {
		return s
	}
	return def
}

// durationOr accepts Go durations ("90s") and bare seconds ("90").
func durationOr(v *viper.Viper, k string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(k))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(raw + "s"); err == nil && d > 0 {
		return d
	}
	log.Warn().Str("key", k).Str("value", raw).Msg("invalid duration, using default")
	return def
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
