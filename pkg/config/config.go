package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	devSessionSecret = "dev-session-secret-change-me"
	devJWTSecret     = "supersecretjwtkey"
)

type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	MetricsPort   string

	PostgresUrl   string
	SessionSecret string
	JWTSecret     string

	FirebaseCredentialsPath string
	FirebaseStorageBucket   string
	UploadDir               string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// AllowSharedOnlyMessages accepts a message whose only payload is a shared post.
	AllowSharedOnlyMessages bool
	TopChatLimit            int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METRICS_PORT", "9090")
	v.SetDefault("POSTGRES_CONN_STR", "")
	v.SetDefault("SESSION_SECRET", devSessionSecret)
	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "")
	v.SetDefault("FIREBASE_STORAGE_BUCKET", "")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/login/google/callback")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@localhost")
	v.SetDefault("MESSAGES_ALLOW_SHARED_ONLY", true)
	v.SetDefault("TOP_CHAT_LIMIT", 10)

	cfg := &Config{
		Port:                    v.GetString("PORT"),
		Env:                     v.GetString("ENV"),
		PublicBaseURL:           strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		LogLevel:                v.GetString("LOG_LEVEL"),
		MetricsPort:             v.GetString("METRICS_PORT"),
		PostgresUrl:             v.GetString("POSTGRES_CONN_STR"),
		SessionSecret:           v.GetString("SESSION_SECRET"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		FirebaseStorageBucket:   v.GetString("FIREBASE_STORAGE_BUCKET"),
		UploadDir:               v.GetString("UPLOAD_DIR"),
		GoogleClientID:          v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:      v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:       v.GetString("GOOGLE_REDIRECT_URL"),
		SMTPHost:                v.GetString("SMTP_HOST"),
		SMTPPort:                v.GetInt("SMTP_PORT"),
		SMTPUsername:            v.GetString("SMTP_USERNAME"),
		SMTPPassword:            v.GetString("SMTP_PASSWORD"),
		MailFrom:                v.GetString("MAIL_FROM"),
		AllowSharedOnlyMessages: v.GetBool("MESSAGES_ALLOW_SHARED_ONLY"),
		TopChatLimit:            v.GetInt("TOP_CHAT_LIMIT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// OAuthEnabled reports whether the Google login pair can be served.
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func (c *Config) validate() error {
	if c.PostgresUrl == "" {
		return fmt.Errorf("POSTGRES_CONN_STR environment variable not set")
	}
	if c.IsProduction() {
		if c.SessionSecret == devSessionSecret {
			return fmt.Errorf("SESSION_SECRET must be set in production")
		}
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}
	if c.TopChatLimit <= 0 {
		c.TopChatLimit = 10
	}
	return nil
}
