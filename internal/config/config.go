package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers for submission uploads.
const (
	StorageCloudinary = "cloudinary"
	StorageS3         = "s3"
)

// Config holds runtime configuration values for the tracker service.
type Config struct {
	AppName       string
	AppEnv        string
	AppPort       string
	AllowOrigins  string
	DatabaseURL   string
	RedisURL      string
	NATSURL       string
	ChannelPrefix string
	JWTSecret     string

	StorageDriver          string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	S3Bucket               string
	S3Region               string
	S3Endpoint             string
	S3AccessKey            string
	S3SecretKey            string
	S3UseSSL               bool
	S3PublicBaseURL        string
	UploadMaxMB            int
	UploadRatePerMinute    int

	TrackingCacheTTL      time.Duration
	TrackingLocation      *time.Location
	TrackingTimeLayout    string
	SessionTTL            time.Duration
	NotificationKeepAlive time.Duration

	LogLevel  string
	LogFormat string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TRACKER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Tracker API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("allow.origins", "*")
	v.SetDefault("channel.prefix", "tracker")
	v.SetDefault("storage.driver", StorageCloudinary)
	v.SetDefault("cloudinary.folder", "gema/submissions")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("upload.rate_per_minute", 10)
	v.SetDefault("tracking.cache_ttl", "30s")
	v.SetDefault("tracking.timezone", "UTC")
	v.SetDefault("tracking.time_layout", "02/01/2006 15:04")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("notification.keepalive", "15s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	trackingTTL, err := durationSetting(v, "tracking.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	sessionTTL, err := durationSetting(v, "session.ttl")
	if err != nil {
		return Config{}, err
	}
	keepAlive, err := durationSetting(v, "notification.keepalive")
	if err != nil {
		return Config{}, err
	}

	location, err := time.LoadLocation(v.GetString("tracking.timezone"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid tracking timezone: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		AllowOrigins:           v.GetString("allow.origins"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		ChannelPrefix:          v.GetString("channel.prefix"),
		JWTSecret:              v.GetString("jwt.secret"),
		StorageDriver:          strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		S3Bucket:               v.GetString("s3.bucket"),
		S3Region:               v.GetString("s3.region"),
		S3Endpoint:             v.GetString("s3.endpoint"),
		S3AccessKey:            v.GetString("s3.access_key"),
		S3SecretKey:            v.GetString("s3.secret_key"),
		S3UseSSL:               v.GetBool("s3.use_ssl"),
		S3PublicBaseURL:        v.GetString("s3.public_base_url"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		UploadRatePerMinute:    v.GetInt("upload.rate_per_minute"),
		TrackingCacheTTL:       trackingTTL,
		TrackingLocation:       location,
		TrackingTimeLayout:     v.GetString("tracking.time_layout"),
		SessionTTL:             sessionTTL,
		NotificationKeepAlive:  keepAlive,
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		LogFormat:              strings.ToLower(v.GetString("log.format")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.StorageDriver {
	case StorageCloudinary, StorageS3:
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	return cfg, nil
}

func durationSetting(v *viper.Viper, key string) (time.Duration, error) {
	parsed, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
