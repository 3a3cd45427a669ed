package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Log      LogConfig
	Auth     AuthConfig
	Fees     FeeConfig
	Payment  PaymentConfig
	Push     PushConfig
	Maps     MapsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string
}

// AuthConfig holds the JWT verification key.
type AuthConfig struct {
	JWTSecret string
}

// FeeConfig holds the pricing rules. Amounts are in minor units.
type FeeConfig struct {
	PassengerFeeRate     float64
	DefaultDriverFeeRate float64
	BaseFare             int64
	PerKmRate            float64
	MinPricePerSeat      int64
	PickupFee            int64
	LateCancelPenalty    int64
}

// PaymentConfig holds the payment secrets. SigningSecret keys the order hash
// given to clients; WebhookSecret is shared with the gateway and authenticates
// capture callbacks when Stripe is not configured.
type PaymentConfig struct {
	SigningSecret   string
	WebhookSecret   string
	StripeSecretKey string
}

// PushConfig holds Firebase settings. An empty credentials file disables FCM.
type PushConfig struct {
	FirebaseCredentialsFile string
	QueueSize               int
}

// MapsConfig holds the Google Maps API key.
type MapsConfig struct {
	APIKey string
}

// Load reads configuration from the environment, and from a .env file in the
// working directory when one exists.
func Load() *Config {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	return FromViper(v)
}

// FromViper builds a Config from v, falling back to defaults for unset keys.
func FromViper(v *viper.Viper) *Config {
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("NEW_RELIC_APP_NAME"),
			LicenseKey: v.GetString("NEW_RELIC_LICENSE_KEY"),
			Enabled:    v.GetBool("NEW_RELIC_ENABLED"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Fees: FeeConfig{
			PassengerFeeRate:     v.GetFloat64("FEE_PASSENGER_RATE"),
			DefaultDriverFeeRate: v.GetFloat64("FEE_DRIVER_RATE"),
			BaseFare:             v.GetInt64("FEE_BASE_FARE"),
			PerKmRate:            v.GetFloat64("FEE_PER_KM"),
			MinPricePerSeat:      v.GetInt64("FEE_MIN_PRICE_PER_SEAT"),
			PickupFee:            v.GetInt64("FEE_PICKUP"),
			LateCancelPenalty:    v.GetInt64("FEE_LATE_CANCEL_PENALTY"),
		},
		Payment: PaymentConfig{
			SigningSecret:   v.GetString("PAYMENT_SIGNING_SECRET"),
			WebhookSecret:   v.GetString("PAYMENT_WEBHOOK_SECRET"),
			StripeSecretKey: v.GetString("STRIPE_SECRET_KEY"),
		},
		Push: PushConfig{
			FirebaseCredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
			QueueSize:               v.GetInt("NOTIFICATION_QUEUE_SIZE"),
		},
		Maps: MapsConfig{
			APIKey: v.GetString("MAPS_API_KEY"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "carpool")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("NEW_RELIC_APP_NAME", "carpool-service")
	v.SetDefault("NEW_RELIC_ENABLED", false)

	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("FEE_PASSENGER_RATE", 0.05)
	v.SetDefault("FEE_DRIVER_RATE", 0.10)
	v.SetDefault("FEE_BASE_FARE", 5)
	v.SetDefault("FEE_PER_KM", 0.5)
	v.SetDefault("FEE_MIN_PRICE_PER_SEAT", 10)
	v.SetDefault("FEE_PICKUP", 5)
	v.SetDefault("FEE_LATE_CANCEL_PENALTY", 20)

	v.SetDefault("NOTIFICATION_QUEUE_SIZE", 1024)
}
