/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the booking-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	GatewayAPIBaseURL    string `mapstructure:"GATEWAY_API_BASE_URL"`
	GatewayAPIKey        string `mapstructure:"GATEWAY_API_KEY"`
	GatewayWebhookSecret string `mapstructure:"GATEWAY_WEBHOOK_SECRET"`
	AuthJWKSURL          string `mapstructure:"AUTH_JWKS_URL"`
	Currency             string `mapstructure:"CURRENCY"`
	PlatformOwnerID      string `mapstructure:"PLATFORM_OWNER_ID"`

	PlatformFeePaise   int64 `mapstructure:"PLATFORM_FEE_PAISE"`
	MinWithdrawalPaise int64 `mapstructure:"MIN_WITHDRAWAL_PAISE"`

	ReaperIntervalMinutes     int `mapstructure:"REAPER_INTERVAL_MINUTES"`
	StalePaymentTimeoutMin    int `mapstructure:"STALE_PAYMENT_TIMEOUT_MINUTES"`
	BookingRateLimitPerMinute int `mapstructure:"BOOKING_RATE_LIMIT_PER_MINUTE"`
	WebhookDedupeTTLMinutes   int `mapstructure:"WEBHOOK_DEDUPE_TTL_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CURRENCY", "inr")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "inspecto:rate_limit")
	viper.SetDefault("PLATFORM_FEE_PAISE", 50000)     // 500 INR
	viper.SetDefault("MIN_WITHDRAWAL_PAISE", 100000)  // 1000 INR
	viper.SetDefault("REAPER_INTERVAL_MINUTES", 5)
	viper.SetDefault("STALE_PAYMENT_TIMEOUT_MINUTES", 15)
	viper.SetDefault("BOOKING_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("WEBHOOK_DEDUPE_TTL_MINUTES", 1440)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BOOKING_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("GATEWAY_API_BASE_URL")
	_ = viper.BindEnv("GATEWAY_API_KEY")
	_ = viper.BindEnv("GATEWAY_WEBHOOK_SECRET")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("CURRENCY")
	_ = viper.BindEnv("PLATFORM_OWNER_ID")
	_ = viper.BindEnv("PLATFORM_FEE_PAISE")
	_ = viper.BindEnv("PLATFORM_FEE")
	_ = viper.BindEnv("PLATFORM_FEE_RUPEES")
	_ = viper.BindEnv("MIN_WITHDRAWAL_PAISE")
	_ = viper.BindEnv("MIN_WITHDRAWAL")
	_ = viper.BindEnv("REAPER_INTERVAL_MINUTES")
	_ = viper.BindEnv("STALE_PAYMENT_TIMEOUT_MINUTES")
	_ = viper.BindEnv("BOOKING_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("WEBHOOK_DEDUPE_TTL_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "inspecto:rate_limit"
	}
	config.Currency = strings.ToLower(strings.TrimSpace(config.Currency))
	if config.Currency == "" {
		config.Currency = "inr"
	}

	// Allow specifying the platform fee in whole currency units via PLATFORM_FEE
	// or PLATFORM_FEE_RUPEES.
	if viper.IsSet("PLATFORM_FEE") {
		feeStr := strings.TrimSpace(viper.GetString("PLATFORM_FEE"))
		if feeStr != "" {
			feeValue, parseErr := strconv.ParseFloat(feeStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid PLATFORM_FEE\" value=%q err=%v", feeStr, parseErr)
			} else {
				config.PlatformFeePaise = int64(math.Round(feeValue * 100))
			}
		}
	} else if viper.IsSet("PLATFORM_FEE_RUPEES") {
		feeStr := strings.TrimSpace(viper.GetString("PLATFORM_FEE_RUPEES"))
		if feeStr != "" {
			feeValue, parseErr := strconv.ParseFloat(feeStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid PLATFORM_FEE_RUPEES\" value=%q err=%v", feeStr, parseErr)
			} else {
				config.PlatformFeePaise = int64(math.Round(feeValue * 100))
			}
		}
	}

	if config.PlatformFeePaise < 0 {
		log.Printf("level=warn component=config msg=\"negative platform fee configured; coercing to zero\" fee_paise=%d", config.PlatformFeePaise)
		config.PlatformFeePaise = 0
	}

	// MIN_WITHDRAWAL in whole currency units.
	if viper.IsSet("MIN_WITHDRAWAL") {
		minStr := strings.TrimSpace(viper.GetString("MIN_WITHDRAWAL"))
		if minStr != "" {
			minValue, parseErr := strconv.ParseFloat(minStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid MIN_WITHDRAWAL\" value=%q err=%v", minStr, parseErr)
			} else {
				config.MinWithdrawalPaise = int64(math.Round(minValue * 100))
			}
		}
	}

	if config.MinWithdrawalPaise < 0 {
		log.Printf("level=warn component=config msg=\"negative minimum withdrawal configured; coercing to zero\" min_paise=%d", config.MinWithdrawalPaise)
		config.MinWithdrawalPaise = 0
	}

	if config.ReaperIntervalMinutes <= 0 {
		config.ReaperIntervalMinutes = 5
	}
	if config.StalePaymentTimeoutMin <= 0 {
		config.StalePaymentTimeoutMin = 15
	}
	if config.BookingRateLimitPerMinute <= 0 {
		config.BookingRateLimitPerMinute = 10
	}
	if config.WebhookDedupeTTLMinutes <= 0 {
		config.WebhookDedupeTTLMinutes = 1440
	}

	return
}
