package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PricingConfig holds the injectable pricing tables and rates.
type PricingConfig struct {
	Currency            string             `mapstructure:"currency"`
	PeakMultiplier      float64            `mapstructure:"peak_multiplier"`
	WeekendMultiplier   float64            `mapstructure:"weekend_multiplier"`
	EmergencyRate       float64            `mapstructure:"emergency_rate"`
	PlatformFeeRate     float64            `mapstructure:"platform_fee_rate"`
	TaxRate             float64            `mapstructure:"tax_rate"`
	MaxRecurringRate    float64            `mapstructure:"max_recurring_rate"`
	LocationPremiums    map[string]float64 `mapstructure:"location_premiums"`
	ExperiencePremiums  map[string]float64 `mapstructure:"experience_premiums"`
	FrequencyDiscounts  map[string]float64 `mapstructure:"frequency_discounts"`
	DurationMultipliers map[int]float64    `mapstructure:"duration_multipliers"`
	OngoingMultiplier   float64            `mapstructure:"ongoing_multiplier"`
}

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	AdminIDs          string `mapstructure:"ADMIN_IDS"` // comma separated
	Timezone          string `mapstructure:"TIMEZONE"`

	// Booking store.
	StoreDriver string `mapstructure:"STORE_DRIVER"` // mongo | postgres | memory
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	MongoDB     string `mapstructure:"MONGO_DB"`
	PostgresDSN string `mapstructure:"POSTGRES_DSN"`

	// Redis configuration.
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB         int    `mapstructure:"REDIS_CACHE_DB"`
	RedisLockDB          int    `mapstructure:"REDIS_LOCK_DB"`
	RedisReminderQueueDB int    `mapstructure:"REDIS_REMINDER_QUEUE_DB"`

	// Event delivery.
	RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange    string `mapstructure:"RABBITMQ_EXCHANGE"`
	OutboxPollSeconds   int    `mapstructure:"OUTBOX_POLL_SECONDS"`
	ReminderLeadMinutes int    `mapstructure:"REMINDER_LEAD_MINUTES"`
	LockTTLSeconds      int    `mapstructure:"LOCK_TTL_SECONDS"`

	Pricing PricingConfig `mapstructure:"pricing"`
}

var AppConfig Config

// DefaultPricing mirrors the platform's published rate card.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		Currency:          "INR",
		PeakMultiplier:    1.20,
		WeekendMultiplier: 1.15,
		EmergencyRate:     0.30,
		PlatformFeeRate:   0.05,
		TaxRate:           0.18,
		MaxRecurringRate:  0.25,
		LocationPremiums: map[string]float64{
			"gurgaon": 150,
			"noida":   100,
			"delhi":   75,
		},
		ExperiencePremiums: map[string]float64{
			"beginner":     0,
			"intermediate": 50,
			"expert":       150,
			"master":       300,
		},
		FrequencyDiscounts: map[string]float64{
			"weekly":   0.05,
			"biweekly": 0.08,
			"monthly":  0.12,
			"custom":   0.05,
		},
		DurationMultipliers: map[int]float64{
			1:  1.0,
			3:  1.2,
			6:  1.5,
			12: 2.0,
		},
		OngoingMultiplier: 2.5,
	}
}

// LoadConfig reads .env, command line flags, an optional config file and the
// environment into AppConfig.
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, continuing")
	}

	flags := pflag.NewFlagSet("homeserve", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a config file")
	flags.String("store", "", "booking store driver (mongo|postgres|memory)")
	flags.String("port", "", "HTTP port")
	flags.ParseErrorsWhitelist.UnknownFlags = true
	_ = flags.Parse(os.Args[1:])
	if f := flags.Lookup("store"); f != nil && f.Changed {
		_ = viper.BindPFlag("STORE_DRIVER", f)
	}
	if f := flags.Lookup("port"); f != nil && f.Changed {
		_ = viper.BindPFlag("APP_PORT", f)
	}

	if *configPath != "" {
		viper.SetConfigFile(*configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ADMIN_IDS", "")
	v.SetDefault("TIMEZONE", "Asia/Kolkata")
	v.SetDefault("STORE_DRIVER", "mongo")
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "homeserve")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("REDIS_LOCK_DB", 1)
	v.SetDefault("REDIS_REMINDER_QUEUE_DB", 2)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "homeserve.bookings")
	v.SetDefault("OUTBOX_POLL_SECONDS", 2)
	v.SetDefault("REMINDER_LEAD_MINUTES", 60)
	v.SetDefault("LOCK_TTL_SECONDS", 10)

	p := DefaultPricing()
	v.SetDefault("pricing.currency", p.Currency)
	v.SetDefault("pricing.peak_multiplier", p.PeakMultiplier)
	v.SetDefault("pricing.weekend_multiplier", p.WeekendMultiplier)
	v.SetDefault("pricing.emergency_rate", p.EmergencyRate)
	v.SetDefault("pricing.platform_fee_rate", p.PlatformFeeRate)
	v.SetDefault("pricing.tax_rate", p.TaxRate)
	v.SetDefault("pricing.max_recurring_rate", p.MaxRecurringRate)
	v.SetDefault("pricing.location_premiums", p.LocationPremiums)
	v.SetDefault("pricing.experience_premiums", p.ExperiencePremiums)
	v.SetDefault("pricing.frequency_discounts", p.FrequencyDiscounts)
	v.SetDefault("pricing.duration_multipliers", p.DurationMultipliers)
	v.SetDefault("pricing.ongoing_multiplier", p.OngoingMultiplier)
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// AdminIDList returns the configured administrator ids.
func AdminIDList() []string {
	var ids []string
	for _, id := range strings.Split(AppConfig.AdminIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
